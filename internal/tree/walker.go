// Package tree walks owner trees with a hard depth bound. Every recursive operation on entries goes
// through it so a corrupted parent chain fails closed instead of looping.
package tree

import (
	"context"
	"fmt"

	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
)

const DefaultMaxDepth = 64

// Walker loads children lazily through Children; it holds no state between calls.
type Walker[T any] struct {
	MaxDepth int
	ID       func(T) uuid.UUID
	Children func(ctx context.Context, parent T) ([]T, error)
}

// Node is one level of a subtree produced by Build.
type Node[T any] struct {
	Value    T
	Children []*Node[T]
}

func (w Walker[T]) maxDepth() int {
	if w.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return w.MaxDepth
}

// Collect returns root and its descendants in pre-order. descend decides whether the children of a
// visited value are loaded; nil descends everywhere. Reversing the result yields children before parents.
func (w Walker[T]) Collect(ctx context.Context, root T, descend func(T) bool) ([]T, error) {
	out := make([]T, 0, 1)
	seen := make(map[uuid.UUID]struct{})

	var visit func(v T, depth int) error
	visit = func(v T, depth int) error {
		if err := w.enter(ctx, seen, v, depth); err != nil {
			return err
		}
		out = append(out, v)
		if descend != nil && !descend(v) {
			return nil
		}

		children, err := w.Children(ctx, v)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := visit(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(root, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// Build materializes the subtree under root with the same descend rule as Collect.
func (w Walker[T]) Build(ctx context.Context, root T, descend func(T) bool) (*Node[T], error) {
	seen := make(map[uuid.UUID]struct{})

	var build func(v T, depth int) (*Node[T], error)
	build = func(v T, depth int) (*Node[T], error) {
		if err := w.enter(ctx, seen, v, depth); err != nil {
			return nil, err
		}
		n := &Node[T]{Value: v, Children: []*Node[T]{}}
		if descend != nil && !descend(v) {
			return n, nil
		}

		children, err := w.Children(ctx, v)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			child, err := build(c, depth+1)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
		return n, nil
	}

	return build(root, 0)
}

func (w Walker[T]) enter(ctx context.Context, seen map[uuid.UUID]struct{}, v T, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > w.maxDepth() {
		return apperrors.MaxDepthExceeded(fmt.Sprintf("subtree is deeper than %d levels", w.maxDepth()))
	}
	id := w.ID(v)
	if _, ok := seen[id]; ok {
		return apperrors.InvariantViolation(fmt.Sprintf("entry %s reached twice during traversal", id))
	}
	seen[id] = struct{}{}
	return nil
}

// WalkUp visits start and then each ancestor, nearest first, until parent reports nil or visit
// returns false.
func WalkUp(
	ctx context.Context,
	maxDepth int,
	start uuid.UUID,
	parent func(ctx context.Context, id uuid.UUID) (*uuid.UUID, error),
	visit func(id uuid.UUID) bool,
) error {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	seen := make(map[uuid.UUID]struct{})
	current := &start
	for depth := 0; current != nil; depth++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if depth > maxDepth {
			return apperrors.MaxDepthExceeded(fmt.Sprintf("ancestor chain is longer than %d levels", maxDepth))
		}
		if _, ok := seen[*current]; ok {
			return apperrors.InvariantViolation(fmt.Sprintf("ancestor chain loops at %s", *current))
		}
		seen[*current] = struct{}{}

		if !visit(*current) {
			return nil
		}

		next, err := parent(ctx, *current)
		if err != nil {
			return err
		}
		current = next
	}
	return nil
}
