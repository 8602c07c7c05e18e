package tree

import (
	"context"
	"errors"
	"testing"

	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	id       uuid.UUID
	name     string
	parent   *uuid.UUID
	children []*node
}

func newWalker(maxDepth int) Walker[*node] {
	return Walker[*node]{
		MaxDepth: maxDepth,
		ID:       func(n *node) uuid.UUID { return n.id },
		Children: func(ctx context.Context, n *node) ([]*node, error) { return n.children, nil },
	}
}

func mk(name string, children ...*node) *node {
	n := &node{id: uuid.New(), name: name, children: children}
	for _, c := range children {
		id := n.id
		c.parent = &id
	}
	return n
}

func names(nodes []*node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.name)
	}
	return out
}

func TestCollect_PreOrder(t *testing.T) {
	root := mk("a", mk("b", mk("d")), mk("c"))

	got, err := newWalker(10).Collect(context.Background(), root, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d", "c"}, names(got))
}

func TestCollect_DescendPredicate(t *testing.T) {
	root := mk("a", mk("b", mk("d")), mk("c"))

	got, err := newWalker(10).Collect(context.Background(), root, func(n *node) bool { return n.name != "b" })

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names(got))
}

func TestCollect_MaxDepthExceeded(t *testing.T) {
	root := mk("a", mk("b", mk("c", mk("d"))))

	_, err := newWalker(2).Collect(context.Background(), root, nil)

	assert.True(t, errors.Is(err, apperrors.ErrMaxDepthExceeded))
}

func TestCollect_CycleFailsClosed(t *testing.T) {
	a := mk("a")
	b := mk("b")
	a.children = []*node{b}
	b.children = []*node{a}

	_, err := newWalker(50).Collect(context.Background(), a, nil)

	assert.True(t, errors.Is(err, apperrors.ErrInvariantViolation))
}

func TestCollect_ChildrenError(t *testing.T) {
	boom := errors.New("boom")
	w := newWalker(5)
	w.Children = func(ctx context.Context, n *node) ([]*node, error) { return nil, boom }

	_, err := w.Collect(context.Background(), mk("a"), nil)

	assert.ErrorIs(t, err, boom)
}

func TestCollect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newWalker(5).Collect(ctx, mk("a"), nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_Shape(t *testing.T) {
	root := mk("a", mk("b", mk("d")), mk("c"))

	n, err := newWalker(10).Build(context.Background(), root, nil)

	require.NoError(t, err)
	assert.Equal(t, "a", n.Value.name)
	require.Len(t, n.Children, 2)
	assert.Equal(t, "b", n.Children[0].Value.name)
	require.Len(t, n.Children[0].Children, 1)
	assert.Equal(t, "d", n.Children[0].Children[0].Value.name)
	assert.Empty(t, n.Children[1].Children)
}

func TestWalkUp(t *testing.T) {
	d := mk("d")
	b := mk("b", d)
	a := mk("a", b)
	byID := map[uuid.UUID]*node{a.id: a, b.id: b, d.id: d}
	parent := func(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) { return byID[id].parent, nil }

	t.Run("visits ancestors nearest first", func(t *testing.T) {
		var seen []string
		err := WalkUp(context.Background(), 10, d.id, parent, func(id uuid.UUID) bool {
			seen = append(seen, byID[id].name)
			return true
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "b", "a"}, seen)
	})

	t.Run("stops when visit returns false", func(t *testing.T) {
		var seen []string
		err := WalkUp(context.Background(), 10, d.id, parent, func(id uuid.UUID) bool {
			seen = append(seen, byID[id].name)
			return id != b.id
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "b"}, seen)
	})

	t.Run("loop in parent chain", func(t *testing.T) {
		loop := func(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
			if id == a.id {
				return &d.id, nil
			}
			return byID[id].parent, nil
		}
		err := WalkUp(context.Background(), 10, d.id, loop, func(uuid.UUID) bool { return true })
		assert.True(t, errors.Is(err, apperrors.ErrInvariantViolation))
	})

	t.Run("depth bound", func(t *testing.T) {
		err := WalkUp(context.Background(), 1, d.id, parent, func(uuid.UUID) bool { return true })
		assert.True(t, errors.Is(err, apperrors.ErrMaxDepthExceeded))
	})
}
