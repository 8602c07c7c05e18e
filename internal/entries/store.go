package entries

import (
	"context"
	"fmt"
	"strings"
	"time"

	"drive-service/internal/domain/entry"
	"drive-service/internal/repository"
	"drive-service/internal/tree"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store owns the per-user entry tree: creation, rename, move and reads.
type Store struct {
	txm      repository.TxManager
	maxDepth int
	now      func() time.Time
	log      zerolog.Logger
}

// NewStore creates a new entry store
func NewStore(txm repository.TxManager, maxDepth int, logger zerolog.Logger) *Store {
	if maxDepth <= 0 {
		maxDepth = tree.DefaultMaxDepth
	}
	return &Store{
		txm:      txm,
		maxDepth: maxDepth,
		now:      time.Now,
		log:      logger.With().Str("component", "entries").Logger(),
	}
}

// WithClock replaces the time source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// MaxDepth is the traversal bound shared with the trash lifecycle.
func (s *Store) MaxDepth() int {
	return s.maxDepth
}

// Owned loads id for update and checks that ownerID owns it.
func Owned(ctx context.Context, tx repository.Tx, ownerID, id uuid.UUID) (*entry.Entry, error) {
	e, err := tx.Entries().GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.OwnerID != ownerID {
		return nil, apperrors.Forbidden("entry belongs to another user")
	}
	return e, nil
}

// Walker returns a bounded tree walker over tx that only follows children in the given statuses.
func (s *Store) Walker(tx repository.Tx, statuses ...entry.Status) tree.Walker[*entry.Entry] {
	return tree.Walker[*entry.Entry]{
		MaxDepth: s.maxDepth,
		ID:       func(e *entry.Entry) uuid.UUID { return e.ID },
		Children: func(ctx context.Context, parent *entry.Entry) ([]*entry.Entry, error) {
			return tx.Entries().ListChildren(ctx, parent.OwnerID, parent.ID, statuses)
		},
	}
}

// IsDirectory is the descend predicate for walks over entries.
func IsDirectory(e *entry.Entry) bool {
	return e.IsDirectory
}

// EnsureRoot returns the owner's root folder, creating it on first use.
func (s *Store) EnsureRoot(ctx context.Context, tx repository.Tx, ownerID uuid.UUID) (*entry.Entry, error) {
	var root *entry.Entry
	err := repository.Within(ctx, s.txm, tx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.Entries().GetRoot(ctx, ownerID)
		if err == nil {
			root = r
			return nil
		}
		if !apperrors.IsNotFound(err) {
			return err
		}

		now := s.now().UTC()
		if err := tx.Entries().InsertRoot(ctx, &entry.Entry{
			ID:          uuid.New(),
			OwnerID:     ownerID,
			Name:        entry.RootName,
			IsDirectory: true,
			Status:      entry.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}

		root, err = tx.Entries().GetRoot(ctx, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

// resolveParent turns an optional parent id into an ACTIVE directory owned by ownerID.
func (s *Store) resolveParent(ctx context.Context, tx repository.Tx, ownerID uuid.UUID, parentID *uuid.UUID) (*entry.Entry, error) {
	if parentID == nil {
		return s.EnsureRoot(ctx, tx, ownerID)
	}

	parent, err := Owned(ctx, tx, ownerID, *parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsDirectory {
		return nil, apperrors.Validation("parent is not a folder")
	}
	if !parent.IsActive() {
		return nil, apperrors.InvalidState("parent folder is not active")
	}
	return parent, nil
}

// checkFits fails with MaxDepthExceeded when a subtree of the given height placed under parentID
// would put any entry more than maxDepth levels below the root. Height 0 is a single entry.
// Tree walks use the same bound.
func (s *Store) checkFits(ctx context.Context, tx repository.Tx, parentID uuid.UUID, height int) error {
	parentDepth, err := s.depthOf(ctx, tx, parentID)
	if err != nil {
		return err
	}
	if parentDepth+1+height > s.maxDepth {
		return apperrors.MaxDepthExceeded(fmt.Sprintf("folders can be nested at most %d levels deep", s.maxDepth))
	}
	return nil
}

// depthOf counts the ancestors of id; the root is at depth 0.
func (s *Store) depthOf(ctx context.Context, tx repository.Tx, id uuid.UUID) (int, error) {
	visited := 0
	err := tree.WalkUp(ctx, s.maxDepth, id,
		func(ctx context.Context, cur uuid.UUID) (*uuid.UUID, error) {
			e, err := tx.Entries().Get(ctx, cur)
			if err != nil {
				return nil, err
			}
			return e.ParentID, nil
		},
		func(uuid.UUID) bool {
			visited++
			return true
		})
	if err != nil {
		return 0, err
	}
	return visited - 1, nil
}

// heightOf is the number of levels below e, over children in any status.
func (s *Store) heightOf(ctx context.Context, tx repository.Tx, e *entry.Entry) (int, error) {
	if !e.IsDirectory {
		return 0, nil
	}
	root, err := s.Walker(tx).Build(ctx, e, IsDirectory)
	if err != nil {
		return 0, err
	}

	var height func(n *tree.Node[*entry.Entry]) int
	height = func(n *tree.Node[*entry.Entry]) int {
		h := 0
		for _, c := range n.Children {
			if ch := height(c) + 1; ch > h {
				h = ch
			}
		}
		return h
	}
	return height(root), nil
}

// CreateDirectory creates a folder, disambiguating the name on collision.
func (s *Store) CreateDirectory(ctx context.Context, in entry.CreateDirectoryInput) (*entry.Entry, error) {
	if err := entry.ValidateName(in.Name); err != nil {
		return nil, err
	}

	var created *entry.Entry
	err := s.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.LockTree(ctx, in.OwnerID, false); err != nil {
			return err
		}
		parent, err := s.resolveParent(ctx, tx, in.OwnerID, in.ParentID)
		if err != nil {
			return err
		}
		if err := s.checkFits(ctx, tx, parent.ID, 0); err != nil {
			return err
		}

		e := s.newEntry(in.OwnerID, parent.ID, in.Name, true)
		created, err = s.insertUnique(ctx, tx, e)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("owner_id", in.OwnerID.String()).Str("entry_id", created.ID.String()).Msg("folder created")
	return created, nil
}

// CreateFile records a stored object as a file entry. It runs inside tx when one is given so that
// upload completion can reserve quota and create the entry atomically. A repeated idempotency key
// returns the entry created by the first call.
func (s *Store) CreateFile(ctx context.Context, tx repository.Tx, in entry.CreateFileInput) (*entry.Entry, error) {
	if err := validateFileInput(in); err != nil {
		return nil, err
	}

	var created *entry.Entry
	err := repository.Within(ctx, s.txm, tx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.LockTree(ctx, in.OwnerID, false); err != nil {
			return err
		}
		parent, err := s.resolveParent(ctx, tx, in.OwnerID, in.ParentID)
		if err != nil {
			return err
		}
		if err := s.checkFits(ctx, tx, parent.ID, 0); err != nil {
			return err
		}

		if in.IdempotencyKey != "" {
			existing, err := tx.Entries().GetByIdempotencyKey(ctx, in.OwnerID, in.IdempotencyKey)
			if err == nil {
				created = existing
				return nil
			}
			if !apperrors.IsNotFound(err) {
				return err
			}
		}

		e := s.newEntry(in.OwnerID, parent.ID, in.Name, false)
		size := in.Size
		mimeType, hash, key := in.MimeType, in.Hash, in.StorageKey
		e.Size = &size
		e.MimeType = &mimeType
		e.Hash = &hash
		e.StorageKey = &key
		if in.IdempotencyKey != "" {
			idem := in.IdempotencyKey
			e.IdempotencyKey = &idem
		}

		created, err = s.insertUnique(ctx, tx, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func validateFileInput(in entry.CreateFileInput) error {
	if err := entry.ValidateName(in.Name); err != nil {
		return err
	}
	if in.Size < 0 {
		return apperrors.Validation("file size must not be negative")
	}
	if strings.TrimSpace(in.MimeType) == "" || strings.TrimSpace(in.Hash) == "" || strings.TrimSpace(in.StorageKey) == "" {
		return apperrors.Validation("file requires mime type, hash and storage key")
	}
	return nil
}

func (s *Store) newEntry(ownerID, parentID uuid.UUID, name string, isDirectory bool) *entry.Entry {
	now := s.now().UTC()
	pid := parentID
	return &entry.Entry{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		ParentID:    &pid,
		Name:        name,
		IsDirectory: isDirectory,
		Status:      entry.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// insertUnique takes the sibling section of e's parent, picks a free name and inserts e.
func (s *Store) insertUnique(ctx context.Context, tx repository.Tx, e *entry.Entry) (*entry.Entry, error) {
	if err := tx.LockSiblings(ctx, e.OwnerID, *e.ParentID); err != nil {
		return nil, err
	}
	taken, err := tx.Entries().ChildNames(ctx, e.OwnerID, *e.ParentID)
	if err != nil {
		return nil, err
	}
	e.Name = Disambiguate(e.Name, e.IsDirectory, taken)

	if err := tx.Entries().Insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Get returns one entry owned by ownerID.
func (s *Store) Get(ctx context.Context, ownerID, id uuid.UUID) (*entry.Entry, error) {
	var e *entry.Entry
	err := s.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		found, err := tx.Entries().Get(ctx, id)
		if err != nil {
			return err
		}
		if found.OwnerID != ownerID {
			return apperrors.Forbidden("entry belongs to another user")
		}
		e = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Rename changes an entry's display name. Renaming to the current name is a no-op.
func (s *Store) Rename(ctx context.Context, ownerID, id uuid.UUID, newName string) (*entry.Entry, error) {
	if err := entry.ValidateName(newName); err != nil {
		return nil, err
	}

	var renamed *entry.Entry
	err := s.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.LockTree(ctx, ownerID, false); err != nil {
			return err
		}
		e, err := Owned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if e.IsRoot() {
			return apperrors.InvalidState("root folder cannot be renamed")
		}
		if !e.IsActive() {
			return apperrors.InvalidState("only active entries can be renamed")
		}
		if e.Name == newName {
			renamed = e
			return nil
		}

		if err := tx.LockSiblings(ctx, ownerID, *e.ParentID); err != nil {
			return err
		}
		taken, err := tx.Entries().NameTaken(ctx, ownerID, *e.ParentID, newName, &e.ID)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.NameConflict("an entry with this name already exists in the folder")
		}

		at := s.now().UTC()
		if err := tx.Entries().Rename(ctx, e.ID, newName, at); err != nil {
			return err
		}
		e.Name = newName
		e.UpdatedAt = at
		renamed = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

// Move reparents an entry. The whole subtree follows because parentId is the only link.
func (s *Store) Move(ctx context.Context, ownerID, id, newParentID uuid.UUID) (*entry.Entry, error) {
	var moved *entry.Entry
	err := s.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.LockTree(ctx, ownerID, true); err != nil {
			return err
		}
		e, err := Owned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if e.IsRoot() {
			return apperrors.InvalidState("root folder cannot be moved")
		}
		if !e.IsActive() {
			return apperrors.InvalidState("only active entries can be moved")
		}
		if newParentID == e.ID {
			return apperrors.CycleDetected("an entry cannot be moved into itself")
		}

		parent, err := s.resolveParent(ctx, tx, ownerID, &newParentID)
		if err != nil {
			return err
		}
		if *e.ParentID == parent.ID {
			moved = e
			return nil
		}
		if err := s.checkNotAncestor(ctx, tx, e.ID, parent.ID); err != nil {
			return err
		}
		height, err := s.heightOf(ctx, tx, e)
		if err != nil {
			return err
		}
		if err := s.checkFits(ctx, tx, parent.ID, height); err != nil {
			return err
		}

		if err := tx.LockSiblings(ctx, ownerID, parent.ID); err != nil {
			return err
		}
		taken, err := tx.Entries().NameTaken(ctx, ownerID, parent.ID, e.Name, &e.ID)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.NameConflict("an entry with this name already exists in the destination")
		}

		at := s.now().UTC()
		if err := tx.Entries().Reparent(ctx, e.ID, parent.ID, at); err != nil {
			return err
		}
		e.ParentID = &parent.ID
		e.UpdatedAt = at
		moved = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("entry_id", id.String()).Str("parent_id", newParentID.String()).Msg("entry moved")
	return moved, nil
}

// checkNotAncestor fails with CycleDetected when id appears on the parent chain of dest.
func (s *Store) checkNotAncestor(ctx context.Context, tx repository.Tx, id, dest uuid.UUID) error {
	cycle := false
	err := tree.WalkUp(ctx, s.maxDepth, dest,
		func(ctx context.Context, cur uuid.UUID) (*uuid.UUID, error) {
			e, err := tx.Entries().Get(ctx, cur)
			if err != nil {
				return nil, err
			}
			return e.ParentID, nil
		},
		func(cur uuid.UUID) bool {
			if cur == id {
				cycle = true
				return false
			}
			return true
		})
	if err != nil {
		return err
	}
	if cycle {
		return apperrors.CycleDetected("destination is inside the entry being moved")
	}
	return nil
}

// ListChildren returns the direct children of parentID, or of the root folder when parentID is nil.
// Only ACTIVE children are returned unless opts asks for more.
func (s *Store) ListChildren(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID, opts entry.ListOptions) ([]*entry.Entry, error) {
	var children []*entry.Entry
	err := s.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		parent, err := s.ownedDirectory(ctx, tx, ownerID, parentID)
		if err != nil {
			return err
		}
		children, err = tx.Entries().ListChildren(ctx, ownerID, parent.ID, statusesFor(opts))
		return err
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

// GetRecursive loads the subtree under rootID (the root folder when nil) with the same status filter
// as ListChildren. Corrupted depth fails with MaxDepthExceeded.
func (s *Store) GetRecursive(ctx context.Context, ownerID uuid.UUID, rootID *uuid.UUID, opts entry.ListOptions) (*tree.Node[*entry.Entry], error) {
	var node *tree.Node[*entry.Entry]
	err := s.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var (
			root *entry.Entry
			err  error
		)
		if rootID == nil {
			root, err = s.EnsureRoot(ctx, tx, ownerID)
		} else {
			root, err = Owned(ctx, tx, ownerID, *rootID)
		}
		if err != nil {
			return err
		}

		node, err = s.Walker(tx, statusesFor(opts)...).Build(ctx, root, IsDirectory)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (s *Store) ownedDirectory(ctx context.Context, tx repository.Tx, ownerID uuid.UUID, id *uuid.UUID) (*entry.Entry, error) {
	if id == nil {
		return s.EnsureRoot(ctx, tx, ownerID)
	}
	e, err := Owned(ctx, tx, ownerID, *id)
	if err != nil {
		return nil, err
	}
	if !e.IsDirectory {
		return nil, apperrors.Validation("entry is not a folder")
	}
	return e, nil
}

func statusesFor(opts entry.ListOptions) []entry.Status {
	statuses := []entry.Status{entry.StatusActive}
	if opts.IncludeTrashed {
		statuses = append(statuses, entry.StatusTrashed)
	}
	if opts.IncludeArchived {
		statuses = append(statuses, entry.StatusArchived)
	}
	return statuses
}
