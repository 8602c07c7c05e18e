package memory

import (
	"context"
	"drive-service/internal/domain/entry"
	"drive-service/internal/repository"
	apperrors "drive-service/pkg/errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

type entryRepo struct {
	st *state
}

func (r *entryRepo) Get(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	e, ok := r.st.entries[id]
	if !ok {
		return nil, apperrors.NotFound(errEntryNotFound)
	}
	return e.Clone(), nil
}

func (r *entryRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	return r.Get(ctx, id)
}

func (r *entryRepo) GetRoot(ctx context.Context, ownerID uuid.UUID) (*entry.Entry, error) {
	for _, e := range r.st.entries {
		if e.OwnerID == ownerID && e.ParentID == nil {
			return e.Clone(), nil
		}
	}
	return nil, apperrors.NotFound(errRootNotFound)
}

func (r *entryRepo) GetByIdempotencyKey(ctx context.Context, ownerID uuid.UUID, key string) (*entry.Entry, error) {
	for _, e := range r.st.entries {
		if e.OwnerID == ownerID && e.IdempotencyKey != nil && *e.IdempotencyKey == key {
			return e.Clone(), nil
		}
	}
	return nil, apperrors.NotFound(errEntryNotFound)
}

func (r *entryRepo) GetByStorageKey(ctx context.Context, storageKey string) (*entry.Entry, error) {
	for _, e := range r.st.entries {
		if e.StorageKey != nil && *e.StorageKey == storageKey {
			return e.Clone(), nil
		}
	}
	return nil, apperrors.NotFound(errEntryNotFound)
}

func (r *entryRepo) ListChildren(ctx context.Context, ownerID, parentID uuid.UUID, statuses []entry.Status) ([]*entry.Entry, error) {
	children := make([]*entry.Entry, 0)
	for _, e := range r.st.entries {
		if e.OwnerID != ownerID || e.ParentID == nil || *e.ParentID != parentID {
			continue
		}
		if len(statuses) > 0 && !hasStatus(statuses, e.Status) {
			continue
		}
		children = append(children, e.Clone())
	}
	sortEntries(children)
	return children, nil
}

func (r *entryRepo) ChildNames(ctx context.Context, ownerID, parentID uuid.UUID) ([]string, error) {
	names := make([]string, 0)
	for _, e := range r.st.entries {
		if e.OwnerID == ownerID && e.ParentID != nil && *e.ParentID == parentID {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *entryRepo) NameTaken(ctx context.Context, ownerID, parentID uuid.UUID, name string, exclude *uuid.UUID) (bool, error) {
	for _, e := range r.st.entries {
		if exclude != nil && e.ID == *exclude {
			continue
		}
		if e.OwnerID == ownerID && e.ParentID != nil && *e.ParentID == parentID && e.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *entryRepo) ListTrashRoots(ctx context.Context, ownerID uuid.UUID) ([]*entry.Entry, error) {
	roots := make([]*entry.Entry, 0)
	for _, e := range r.st.entries {
		if e.OwnerID == ownerID && e.Status == entry.StatusTrashed && e.IsBatchRoot() {
			roots = append(roots, e.Clone())
		}
	}
	sortByTrashedAt(roots)
	return roots, nil
}

func (r *entryRepo) ListExpiredTrashRoots(ctx context.Context, cutoff time.Time, limit int) ([]*entry.Entry, error) {
	roots := make([]*entry.Entry, 0)
	for _, e := range r.st.entries {
		if e.Status == entry.StatusTrashed && e.IsBatchRoot() && e.TrashedAt != nil && e.TrashedAt.Before(cutoff) {
			roots = append(roots, e.Clone())
		}
	}
	sortByTrashedAt(roots)
	if limit > 0 && len(roots) > limit {
		roots = roots[:limit]
	}
	return roots, nil
}

func (r *entryRepo) SumFileSizes(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var total int64
	for _, e := range r.st.entries {
		if e.OwnerID == ownerID && !e.IsDirectory {
			total += e.SizeBytes()
		}
	}
	return total, nil
}

func (r *entryRepo) InsertRoot(ctx context.Context, e *entry.Entry) error {
	if _, err := r.GetRoot(ctx, e.OwnerID); err == nil {
		return nil
	}
	r.st.entries[e.ID] = e.Clone()
	return nil
}

func (r *entryRepo) Insert(ctx context.Context, e *entry.Entry) error {
	if err := e.CheckShape(); err != nil {
		return err
	}
	if e.ParentID != nil {
		taken, _ := r.NameTaken(ctx, e.OwnerID, *e.ParentID, e.Name, nil)
		if taken {
			return apperrors.NameConflict(errSiblingNameTaken)
		}
	}
	if e.IdempotencyKey != nil {
		if _, err := r.GetByIdempotencyKey(ctx, e.OwnerID, *e.IdempotencyKey); err == nil {
			return apperrors.Conflict(errIdempotencyTaken)
		}
	}
	if e.StorageKey != nil {
		if _, err := r.GetByStorageKey(ctx, *e.StorageKey); err == nil {
			return apperrors.Conflict(errStorageKeyTaken)
		}
	}
	r.st.entries[e.ID] = e.Clone()
	return nil
}

func (r *entryRepo) Rename(ctx context.Context, id uuid.UUID, name string, at time.Time) error {
	e, ok := r.st.entries[id]
	if !ok {
		return apperrors.NotFound(errEntryNotFound)
	}
	if e.ParentID != nil {
		taken, _ := r.NameTaken(ctx, e.OwnerID, *e.ParentID, name, &id)
		if taken {
			return apperrors.NameConflict(errSiblingNameTaken)
		}
	}
	e.Name = name
	e.UpdatedAt = at
	return nil
}

func (r *entryRepo) Reparent(ctx context.Context, id, parentID uuid.UUID, at time.Time) error {
	e, ok := r.st.entries[id]
	if !ok {
		return apperrors.NotFound(errEntryNotFound)
	}
	taken, _ := r.NameTaken(ctx, e.OwnerID, parentID, e.Name, &id)
	if taken {
		return apperrors.NameConflict(errSiblingNameTaken)
	}
	e.ParentID = &parentID
	e.UpdatedAt = at
	return nil
}

func (r *entryRepo) SetState(ctx context.Context, ids []uuid.UUID, change repository.StateChange) error {
	for _, id := range ids {
		if _, ok := r.st.entries[id]; !ok {
			return apperrors.NotFound(errEntryNotFound)
		}
	}
	for _, id := range ids {
		e := r.st.entries[id]
		e.Status = change.Status
		e.BatchID = clonePtr(change.BatchID)
		e.TrashedAt = clonePtr(change.TrashedAt)
		e.ArchivedAt = clonePtr(change.ArchivedAt)
		e.UpdatedAt = change.At
	}
	return nil
}

func (r *entryRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if _, ok := r.st.entries[id]; !ok {
		return false, nil
	}
	delete(r.st.entries, id)
	return true, nil
}

func hasStatus(statuses []entry.Status, s entry.Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Directories first, then by name, like the postgres ORDER BY.
func sortEntries(entries []*entry.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDirectory != entries[j].IsDirectory {
			return entries[i].IsDirectory
		}
		return entries[i].Name < entries[j].Name
	})
}

func sortByTrashedAt(entries []*entry.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TrashedAt.Before(*entries[j].TrashedAt)
	})
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
