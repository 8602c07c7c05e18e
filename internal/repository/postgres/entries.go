package postgres

import (
	"context"
	"errors"
	"time"

	"drive-service/internal/domain/entry"
	"drive-service/internal/repository"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const entryColumns = `id, owner_id, parent_id, name, is_directory, size_bytes, mime_type, hash, storage_key,
	status, batch_id, idempotency_key, created_at, updated_at, trashed_at, archived_at`

type entryRepo struct {
	q pgx.Tx
}

func scanEntry(row pgx.Row) (*entry.Entry, error) {
	e := &entry.Entry{}
	var status string
	err := row.Scan(
		&e.ID, &e.OwnerID, &e.ParentID, &e.Name, &e.IsDirectory, &e.Size, &e.MimeType, &e.Hash, &e.StorageKey,
		&status, &e.BatchID, &e.IdempotencyKey, &e.CreatedAt, &e.UpdatedAt, &e.TrashedAt, &e.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = entry.Status(status)
	return e, nil
}

func (r *entryRepo) getOne(ctx context.Context, notFound, query string, args ...any) (*entry.Entry, error) {
	e, err := scanEntry(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(notFound)
		}
		return nil, errFailedGetEntry(err)
	}
	return e, nil
}

func (r *entryRepo) list(ctx context.Context, query string, args ...any) ([]*entry.Entry, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, errFailedListEntries(err)
	}
	defer rows.Close()

	entries := make([]*entry.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errFailedScanEntry(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errFailedListEntries(err)
	}
	return entries, nil
}

func (r *entryRepo) Get(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	return r.getOne(ctx, errEntryNotFound, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, id)
}

func (r *entryRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	return r.getOne(ctx, errEntryNotFound, `SELECT `+entryColumns+` FROM entries WHERE id = $1 FOR UPDATE`, id)
}

func (r *entryRepo) GetRoot(ctx context.Context, ownerID uuid.UUID) (*entry.Entry, error) {
	return r.getOne(ctx, errRootNotFound,
		`SELECT `+entryColumns+` FROM entries WHERE owner_id = $1 AND parent_id IS NULL`, ownerID)
}

func (r *entryRepo) GetByIdempotencyKey(ctx context.Context, ownerID uuid.UUID, key string) (*entry.Entry, error) {
	return r.getOne(ctx, errEntryNotFound,
		`SELECT `+entryColumns+` FROM entries WHERE owner_id = $1 AND idempotency_key = $2`, ownerID, key)
}

func (r *entryRepo) GetByStorageKey(ctx context.Context, storageKey string) (*entry.Entry, error) {
	return r.getOne(ctx, errEntryNotFound,
		`SELECT `+entryColumns+` FROM entries WHERE storage_key = $1`, storageKey)
}

func (r *entryRepo) ListChildren(ctx context.Context, ownerID, parentID uuid.UUID, statuses []entry.Status) ([]*entry.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE owner_id = $1 AND parent_id = $2 AND (cardinality($3::text[]) = 0 OR status = ANY($3))
		ORDER BY is_directory DESC, name
	`
	return r.list(ctx, query, ownerID, parentID, statusStrings(statuses))
}

func (r *entryRepo) ChildNames(ctx context.Context, ownerID, parentID uuid.UUID) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT name FROM entries WHERE owner_id = $1 AND parent_id = $2 ORDER BY name`, ownerID, parentID)
	if err != nil {
		return nil, errFailedListEntries(err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errFailedListEntries(err)
	}
	return names, nil
}

func (r *entryRepo) NameTaken(ctx context.Context, ownerID, parentID uuid.UUID, name string, exclude *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM entries
			WHERE owner_id = $1 AND parent_id = $2 AND name = $3 AND ($4::uuid IS NULL OR id <> $4)
		)
	`
	var taken bool
	if err := r.q.QueryRow(ctx, query, ownerID, parentID, name, exclude).Scan(&taken); err != nil {
		return false, errFailedGetEntry(err)
	}
	return taken, nil
}

func (r *entryRepo) ListTrashRoots(ctx context.Context, ownerID uuid.UUID) ([]*entry.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE owner_id = $1 AND status = 'TRASHED' AND batch_id = id
		ORDER BY trashed_at
	`
	return r.list(ctx, query, ownerID)
}

func (r *entryRepo) ListExpiredTrashRoots(ctx context.Context, cutoff time.Time, limit int) ([]*entry.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE status = 'TRASHED' AND batch_id = id AND trashed_at < $1
		ORDER BY trashed_at
		LIMIT NULLIF($2::int, 0)
	`
	return r.list(ctx, query, cutoff, limit)
}

func (r *entryRepo) SumFileSizes(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(size_bytes), 0)::bigint FROM entries WHERE owner_id = $1 AND NOT is_directory`
	if err := r.q.QueryRow(ctx, query, ownerID).Scan(&total); err != nil {
		return 0, errFailedSumSizes(err)
	}
	return total, nil
}

func (r *entryRepo) InsertRoot(ctx context.Context, e *entry.Entry) error {
	query := `
		INSERT INTO entries (id, owner_id, name, is_directory, status, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.q.Exec(ctx, query, e.ID, e.OwnerID, e.Name, string(e.Status), e.CreatedAt, e.UpdatedAt); err != nil {
		return errFailedCreateEntry(err)
	}
	return nil
}

func (r *entryRepo) Insert(ctx context.Context, e *entry.Entry) error {
	if err := e.CheckShape(); err != nil {
		return err
	}

	query := `
		INSERT INTO entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.q.Exec(ctx, query,
		e.ID, e.OwnerID, e.ParentID, e.Name, e.IsDirectory, e.Size, e.MimeType, e.Hash, e.StorageKey,
		string(e.Status), e.BatchID, e.IdempotencyKey, e.CreatedAt, e.UpdatedAt, e.TrashedAt, e.ArchivedAt,
	)
	if err != nil {
		if mapped := uniqueViolation(err); mapped != nil {
			return mapped
		}
		return errFailedCreateEntry(err)
	}
	return nil
}

func (r *entryRepo) Rename(ctx context.Context, id uuid.UUID, name string, at time.Time) error {
	return r.update(ctx, `UPDATE entries SET name = $2, updated_at = $3 WHERE id = $1`, id, name, at)
}

func (r *entryRepo) Reparent(ctx context.Context, id, parentID uuid.UUID, at time.Time) error {
	return r.update(ctx, `UPDATE entries SET parent_id = $2, updated_at = $3 WHERE id = $1`, id, parentID, at)
}

func (r *entryRepo) update(ctx context.Context, query string, args ...any) error {
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		if mapped := uniqueViolation(err); mapped != nil {
			return mapped
		}
		return errFailedUpdateEntry(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(errEntryNotFound)
	}
	return nil
}

func (r *entryRepo) SetState(ctx context.Context, ids []uuid.UUID, change repository.StateChange) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE entries
		SET status = $2, batch_id = $3, trashed_at = $4, archived_at = $5, updated_at = $6
		WHERE id = ANY($1)
	`
	tag, err := r.q.Exec(ctx, query, ids, string(change.Status), change.BatchID, change.TrashedAt, change.ArchivedAt, change.At)
	if err != nil {
		return errFailedUpdateEntry(err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return apperrors.NotFound(errEntryNotFound)
	}
	return nil
}

func (r *entryRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return false, errFailedDeleteEntry(err)
	}
	return tag.RowsAffected() > 0, nil
}

func statusStrings(statuses []entry.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
