// Package memory is an in-process implementation of the repository port. Transactions are
// serialized by one mutex and run against a private copy of the state that replaces the
// committed state only when fn returns nil.
package memory

import (
	"context"
	"drive-service/internal/domain/entry"
	"drive-service/internal/domain/orphan"
	"drive-service/internal/domain/quota"
	"drive-service/internal/domain/share"
	"drive-service/internal/repository"
	"sync"

	"github.com/google/uuid"
)

const (
	errEntryNotFound     = "entry not found"
	errRootNotFound      = "root folder not found"
	errShareCodeNotFound = "share code not found"
	errUsageNotFound     = "quota usage not found"
	errOrphanNotFound    = "cleanup job not found"
	errSiblingNameTaken  = "an entry with this name already exists in the folder"
	errIdempotencyTaken  = "an entry with this idempotency key already exists"
	errShareFileTaken    = "file already has a share code"
	errStorageKeyTaken   = "another entry already references this object"
)

type state struct {
	entries map[uuid.UUID]*entry.Entry
	shares  map[string]*share.ShareCode
	quotas  map[uuid.UUID]*quota.Usage
	orphans map[uuid.UUID]*orphan.Object
}

func newState() *state {
	return &state{
		entries: make(map[uuid.UUID]*entry.Entry),
		shares:  make(map[string]*share.ShareCode),
		quotas:  make(map[uuid.UUID]*quota.Usage),
		orphans: make(map[uuid.UUID]*orphan.Object),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, e := range s.entries {
		c.entries[id] = e.Clone()
	}
	for code, sc := range s.shares {
		v := *sc
		c.shares[code] = &v
	}
	for id, u := range s.quotas {
		v := *u
		c.quotas[id] = &v
	}
	for id, o := range s.orphans {
		v := *o
		c.orphans[id] = &v
	}
	return c
}

// Store satisfies repository.TxManager.
type Store struct {
	mu    sync.Mutex
	state *state
}

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}

	s.state = work
	return nil
}

type tx struct {
	st *state
}

func (t *tx) Entries() repository.EntryRepository        { return &entryRepo{st: t.st} }
func (t *tx) ShareCodes() repository.ShareCodeRepository { return &shareRepo{st: t.st} }
func (t *tx) Quotas() repository.QuotaRepository         { return &quotaRepo{st: t.st} }
func (t *tx) Orphans() repository.OrphanRepository       { return &orphanRepo{st: t.st} }

// The store mutex already serializes whole transactions.
func (t *tx) LockTree(ctx context.Context, ownerID uuid.UUID, exclusive bool) error {
	return ctx.Err()
}

func (t *tx) LockSiblings(ctx context.Context, ownerID, parentID uuid.UUID) error {
	return ctx.Err()
}
