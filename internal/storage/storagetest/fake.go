// Package storagetest provides an in-memory object store for tests.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"drive-service/internal/storage"
)

// ObjectStore mimics the S3 client: HeadObject, DeleteObject and presigning.
type ObjectStore struct {
	mu        sync.Mutex
	objects   map[string]storage.ObjectMeta
	deleted   []string
	headErr   error
	headDelay time.Duration
	deleteErr error
}

func New() *ObjectStore {
	return &ObjectStore{objects: make(map[string]storage.ObjectMeta)}
}

// Put stores an object of the given size.
func (s *ObjectStore) Put(key string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = storage.ObjectMeta{Key: key, Size: size, ContentType: "application/octet-stream", LastModified: time.Now()}
}

func (s *ObjectStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// Deleted lists every key passed to a successful DeleteObject, in order.
func (s *ObjectStore) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// FailHead makes HeadObject return err until cleared with nil.
func (s *ObjectStore) FailHead(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headErr = err
}

// SlowHead makes HeadObject wait d or until its context ends.
func (s *ObjectStore) SlowHead(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headDelay = d
}

// FailDeletes makes DeleteObject return err until cleared with nil.
func (s *ObjectStore) FailDeletes(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErr = err
}

func (s *ObjectStore) HeadObject(ctx context.Context, key string) (*storage.ObjectMeta, error) {
	s.mu.Lock()
	delay, headErr := s.headDelay, s.headErr
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if headErr != nil {
		return nil, headErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &meta, nil
}

func (s *ObjectStore) DeleteObject(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *ObjectStore) PresignPut(ctx context.Context, key, contentType string) (string, error) {
	return fmt.Sprintf("https://objects.test/%s?op=put&type=%s", key, contentType), nil
}

func (s *ObjectStore) PresignGet(ctx context.Context, key, fileName string) (string, error) {
	return fmt.Sprintf("https://objects.test/%s?op=get&name=%s", key, fileName), nil
}

func (s *ObjectStore) PresignedURLExpiry() time.Duration {
	return 15 * time.Minute
}
