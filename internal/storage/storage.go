// Package storage holds the object-store types shared by the S3 client and its callers.
package storage

import (
	"errors"
	"time"
)

// ErrObjectNotFound means the store answered and the key does not exist. Any other failure is not proof
// of absence.
var ErrObjectNotFound = errors.New("object not found")

// ObjectMeta is what HeadObject reports about a stored object.
type ObjectMeta struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}
