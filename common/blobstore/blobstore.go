package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no blob exists for the requested key.
var ErrNotFound = errors.New("blob not found")

// Store holds physical file content addressed by content fingerprint.
// A key is the lowercase hex SHA-256 of the bytes it stores, so byte-identical
// content always lands on the same blob and writes are idempotent.
type Store interface {
	// Put stores the blob under key, overwriting any existing copy
	// (same key means same bytes). size is advisory; backends that need
	// a length up front may rely on it.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Open returns a reader over the blob's content. The caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}
