package storage

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound indicates the stored bytes are missing even though a
// metadata record pointed at them. Callers must keep this distinct from a
// missing metadata record.
var ErrBlobNotFound = errors.New("stored file not found")

// BlobStore is the boundary to raw file bytes. Locators returned by Save are
// opaque handles understood only by the same backend.
type BlobStore interface {
	// Save persists the reader's contents under the given name and returns the
	// locator to address them later.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	// Open returns the byte stream for the locator, or ErrBlobNotFound.
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	// Exists reports whether the locator still resolves to stored bytes.
	Exists(ctx context.Context, locator string) (bool, error)
	// Remove deletes the stored bytes. Removing an absent locator is not an
	// error; it is used to clean up after failed metadata writes.
	Remove(ctx context.Context, locator string) error
}
