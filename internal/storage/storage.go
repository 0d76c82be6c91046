// Package storage holds image blobs. STORAGE_DRIVER picks the implementation:
// MinioStorage talks to any S3-compatible provider, Memory keeps blobs in process.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"
)

// ErrInvalidURL is returned when a stored URL does not carry an object key.
var ErrInvalidURL = errors.New("url does not reference an object")

// Object describes a stored blob.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Storage is the interface for uploading and removing objects.
type Storage interface {
	// Put streams data to the store under the given key and returns its public URL.
	// size may be -1 when the length is not known up front.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	// Delete removes an object identified by key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
	// List calls fn for every stored object; a non-nil error from fn stops the walk.
	List(ctx context.Context, fn func(Object) error) error
}

// KeyFromURL recovers the object key from a URL produced by PublicURL.
func KeyFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	key := path.Base(u.Path)
	if key == "." || key == "/" || key == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return key, nil
}
