package documents

import (
	"context"
	"io"
	"time"
)

// BlobStore abstracts where document binaries live (local disk, S3).
type BlobStore interface {
	// Put writes the content under the given key.
	Put(ctx context.Context, key string, body io.Reader, contentType string) error

	// Fetch streams the content back along with its content type.
	Fetch(ctx context.Context, key string) (io.ReadCloser, string, error)

	// Remove deletes the blob. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// PublicURL returns a URL a client can fetch the blob from.
	PublicURL(ctx context.Context, key string, expires time.Duration) (string, error)
}
