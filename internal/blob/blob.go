// Package blob defines the object-storage boundary used by the attachment
// pipeline: authenticated uploads, best-effort deletes and time-limited
// signed URLs for reads.
package blob

import (
	"context"
	"io"
	"time"
)

// Storage is the minimal object-store surface the engine consumes.
type Storage interface {
	// Upload stores the content under key and returns the stored path.
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)

	// SignedURL returns a time-limited read URL for the stored path.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Remove deletes the stored object.
	Remove(ctx context.Context, key string) error
}
