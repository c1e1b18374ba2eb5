// Package blob abstracts the remote object store behind a small put/get/
// delete/presign capability so the gateway's invariants hold regardless of
// which backend carries the bytes.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Get and Delete when the key references no object.
var ErrNotFound = errors.New("blob: object not found")

// ErrPresignUnsupported is returned by backends that cannot mint native
// presigned URLs. Callers fall back to streaming through the application.
var ErrPresignUnsupported = errors.New("blob: presigned URLs not supported by this backend")

// Store is the blob store capability. Implementations are reliable-but-
// fallible network or disk I/O; callers treat every error as retryable at
// their own discretion.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// Presign returns a URL valid for exactly ttl, or ErrPresignUnsupported.
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}
