package objectstore

import (
	"context"
	"io"
)

// ProgressFunc is invoked with the running transferred byte count while an
// upload streams. transferred is monotonically non-decreasing; total is the
// size announced when the upload started.
type ProgressFunc func(transferred, total int64)

// Store is the binary object store used for avatar images. Upload streams r
// under key (same key overwrites, last write wins) and reports progress as
// bytes move. ResolveURL returns a stable download locator for a stored key.
type Store interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader, size int64, progress ProgressFunc) error
	ResolveURL(ctx context.Context, key string) (string, error)
}
