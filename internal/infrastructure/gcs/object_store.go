package gcs

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/LeL010/project2-spork-bootcamp/internal/domain/objectstore"
)

// NewClient creates a Google Cloud Storage client. If credsPath is empty,
// Application Default Credentials are used.
func NewClient(ctx context.Context, credsPath string) (*storage.Client, error) {
	if credsPath == "" {
		return storage.NewClient(ctx)
	}
	return storage.NewClient(ctx, option.WithCredentialsFile(credsPath))
}

// Store implements the object store contract on a GCS bucket.
type Store struct {
	Client *storage.Client
	Bucket string
}

func NewStore(client *storage.Client, bucket string) *Store {
	return &Store{Client: client, Bucket: bucket}
}

// Upload streams r into bucket/key, reporting transferred bytes as the
// writer drains the reader. Writing the same key overwrites the previous
// object.
func (s *Store) Upload(ctx context.Context, key, contentType string, r io.Reader, size int64, progress objectstore.ProgressFunc) error {
	wc := s.Client.Bucket(s.Bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ChunkSize = 0 // disable chunking for small files
	src := io.Reader(r)
	if progress != nil {
		src = &progressReader{r: r, total: size, report: progress}
	}
	if _, err := io.Copy(wc, src); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}

// ResolveURL builds the stable public URL for an uploaded object (assuming
// public read access on the bucket).
func (s *Store) ResolveURL(_ context.Context, key string) (string, error) {
	if s.Bucket == "" {
		return "", fmt.Errorf("gcs bucket not configured")
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.Bucket, key), nil
}

// progressReader counts bytes as they are pulled through and reports the
// running total.
type progressReader struct {
	r           io.Reader
	total       int64
	transferred int64
	report      objectstore.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.transferred += int64(n)
		p.report(p.transferred, p.total)
	}
	return n, err
}

var _ objectstore.Store = (*Store)(nil)
