// Package gcs provides a DocumentStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/linkrank/internal/crawler"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// DocumentStore writes documents to a configured GCS bucket.
type DocumentStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed document store.
func New(client *storage.Client, cfg Config) (*DocumentStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &DocumentStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *DocumentStore) object(id int) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(crawler.DocumentKey(s.prefix, id))
}

// Exists reports whether the object for id is present.
func (s *DocumentStore) Exists(ctx context.Context, id int) (bool, error) {
	_, err := s.object(id).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("object attrs %d: %w", id, err)
	}
}

// Get downloads the object for id.
func (s *DocumentStore) Get(ctx context.Context, id int) ([]byte, error) {
	r, err := s.object(id).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("document %d: %w", id, crawler.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open object %d: %w", id, err)
	}
	defer r.Close() //nolint:errcheck // read-only stream
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %d: %w", id, err)
	}
	return data, nil
}

// Put uploads the body and returns a gs:// URI. GCS only creates the object
// when the writer closes cleanly; on a copy error the upload context is
// canceled so nothing is committed. Existing objects are never overwritten.
func (s *DocumentStore) Put(ctx context.Context, id int, body io.Reader) (string, error) {
	uploadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	key := crawler.DocumentKey(s.prefix, id)
	writer := s.object(id).If(storage.Conditions{DoesNotExist: true}).NewWriter(uploadCtx)
	writer.ContentType = "text/html; charset=utf-8"
	writer.ChunkSize = 0
	if _, err := io.Copy(writer, body); err != nil {
		cancel()
		if closeErr := writer.Close(); closeErr != nil && !errors.Is(closeErr, context.Canceled) {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}
