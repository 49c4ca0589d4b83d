// Package local implements a local filesystem document store.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/linkrank/internal/crawler"
)

// Config captures the parameters for the local filesystem document store.
type Config struct {
	// BaseDir is the root directory where documents will be stored.
	BaseDir string `mapstructure:"dir" yaml:"dir"`
	// Prefix is an optional sub-directory prepended to every document key.
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// DocumentStore keeps one file per document id under BaseDir.
type DocumentStore struct {
	baseDir string
	prefix  string
}

// New creates a new local filesystem-backed document store.
func New(cfg Config) (*DocumentStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &DocumentStore{
		baseDir: cfg.BaseDir,
		prefix:  cfg.Prefix,
	}, nil
}

// Path returns the file backing a document id.
func (s *DocumentStore) Path(id int) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(crawler.DocumentKey(s.prefix, id)))
}

// Exists reports whether a document has been written for id.
func (s *DocumentStore) Exists(_ context.Context, id int) (bool, error) {
	_, err := os.Stat(s.Path(id))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat document %d: %w", id, err)
	}
}

// Get reads the document for id, returning crawler.ErrNotFound when absent.
func (s *DocumentStore) Get(_ context.Context, id int) ([]byte, error) {
	data, err := os.ReadFile(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("document %d: %w", id, crawler.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read document %d: %w", id, err)
	}
	return data, nil
}

// Put writes the body atomically and returns a file:// URI.
func (s *DocumentStore) Put(ctx context.Context, id int, body io.Reader) (string, error) {
	if id < 0 {
		return "", fmt.Errorf("invalid document id %d", id)
	}
	fullPath := s.Path(id)
	if err := WriteFileAtomic(ctx, fullPath, body); err != nil {
		return "", fmt.Errorf("write document %d: %w", id, err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}
