// Package localfs keeps the raw bytes of uploads on local disk so documents
// can be re-downloaded and re-read by the indexing worker.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Storage maps slash-separated keys such as "<session>/<document>/<filename>"
// to files under a base directory.
type Storage struct {
	root string
}

func New(root string) (*Storage, error) {
	if root == "" {
		root = "./data/uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{root: root}, nil
}

func (s *Storage) path(key string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(strings.TrimSpace(key)))
	if rel == "." || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.root, rel), nil
}

// Save writes data under key. The file appears only once fully written, so a
// failed upload never leaves a truncated document behind.
func (s *Storage) Save(_ context.Context, key string, data io.Reader) (int64, error) {
	dst, err := s.path(key)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create document dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	written, err := io.Copy(tmp, data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return written, fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return written, fmt.Errorf("commit document: %w", err)
	}
	return written, nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	src, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return f, nil
}

// Delete removes the object under key along with any directories it leaves
// empty. Deleting a missing key is not an error.
func (s *Storage) Delete(_ context.Context, key string) error {
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete document: %w", err)
	}
	root := filepath.Clean(s.root)
	for dir := filepath.Dir(dst); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}
