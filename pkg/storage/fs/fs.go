// Package fs stores uploads as plain files in one directory.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rhuss/httpd/pkg/debug"
	"github.com/rhuss/httpd/pkg/storage"
)

const tempPrefix = ".upload-"

// Store keeps each upload as a file named after it. The file modification
// time records when it was saved.
type Store struct {
	dir string
}

var _ storage.UploadStore = (*Store)(nil)

// New creates the directory if needed and returns a store rooted at it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the upload directory.
func (s *Store) Dir() string { return s.dir }

// Save writes content to a temporary file and renames it into place so a
// concurrent Load never sees a partial upload.
func (s *Store) Save(_ context.Context, name string, content []byte) error {
	name, err := storage.CleanName(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("storing upload: %w", err)
	}
	debug.Log(debug.Storage, "upload saved", "backend", "fs", "name", name, "bytes", len(content))
	return nil
}

// Load reads the upload called name.
func (s *Store) Load(_ context.Context, name string) ([]byte, error) {
	name, err := storage.CleanName(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	return b, nil
}

// Prune removes regular files modified before the cutoff. Temporary files
// of in-progress saves are skipped.
func (s *Store) Prune(ctx context.Context, before time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("listing uploads: %w", err)
	}

	var removed int
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(before) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("removing %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
