package storage

import (
	"context"
	"path"
	"strings"
	"time"
)

// UploadStore persists files received by the upload service.
type UploadStore interface {
	// Save stores content under name, replacing an existing upload.
	Save(ctx context.Context, name string, content []byte) error

	// Load returns the content stored under name, or ErrNotFound.
	Load(ctx context.Context, name string) ([]byte, error)

	// Prune removes uploads saved before the cutoff and returns how many
	// were removed.
	Prune(ctx context.Context, before time.Time) (int, error)

	Close() error
}

// CleanName reduces a client supplied file name to its base name. Both
// slash and backslash separators are stripped.
func CleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	base := path.Base(strings.TrimSpace(name))
	switch base {
	case "", ".", "..", "/":
		return "", ErrInvalidName
	}
	if strings.ContainsRune(base, 0) {
		return "", ErrInvalidName
	}
	return base, nil
}
