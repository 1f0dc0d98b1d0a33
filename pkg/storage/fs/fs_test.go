package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rhuss/httpd/pkg/storage"
)

func TestSaveAndLoad(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, "../escape/test.jpg", []byte("jpeg")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "test.jpg")); err != nil {
		t.Errorf("upload not stored under its base name: %v", err)
	}

	got, err := s.Load(ctx, "test.jpg")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "jpeg" {
		t.Errorf("Load = %q, want jpeg", got)
	}

	if err := s.Save(ctx, "test.jpg", []byte("v2")); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	got, _ = s.Load(ctx, "test.jpg")
	if string(got) != "v2" {
		t.Errorf("Load after overwrite = %q, want v2", got)
	}
}

func TestLoadMissing(t *testing.T) {
	s, _ := New(t.TempDir())
	if _, err := s.Load(context.Background(), "nope.txt"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Load error = %v, want ErrNotFound", err)
	}
}

func TestSaveInvalidName(t *testing.T) {
	s, _ := New(t.TempDir())
	if err := s.Save(context.Background(), "..", []byte("x")); !errors.Is(err, storage.ErrInvalidName) {
		t.Errorf("Save error = %v, want ErrInvalidName", err)
	}
}

func TestPrune(t *testing.T) {
	s, _ := New(t.TempDir())
	ctx := context.Background()

	s.Save(ctx, "old.txt", []byte("old"))
	s.Save(ctx, "new.txt", []byte("new"))
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(s.Dir(), "old.txt"), old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	if err := os.Mkdir(filepath.Join(s.Dir(), "subdir"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	n, err := s.Prune(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune removed %d, want 1", n)
	}
	if _, err := s.Load(ctx, "old.txt"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("old upload still present: %v", err)
	}
	if _, err := s.Load(ctx, "new.txt"); err != nil {
		t.Errorf("new upload removed: %v", err)
	}
}
