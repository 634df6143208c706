package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newBootstrappedFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "database"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	return s
}

func TestFileStore_BootstrapEmptyForms(t *testing.T) {
	t.Parallel()

	s := newBootstrappedFileStore(t)

	want := map[Document]string{
		Users:      "[]",
		Deliveries: "[]",
		Stats:      "{}",
	}
	for doc, content := range want {
		data, err := os.ReadFile(s.Path(doc))
		if err != nil {
			t.Fatalf("read %s: %v", doc, err)
		}
		if string(data) != content {
			t.Errorf("%s content = %q, want %q", doc, data, content)
		}
	}
}

func TestFileStore_BootstrapKeepsExisting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newBootstrappedFileStore(t)

	if err := s.Save(ctx, Users, []map[string]string{{"avatar": "abc"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("second Bootstrap failed: %v", err)
	}

	var users []map[string]string
	if err := s.Load(ctx, Users, &users); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(users) != 1 || users[0]["avatar"] != "abc" {
		t.Errorf("bootstrap overwrote existing document: %v", users)
	}
}

func TestFileStore_SaveReplacesWholeDocument(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newBootstrappedFileStore(t)

	if err := s.Save(ctx, Stats, map[string][]float64{"a": {1, 2}, "b": {3}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, Stats, map[string][]float64{"a": {9}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var got map[string][]float64
	if err := s.Load(ctx, Stats, &got); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 1 || len(got["a"]) != 1 || got["a"][0] != 9 {
		t.Errorf("Load = %v, want only latest document", got)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileStore_LoadMissingOrMalformed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	missing, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	var users []any
	if err := missing.Load(ctx, Users, &users); !errors.Is(err, ErrStorage) {
		t.Errorf("Load of absent document error = %v, want ErrStorage", err)
	}

	s := newBootstrappedFileStore(t)
	if err := os.WriteFile(s.Path(Users), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write malformed: %v", err)
	}
	if err := s.Load(ctx, Users, &users); !errors.Is(err, ErrStorage) {
		t.Errorf("Load of malformed document error = %v, want ErrStorage", err)
	}
}

func TestNewFileStore_RequiresDir(t *testing.T) {
	t.Parallel()

	if _, err := NewFileStore(""); err == nil {
		t.Error("expected error for empty data directory")
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Options{Backend: "mongo"})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("New error = %v, want ErrUnknownBackend", err)
	}
}

func TestNew_DefaultsToFile(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Errorf("New returned %T, want *FileStore", s)
	}
}
