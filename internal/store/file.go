package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps each document as an indented JSON file in one directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the data directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file backing doc.
func (s *FileStore) Path(doc Document) string {
	return filepath.Join(s.dir, string(doc)+".json")
}

// Load reads and decodes the whole file.
func (s *FileStore) Load(ctx context.Context, doc Document, v any) error {
	data, err := os.ReadFile(s.Path(doc))
	if err != nil {
		return storageErr(doc, "read", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return storageErr(doc, "decode", err)
	}
	return nil
}

// Save encodes v and replaces the file through a temp file and rename,
// so a failed write leaves the previous version in place.
func (s *FileStore) Save(ctx context.Context, doc Document, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return storageErr(doc, "encode", err)
	}
	return s.writeFile(doc, data)
}

// Bootstrap creates the directory and writes empty forms for absent files.
func (s *FileStore) Bootstrap(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	for _, doc := range AllDocuments {
		_, err := os.Stat(s.Path(doc))
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return storageErr(doc, "stat", err)
		}
		if err := s.writeFile(doc, emptyForm(doc)); err != nil {
			return err
		}
	}

	return nil
}

// Ping checks that the data directory is reachable.
func (s *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) writeFile(doc Document, data []byte) error {
	tmpFile, err := os.CreateTemp(s.dir, string(doc)+"-*.tmp")
	if err != nil {
		return storageErr(doc, "create temp", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return storageErr(doc, "write", err)
	}
	if err := tmpFile.Close(); err != nil {
		return storageErr(doc, "close", err)
	}
	if err := os.Rename(tmpPath, s.Path(doc)); err != nil {
		return storageErr(doc, "rename", err)
	}

	success = true
	return nil
}
