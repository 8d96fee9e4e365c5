package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FilesystemDocumentStore writes each blob to <root>/<aa>/<ref>, fanning out
// on the first two characters of the ref to keep directories small.
type FilesystemDocumentStore struct {
	root string
}

func NewFilesystemDocumentStore(root string) (*FilesystemDocumentStore, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return nil, errors.New("document store root is required")
	}
	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, fmt.Errorf("create document store root: %w", err)
	}
	return &FilesystemDocumentStore{root: trimmed}, nil
}

func (s *FilesystemDocumentStore) Put(_ context.Context, data []byte) (string, error) {
	ref := uuid.NewString()
	path := s.path(ref)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return ref, nil
}

func (s *FilesystemDocumentStore) Get(_ context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(s.path(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *FilesystemDocumentStore) Delete(_ context.Context, ref string) error {
	err := os.Remove(s.path(ref))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *FilesystemDocumentStore) path(ref string) string {
	fanout := "00"
	if len(ref) >= 2 {
		fanout = ref[:2]
	}
	return filepath.Join(s.root, fanout, ref)
}
