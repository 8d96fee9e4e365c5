package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore is the opaque put/get/delete contract for document blobs.
// Delete tolerates already-removed refs.
type DocumentStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// MemoryDocumentStore keeps blobs in memory for local development and tests.
type MemoryDocumentStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{blobs: make(map[string][]byte)}
}

func (s *MemoryDocumentStore) Put(_ context.Context, data []byte) (string, error) {
	ref := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (s *MemoryDocumentStore) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[ref]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryDocumentStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, ref)
	return nil
}
