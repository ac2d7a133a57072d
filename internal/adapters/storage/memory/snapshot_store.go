package memory

import (
	"context"
	"errors"
	"sync"
)

type SnapshotStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		blobs: make(map[string][]byte),
	}
}

func (s *SnapshotStore) PutSnapshot(_ context.Context, ref string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blobs[ref]; exists {
		return errors.New("snapshot already exists")
	}

	s.blobs[ref] = append([]byte(nil), data...)
	return nil
}

func (s *SnapshotStore) GetSnapshot(_ context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[ref]
	if !ok {
		return nil, errors.New("snapshot not found")
	}
	return append([]byte(nil), data...), nil
}
