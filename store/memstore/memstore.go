// Package memstore implements an in-memory store.Store, for tests and
// single-process demos. Grounded on original_source's
// backends/in_memory.py InMemoryByteStore.
package memstore

import (
	"bytes"
	"context"
	"sync"

	"github.com/cohelm/brrr/store"
)

// Store is a sync.Mutex-guarded map-backed store.Store.
type Store struct {
	mu   sync.Mutex
	data map[store.Key][]byte
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: make(map[store.Key][]byte)}
}

func (s *Store) Has(_ context.Context, key store.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok, nil
}

func (s *Store) Get(_ context.Context, key store.Key) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, store.NewOpError("get", key, store.ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Set(_ context.Context, key store.Key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(_ context.Context, key store.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) SetNewValue(_ context.Context, key store.Key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return store.NewOpError("set_new_value", key, store.ErrCompareMismatch)
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) CompareAndSet(_ context.Context, key store.Key, newValue, expected []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.data[key]
	if expected == nil {
		if exists {
			return store.NewOpError("compare_and_set", key, store.ErrCompareMismatch)
		}
	} else if !exists || !bytes.Equal(current, expected) {
		return store.NewOpError("compare_and_set", key, store.ErrCompareMismatch)
	}
	s.data[key] = append([]byte(nil), newValue...)
	return nil
}

func (s *Store) CompareAndDelete(_ context.Context, key store.Key, expected []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.data[key]
	if !exists || !bytes.Equal(current, expected) {
		return store.NewOpError("compare_and_delete", key, store.ErrCompareMismatch)
	}
	delete(s.data, key)
	return nil
}

var _ store.Store = (*Store)(nil)
