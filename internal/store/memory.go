package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store. It is safe for concurrent use.
// Data is lost when the process exits; it backs rehearsals and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Record),
	}
}

// NewMemoryStoreFromJSON seeds a store from a `{collection: {id: record}}`
// document, e.g. an export of the destination database.
func NewMemoryStoreFromJSON(data []byte) (*MemoryStore, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("NewMemoryStoreFromJSON: decoding seed: %w", err)
	}

	s := NewMemoryStore()
	for name, body := range raw {
		records, err := decodeCollection(body)
		if err != nil {
			return nil, fmt.Errorf("NewMemoryStoreFromJSON: collection %q: %w", name, err)
		}
		s.collections[name] = records
	}
	return s, nil
}

// Put stores record under id, replacing any previous value.
func (s *MemoryStore) Put(collection, id string, record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collection(collection)[id] = copyRecord(record)
}

// Get implements Store. The returned records are copies.
func (s *MemoryStore) Get(ctx context.Context, collection string) (map[string]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.collections[collection]
	out := make(map[string]Record, len(src))
	for id, rec := range src {
		out[id] = copyRecord(rec)
	}
	return out, nil
}

// Append implements Store. Ids are time-ordered UUIDs so that lexical
// order follows insertion order, like Realtime Database push ids.
func (s *MemoryStore) Append(ctx context.Context, collection string, record interface{}) (string, error) {
	rec, err := toRecord(record)
	if err != nil {
		return "", fmt.Errorf("Append: %s: %w", collection, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("Append: generating id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.collection(collection)[id.String()] = copyRecord(rec)
	return id.String(), nil
}

// Len returns the number of records in a collection.
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.collections[collection])
}

// collection must be called with the write lock held.
func (s *MemoryStore) collection(name string) map[string]Record {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]Record)
		s.collections[name] = c
	}
	return c
}

func copyRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
