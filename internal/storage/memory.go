package storage

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"
)

// MemoryStore implements Store in process memory. It is used in tests and for
// running the engine without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	seq         int64
	order       map[string]map[string]int64
}

// NewMemoryStore creates an empty in-memory document store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
		order:       make(map[string]map[string]int64),
	}
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

// Get returns the document at (collection, id)
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, ok := s.collections[collection]
	if !ok {
		return nil, ErrNotFound
	}
	doc, ok := docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDocument(doc), nil
}

// Set writes the document at (collection, id)
func (s *MemoryStore) Set(ctx context.Context, collection, id string, fields Document, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]Document)
		s.collections[collection] = docs
		s.order[collection] = make(map[string]int64)
	}

	existing, exists := docs[id]
	if merge && exists {
		merged := cloneDocument(existing)
		for k, v := range cloneDocument(fields) {
			merged[k] = v
		}
		docs[id] = merged
	} else {
		docs[id] = cloneDocument(fields)
	}

	if !exists {
		s.seq++
		s.order[collection][id] = s.seq
	}
	return nil
}

// Update merges partial fields into an existing document
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		return ErrNotFound
	}
	existing, ok := docs[id]
	if !ok {
		return ErrNotFound
	}

	merged := cloneDocument(existing)
	for k, v := range cloneDocument(fields) {
		merged[k] = v
	}
	docs[id] = merged
	return nil
}

// Query returns all documents matching every filter, in insertion order
func (s *MemoryStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, ok := s.collections[collection]
	if !ok {
		return nil, nil
	}

	type ordered struct {
		seq int64
		doc Document
	}
	var matched []ordered

	for id, doc := range docs {
		if matchesFilters(doc, filters) {
			matched = append(matched, ordered{seq: s.order[collection][id], doc: cloneDocument(doc)})
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	result := make([]Document, 0, len(matched))
	for _, m := range matched {
		result = append(result, m.doc)
	}
	return result, nil
}

func matchesFilters(doc Document, filters []Filter) bool {
	for _, f := range filters {
		got, ok := doc[f.Field]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(normalizeValue(got), normalizeValue(f.Value)) {
			return false
		}
	}
	return true
}

// normalizeValue round-trips a value through JSON so that e.g. int and
// float64 representations of the same number compare equal
func normalizeValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func cloneDocument(doc Document) Document {
	raw, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	var cp Document
	if err := json.Unmarshal(raw, &cp); err != nil {
		return doc
	}
	return cp
}
