package docstore

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryDoc struct {
	seq    int64
	fields map[string]any
}

// MemoryStore is an in-process Store. It is used by tests and by the
// "memory" store backend for local development.
type MemoryStore struct {
	mu          sync.RWMutex
	seq         int64
	collections map[string]map[string]*memoryDoc
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]*memoryDoc)}
}

// Create stores a copy of fields under a new uuid.
func (s *MemoryStore) Create(_ context.Context, collection string, fields map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]*memoryDoc)
		s.collections[collection] = coll
	}
	id := uuid.NewString()
	s.seq++
	coll[id] = &memoryDoc{seq: s.seq, fields: copyFields(fields)}
	return id, nil
}

// Get returns a copy of the stored document.
func (s *MemoryStore) Get(_ context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Fields: copyFields(doc.fields)}, nil
}

// Update merges partial into the stored document.
func (s *MemoryStore) Update(_ context.Context, collection, id string, partial map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range copyFields(partial) {
		doc.fields[k] = v
	}
	return nil
}

// Delete removes the document.
func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

// QueryByEquality returns matching documents in insertion order.
func (s *MemoryStore) QueryByEquality(_ context.Context, collection, field string, value any, limit, offset int) ([]Document, error) {
	s.mu.RLock()
	matches := s.matchLocked(collection, field, value)
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].seq < matches[j].seq })

	if offset < 0 {
		offset = 0
	}
	if offset >= len(matches) {
		return []Document{}, nil
	}
	matches = matches[offset:]
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return toDocuments(matches), nil
}

// CountByEquality counts matching documents.
func (s *MemoryStore) CountByEquality(_ context.Context, collection, field string, value any) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(collection, field, value), nil
}

// QueryOrderedByTime returns matching documents sorted by timeField.
// Documents whose timeField cannot be read as a timestamp sort last.
func (s *MemoryStore) QueryOrderedByTime(_ context.Context, collection, field string, value any, timeField string, dir Direction) ([]Document, error) {
	s.mu.RLock()
	matches := s.matchLocked(collection, field, value)
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		ti, okI := asTime(matches[i].fields[timeField])
		tj, okJ := asTime(matches[j].fields[timeField])
		switch {
		case okI && !okJ:
			return true
		case !okI:
			return false
		case dir == Ascending:
			return ti.Before(tj)
		default:
			return ti.After(tj)
		}
	})
	return toDocuments(matches), nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() {}

// Len returns the number of documents in a collection.
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

type matched struct {
	id     string
	seq    int64
	fields map[string]any
}

// matchLocked returns copies of the matching documents; callers may read
// them after releasing the lock.
func (s *MemoryStore) matchLocked(collection, field string, value any) []matched {
	var out []matched
	for id, doc := range s.collections[collection] {
		if equalValues(doc.fields[field], value) {
			out = append(out, matched{id: id, seq: doc.seq, fields: copyFields(doc.fields)})
		}
	}
	return out
}

func (s *MemoryStore) countLocked(collection, field string, value any) int {
	n := 0
	for _, doc := range s.collections[collection] {
		if equalValues(doc.fields[field], value) {
			n++
		}
	}
	return n
}

func toDocuments(ms []matched) []Document {
	out := make([]Document, 0, len(ms))
	for _, m := range ms {
		out = append(out, Document{ID: m.id, Fields: m.fields})
	}
	return out
}

// copyFields deep-copies nested maps and slices so callers never share
// state with the store. time.Time and scalar values are copied by value.
func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyFields(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyFields(t[i])
		}
		return out
	default:
		return v
	}
}

func equalValues(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		ts, err := time.Parse(time.RFC3339Nano, t)
		return ts, err == nil
	}
	return time.Time{}, false
}

