package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-memory DocumentStore. Suitable for testing and
// single-instance deployments.
type Memory struct {
	name string
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemory creates an empty in-memory store reporting the given backend name.
func NewMemory(name string) *Memory {
	return &Memory{
		name: name,
		data: make(map[string]map[string][]byte),
	}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Get(_ context.Context, collection, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

func (m *Memory) Put(_ context.Context, collection, id string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(collection, id, doc)
	return nil
}

func (m *Memory) Insert(_ context.Context, collection, id string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[collection][id]; ok {
		return ErrExists
	}
	m.put(collection, id, doc)
	return nil
}

func (m *Memory) put(collection, id string, doc []byte) {
	coll, ok := m.data[collection]
	if !ok {
		coll = make(map[string][]byte)
		m.data[collection] = coll
	}
	coll[id] = append([]byte(nil), doc...)
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.data[collection], id)
	return nil
}

func (m *Memory) Query(_ context.Context, collection string, match Predicate) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for _, e := range m.sorted(collection) {
		if match == nil || match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) List(_ context.Context, collection string, offset, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.sorted(collection)
	if offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

// sorted returns copies of the collection's entries ordered by id. Callers
// hold the lock.
func (m *Memory) sorted(collection string) []Entry {
	coll := m.data[collection]
	out := make([]Entry, 0, len(coll))
	for id, doc := range coll {
		out = append(out, Entry{ID: id, Doc: append([]byte(nil), doc...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) Commit(_ context.Context, mutations []Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mut := range mutations {
		switch mut.Op {
		case OpPut:
			m.put(mut.Collection, mut.ID, mut.Doc)
		case OpDelete:
			delete(m.data[mut.Collection], mut.ID)
		}
	}
	return nil
}

func (m *Memory) HealthCheck(context.Context) error { return nil }

// Len returns the number of documents in collection (for testing).
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[collection])
}
