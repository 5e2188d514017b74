// Package store is the dual document store used by the portal: a primary
// backend that is authoritative for reads and a mirror that serves search and
// receives a copy of every write.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collections.
const (
	CollectionCategories  = "categories"
	CollectionConfigs     = "page_configurations"
	CollectionLocations   = "locations"
	CollectionSubmissions = "submissions"
)

// ErrNotFound is returned by Get and Delete when no document exists.
var ErrNotFound = errors.New("store: document not found")

// ErrExists is returned by Insert when the id is already taken.
var ErrExists = errors.New("store: document already exists")

// Entry is one stored document.
type Entry struct {
	ID  string
	Doc []byte
}

// Predicate selects entries in Query. A nil predicate matches everything.
type Predicate func(Entry) bool

// Op is a batch operation kind.
type Op int

const (
	OpPut Op = iota
	OpDelete
)

// Mutation is one write of an atomic batch.
type Mutation struct {
	Op         Op
	Collection string
	ID         string
	Doc        []byte
}

// PutMutation returns a put of doc.
func PutMutation(collection, id string, doc []byte) Mutation {
	return Mutation{Op: OpPut, Collection: collection, ID: id, Doc: doc}
}

// DeleteMutation returns a delete. Deleting a missing document in a batch is
// not an error.
func DeleteMutation(collection, id string) Mutation {
	return Mutation{Op: OpDelete, Collection: collection, ID: id}
}

// DocumentStore is a keyed JSON document store.
type DocumentStore interface {
	// Name identifies the backend in errors and metrics ("primary", "mirror").
	Name() string

	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) ([]byte, error)

	// Put creates or replaces the document.
	Put(ctx context.Context, collection, id string, doc []byte) error

	// Insert creates the document only if id is free, otherwise it returns
	// ErrExists and leaves the stored document untouched.
	Insert(ctx context.Context, collection, id string, doc []byte) error

	// Delete removes the document or returns ErrNotFound.
	Delete(ctx context.Context, collection, id string) error

	// Query returns all entries matching match, ordered by id.
	Query(ctx context.Context, collection string, match Predicate) ([]Entry, error)

	// List returns at most limit entries ordered by id, starting at offset.
	List(ctx context.Context, collection string, offset, limit int) ([]Entry, error)

	// Commit applies all mutations atomically: either every mutation is
	// applied or none is.
	Commit(ctx context.Context, mutations []Mutation) error

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}

// Dual pairs the primary and mirror backends.
type Dual struct {
	Primary DocumentStore
	Mirror  DocumentStore
}

// GetJSON loads and decodes a document.
func GetJSON[T any](ctx context.Context, s DocumentStore, collection, id string) (T, error) {
	var out T
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(doc, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return out, nil
}

// PutJSON encodes and stores v.
func PutJSON(ctx context.Context, s DocumentStore, collection, id string, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return s.Put(ctx, collection, id, doc)
}

// InsertJSON encodes v and stores it if id is free.
func InsertJSON(ctx context.Context, s DocumentStore, collection, id string, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return s.Insert(ctx, collection, id, doc)
}

// QueryJSON decodes every entry of collection and returns those accepted by
// keep. A nil keep accepts all.
func QueryJSON[T any](ctx context.Context, s DocumentStore, collection string, keep func(T) bool) ([]T, error) {
	entries, err := s.Query(ctx, collection, nil)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Doc, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, e.ID, err)
		}
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}
