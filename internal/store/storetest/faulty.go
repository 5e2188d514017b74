// Package storetest provides DocumentStore doubles for tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pitabwire/reportal/internal/store"
)

// ErrInjected is the default error returned by a failing Faulty store.
var ErrInjected = errors.New("storetest: injected failure")

// Faulty wraps a DocumentStore, counts writes and can be told to fail
// reads, writes or batches.
type Faulty struct {
	store.DocumentStore

	mu        sync.Mutex
	failRead  error
	failWrite error
	failBatch error

	writes  atomic.Int64
	commits atomic.Int64
}

// Wrap returns a Faulty around s.
func Wrap(s store.DocumentStore) *Faulty {
	return &Faulty{DocumentStore: s}
}

// FailReads makes Get, Query and List return err. nil restores normal reads.
func (f *Faulty) FailReads(err error) {
	f.mu.Lock()
	f.failRead = err
	f.mu.Unlock()
}

// FailWrites makes Put, Insert and Delete return err.
func (f *Faulty) FailWrites(err error) {
	f.mu.Lock()
	f.failWrite = err
	f.mu.Unlock()
}

// FailCommits makes Commit return err without applying anything.
func (f *Faulty) FailCommits(err error) {
	f.mu.Lock()
	f.failBatch = err
	f.mu.Unlock()
}

// Writes returns the number of Put, Insert and Delete calls attempted.
func (f *Faulty) Writes() int64 { return f.writes.Load() }

// Commits returns the number of Commit calls attempted.
func (f *Faulty) Commits() int64 { return f.commits.Load() }

func (f *Faulty) readErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failRead
}

func (f *Faulty) writeErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failWrite
}

func (f *Faulty) Get(ctx context.Context, collection, id string) ([]byte, error) {
	if err := f.readErr(); err != nil {
		return nil, err
	}
	return f.DocumentStore.Get(ctx, collection, id)
}

func (f *Faulty) Query(ctx context.Context, collection string, match store.Predicate) ([]store.Entry, error) {
	if err := f.readErr(); err != nil {
		return nil, err
	}
	return f.DocumentStore.Query(ctx, collection, match)
}

func (f *Faulty) List(ctx context.Context, collection string, offset, limit int) ([]store.Entry, error) {
	if err := f.readErr(); err != nil {
		return nil, err
	}
	return f.DocumentStore.List(ctx, collection, offset, limit)
}

func (f *Faulty) Put(ctx context.Context, collection, id string, doc []byte) error {
	f.writes.Add(1)
	if err := f.writeErr(); err != nil {
		return err
	}
	return f.DocumentStore.Put(ctx, collection, id, doc)
}

func (f *Faulty) Insert(ctx context.Context, collection, id string, doc []byte) error {
	f.writes.Add(1)
	if err := f.writeErr(); err != nil {
		return err
	}
	return f.DocumentStore.Insert(ctx, collection, id, doc)
}

func (f *Faulty) Delete(ctx context.Context, collection, id string) error {
	f.writes.Add(1)
	if err := f.writeErr(); err != nil {
		return err
	}
	return f.DocumentStore.Delete(ctx, collection, id)
}

func (f *Faulty) Commit(ctx context.Context, mutations []store.Mutation) error {
	f.commits.Add(1)
	f.mu.Lock()
	err := f.failBatch
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.DocumentStore.Commit(ctx, mutations)
}

// NewDual returns a Dual of two in-memory stores wrapped in Faulty.
func NewDual() (store.Dual, *Faulty, *Faulty) {
	primary := Wrap(store.NewMemory("primary"))
	mirror := Wrap(store.NewMemory("mirror"))
	return store.Dual{Primary: primary, Mirror: mirror}, primary, mirror
}
