package observability

import (
	"context"
	"errors"
	"time"

	"github.com/pitabwire/reportal/internal/store"
)

// instrumentedStore records a span and store metrics around every call.
type instrumentedStore struct {
	next    store.DocumentStore
	metrics *Metrics
}

// InstrumentStore wraps s so each operation is traced and counted under the
// backend's name.
func InstrumentStore(s store.DocumentStore, m *Metrics) store.DocumentStore {
	return &instrumentedStore{next: s, metrics: m}
}

func (s *instrumentedStore) observe(ctx context.Context, op, collection string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, "store."+op,
		AttrBackend.String(s.next.Name()),
		AttrOperation.String(op),
		AttrCollection.String(collection),
	)
	start := time.Now()
	err := fn(ctx)

	outcome := OutcomeOK
	spanErr := err
	switch {
	case errors.Is(err, store.ErrNotFound):
		// A miss is an answer, not a failed span.
		outcome = OutcomeNotFound
		spanErr = nil
	case errors.Is(err, store.ErrExists):
		outcome = OutcomeConflict
		spanErr = nil
	case err != nil:
		outcome = OutcomeError
	}
	s.metrics.RecordStoreOperation(s.next.Name(), op, outcome, time.Since(start))
	EndSpanWithError(span, spanErr)
	return err
}

func (s *instrumentedStore) Name() string { return s.next.Name() }

func (s *instrumentedStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var doc []byte
	err := s.observe(ctx, "get", collection, func(ctx context.Context) error {
		var err error
		doc, err = s.next.Get(ctx, collection, id)
		return err
	})
	return doc, err
}

func (s *instrumentedStore) Put(ctx context.Context, collection, id string, doc []byte) error {
	return s.observe(ctx, "put", collection, func(ctx context.Context) error {
		return s.next.Put(ctx, collection, id, doc)
	})
}

func (s *instrumentedStore) Insert(ctx context.Context, collection, id string, doc []byte) error {
	return s.observe(ctx, "insert", collection, func(ctx context.Context) error {
		return s.next.Insert(ctx, collection, id, doc)
	})
}

func (s *instrumentedStore) Delete(ctx context.Context, collection, id string) error {
	return s.observe(ctx, "delete", collection, func(ctx context.Context) error {
		return s.next.Delete(ctx, collection, id)
	})
}

func (s *instrumentedStore) Query(ctx context.Context, collection string, match store.Predicate) ([]store.Entry, error) {
	var out []store.Entry
	err := s.observe(ctx, "query", collection, func(ctx context.Context) error {
		var err error
		out, err = s.next.Query(ctx, collection, match)
		return err
	})
	return out, err
}

func (s *instrumentedStore) List(ctx context.Context, collection string, offset, limit int) ([]store.Entry, error) {
	var out []store.Entry
	err := s.observe(ctx, "list", collection, func(ctx context.Context) error {
		var err error
		out, err = s.next.List(ctx, collection, offset, limit)
		return err
	})
	return out, err
}

func (s *instrumentedStore) Commit(ctx context.Context, mutations []store.Mutation) error {
	collection := ""
	if len(mutations) > 0 {
		collection = mutations[0].Collection
	}
	return s.observe(ctx, "commit", collection, func(ctx context.Context) error {
		return s.next.Commit(ctx, mutations)
	})
}

func (s *instrumentedStore) HealthCheck(ctx context.Context) error {
	return s.next.HealthCheck(ctx)
}
