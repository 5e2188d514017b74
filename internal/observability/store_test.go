package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"

	"github.com/pitabwire/reportal/internal/store"
	"github.com/pitabwire/reportal/internal/store/storetest"
)

func TestInstrumentStore_recordsOperations(t *testing.T) {
	exporter := setupTestTracer(t)
	m, _ := newTestMetrics(t)
	s := InstrumentStore(store.NewMemory("primary"), m)
	ctx := context.Background()

	if s.Name() != "primary" {
		t.Errorf("Name() = %q, want primary", s.Name())
	}
	if err := s.Put(ctx, store.CollectionCategories, "ops", []byte(`{"id":"ops"}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	doc, err := s.Get(ctx, store.CollectionCategories, "ops")
	if err != nil || string(doc) != `{"id":"ops"}` {
		t.Fatalf("Get() = %s, %v", doc, err)
	}
	if _, err := s.Get(ctx, store.CollectionCategories, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
	entries, err := s.Query(ctx, store.CollectionCategories, nil)
	if err != nil || len(entries) != 1 {
		t.Fatalf("Query() = %v, %v", entries, err)
	}

	if v := testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("primary", "put", OutcomeOK)); v != 1 {
		t.Errorf("put ok = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("primary", "get", OutcomeNotFound)); v != 1 {
		t.Errorf("get not_found = %v, want 1", v)
	}

	spans := exporter.GetSpans()
	if len(spans) != 4 {
		t.Fatalf("spans = %d, want 4", len(spans))
	}
	for _, sp := range spans {
		if sp.Status.Code == codes.Error {
			t.Errorf("span %q has error status; a miss is not a failure", sp.Name)
		}
		attrs := spanAttrMap(sp)
		if attrs["reportal.store.backend"] != "primary" {
			t.Errorf("span %q backend = %q", sp.Name, attrs["reportal.store.backend"])
		}
	}
}

func TestInstrumentStore_failuresMarkSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	m, _ := newTestMetrics(t)
	_, _, mirror := storetest.NewDual()
	mirror.FailCommits(storetest.ErrInjected)
	s := InstrumentStore(mirror, m)

	err := s.Commit(context.Background(), []store.Mutation{
		store.PutMutation(store.CollectionConfigs, "daily-cash", []byte(`{}`)),
	})
	if !errors.Is(err, storetest.ErrInjected) {
		t.Fatalf("Commit() error = %v, want injected failure", err)
	}
	if v := testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("mirror", "commit", OutcomeError)); v != 1 {
		t.Errorf("mirror commit errors = %v, want 1", v)
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Status.Code != codes.Error {
		t.Fatalf("spans = %+v, want one errored span", spans)
	}
	if got := spanAttrMap(spans[0])["reportal.store.collection"]; got != store.CollectionConfigs {
		t.Errorf("collection = %q", got)
	}
}
