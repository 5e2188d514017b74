package location

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/store"
	"github.com/pitabwire/reportal/model"
)

// DefaultPageSize is the number of location records fetched per page.
const DefaultPageSize = 500

// Provider fetches the full location table and resolves it into a hierarchy.
// The last successfully resolved hierarchy is kept and served when a later
// fetch fails.
type Provider struct {
	store    store.DocumentStore
	pageSize int
	logger   *zap.Logger
	breaker  *Breaker

	mu   sync.RWMutex
	last *model.Hierarchy
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithBreaker guards hierarchy fetches with b.
func WithBreaker(b *Breaker) ProviderOption {
	return func(p *Provider) { p.breaker = b }
}

// NewProvider creates a Provider reading the locations collection of s.
func NewProvider(s store.DocumentStore, pageSize int, logger *zap.Logger, opts ...ProviderOption) *Provider {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{store: s, pageSize: pageSize, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Records returns every location record, following pages until a short page
// is returned.
func (p *Provider) Records(ctx context.Context) ([]model.LocationRecord, error) {
	var out []model.LocationRecord
	for offset := 0; ; offset += p.pageSize {
		page, err := p.store.List(ctx, store.CollectionLocations, offset, p.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list locations at %d: %w", offset, err)
		}
		for _, e := range page {
			var rec model.LocationRecord
			if err := json.Unmarshal(e.Doc, &rec); err != nil {
				return nil, fmt.Errorf("decode location %s: %w", e.ID, err)
			}
			out = append(out, rec)
		}
		if len(page) < p.pageSize {
			return out, nil
		}
	}
}

// Hierarchy fetches and resolves the hierarchy.
//
// On failure it returns a NETWORK_ERROR together with a usable hierarchy: the
// last good one if any, otherwise an empty one. Callers can render the data
// and offer a retry.
func (p *Provider) Hierarchy(ctx context.Context) (model.Hierarchy, error) {
	records, err := p.fetch(ctx)
	if err != nil {
		p.mu.RLock()
		last := p.last
		p.mu.RUnlock()

		p.logger.Warn("location fetch failed",
			zap.Error(err),
			zap.Bool("stale_available", last != nil),
		)
		if last != nil {
			return *last, model.NewNetworkError("locations", err)
		}
		return Resolve(nil), model.NewNetworkError("locations", err)
	}

	h := Resolve(records)
	p.mu.Lock()
	p.last = &h
	p.mu.Unlock()
	return h, nil
}

func (p *Provider) fetch(ctx context.Context) ([]model.LocationRecord, error) {
	if p.breaker == nil {
		return p.Records(ctx)
	}
	if err := p.breaker.Allow(); err != nil {
		return nil, err
	}
	records, err := p.Records(ctx)
	if err != nil {
		p.breaker.RecordFailure()
		return nil, err
	}
	p.breaker.RecordSuccess()
	return records, nil
}

// Offices returns the resolved offices. Unlike Hierarchy, a failed fetch
// returns no data.
func (p *Provider) Offices(ctx context.Context) ([]model.Office, error) {
	h, err := p.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	return h.Offices, nil
}
