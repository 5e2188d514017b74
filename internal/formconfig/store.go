// Package formconfig persists form configurations to the dual document store.
package formconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/store"
	"github.com/pitabwire/reportal/model"
)

// Criteria filters Search. Empty fields match everything.
type Criteria struct {
	Title     string          `json:"title,omitempty"`
	Region    string          `json:"region,omitempty"`
	Frequency model.Frequency `json:"frequency,omitempty"`
}

// Store reads configurations primary-first and writes to both backends
// concurrently. There is no rollback: when one write fails the other may
// still have succeeded.
type Store struct {
	stores store.Dual
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source for lastUpdated.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a configuration Store.
func NewStore(stores store.Dual, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		stores: stores,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save validates cfg, stamps lastUpdated and writes it to both backends. A
// validation failure returns before any write is attempted. If either write
// fails, the returned PERSISTENCE_ERROR names the failing backend(s).
func (s *Store) Save(ctx context.Context, cfg model.FormConfiguration) (model.FormConfiguration, error) {
	if errs := Validate(cfg); len(errs) > 0 {
		return model.FormConfiguration{}, model.NewValidationError(errs)
	}

	cfg = Normalize(cfg)
	cfg.LastUpdated = s.now()
	doc, err := json.Marshal(cfg)
	if err != nil {
		return model.FormConfiguration{}, fmt.Errorf("encode configuration %s: %w", cfg.ID, err)
	}

	backends := []store.DocumentStore{s.stores.Primary, s.stores.Mirror}
	errs := make([]error, len(backends))
	var wg sync.WaitGroup
	for i, b := range backends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = b.Put(ctx, store.CollectionConfigs, cfg.ID, doc)
		}()
	}
	wg.Wait()

	var failed []string
	for i, err := range errs {
		if err != nil {
			failed = append(failed, backends[i].Name())
			s.logger.Error("configuration write failed",
				zap.String("config_id", cfg.ID),
				zap.String("backend", backends[i].Name()),
				zap.Error(err),
			)
		}
	}
	if len(failed) > 0 {
		return model.FormConfiguration{}, model.NewPersistenceError(errors.Join(errs...), failed...)
	}
	return cfg, nil
}

// Load returns the configuration from the primary, or from the mirror when
// the primary has no record. A primary error is returned without falling
// back. CONFIG_NOT_FOUND is returned when neither backend has it.
func (s *Store) Load(ctx context.Context, id string) (model.FormConfiguration, error) {
	cfg, err := store.GetJSON[model.FormConfiguration](ctx, s.stores.Primary, store.CollectionConfigs, id)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.FormConfiguration{}, model.NewPersistenceError(err, s.stores.Primary.Name())
	}

	cfg, err = store.GetJSON[model.FormConfiguration](ctx, s.stores.Mirror, store.CollectionConfigs, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.FormConfiguration{}, model.NewConfigNotFoundError(id)
	}
	if err != nil {
		return model.FormConfiguration{}, model.NewPersistenceError(err, s.stores.Mirror.Name())
	}
	s.logger.Debug("configuration served from mirror", zap.String("config_id", id))
	return cfg, nil
}

// Delete removes the mirror copy. A missing record is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.stores.Mirror.Delete(ctx, store.CollectionConfigs, id)
	if err == nil || errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return model.NewPersistenceError(err, s.stores.Mirror.Name())
}

// Search reads the mirror and returns matching configurations ordered by
// title.
func (s *Store) Search(ctx context.Context, c Criteria) ([]model.FormConfiguration, error) {
	title := strings.ToLower(strings.TrimSpace(c.Title))
	out, err := store.QueryJSON(ctx, s.stores.Mirror, store.CollectionConfigs, func(cfg model.FormConfiguration) bool {
		if title != "" && !strings.Contains(strings.ToLower(cfg.Title), title) {
			return false
		}
		if c.Region != "" && cfg.Region != c.Region && !contains(cfg.Scope.SelectedRegions, c.Region) {
			return false
		}
		if c.Frequency != "" && cfg.Scope.SelectedFrequency != c.Frequency {
			return false
		}
		return true
	})
	if err != nil {
		return nil, model.NewPersistenceError(err, s.stores.Mirror.Name())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// Normalize coerces every default value to its field's shape and drops
// settings that do not apply to the field kind.
func Normalize(cfg model.FormConfiguration) model.FormConfiguration {
	cfg = cfg.Clone()
	for i, f := range cfg.Fields {
		if f.DefaultValue != nil {
			f.DefaultValue = model.CoerceValue(f.Kind, f.DefaultValue).Interface()
		}
		if !f.Kind.HasOptions() {
			f.Options = nil
		}
		if !f.Kind.HasPlaceholder() {
			f.Placeholder = ""
		}
		if f.Kind != model.KindNumber {
			f.Min, f.Max = nil, nil
		}
		if f.Kind.Structural() {
			f.Required = false
		}
		cfg.Fields[i] = f
	}
	return cfg
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
