// Package runtime renders configured forms for end users: it seeds field
// values, applies input, validates on submit and hands completed forms to a
// submission sink.
package runtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/reportal/model"
)

// ConfigLoader loads form configurations by category id.
type ConfigLoader interface {
	Load(ctx context.Context, id string) (model.FormConfiguration, error)
}

// OfficeLister lists the offices of the location hierarchy.
type OfficeLister interface {
	Offices(ctx context.Context) ([]model.Office, error)
}

// Sink receives validated submissions.
type Sink interface {
	Submit(ctx context.Context, sub model.Submission) (model.Submission, error)
}

// Principal is the user a form is filled in for.
type Principal struct {
	UserID  string
	Offices model.OfficeSet
}

// Engine opens forms. It holds no per-form state.
type Engine struct {
	configs ConfigLoader
	offices OfficeLister
	sink    Sink
	logger  *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(configs ConfigLoader, offices OfficeLister, sink Sink, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		configs: configs,
		offices: offices,
		sink:    sink,
		logger:  logger,
	}
}

// FormOption configures a Form.
type FormOption func(*Form)

// ReadOnly opens the form for inspection: inputs are rejected and it cannot
// be submitted or cleared.
func ReadOnly() FormOption {
	return func(f *Form) { f.readOnly = true }
}

// WithClock sets the clock used to stamp submissions.
func WithClock(now func() time.Time) FormOption {
	return func(f *Form) { f.now = now }
}

// Load opens the form configured for categoryID. A missing configuration
// yields CONFIG_NOT_FOUND.
func (e *Engine) Load(ctx context.Context, categoryID string, p Principal, opts ...FormOption) (*Form, error) {
	cfg, err := e.configs.Load(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return e.Open(ctx, cfg, p, opts...), nil
}

// Open builds a form from cfg. When the form has an Office Name dropdown the
// office list is fetched before returning; a failed fetch is recorded on the
// form and can be retried with RetryOffices.
func (e *Engine) Open(ctx context.Context, cfg model.FormConfiguration, p Principal, opts ...FormOption) *Form {
	cfg, display := withFrequencyField(cfg.Clone())
	f := newForm(e, cfg, p, display)
	for _, opt := range opts {
		opt(f)
	}
	if f.officeField != "" {
		_ = f.RetryOffices(ctx)
	}
	f.state = StateReady
	return f
}

// withFrequencyField prepends a read-only field showing the report frequency
// unless a field already occupies that slot. It returns the id of the added
// field, or "" when none was added.
func withFrequencyField(cfg model.FormConfiguration) (model.FormConfiguration, string) {
	freq := cfg.Scope.SelectedFrequency
	if freq == "" || cfg.HasFrequencyField() {
		return cfg, ""
	}
	field := model.FieldDefinition{
		ID:           model.FrequencyFieldID,
		Kind:         model.KindText,
		Label:        model.FrequencyFieldLabel,
		DefaultValue: freq.Label(),
		ReadOnly:     true,
	}
	cfg.Fields = append([]model.FieldDefinition{field}, cfg.Fields...)
	return cfg, field.ID
}
