package runtime

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/reportal/model"
)

// State is the lifecycle state of a form.
type State int

const (
	StateLoading State = iota
	StateReady
	StateValidating
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	default:
		return "loading"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Form is one user's in-progress form. It is safe for concurrent use.
type Form struct {
	engine      *Engine
	cfg         model.FormConfiguration
	principal   Principal
	officeField string
	display     string
	now         func() time.Time

	mu       sync.Mutex
	readOnly bool
	state    State
	defaults model.Values
	values   model.Values
	errors   map[string]string
	inFlight bool
	offices  officeOptions
}

// newForm seeds the value map from cfg. display names an informational
// field that is shown but holds no value.
func newForm(e *Engine, cfg model.FormConfiguration, p Principal, display string) *Form {
	f := &Form{
		engine:    e,
		cfg:       cfg,
		principal: p,
		display:   display,
		now:       time.Now,
		state:     StateLoading,
		defaults:  make(model.Values),
	}
	for _, fd := range cfg.Fields {
		if f.holdsNoValue(fd) {
			continue
		}
		f.defaults[fd.ID] = fd.Default()
		if f.officeField == "" && fd.IsOfficeName() {
			f.officeField = fd.ID
		}
	}
	f.values = f.defaults.Clone()
	return f
}

func (f *Form) holdsNoValue(fd model.FieldDefinition) bool {
	return fd.Kind.Structural() || (f.display != "" && fd.ID == f.display)
}

// Config returns the rendered configuration, including any synthesized
// frequency field.
func (f *Form) Config() model.FormConfiguration {
	return f.cfg.Clone()
}

// CategoryID returns the id of the category the form belongs to.
func (f *Form) CategoryID() string {
	return f.cfg.ID
}

// IsReadOnly reports whether the form was opened for inspection.
func (f *Form) IsReadOnly() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readOnly
}

// State returns the lifecycle state.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Values returns a copy of the current values.
func (f *Form) Values() model.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values.Clone()
}

// Defaults returns a copy of the seeded default values.
func (f *Form) Defaults() model.Values {
	return f.defaults.Clone()
}

// Errors returns the field errors shown after the last submit attempt.
func (f *Form) Errors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.errors)
}

// Submitting reports whether a submission is in flight.
func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// Set assigns a value to a scalar, boolean or list field. raw is coerced to
// the field's shape.
func (f *Form) Set(id string, raw any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fd, err := f.editable(id)
	if err != nil {
		return err
	}
	f.values[id] = model.CoerceValue(fd.Kind, raw)
	delete(f.errors, id)
	return nil
}

// Toggle flips a checkbox or switch.
func (f *Form) Toggle(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fd, err := f.editable(id)
	if err != nil {
		return err
	}
	if fd.Kind.Shape() != model.ShapeBool {
		return model.NewBadRequestError(fmt.Sprintf("field %q is not a checkbox or switch", id))
	}
	f.values[id] = model.BoolValue(!f.values[id].Bool())
	delete(f.errors, id)
	return nil
}

// ToggleOption adds value to a checkbox group, or removes it if present.
func (f *Form) ToggleOption(id, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fd, err := f.editable(id)
	if err != nil {
		return err
	}
	if fd.Kind.Shape() != model.ShapeList {
		return model.NewBadRequestError(fmt.Sprintf("field %q is not a checkbox group", id))
	}
	f.values[id] = f.values[id].Toggle(value)
	delete(f.errors, id)
	return nil
}

// Apply sets several values at once. Keys naming unknown, structural or
// read-only fields are ignored.
func (f *Form) Apply(raw map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readOnly {
		return model.NewReadOnlyError()
	}
	for id, v := range raw {
		fd, ok := f.cfg.Field(id)
		if !ok || f.holdsNoValue(fd) || fd.ReadOnly {
			continue
		}
		f.values[id] = model.CoerceValue(fd.Kind, v)
		delete(f.errors, id)
	}
	return nil
}

func (f *Form) editable(id string) (model.FieldDefinition, error) {
	if f.readOnly {
		return model.FieldDefinition{}, model.NewReadOnlyError()
	}
	fd, ok := f.cfg.Field(id)
	if !ok {
		return model.FieldDefinition{}, model.NewNotFoundError(fmt.Sprintf("field %q not found", id))
	}
	if fd.Kind.Structural() {
		return model.FieldDefinition{}, model.NewBadRequestError(fmt.Sprintf("field %q holds no value", id))
	}
	if fd.ReadOnly {
		return model.FieldDefinition{}, model.NewReadOnlyError()
	}
	return fd, nil
}

// Validate checks the current values without changing the form.
func (f *Form) Validate() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validate()
}

// Submit validates the form and hands it to the sink. Only one submission
// may be in flight; a second call while one is pending fails with
// SUBMIT_IN_FLIGHT and never reaches the sink. On success the values return
// to their seeded defaults; on failure they are kept so the user can retry.
func (f *Form) Submit(ctx context.Context) (model.Submission, error) {
	f.mu.Lock()
	if f.readOnly {
		f.mu.Unlock()
		return model.Submission{}, model.NewReadOnlyError()
	}
	if f.inFlight {
		f.mu.Unlock()
		return model.Submission{}, model.NewSubmitInFlightError()
	}

	f.state = StateValidating
	errs := f.validate()
	f.errors = errs
	if len(errs) > 0 {
		f.state = StateReady
		f.mu.Unlock()
		return model.Submission{}, validationError(errs)
	}

	f.inFlight = true
	f.state = StateSubmitting
	sub := model.Submission{
		CategoryID:  f.cfg.ID,
		UserID:      f.principal.UserID,
		Values:      f.values.Interface(),
		SubmittedAt: f.now().UTC(),
	}
	if fd, ok := f.cfg.Field(f.display); ok && f.display != "" {
		sub.Values[fd.ID] = fd.DefaultValue
	}
	if f.officeField != "" {
		sub.Office = f.values[f.officeField].Text()
	}
	f.mu.Unlock()

	saved, err := f.engine.sink.Submit(ctx, sub)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	f.state = StateReady
	if err != nil {
		f.engine.logger.Warn("form submission failed",
			zap.String("category_id", sub.CategoryID),
			zap.String("user_id", sub.UserID),
			zap.Error(err),
		)
		return model.Submission{}, err
	}
	f.values = f.defaults.Clone()
	f.errors = nil
	return saved, nil
}

// Clear empties every field, ignoring defaults. Read-only fields are
// emptied too.
func (f *Form) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readOnly {
		return model.NewReadOnlyError()
	}
	for _, fd := range f.cfg.Fields {
		if f.holdsNoValue(fd) {
			continue
		}
		f.values[fd.ID] = model.EmptyValue(fd.Kind)
	}
	f.errors = nil
	return nil
}
