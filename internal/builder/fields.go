package builder

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pitabwire/reportal/model"
)

func errNoConfig() error {
	return model.NewBadRequestError("no configuration loaded")
}

func fieldNotFound(id string) error {
	return model.NewNotFoundError(fmt.Sprintf("field %q not found", id))
}

func duplicateField(id string) error {
	return model.NewValidationError([]model.FieldError{
		{Field: "id", Code: "DUPLICATE", Message: fmt.Sprintf("duplicate field id %q", id)},
	})
}

// Fields returns a copy of the configured fields.
func (s *Session) Fields() []model.FieldDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return nil
	}
	return s.config.Clone().Fields
}

// AddField appends f. An empty id is generated and an empty kind defaults to
// text.
func (s *Session) AddField(f model.FieldDefinition) (model.FieldDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return model.FieldDefinition{}, errNoConfig()
	}

	f.ID = strings.TrimSpace(f.ID)
	if f.ID == "" {
		f.ID = s.newFieldID()
	}
	if s.config.FieldIndex(f.ID) >= 0 {
		return model.FieldDefinition{}, duplicateField(f.ID)
	}
	if f.Kind == "" {
		f.Kind = model.KindText
	}
	if !f.Kind.Valid() {
		return model.FieldDefinition{}, invalidKind(f.Kind)
	}
	f = fitToKind(f)

	s.config.Fields = append(s.config.Fields, f)
	s.state = StateEditingFields
	return f, nil
}

// UpdateField replaces the field with the given id. A kind change applies
// the same clean-up as ChangeFieldKind.
func (s *Session) UpdateField(id string, f model.FieldDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return errNoConfig()
	}
	i := s.config.FieldIndex(id)
	if i < 0 {
		return fieldNotFound(id)
	}
	if f.ID == "" {
		f.ID = id
	}
	if f.ID != id && s.config.FieldIndex(f.ID) >= 0 {
		return duplicateField(f.ID)
	}
	if !f.Kind.Valid() {
		return invalidKind(f.Kind)
	}

	s.config.Fields[i] = fitToKind(f)
	s.state = StateEditingFields
	return nil
}

// ChangeFieldKind switches a field's kind, clearing options and placeholder
// when the new kind does not use them and coercing the default value.
func (s *Session) ChangeFieldKind(id string, kind model.FieldKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return errNoConfig()
	}
	i := s.config.FieldIndex(id)
	if i < 0 {
		return fieldNotFound(id)
	}
	if !kind.Valid() {
		return invalidKind(kind)
	}

	f := s.config.Fields[i]
	f.Kind = kind
	s.config.Fields[i] = fitToKind(f)
	s.state = StateEditingFields
	return nil
}

// RemoveField deletes the field with the given id.
func (s *Session) RemoveField(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return errNoConfig()
	}
	i := s.config.FieldIndex(id)
	if i < 0 {
		return fieldNotFound(id)
	}
	s.config.Fields = append(s.config.Fields[:i], s.config.Fields[i+1:]...)
	s.state = StateEditingFields
	return nil
}

// MoveField moves the field with the given id to position to, clamped to
// the list bounds.
func (s *Session) MoveField(id string, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return errNoConfig()
	}
	i := s.config.FieldIndex(id)
	if i < 0 {
		return fieldNotFound(id)
	}
	f := s.config.Fields[i]
	rest := append(s.config.Fields[:i:i], s.config.Fields[i+1:]...)
	to = max(0, min(to, len(rest)))

	fields := make([]model.FieldDefinition, 0, len(rest)+1)
	fields = append(fields, rest[:to]...)
	fields = append(fields, f)
	fields = append(fields, rest[to:]...)
	s.config.Fields = fields
	s.state = StateEditingFields
	return nil
}

// ReplaceFields swaps the whole field list after checking id uniqueness.
func (s *Session) ReplaceFields(fields []model.FieldDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return errNoConfig()
	}

	seen := make(map[string]bool, len(fields))
	out := make([]model.FieldDefinition, 0, len(fields))
	for _, f := range fields {
		if f.ID == "" {
			f.ID = s.newFieldID()
		}
		if seen[f.ID] {
			return duplicateField(f.ID)
		}
		seen[f.ID] = true
		if !f.Kind.Valid() {
			return invalidKind(f.Kind)
		}
		out = append(out, fitToKind(f))
	}
	s.config.Fields = out
	s.state = StateEditingFields
	return nil
}

func (s *Session) newFieldID() string {
	for {
		id := "field-" + uuid.NewString()[:8]
		if s.config.FieldIndex(id) < 0 {
			return id
		}
	}
}

func invalidKind(k model.FieldKind) error {
	return model.NewValidationError([]model.FieldError{
		{Field: "kind", Code: "INVALID_ENUM", Message: fmt.Sprintf("invalid field kind %q", k)},
	})
}

// fitToKind drops settings the field's kind does not use.
func fitToKind(f model.FieldDefinition) model.FieldDefinition {
	if !f.Kind.HasOptions() {
		f.Options = nil
	}
	if !f.Kind.HasPlaceholder() {
		f.Placeholder = ""
	}
	if f.Kind != model.KindNumber {
		f.Min, f.Max = nil, nil
	}
	if f.Kind != model.KindButton {
		f.ButtonText = ""
	}
	if f.Kind != model.KindSection {
		f.SectionTitle = ""
	}
	if f.Kind.Structural() {
		f.Required = false
		f.DefaultValue = nil
	} else if f.DefaultValue != nil {
		v := model.CoerceValue(f.Kind, f.DefaultValue)
		if v.IsEmpty() {
			f.DefaultValue = nil
		} else {
			f.DefaultValue = v.Interface()
		}
	}
	return f
}
