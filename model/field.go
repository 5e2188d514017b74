package model

import "strings"

// FieldKind is the closed set of input kinds a form field can take.
type FieldKind string

const (
	KindText          FieldKind = "text"
	KindTextarea      FieldKind = "textarea"
	KindNumber        FieldKind = "number"
	KindDate          FieldKind = "date"
	KindDropdown      FieldKind = "dropdown"
	KindRadio         FieldKind = "radio"
	KindCheckbox      FieldKind = "checkbox"
	KindCheckboxGroup FieldKind = "checkboxGroup"
	KindSwitch        FieldKind = "switch"
	KindFile          FieldKind = "file"
	KindSection       FieldKind = "section"
	KindButton        FieldKind = "button"
)

// ValueShape classifies the value a field kind holds.
type ValueShape int

const (
	// ShapeNone marks structural kinds that never hold a value.
	ShapeNone ValueShape = iota
	ShapeText
	ShapeBool
	ShapeList
)

func (s ValueShape) String() string {
	switch s {
	case ShapeText:
		return "text"
	case ShapeBool:
		return "bool"
	case ShapeList:
		return "list"
	default:
		return "none"
	}
}

// AllKinds lists every field kind in palette order.
func AllKinds() []FieldKind {
	return []FieldKind{
		KindText, KindTextarea, KindNumber, KindDate, KindDropdown, KindRadio,
		KindCheckbox, KindCheckboxGroup, KindSwitch, KindFile, KindSection, KindButton,
	}
}

// Valid reports whether k is one of the known kinds.
func (k FieldKind) Valid() bool {
	for _, known := range AllKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Shape returns the value shape for k. Unknown kinds are treated as text.
func (k FieldKind) Shape() ValueShape {
	switch k {
	case KindSection, KindButton:
		return ShapeNone
	case KindCheckbox, KindSwitch:
		return ShapeBool
	case KindCheckboxGroup:
		return ShapeList
	default:
		return ShapeText
	}
}

// Structural reports whether k is layout-only (section, button).
func (k FieldKind) Structural() bool {
	return k.Shape() == ShapeNone
}

// HasOptions reports whether k renders a choice list.
func (k FieldKind) HasOptions() bool {
	switch k {
	case KindDropdown, KindRadio, KindCheckboxGroup:
		return true
	}
	return false
}

// HasPlaceholder reports whether k renders placeholder text.
func (k FieldKind) HasPlaceholder() bool {
	switch k {
	case KindText, KindTextarea, KindNumber, KindDate, KindDropdown:
		return true
	}
	return false
}

// Option is one choice of a dropdown, radio or checkboxGroup field.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Reserved field slots.
const (
	FrequencyFieldID    = "reportFrequency"
	FrequencyFieldLabel = "Report Frequency"
	OfficeNameLabel     = "Office Name"
)

// FieldDefinition describes one field of a form configuration.
type FieldDefinition struct {
	ID           string    `json:"id"`
	Kind         FieldKind `json:"kind"`
	Label        string    `json:"label,omitempty"`
	Placeholder  string    `json:"placeholder,omitempty"`
	Required     bool      `json:"required,omitempty"`
	Options      []Option  `json:"options,omitempty"`
	DefaultValue any       `json:"defaultValue,omitempty"`
	Min          *float64  `json:"min,omitempty"`
	Max          *float64  `json:"max,omitempty"`
	ButtonText   string    `json:"buttonText,omitempty"`
	SectionTitle string    `json:"sectionTitle,omitempty"`
	ReadOnly     bool      `json:"readOnly,omitempty"`
}

// Default returns the field's default value coerced to its kind.
func (f FieldDefinition) Default() Value {
	return CoerceValue(f.Kind, f.DefaultValue)
}

// IsOfficeName reports whether f is the dropdown bound to the office list.
func (f FieldDefinition) IsOfficeName() bool {
	return f.Kind == KindDropdown && strings.EqualFold(strings.TrimSpace(f.Label), OfficeNameLabel)
}

// IsFrequencySlot reports whether f already carries the report frequency.
func (f FieldDefinition) IsFrequencySlot() bool {
	return f.ID == FrequencyFieldID || strings.EqualFold(strings.TrimSpace(f.Label), FrequencyFieldLabel)
}

// HasOption reports whether value is one of f's option values.
func (f FieldDefinition) HasOption(value string) bool {
	for _, o := range f.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}
