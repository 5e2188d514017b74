package formconfig

import (
	"fmt"
	"strings"

	"github.com/pitabwire/reportal/model"
)

// Validate checks a configuration before it is persisted. The frequency
// check comes first so its message leads the error list.
func Validate(cfg model.FormConfiguration) []model.FieldError {
	var errs []model.FieldError

	switch {
	case cfg.Scope.SelectedFrequency == "":
		errs = append(errs, model.FieldError{
			Field:   "scope.selectedFrequency",
			Code:    "REQUIRED",
			Message: "Please select a report frequency before saving",
		})
	case !cfg.Scope.SelectedFrequency.Valid():
		errs = append(errs, model.FieldError{
			Field:   "scope.selectedFrequency",
			Code:    "INVALID_ENUM",
			Message: fmt.Sprintf("invalid frequency %q", cfg.Scope.SelectedFrequency),
		})
	}

	if strings.TrimSpace(cfg.ID) == "" {
		errs = append(errs, model.FieldError{Field: "id", Code: "REQUIRED", Message: "id is required"})
	}

	seen := make(map[string]bool, len(cfg.Fields))
	for i, f := range cfg.Fields {
		prefix := fmt.Sprintf("fields[%d]", i)
		if f.ID == "" {
			errs = append(errs, model.FieldError{Field: prefix + ".id", Code: "REQUIRED", Message: "field id is required"})
		} else if seen[f.ID] {
			errs = append(errs, model.FieldError{
				Field:   prefix + ".id",
				Code:    "DUPLICATE",
				Message: fmt.Sprintf("duplicate field id %q", f.ID),
			})
		}
		seen[f.ID] = true
		errs = append(errs, validateField(prefix, f)...)
	}

	return errs
}

func validateField(prefix string, f model.FieldDefinition) []model.FieldError {
	var errs []model.FieldError

	if !f.Kind.Valid() {
		return append(errs, model.FieldError{
			Field:   prefix + ".kind",
			Code:    "INVALID_ENUM",
			Message: fmt.Sprintf("invalid field kind %q", f.Kind),
		})
	}

	if !f.Kind.Structural() && strings.TrimSpace(f.Label) == "" {
		errs = append(errs, model.FieldError{Field: prefix + ".label", Code: "REQUIRED", Message: "label is required"})
	}

	// The office dropdown is fed from the location hierarchy.
	if f.Kind.HasOptions() && !f.IsOfficeName() {
		if len(f.Options) == 0 {
			errs = append(errs, model.FieldError{
				Field:   prefix + ".options",
				Code:    "REQUIRED",
				Message: "at least one option is required",
			})
		}
		values := make(map[string]bool, len(f.Options))
		for j, o := range f.Options {
			if values[o.Value] {
				errs = append(errs, model.FieldError{
					Field:   fmt.Sprintf("%s.options[%d].value", prefix, j),
					Code:    "DUPLICATE",
					Message: fmt.Sprintf("duplicate option value %q", o.Value),
				})
			}
			values[o.Value] = true
		}
	}

	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		errs = append(errs, model.FieldError{Field: prefix + ".min", Code: "RANGE", Message: "min must not exceed max"})
	}

	return errs
}
