package runtime

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pitabwire/reportal/model"
)

// DateLayout is the accepted format of date field values.
const DateLayout = time.DateOnly

func (f *Form) validate() map[string]string {
	errs := make(map[string]string)
	for _, fd := range f.cfg.Fields {
		if f.holdsNoValue(fd) {
			continue
		}
		v := f.values[fd.ID]
		if v.IsEmpty() {
			if fd.Required {
				errs[fd.ID] = requiredMessage(fd)
			}
			continue
		}
		if msg := f.checkValue(fd, v); msg != "" {
			errs[fd.ID] = msg
		}
	}
	return errs
}

func requiredMessage(fd model.FieldDefinition) string {
	label := strings.TrimSpace(fd.Label)
	if label == "" {
		label = fd.ID
	}
	return label + " is required"
}

// checkValue validates a non-empty value against its field definition.
func (f *Form) checkValue(fd model.FieldDefinition, v model.Value) string {
	switch fd.Kind {
	case model.KindNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Text()), 64)
		if err != nil {
			return "Must be a number"
		}
		if fd.Min != nil && n < *fd.Min {
			return fmt.Sprintf("Must be at least %s", formatFloat(*fd.Min))
		}
		if fd.Max != nil && n > *fd.Max {
			return fmt.Sprintf("Must be at most %s", formatFloat(*fd.Max))
		}
	case model.KindDate:
		if _, err := time.Parse(DateLayout, strings.TrimSpace(v.Text())); err != nil {
			return "Must be a date (YYYY-MM-DD)"
		}
	case model.KindDropdown, model.KindRadio:
		if fd.ID == f.officeField {
			if f.offices.state == OfficesReady && !f.offices.has(v.Text()) {
				return "Select one of your offices"
			}
			return ""
		}
		if len(fd.Options) > 0 && !fd.HasOption(v.Text()) {
			return "Select one of the listed options"
		}
	case model.KindCheckboxGroup:
		if len(fd.Options) == 0 {
			return ""
		}
		for _, item := range v.List() {
			if !fd.HasOption(item) {
				return "Select only the listed options"
			}
		}
	}
	return ""
}

func formatFloat(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func validationError(errs map[string]string) error {
	ids := make([]string, 0, len(errs))
	for id := range errs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	details := make([]model.FieldError, 0, len(ids))
	for _, id := range ids {
		details = append(details, model.FieldError{Field: id, Code: "INVALID", Message: errs[id]})
	}
	return model.NewValidationError(details)
}
