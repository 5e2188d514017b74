package model

import (
	"strings"
	"time"
)

// Frequency is the reporting cadence of a form.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Frequencies lists the valid frequencies in display order.
func Frequencies() []Frequency {
	return []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly}
}

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Label returns the display label ("Daily", "Weekly", "Monthly").
func (f Frequency) Label() string {
	if f == "" {
		return ""
	}
	return strings.ToUpper(string(f[:1])) + string(f[1:])
}

// Scope restricts which locations a form targets. Entries are display names.
type Scope struct {
	SelectedRegions   []string  `json:"selectedRegions"`
	SelectedDivisions []string  `json:"selectedDivisions"`
	SelectedOffices   []string  `json:"selectedOffices"`
	SelectedFrequency Frequency `json:"selectedFrequency,omitempty"`
}

// FormConfiguration is the persisted schema of a page's form. Its ID equals the
// id of the leaf category that owns it.
type FormConfiguration struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Fields      []FieldDefinition `json:"fields"`
	LastUpdated time.Time         `json:"lastUpdated"`
	Scope       Scope             `json:"scope"`
	// Region is a legacy single-region field still read by search.
	Region string `json:"region,omitempty"`
}

// Field returns the field with the given id.
func (c *FormConfiguration) Field(id string) (FieldDefinition, bool) {
	if i := c.FieldIndex(id); i >= 0 {
		return c.Fields[i], true
	}
	return FieldDefinition{}, false
}

// FieldIndex returns the position of the field with the given id, or -1.
func (c *FormConfiguration) FieldIndex(id string) int {
	for i, f := range c.Fields {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// HasFrequencyField reports whether a field is already bound to the report
// frequency slot.
func (c *FormConfiguration) HasFrequencyField() bool {
	for _, f := range c.Fields {
		if f.IsFrequencySlot() {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of c.
func (c FormConfiguration) Clone() FormConfiguration {
	out := c
	out.Fields = make([]FieldDefinition, len(c.Fields))
	for i, f := range c.Fields {
		f.Options = append([]Option(nil), f.Options...)
		if l, ok := f.DefaultValue.([]any); ok {
			f.DefaultValue = append([]any(nil), l...)
		}
		out.Fields[i] = f
	}
	out.Scope.SelectedRegions = append([]string{}, c.Scope.SelectedRegions...)
	out.Scope.SelectedDivisions = append([]string{}, c.Scope.SelectedDivisions...)
	out.Scope.SelectedOffices = append([]string{}, c.Scope.SelectedOffices...)
	return out
}
