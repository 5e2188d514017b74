package location

import (
	"slices"

	"github.com/pitabwire/reportal/model"
)

// EligibleDivisions returns the divisions whose region is selected. An empty
// region selection makes every division eligible.
func EligibleDivisions(h model.Hierarchy, regions []string) []model.Division {
	if len(regions) == 0 {
		return slices.Clone(h.Divisions)
	}
	out := make([]model.Division, 0, len(h.Divisions))
	for _, d := range h.Divisions {
		if slices.Contains(regions, d.Region) {
			out = append(out, d)
		}
	}
	return out
}

// EligibleOffices returns the offices whose division is selected and whose
// region is selected. An empty region selection does not restrict by region;
// an empty division selection leaves no office eligible.
func EligibleOffices(h model.Hierarchy, regions, divisions []string) []model.Office {
	out := make([]model.Office, 0)
	for _, o := range h.Offices {
		if len(regions) > 0 && !slices.Contains(regions, o.Region) {
			continue
		}
		if !slices.Contains(divisions, o.Division) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// UniqueOffices drops repeated office names, keeping the first occurrence.
func UniqueOffices(offices []model.Office) []model.Office {
	seen := make(map[string]bool, len(offices))
	out := make([]model.Office, 0, len(offices))
	for _, o := range offices {
		if seen[o.Name] {
			continue
		}
		seen[o.Name] = true
		out = append(out, o)
	}
	return out
}

// Selection is a region, division and office choice by display name.
type Selection struct {
	Regions   []string `json:"regions"`
	Divisions []string `json:"divisions"`
	Offices   []string `json:"offices"`
}

// SelectionFromScope returns the location part of a form scope.
func SelectionFromScope(s model.Scope) Selection {
	return Selection{
		Regions:   slices.Clone(s.SelectedRegions),
		Divisions: slices.Clone(s.SelectedDivisions),
		Offices:   slices.Clone(s.SelectedOffices),
	}
}

// Apply writes the selection into scope, leaving the frequency untouched.
func (s Selection) Apply(scope *model.Scope) {
	scope.SelectedRegions = nonNil(s.Regions)
	scope.SelectedDivisions = nonNil(s.Divisions)
	scope.SelectedOffices = nonNil(s.Offices)
}

// Prune drops divisions that are no longer eligible under the selected
// regions, then offices no longer eligible under the remaining selection.
func (s Selection) Prune(h model.Hierarchy) Selection {
	divisions := make(map[string]bool)
	for _, d := range EligibleDivisions(h, s.Regions) {
		divisions[d.Name] = true
	}
	out := Selection{Regions: nonNil(slices.Clone(s.Regions))}
	out.Divisions = keep(s.Divisions, divisions)

	offices := make(map[string]bool)
	for _, o := range EligibleOffices(h, out.Regions, out.Divisions) {
		offices[o.Name] = true
	}
	out.Offices = keep(s.Offices, offices)
	return out
}

// WithRegions replaces the region selection and prunes dependants.
func (s Selection) WithRegions(h model.Hierarchy, regions []string) Selection {
	s.Regions = regions
	return s.Prune(h)
}

// WithDivisions replaces the division selection and prunes dependants.
func (s Selection) WithDivisions(h model.Hierarchy, divisions []string) Selection {
	s.Divisions = divisions
	return s.Prune(h)
}

// WithOffices replaces the office selection, dropping ineligible offices.
func (s Selection) WithOffices(h model.Hierarchy, offices []string) Selection {
	s.Offices = offices
	return s.Prune(h)
}

func keep(names []string, allowed map[string]bool) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if allowed[n] && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
