package builder

import (
	"context"

	"github.com/pitabwire/reportal/internal/location"
	"github.com/pitabwire/reportal/model"
)

// Hierarchy returns the hierarchy backing the scope widgets and the error of
// the last fetch, if it failed.
func (s *Session) Hierarchy() (model.Hierarchy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hierarchy, s.hierarchyErr
}

// RetryHierarchy refetches the hierarchy and re-prunes the scope against it.
func (s *Session) RetryHierarchy(ctx context.Context) error {
	h, err := s.locations.Hierarchy(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hierarchy = h
	s.hierarchyErr = err
	if err == nil && s.config != nil {
		location.SelectionFromScope(s.config.Scope).Prune(h).Apply(&s.config.Scope)
	}
	return err
}

// SetRegions replaces the selected regions. Divisions and offices that are
// no longer eligible are pruned immediately.
func (s *Session) SetRegions(regions []string) error {
	return s.updateSelection(func(sel location.Selection, h model.Hierarchy) location.Selection {
		return sel.WithRegions(h, regions)
	})
}

// SetDivisions replaces the selected divisions and prunes offices.
func (s *Session) SetDivisions(divisions []string) error {
	return s.updateSelection(func(sel location.Selection, h model.Hierarchy) location.Selection {
		return sel.WithDivisions(h, divisions)
	})
}

// SetOffices replaces the selected offices, keeping only eligible ones.
func (s *Session) SetOffices(offices []string) error {
	return s.updateSelection(func(sel location.Selection, h model.Hierarchy) location.Selection {
		return sel.WithOffices(h, offices)
	})
}

func (s *Session) updateSelection(fn func(location.Selection, model.Hierarchy) location.Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return errNoConfig()
	}
	sel := fn(location.SelectionFromScope(s.config.Scope), s.hierarchy)
	sel.Apply(&s.config.Scope)
	s.state = StateEditingScope
	return nil
}

// SetFrequency sets the required reporting frequency.
func (s *Session) SetFrequency(f model.Frequency) error {
	if !f.Valid() {
		return model.NewValidationError([]model.FieldError{
			{Field: "scope.selectedFrequency", Code: "INVALID_ENUM", Message: "frequency must be daily, weekly or monthly"},
		})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return errNoConfig()
	}
	s.config.Scope.SelectedFrequency = f
	s.validation = ""
	s.state = StateEditingScope
	return nil
}

// EligibleDivisions lists divisions selectable under the current regions.
func (s *Session) EligibleDivisions() []model.Division {
	s.mu.Lock()
	defer s.mu.Unlock()
	var regions []string
	if s.config != nil {
		regions = s.config.Scope.SelectedRegions
	}
	return location.EligibleDivisions(s.hierarchy, regions)
}

// EligibleOffices lists offices selectable under the current regions and
// divisions, one entry per name.
func (s *Session) EligibleOffices() []model.Office {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return nil
	}
	return location.UniqueOffices(location.EligibleOffices(
		s.hierarchy, s.config.Scope.SelectedRegions, s.config.Scope.SelectedDivisions,
	))
}
