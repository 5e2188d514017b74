package builder

import (
	"context"
	"sort"
	"strings"

	"github.com/pitabwire/reportal/model"
)

// Suggestion is a field used by sibling pages, offered when building a new
// form.
type Suggestion struct {
	Label string          `json:"label"`
	Kind  model.FieldKind `json:"kind"`
	Count int             `json:"count"`
}

// LoadSuggestions collects the field labels used by the selection's
// siblings, most common first. It runs independently of ConfigurePage; a
// result that arrives after the selection changed is discarded.
func (s *Session) LoadSuggestions(ctx context.Context) ([]Suggestion, error) {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return nil, model.NewBadRequestError("no category selected")
	}
	id := s.selected.ID
	tok := s.suggestGen.Next()
	s.mu.Unlock()

	tree, err := s.categories.Tree(ctx)
	if err != nil {
		return nil, err
	}

	type key struct {
		label string
		kind  model.FieldKind
	}
	counts := make(map[key]int)
	for _, sib := range tree.Siblings(id) {
		cfg, err := s.configs.Load(ctx, sib.ID)
		if model.IsCode(err, model.ErrConfigNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, f := range cfg.Fields {
			label := strings.TrimSpace(f.Label)
			if f.Kind.Structural() || label == "" || f.IsFrequencySlot() {
				continue
			}
			counts[key{label, f.Kind}]++
		}
	}

	out := make([]Suggestion, 0, len(counts))
	for k, n := range counts {
		out = append(out, Suggestion{Label: k.label, Kind: k.kind, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].Kind < out[j].Kind
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.suggestGen.Current(tok) {
		return nil, ErrStaleResponse
	}
	s.suggestions = out
	return out, nil
}
