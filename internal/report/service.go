// Package report summarizes the submissions received for a category across
// the offices in its scope.
package report

import (
	"context"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/location"
	"github.com/pitabwire/reportal/internal/submission"
	"github.com/pitabwire/reportal/model"
)

// ConfigLoader loads form configurations.
type ConfigLoader interface {
	Load(ctx context.Context, id string) (model.FormConfiguration, error)
}

// Hierarchies supplies the location hierarchy.
type Hierarchies interface {
	Hierarchy(ctx context.Context) (model.Hierarchy, error)
}

// Submissions lists stored submissions.
type Submissions interface {
	List(ctx context.Context, f submission.Filter) ([]model.Submission, error)
}

// Classifier flags offices carrying the designated suffix.
type Classifier interface {
	GetOrCompute(ctx context.Context) (map[string]bool, error)
}

// Request selects what to summarize. An empty location selection falls back
// to the configured scope of the form.
type Request struct {
	CategoryID string
	Selection  location.Selection
	From, To   time.Time
}

// OfficeCount is the submission tally of one office.
type OfficeCount struct {
	Office      string     `json:"office"`
	Region      string     `json:"region"`
	Division    string     `json:"division"`
	Designated  bool       `json:"designated"`
	Submissions int        `json:"submissions"`
	LastAt      *time.Time `json:"lastSubmittedAt,omitempty"`
}

// Summary is the per-office tally for one category.
type Summary struct {
	CategoryID string             `json:"categoryId"`
	Title      string             `json:"title"`
	Frequency  model.Frequency    `json:"frequency,omitempty"`
	Selection  location.Selection `json:"selection"`
	Offices    []OfficeCount      `json:"offices"`
	Total      int                `json:"total"`
	Missing    []string           `json:"missing"`
	// Unscoped counts submissions from offices outside the selection.
	Unscoped int `json:"unscoped"`
}

// Service builds summaries.
type Service struct {
	configs     ConfigLoader
	locations   Hierarchies
	submissions Submissions
	classifier  Classifier
	logger      *zap.Logger
}

// NewService creates a Service.
func NewService(configs ConfigLoader, locations Hierarchies, submissions Submissions, classifier Classifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		configs:     configs,
		locations:   locations,
		submissions: submissions,
		classifier:  classifier,
		logger:      logger,
	}
}

// Summarize counts the category's submissions per office in the selection.
// The selection is pruned against the hierarchy first, so divisions and
// offices outside the chosen regions are ignored.
func (s *Service) Summarize(ctx context.Context, req Request) (Summary, error) {
	cfg, err := s.configs.Load(ctx, req.CategoryID)
	if err != nil {
		return Summary{}, err
	}

	h, err := s.locations.Hierarchy(ctx)
	if err != nil {
		if len(h.Offices) == 0 {
			return Summary{}, err
		}
		s.logger.Warn("summarizing with stale hierarchy",
			zap.String("category_id", req.CategoryID),
			zap.Error(err),
		)
	}

	sel := req.Selection
	if len(sel.Regions) == 0 && len(sel.Divisions) == 0 && len(sel.Offices) == 0 {
		sel = location.SelectionFromScope(cfg.Scope)
	}
	sel = sel.Prune(h)

	designated, err := s.classifier.GetOrCompute(ctx)
	if err != nil {
		return Summary{}, err
	}

	subs, err := s.submissions.List(ctx, submission.Filter{
		CategoryID: req.CategoryID,
		From:       req.From,
		To:         req.To,
	})
	if err != nil {
		return Summary{}, err
	}

	offices := scopedOffices(h, sel)
	counts := make(map[string]*OfficeCount, len(offices))
	out := Summary{
		CategoryID: cfg.ID,
		Title:      cfg.Title,
		Frequency:  cfg.Scope.SelectedFrequency,
		Selection:  sel,
		Offices:    make([]OfficeCount, 0, len(offices)),
		Missing:    []string{},
	}
	for _, o := range offices {
		counts[o.Name] = &OfficeCount{
			Office:     o.Name,
			Region:     o.Region,
			Division:   o.Division,
			Designated: designated[o.Name],
		}
	}
	for _, sub := range subs {
		c, ok := counts[sub.Office]
		if !ok {
			out.Unscoped++
			continue
		}
		c.Submissions++
		out.Total++
		if c.LastAt == nil || sub.SubmittedAt.After(*c.LastAt) {
			at := sub.SubmittedAt
			c.LastAt = &at
		}
	}
	for _, o := range offices {
		c := counts[o.Name]
		out.Offices = append(out.Offices, *c)
		if c.Submissions == 0 {
			out.Missing = append(out.Missing, o.Name)
		}
	}
	sort.Strings(out.Missing)
	return out, nil
}

// scopedOffices returns one office per name matching every non-empty part of
// the selection.
func scopedOffices(h model.Hierarchy, sel location.Selection) []model.Office {
	matched := make([]model.Office, 0, len(h.Offices))
	for _, o := range h.Offices {
		if len(sel.Regions) > 0 && !slices.Contains(sel.Regions, o.Region) {
			continue
		}
		if len(sel.Divisions) > 0 && !slices.Contains(sel.Divisions, o.Division) {
			continue
		}
		if len(sel.Offices) > 0 && !slices.Contains(sel.Offices, o.Name) {
			continue
		}
		matched = append(matched, o)
	}
	out := location.UniqueOffices(matched)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
