// Package builder implements the authoring session used by administrators to
// shape the category tree and configure the form of each leaf page.
package builder

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/reportal/internal/category"
	"github.com/pitabwire/reportal/internal/slug"
	"github.com/pitabwire/reportal/model"
)

// State is the authoring state.
type State int

const (
	StateNoSelection State = iota
	StateCategorySelected
	StateEditingScope
	StateEditingFields
	StateSaved
)

func (s State) String() string {
	switch s {
	case StateCategorySelected:
		return "categorySelected"
	case StateEditingScope:
		return "editingScope"
	case StateEditingFields:
		return "editingFields"
	case StateSaved:
		return "saved"
	default:
		return "noSelection"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Action is the operator's pending action on the selection.
type Action string

const (
	ActionNone          Action = ""
	ActionCreateRoot    Action = "createRoot"
	ActionCreateNested  Action = "createNested"
	ActionConfigurePage Action = "configurePage"
)

// FrequencyRequiredMessage is shown when saving without a frequency.
const FrequencyRequiredMessage = "Please select a report frequency before saving"

// Categories is the category tree collaborator.
type Categories interface {
	Tree(ctx context.Context) (*category.Tree, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, req category.CreateRequest) (model.CategoryNode, error)
	Rename(ctx context.Context, id, title string) (model.CategoryNode, error)
	DeleteSubtree(ctx context.Context, id string) ([]string, error)
}

// Configs is the form configuration collaborator.
type Configs interface {
	Load(ctx context.Context, id string) (model.FormConfiguration, error)
	Save(ctx context.Context, cfg model.FormConfiguration) (model.FormConfiguration, error)
}

// Hierarchies supplies the location hierarchy. It may return a usable
// hierarchy together with an error.
type Hierarchies interface {
	Hierarchy(ctx context.Context) (model.Hierarchy, error)
}

// Draft is the in-progress create form.
type Draft struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Checked   bool   `json:"checked"`
	Available bool   `json:"available"`
}

// Session is one operator's authoring session. It is safe for concurrent
// use; collaborator calls are made without holding the session lock.
type Session struct {
	categories Categories
	configs    Configs
	locations  Hierarchies
	logger     *zap.Logger

	configGen  Generation
	suggestGen Generation

	mu           sync.Mutex
	state        State
	action       Action
	selected     *model.CategoryNode
	leaf, root   bool
	draft        Draft
	config       *model.FormConfiguration
	hierarchy    model.Hierarchy
	hierarchyErr error
	validation   string
	suggestions  []Suggestion
}

// NewSession creates a Session with nothing selected.
func NewSession(categories Categories, configs Configs, locations Hierarchies, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		categories: categories,
		configs:    configs,
		locations:  locations,
		logger:     logger,
	}
}

// View is a point-in-time snapshot of the session.
type View struct {
	State             State                    `json:"state"`
	Action            Action                   `json:"action,omitempty"`
	Selected          *model.CategoryNode      `json:"selected,omitempty"`
	Leaf              bool                     `json:"leaf"`
	Root              bool                     `json:"root"`
	CanConfigure      bool                     `json:"canConfigure"`
	Draft             Draft                    `json:"draft"`
	Config            *model.FormConfiguration `json:"config,omitempty"`
	ValidationMessage string                   `json:"validationMessage,omitempty"`
	Suggestions       []Suggestion             `json:"suggestions,omitempty"`
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		State:             s.state,
		Action:            s.action,
		Leaf:              s.leaf,
		Root:              s.root,
		CanConfigure:      s.canConfigure(),
		Draft:             s.draft,
		ValidationMessage: s.validation,
		Suggestions:       append([]Suggestion(nil), s.suggestions...),
	}
	if s.selected != nil {
		sel := *s.selected
		v.Selected = &sel
	}
	if s.config != nil {
		cfg := s.config.Clone()
		v.Config = &cfg
	}
	return v
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns a copy of the loaded configuration.
func (s *Session) Config() (model.FormConfiguration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return model.FormConfiguration{}, false
	}
	return s.config.Clone(), true
}

// ValidationMessage returns the visible save validation message, if any.
func (s *Session) ValidationMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validation
}

// SelectCategory makes id the current selection. The pending action is
// reset, in-flight loads for the previous selection are invalidated, and the
// loaded configuration is cleared unless it belongs to an eligible id.
func (s *Session) SelectCategory(ctx context.Context, id string) error {
	tree, err := s.categories.Tree(ctx)
	if err != nil {
		return err
	}
	node, ok := tree.Node(id)
	if !ok {
		return model.NewNotFoundError("category " + id + " not found")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.configGen.Next()
	s.suggestGen.Next()
	s.selected = &node
	s.leaf = tree.IsLeaf(id)
	s.root = tree.IsRoot(id)
	s.action = ActionNone
	s.draft = Draft{}
	s.validation = ""
	s.suggestions = nil
	if !s.canConfigure() || (s.config != nil && s.config.ID != id) {
		s.config = nil
	}
	s.state = StateCategorySelected
	return nil
}

// ClearSelection returns the session to NoSelection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Session) reset() {
	s.configGen.Next()
	s.suggestGen.Next()
	s.state = StateNoSelection
	s.action = ActionNone
	s.selected = nil
	s.leaf, s.root = false, false
	s.draft = Draft{}
	s.config = nil
	s.validation = ""
	s.suggestions = nil
}

// CanConfigure reports whether "configure web page" is available: the
// selection must be a leaf and not a root.
func (s *Session) CanConfigure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canConfigure()
}

func (s *Session) canConfigure() bool {
	return s.selected != nil && s.leaf && !s.root
}

// BeginCreate opens the create form for a root or nested category.
func (s *Session) BeginCreate(action Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch action {
	case ActionCreateRoot:
	case ActionCreateNested:
		if s.selected == nil {
			return model.NewBadRequestError("select a parent category first")
		}
	default:
		return model.NewBadRequestError("unknown create action " + string(action))
	}
	s.action = action
	s.draft = Draft{}
	return nil
}

// SetDraftID normalizes raw into a slug and stores it. Any previous
// duplicate check is discarded.
func (s *Session) SetDraftID(raw string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.ID = slug.Slugify(raw)
	s.draft.Checked = false
	s.draft.Available = false
	return s.draft.ID
}

// SetDraftTitle stores the draft title.
func (s *Session) SetDraftTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Title = title
}

// CheckDraftID asks the category service whether the draft id is free. The
// result is recorded only if the id has not changed meanwhile.
func (s *Session) CheckDraftID(ctx context.Context) (bool, error) {
	s.mu.Lock()
	id := s.draft.ID
	s.mu.Unlock()
	if id == "" {
		return false, model.NewValidationError([]model.FieldError{{Field: "id", Code: "REQUIRED", Message: "Id is required"}})
	}

	exists, err := s.categories.Exists(ctx, id)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft.ID != id {
		return false, ErrStaleResponse
	}
	s.draft.Checked = true
	s.draft.Available = !exists
	return !exists, nil
}

// CanSubmitCreate reports whether the create form may be submitted.
func (s *Session) CanSubmitCreate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draft
	return d.ID != "" && strings.TrimSpace(d.Title) != "" && d.Checked && d.Available
}

// SubmitCreate creates the drafted category and selects it. The duplicate
// check is run first if it has not completed for the current id.
func (s *Session) SubmitCreate(ctx context.Context) (model.CategoryNode, error) {
	s.mu.Lock()
	action := s.action
	draft := s.draft
	parentID := ""
	if action == ActionCreateNested && s.selected != nil {
		parentID = s.selected.ID
	}
	s.mu.Unlock()

	if action != ActionCreateRoot && action != ActionCreateNested {
		return model.CategoryNode{}, model.NewBadRequestError("no create action in progress")
	}
	var details []model.FieldError
	if draft.ID == "" {
		details = append(details, model.FieldError{Field: "id", Code: "REQUIRED", Message: "Id is required"})
	}
	if strings.TrimSpace(draft.Title) == "" {
		details = append(details, model.FieldError{Field: "title", Code: "REQUIRED", Message: "Title is required"})
	}
	if len(details) > 0 {
		return model.CategoryNode{}, model.NewValidationError(details)
	}

	if !draft.Checked {
		available, err := s.CheckDraftID(ctx)
		if err != nil {
			return model.CategoryNode{}, err
		}
		draft.Available = available
	}
	if !draft.Available {
		return model.CategoryNode{}, model.NewDuplicateIDError(draft.ID)
	}

	node, err := s.categories.Create(ctx, category.CreateRequest{
		ID:       draft.ID,
		Title:    draft.Title,
		ParentID: parentID,
	})
	if err != nil {
		return model.CategoryNode{}, err
	}
	if err := s.SelectCategory(ctx, node.ID); err != nil {
		return node, err
	}
	return node, nil
}

// ConfigurePage loads the selection's configuration, or starts a blank one
// when none exists, together with the location hierarchy. A hierarchy
// failure does not fail the call; the stale or empty hierarchy is kept and
// the error is available from Hierarchy.
func (s *Session) ConfigurePage(ctx context.Context) error {
	s.mu.Lock()
	if !s.canConfigure() {
		s.mu.Unlock()
		return model.NewBadRequestError("configure web page is only available for nested leaf categories")
	}
	s.action = ActionConfigurePage
	node := *s.selected
	tok := s.configGen.Next()
	s.mu.Unlock()

	var (
		cfg     model.FormConfiguration
		h       model.Hierarchy
		hierErr error
		g       errgroup.Group
	)
	g.Go(func() error {
		loaded, err := s.configs.Load(ctx, node.ID)
		switch {
		case model.IsCode(err, model.ErrConfigNotFound):
			cfg = blankConfig(node)
		case err != nil:
			return err
		default:
			cfg = loaded
		}
		return nil
	})
	g.Go(func() error {
		h, hierErr = s.locations.Hierarchy(ctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if hierErr != nil {
		s.logger.Warn("hierarchy unavailable while configuring page",
			zap.String("category_id", node.ID),
			zap.Error(hierErr),
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configGen.Current(tok) {
		return ErrStaleResponse
	}
	if cfg.Fields == nil {
		cfg.Fields = []model.FieldDefinition{}
	}
	s.config = &cfg
	s.hierarchy = h
	s.hierarchyErr = hierErr
	s.validation = ""
	s.state = StateEditingFields
	return nil
}

func blankConfig(node model.CategoryNode) model.FormConfiguration {
	return model.FormConfiguration{
		ID:     node.ID,
		Title:  node.Title,
		Fields: []model.FieldDefinition{},
		Scope: model.Scope{
			SelectedRegions:   []string{},
			SelectedDivisions: []string{},
			SelectedOffices:   []string{},
		},
	}
}

// Save persists the configuration. Without a frequency it records a visible
// validation message and writes nothing. On failure the error is returned
// unchanged and the in-memory configuration is left as it was.
func (s *Session) Save(ctx context.Context) (model.FormConfiguration, error) {
	s.mu.Lock()
	if s.config == nil || s.selected == nil {
		s.mu.Unlock()
		return model.FormConfiguration{}, model.NewBadRequestError("no configuration loaded")
	}
	if s.config.Scope.SelectedFrequency == "" {
		s.validation = FrequencyRequiredMessage
		s.mu.Unlock()
		return model.FormConfiguration{}, model.NewValidationError([]model.FieldError{
			{Field: "scope.selectedFrequency", Code: "REQUIRED", Message: FrequencyRequiredMessage},
		})
	}
	cfg := s.config.Clone()
	cfg.Title = s.selected.Title
	tok := s.configGen.Next()
	s.mu.Unlock()

	saved, err := s.configs.Save(ctx, cfg)
	if err != nil {
		return model.FormConfiguration{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.configGen.Current(tok) {
		s.config = &saved
		s.validation = ""
		s.state = StateSaved
	}
	return saved, nil
}

// Preview renders the current fields.
func (s *Session) Preview() (string, error) {
	s.mu.Lock()
	var fields []model.FieldDefinition
	if s.config != nil {
		fields = s.config.Clone().Fields
	}
	s.mu.Unlock()
	return Preview(fields)
}

// RenameSelected renames the selected category and keeps the loaded
// configuration title in sync.
func (s *Session) RenameSelected(ctx context.Context, title string) (model.CategoryNode, error) {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return model.CategoryNode{}, model.NewBadRequestError("no category selected")
	}
	id := s.selected.ID
	s.mu.Unlock()

	node, err := s.categories.Rename(ctx, id, title)
	if err != nil {
		return model.CategoryNode{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != nil && s.selected.ID == id {
		s.selected = &node
		if s.config != nil && s.config.ID == id {
			s.config.Title = node.Title
		}
	}
	return node, nil
}

// DeleteSelected deletes the selected category with its subtree and clears
// the selection.
func (s *Session) DeleteSelected(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return nil, model.NewBadRequestError("no category selected")
	}
	id := s.selected.ID
	s.mu.Unlock()

	deleted, err := s.categories.DeleteSubtree(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != nil && s.selected.ID == id {
		s.reset()
	}
	return deleted, nil
}

// IsStale reports whether err is a discarded stale response.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleResponse)
}
