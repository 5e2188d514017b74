package builder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pitabwire/reportal/internal/category"
	"github.com/pitabwire/reportal/internal/formconfig"
	"github.com/pitabwire/reportal/internal/location"
	"github.com/pitabwire/reportal/internal/store"
	"github.com/pitabwire/reportal/internal/store/storetest"
	"github.com/pitabwire/reportal/model"
)

type staticHierarchy struct {
	h   model.Hierarchy
	err error
}

func (s staticHierarchy) Hierarchy(context.Context) (model.Hierarchy, error) {
	return s.h, s.err
}

func testHierarchy() model.Hierarchy {
	return location.Resolve([]model.LocationRecord{
		{Region: "R1", Division: "D1", OfficeName: "O1"},
		{Region: "R1", Division: "D1", OfficeName: "O1"},
		{Region: "R2", Division: "D2", OfficeName: "O2"},
	})
}

type fixture struct {
	session    *Session
	categories *category.Service
	configs    *formconfig.Store
	primary    *storetest.Faulty
	mirror     *storetest.Faulty
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dual, primary, mirror := storetest.NewDual()
	configs := formconfig.NewStore(dual, nil)
	categories := category.NewService(dual, configs, nil)
	ctx := context.Background()
	for _, req := range []category.CreateRequest{
		{ID: "ops", Title: "Operations"},
		{ID: "daily", Title: "Daily Cash", ParentID: "ops"},
		{ID: "weekly", Title: "Weekly Fuel", ParentID: "ops"},
		{ID: "hr", Title: "HR"},
	} {
		_, err := categories.Create(ctx, req)
		require.NoError(t, err)
	}
	return &fixture{
		session:    NewSession(categories, configs, staticHierarchy{h: testHierarchy()}, nil),
		categories: categories,
		configs:    configs,
		primary:    primary,
		mirror:     mirror,
	}
}

func (f *fixture) configure(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.session.SelectCategory(context.Background(), id))
	require.NoError(t, f.session.ConfigurePage(context.Background()))
}

func TestSession_selectRootIsNotConfigurable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Equal(t, StateNoSelection, f.session.State())
	for _, id := range []string{"ops", "hr"} {
		require.NoError(t, f.session.SelectCategory(ctx, id))
		require.False(t, f.session.CanConfigure(), id)
		err := f.session.ConfigurePage(ctx)
		require.Equal(t, model.ErrBadRequest, model.CodeOf(err))
	}
	_, ok := f.session.Config()
	require.False(t, ok)
	require.Equal(t, StateCategorySelected, f.session.State())
}

func TestSession_configureBlankPage(t *testing.T) {
	f := newFixture(t)
	f.configure(t, "daily")

	cfg, ok := f.session.Config()
	require.True(t, ok)
	require.Equal(t, "daily", cfg.ID)
	require.Equal(t, "Daily Cash", cfg.Title)
	require.Empty(t, cfg.Fields)
	require.NotNil(t, cfg.Fields)
	require.Equal(t, StateEditingFields, f.session.State())
	require.Equal(t, ActionConfigurePage, f.session.View().Action)
}

func TestSession_selectingNonEligibleClearsConfig(t *testing.T) {
	f := newFixture(t)
	f.configure(t, "daily")

	require.NoError(t, f.session.SelectCategory(context.Background(), "ops"))
	_, ok := f.session.Config()
	require.False(t, ok)
	require.Equal(t, ActionNone, f.session.View().Action)
}

func TestSession_createFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.BeginCreate(ActionCreateRoot))
	require.Equal(t, "monthly-returns", f.session.SetDraftID("  Monthly Returns!"))
	f.session.SetDraftTitle("Monthly Returns")
	require.False(t, f.session.CanSubmitCreate(), "blocked until the duplicate check passes")

	ok, err := f.session.CheckDraftID(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, f.session.CanSubmitCreate())

	root, err := f.session.SubmitCreate(ctx)
	require.NoError(t, err)
	require.Equal(t, "/monthly-returns", root.Path)
	require.Equal(t, "monthly-returns", f.session.View().Selected.ID)

	require.NoError(t, f.session.BeginCreate(ActionCreateNested))
	f.session.SetDraftID("North Region")
	f.session.SetDraftTitle("North")
	child, err := f.session.SubmitCreate(ctx)
	require.NoError(t, err)
	require.Equal(t, "monthly-returns", child.ParentID)
	require.Equal(t, "/monthly-returns/north-region", child.Path)
	require.True(t, f.session.CanConfigure())
}

func TestSession_createDuplicateBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.BeginCreate(ActionCreateRoot))
	f.session.SetDraftID("HR")
	f.session.SetDraftTitle("Another HR")

	ok, err := f.session.CheckDraftID(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, f.session.CanSubmitCreate())

	_, err = f.session.SubmitCreate(ctx)
	require.Equal(t, model.ErrDuplicateID, model.CodeOf(err))

	nodes, err := f.categories.List(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 4)
}

func TestSession_createRequiresFields(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.BeginCreate(ActionCreateRoot))
	_, err := f.session.SubmitCreate(context.Background())
	require.Equal(t, model.ErrValidationError, model.CodeOf(err))

	require.Equal(t, model.ErrBadRequest, model.CodeOf(NewSession(nil, nil, nil, nil).BeginCreate(ActionCreateNested)))
}

func TestSession_fieldEditing(t *testing.T) {
	f := newFixture(t)
	f.configure(t, "daily")
	s := f.session

	radio, err := s.AddField(model.FieldDefinition{
		ID: "kind", Kind: model.KindRadio, Label: "Kind", Placeholder: "pick",
		Options: []model.Option{{Label: "In", Value: "in"}},
	})
	require.NoError(t, err)
	require.Empty(t, radio.Placeholder, "radio has no placeholder")

	generated, err := s.AddField(model.FieldDefinition{Label: "Notes"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(generated.ID, "field-"))
	require.Equal(t, model.KindText, generated.Kind)

	_, err = s.AddField(model.FieldDefinition{ID: "kind", Kind: model.KindText, Label: "Dup"})
	require.Equal(t, model.ErrValidationError, model.CodeOf(err))

	require.NoError(t, s.ChangeFieldKind("kind", model.KindText))
	fields := s.Fields()
	require.Nil(t, fields[0].Options, "options cleared for text")

	require.NoError(t, s.UpdateField(generated.ID, model.FieldDefinition{
		Kind: model.KindCheckbox, Label: "Agree", Placeholder: "x", DefaultValue: true,
	}))
	fields = s.Fields()
	require.Equal(t, generated.ID, fields[1].ID)
	require.Empty(t, fields[1].Placeholder)
	require.Equal(t, true, fields[1].DefaultValue)

	require.NoError(t, s.MoveField(generated.ID, 0))
	require.Equal(t, generated.ID, s.Fields()[0].ID)
	require.NoError(t, s.MoveField(generated.ID, 99))
	require.Equal(t, generated.ID, s.Fields()[1].ID)

	require.NoError(t, s.RemoveField("kind"))
	require.Len(t, s.Fields(), 1)
	require.Equal(t, model.ErrNotFound, model.CodeOf(s.RemoveField("kind")))
	require.Equal(t, model.ErrValidationError, model.CodeOf(s.ChangeFieldKind(generated.ID, "rating")))
}

func TestSession_scopePruning(t *testing.T) {
	f := newFixture(t)
	f.configure(t, "daily")
	s := f.session

	require.NoError(t, s.SetRegions([]string{"R2"}))
	require.NoError(t, s.SetDivisions([]string{"D2"}))
	require.NoError(t, s.SetOffices([]string{"O2", "O1"}))

	cfg, _ := s.Config()
	require.Equal(t, []string{"O2"}, cfg.Scope.SelectedOffices, "O1 is not eligible under D2")

	require.NoError(t, s.SetRegions([]string{"R1"}))
	cfg, _ = s.Config()
	require.Empty(t, cfg.Scope.SelectedDivisions)
	require.Empty(t, cfg.Scope.SelectedOffices)
	require.Equal(t, StateEditingScope, s.State())

	require.Len(t, s.EligibleDivisions(), 1)
	require.NoError(t, s.SetDivisions([]string{"D1"}))
	require.Len(t, s.EligibleOffices(), 1, "duplicate office names collapse")
}

func TestSession_saveRequiresFrequency(t *testing.T) {
	f := newFixture(t)
	f.configure(t, "daily")
	before := f.primary.Writes() + f.mirror.Writes()

	_, err := f.session.Save(context.Background())
	require.Equal(t, model.ErrValidationError, model.CodeOf(err))
	require.Equal(t, FrequencyRequiredMessage, f.session.ValidationMessage())
	require.Equal(t, before, f.primary.Writes()+f.mirror.Writes())

	require.NoError(t, f.session.SetFrequency(model.FrequencyWeekly))
	require.Empty(t, f.session.ValidationMessage())
	require.Error(t, f.session.SetFrequency("hourly"))
}

func TestSession_saveSuccess(t *testing.T) {
	f := newFixture(t)
	f.configure(t, "daily")
	ctx := context.Background()
	_, err := f.session.AddField(model.FieldDefinition{ID: "amount", Kind: model.KindNumber, Label: "Amount"})
	require.NoError(t, err)
	require.NoError(t, f.session.SetFrequency(model.FrequencyDaily))

	_, err = f.session.RenameSelected(ctx, "Daily Cash v2")
	require.NoError(t, err)

	saved, err := f.session.Save(ctx)
	require.NoError(t, err)
	require.Equal(t, "Daily Cash v2", saved.Title)
	require.False(t, saved.LastUpdated.IsZero())
	require.Equal(t, StateSaved, f.session.State())

	loaded, err := f.configs.Load(ctx, "daily")
	require.NoError(t, err)
	require.Len(t, loaded.Fields, 1)
	_, err = f.mirror.Get(ctx, store.CollectionConfigs, "daily")
	require.NoError(t, err)
}

func TestSession_saveFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	f.configure(t, "daily")
	require.NoError(t, f.session.SetFrequency(model.FrequencyDaily))
	_, err := f.session.AddField(model.FieldDefinition{ID: "a", Label: "A"})
	require.NoError(t, err)
	f.primary.FailWrites(storetest.ErrInjected)

	_, err = f.session.Save(context.Background())
	var env *model.ErrorEnvelope
	require.ErrorAs(t, err, &env)
	require.Equal(t, model.ErrPersistence, env.Code)
	require.Equal(t, []string{"primary"}, env.Backends)

	cfg, ok := f.session.Config()
	require.True(t, ok)
	require.Len(t, cfg.Fields, 1)
	require.True(t, cfg.LastUpdated.IsZero())
	require.Equal(t, StateEditingFields, f.session.State())
}

type blockingConfigs struct {
	Configs
	started chan string
	release chan struct{}
}

func (b *blockingConfigs) Load(ctx context.Context, id string) (model.FormConfiguration, error) {
	b.started <- id
	<-b.release
	return b.Configs.Load(ctx, id)
}

func TestSession_staleConfigResponseDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	blocking := &blockingConfigs{Configs: f.configs, started: make(chan string, 1), release: make(chan struct{})}
	s := NewSession(f.categories, blocking, staticHierarchy{h: testHierarchy()}, nil)

	require.NoError(t, s.SelectCategory(ctx, "daily"))
	done := make(chan error, 1)
	go func() { done <- s.ConfigurePage(ctx) }()

	select {
	case <-blocking.started:
	case <-time.After(2 * time.Second):
		t.Fatal("config load never started")
	}
	require.NoError(t, s.SelectCategory(ctx, "weekly"))
	close(blocking.release)

	err := <-done
	require.True(t, errors.Is(err, ErrStaleResponse), "got %v", err)
	_, ok := s.Config()
	require.False(t, ok, "late response must not populate the new selection")
	require.Equal(t, "weekly", s.View().Selected.ID)
}

func TestSession_hierarchyFailureStillConfigures(t *testing.T) {
	f := newFixture(t)
	fetchErr := model.NewNetworkError("locations", errors.New("timeout"))
	s := NewSession(f.categories, f.configs, staticHierarchy{err: fetchErr}, nil)
	ctx := context.Background()

	require.NoError(t, s.SelectCategory(ctx, "daily"))
	require.NoError(t, s.ConfigurePage(ctx))
	_, err := s.Hierarchy()
	require.Equal(t, model.ErrNetwork, model.CodeOf(err))
}

func TestSession_suggestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.configs.Save(ctx, model.FormConfiguration{
		ID:    "weekly",
		Title: "Weekly Fuel",
		Fields: []model.FieldDefinition{
			{ID: "litres", Kind: model.KindNumber, Label: "Litres"},
			{ID: "s", Kind: model.KindSection, SectionTitle: "More"},
		},
		Scope: model.Scope{SelectedFrequency: model.FrequencyWeekly},
	})
	require.NoError(t, err)

	require.NoError(t, f.session.SelectCategory(ctx, "daily"))
	got, err := f.session.LoadSuggestions(ctx)
	require.NoError(t, err)
	require.Equal(t, []Suggestion{{Label: "Litres", Kind: model.KindNumber, Count: 1}}, got)
	require.Len(t, f.session.View().Suggestions, 1)
}

func TestSession_deleteSelected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.session.SelectCategory(ctx, "ops"))

	deleted, err := f.session.DeleteSelected(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"ops", "daily", "weekly"}, deleted)
	require.Equal(t, StateNoSelection, f.session.State())
}

func TestPreview(t *testing.T) {
	html, err := Preview([]model.FieldDefinition{
		{ID: "s", Kind: model.KindSection, SectionTitle: "Details"},
		{ID: "name", Kind: model.KindText, Label: "<b>Name</b>", Required: true, Placeholder: "Your name"},
		{ID: "office", Kind: model.KindDropdown, Label: "Office", Options: []model.Option{{Label: "A", Value: "a"}}},
		{ID: "days", Kind: model.KindCheckboxGroup, Label: "Days", Options: []model.Option{{Label: "Mon", Value: "mon"}}},
		{ID: "n", Kind: model.KindNumber, Label: "N"},
		{ID: "go", Kind: model.KindButton},
	})
	require.NoError(t, err)

	for _, want := range []string{
		`<legend>Details</legend>`,
		`&lt;b&gt;Name&lt;/b&gt; *`,
		`placeholder="Your name"`,
		`<option value="a">A</option>`,
		`<input type="checkbox" name="days" value="mon" disabled> Mon`,
		`<input type="number" id="n"`,
		`<button type="button" disabled>Button</button>`,
	} {
		require.Contains(t, html, want)
	}
	require.NotContains(t, html, "<b>Name</b>")
}

func TestGeneration(t *testing.T) {
	var g Generation
	a := g.Next()
	require.True(t, g.Current(a))
	b := g.Next()
	require.False(t, g.Current(a))
	require.True(t, g.Current(b))
}
