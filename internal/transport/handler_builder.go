package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/reportal/internal/builder"
	"github.com/pitabwire/reportal/internal/formconfig"
	"github.com/pitabwire/reportal/internal/observability"
	"github.com/pitabwire/reportal/model"
)

// sessionFactory opens a fresh authoring session. HTTP requests are
// stateless, so each request replays the operator's steps on its own session.
type sessionFactory func() *builder.Session

type createCategoryRequest struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ParentID string `json:"parentId"`
}

// beginCreate opens a create draft under parentID, or a root draft when
// parentID is empty.
func beginCreate(r *http.Request, sess *builder.Session, parentID string) error {
	if parentID == "" {
		return sess.BeginCreate(builder.ActionCreateRoot)
	}
	if err := sess.SelectCategory(r.Context(), parentID); err != nil {
		return err
	}
	return sess.BeginCreate(builder.ActionCreateNested)
}

func handleCreateCategory(newSession sessionFactory, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCategoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		sess := newSession()
		if err := beginCreate(r, sess, req.ParentID); err != nil {
			WriteError(w, err)
			return
		}
		sess.SetDraftID(req.ID)
		sess.SetDraftTitle(req.Title)

		node, err := sess.SubmitCreate(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		metrics.RecordCategoryCreated()
		WriteJSON(w, http.StatusCreated, node)
	}
}

// handleCheckCategoryID normalizes a proposed id and reports whether it is
// free.
func handleCheckCategoryID(newSession sessionFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := newSession()
		if err := beginCreate(r, sess, r.URL.Query().Get("parentId")); err != nil {
			WriteError(w, err)
			return
		}
		id := sess.SetDraftID(r.URL.Query().Get("id"))
		available, err := sess.CheckDraftID(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"id": id, "available": available})
	}
}

// builderResponse is the authoring view of one category.
type builderResponse struct {
	builder.View
	Regions           []model.Region   `json:"regions"`
	EligibleDivisions []model.Division `json:"eligibleDivisions"`
	EligibleOffices   []model.Office   `json:"eligibleOffices"`
	HierarchyError    string           `json:"hierarchyError,omitempty"`
}

func builderView(sess *builder.Session) builderResponse {
	h, err := sess.Hierarchy()
	resp := builderResponse{
		View:              sess.View(),
		Regions:           h.Regions,
		EligibleDivisions: sess.EligibleDivisions(),
		EligibleOffices:   sess.EligibleOffices(),
	}
	if err != nil {
		resp.HierarchyError = err.Error()
	}
	return resp
}

// openConfig selects the category and loads its configuration for editing.
// A category that cannot be configured is reported in the view, not as an
// error.
func openConfig(r *http.Request, sess *builder.Session) error {
	if err := sess.SelectCategory(r.Context(), chi.URLParam(r, "categoryId")); err != nil {
		return err
	}
	if !sess.CanConfigure() {
		return nil
	}
	return sess.ConfigurePage(r.Context())
}

func handleBuilderLoad(newSession sessionFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := newSession()
		if err := openConfig(r, sess); err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, builderView(sess))
	}
}

type saveConfigRequest struct {
	Frequency model.Frequency         `json:"frequency"`
	Regions   []string                `json:"regions"`
	Divisions []string                `json:"divisions"`
	Offices   []string                `json:"offices"`
	Fields    []model.FieldDefinition `json:"fields"`
}

func handleBuilderSave(newSession sessionFactory, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		sess := newSession()
		if err := openConfig(r, sess); err != nil {
			WriteError(w, err)
			return
		}
		if !sess.CanConfigure() {
			WriteError(w, model.NewBadRequestError("configure web page is only available for nested leaf categories"))
			return
		}
		if _, err := sess.Hierarchy(); err != nil {
			// Pruning against a stale hierarchy could silently drop scope.
			WriteError(w, err)
			return
		}

		steps := []func() error{
			func() error { return sess.ReplaceFields(req.Fields) },
			func() error { return sess.SetRegions(req.Regions) },
			func() error { return sess.SetDivisions(req.Divisions) },
			func() error { return sess.SetOffices(req.Offices) },
		}
		if req.Frequency != "" {
			steps = append(steps, func() error { return sess.SetFrequency(req.Frequency) })
		}
		for _, step := range steps {
			if err := step(); err != nil {
				metrics.RecordConfigSave(observability.OutcomeValidation)
				WriteError(w, err)
				return
			}
		}

		saved, err := sess.Save(r.Context())
		if err != nil {
			outcome := observability.OutcomeError
			if model.IsCode(err, model.ErrValidationError) {
				outcome = observability.OutcomeValidation
			}
			metrics.RecordConfigSave(outcome)
			WriteError(w, err)
			return
		}
		metrics.RecordConfigSave(observability.OutcomeOK)
		WriteJSON(w, http.StatusOK, saved)
	}
}

func handleBuilderSuggestions(newSession sessionFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := newSession()
		if err := sess.SelectCategory(r.Context(), chi.URLParam(r, "categoryId")); err != nil {
			WriteError(w, err)
			return
		}
		suggestions, err := sess.LoadSuggestions(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": suggestions})
	}
}

func handlePreview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Fields []model.FieldDefinition `json:"fields"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		markup, err := builder.Preview(req.Fields)
		if err != nil {
			WriteError(w, err)
			return
		}
		if r.URL.Query().Get("format") == "html" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(markup))
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"html": markup})
	}
}

func handleSearchConfigs(configs *formconfig.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		crit := formconfig.Criteria{
			Title:     q.Get("title"),
			Region:    q.Get("region"),
			Frequency: model.Frequency(q.Get("frequency")),
		}
		if crit.Frequency != "" && !crit.Frequency.Valid() {
			WriteError(w, model.NewBadRequestError("frequency must be daily, weekly or monthly"))
			return
		}
		items, err := configs.Search(r.Context(), crit)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}
