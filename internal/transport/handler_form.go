package transport

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/observability"
	"github.com/pitabwire/reportal/internal/runtime"
	"github.com/pitabwire/reportal/internal/submission"
	"github.com/pitabwire/reportal/model"
)

// officeDescriptor is the live state of a form's Office Name dropdown.
type officeDescriptor struct {
	FieldID string              `json:"fieldId"`
	State   runtime.OfficeState `json:"state"`
	Options []model.Option      `json:"options"`
	Error   string              `json:"error,omitempty"`
}

// formDescriptor is everything a client needs to render a form.
type formDescriptor struct {
	CategoryID string                  `json:"categoryId"`
	Title      string                  `json:"title"`
	Frequency  model.Frequency         `json:"frequency,omitempty"`
	State      runtime.State           `json:"state"`
	ReadOnly   bool                    `json:"readOnly"`
	Fields     []model.FieldDefinition `json:"fields"`
	Values     model.Values            `json:"values"`
	Errors     map[string]string       `json:"errors,omitempty"`
	Office     *officeDescriptor       `json:"office,omitempty"`
}

func describeForm(f *runtime.Form) formDescriptor {
	cfg := f.Config()
	d := formDescriptor{
		CategoryID: cfg.ID,
		Title:      cfg.Title,
		Frequency:  cfg.Scope.SelectedFrequency,
		State:      f.State(),
		ReadOnly:   f.IsReadOnly(),
		Fields:     cfg.Fields,
		Values:     f.Values(),
		Errors:     f.Errors(),
	}
	if id, ok := f.OfficeField(); ok {
		opts, state, err := f.OfficeOptions()
		d.Office = &officeDescriptor{FieldID: id, State: state, Options: opts}
		if err != nil {
			d.Office.Error = err.Error()
		}
	}
	return d
}

// principalFrom builds the runtime principal from the authenticated request.
func principalFrom(r *http.Request) (runtime.Principal, bool) {
	rctx := model.RequestContextFrom(r.Context())
	if rctx == nil {
		return runtime.Principal{}, false
	}
	return runtime.Principal{UserID: rctx.SubjectID, Offices: OfficesFrom(r.Context())}, true
}

func handleGetForm(engine *runtime.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(r)
		if !ok {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		var opts []runtime.FormOption
		if ro, _ := strconv.ParseBool(r.URL.Query().Get("readOnly")); ro {
			opts = append(opts, runtime.ReadOnly())
		}
		form, err := engine.Load(r.Context(), chi.URLParam(r, "categoryId"), p, opts...)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, describeForm(form))
	}
}

// submitGuard allows one pending submission per user and form across
// requests.
type submitGuard struct {
	pending sync.Map
}

func (g *submitGuard) acquire(key string) bool {
	_, busy := g.pending.LoadOrStore(key, struct{}{})
	return !busy
}

func (g *submitGuard) release(key string) {
	g.pending.Delete(key)
}

type submitRequest struct {
	Values map[string]any `json:"values"`
}

// submitSettings carries Idempotency-Key handling for submissions and the
// fields masked in the submission log. A nil store disables replays.
type submitSettings struct {
	store  submission.IdempotencyStore
	ttl    time.Duration
	redact []string
}

func handleSubmitForm(engine *runtime.Engine, guard *submitGuard, settings submitSettings, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(r)
		if !ok {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		categoryID := chi.URLParam(r, "categoryId")

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		key := p.UserID + "|" + categoryID
		if !guard.acquire(key) {
			metrics.RecordSubmission(observability.OutcomeInFlight)
			WriteError(w, model.NewSubmitInFlightError())
			return
		}
		defer guard.release(key)

		var replayKey, inputHash string
		if k := r.Header.Get("Idempotency-Key"); k != "" && settings.store != nil {
			replayKey = submission.IdempotencyKey(p.UserID, categoryID, k)
			h, err := submission.InputHash(req.Values)
			if err != nil {
				WriteError(w, model.NewBadRequestError("values cannot be fingerprinted"))
				return
			}
			inputHash = h

			prior, found, err := settings.store.Check(r.Context(), replayKey, inputHash)
			if err != nil {
				WriteError(w, err)
				return
			}
			if found {
				metrics.RecordSubmission(observability.OutcomeReplayed)
				WriteJSON(w, http.StatusOK, map[string]any{
					"submission": prior,
					"replayed":   true,
				})
				return
			}
		}

		form, err := engine.Load(r.Context(), categoryID, p)
		if err != nil {
			WriteError(w, err)
			return
		}
		if err := form.Apply(req.Values); err != nil {
			WriteError(w, err)
			return
		}

		ctx, span := observability.StartSpan(r.Context(), "form.submit",
			observability.AttrCategoryID.String(categoryID),
			observability.AttrSubjectID.String(p.UserID),
		)
		saved, err := form.Submit(ctx)
		if err == nil && saved.Office != "" {
			span.SetAttributes(observability.AttrOffice.String(saved.Office))
		}
		observability.EndSpanWithError(span, err)
		if err != nil {
			outcome := observability.OutcomeError
			if model.IsCode(err, model.ErrValidationError) {
				outcome = observability.OutcomeValidation
			}
			metrics.RecordSubmission(outcome)
			WriteError(w, err)
			return
		}
		metrics.RecordSubmission(observability.OutcomeOK)
		observability.LoggerFrom(r.Context(), nil).Debug("form submitted",
			zap.String("category_id", categoryID),
			zap.String("submission_id", saved.ID),
			zap.String("office", saved.Office),
			observability.SubmittedValues(saved.Values, settings.redact),
		)
		if replayKey != "" {
			if err := settings.store.Store(r.Context(), replayKey, inputHash, saved, settings.ttl); err != nil {
				observability.LoggerFrom(r.Context(), nil).Warn("idempotency key not recorded",
					zap.String("category_id", categoryID),
					zap.Error(err),
				)
			}
		}
		WriteJSON(w, http.StatusCreated, map[string]any{
			"submission": saved,
			"form":       describeForm(form),
		})
	}
}
