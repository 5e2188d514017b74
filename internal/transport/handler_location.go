package transport

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/location"
	"github.com/pitabwire/reportal/internal/observability"
	"github.com/pitabwire/reportal/internal/store"
	"github.com/pitabwire/reportal/model"
)

const maxImportBytes = 32 << 20

// selectionFromQuery reads repeated region, division and office parameters.
func selectionFromQuery(r *http.Request) location.Selection {
	q := r.URL.Query()
	return location.Selection{
		Regions:   q["region"],
		Divisions: q["division"],
		Offices:   q["office"],
	}
}

type hierarchyResponse struct {
	Regions   []model.Region     `json:"regions"`
	Divisions []model.Division   `json:"divisions"`
	Offices   []model.Office     `json:"offices"`
	Selection location.Selection `json:"selection"`
	Stale     bool               `json:"stale,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// handleHierarchy returns the regions plus the divisions and offices
// eligible under the requested selection, and the selection itself with
// ineligible entries pruned. A failed fetch that still has a previous
// hierarchy is served as stale.
func handleHierarchy(locations *location.Provider, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := observability.StartSpan(r.Context(), "locations.hierarchy")
		h, err := locations.Hierarchy(ctx)
		observability.EndSpanWithError(span, err)
		if err != nil {
			metrics.RecordHierarchyFetch(observability.OutcomeError, 0)
			if len(h.Offices) == 0 {
				WriteError(w, err)
				return
			}
		} else {
			metrics.RecordHierarchyFetch(observability.OutcomeOK, len(h.Offices))
		}

		sel := selectionFromQuery(r).Prune(h)
		resp := hierarchyResponse{
			Regions:   h.Regions,
			Divisions: location.EligibleDivisions(h, sel.Regions),
			Offices:   location.UniqueOffices(location.EligibleOffices(h, sel.Regions, sel.Divisions)),
			Selection: sel,
		}
		if err != nil {
			resp.Stale = true
			resp.Error = err.Error()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleClassification(classifier *location.Classifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		designated, err := classifier.GetOrCompute(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"offices": designated})
	}
}

func handleInvalidateClassification(classifier *location.Classifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classifier.Invalidate()
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleImportLocations replaces the location table with an uploaded
// spreadsheet (multipart field "file").
func handleImportLocations(docs store.DocumentStore, classifier *location.Classifier, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			WriteError(w, model.NewBadRequestError("multipart field \"file\" is required"))
			return
		}
		defer file.Close()

		records, err := location.ReadSpreadsheet(file, header.Filename)
		if err != nil {
			WriteError(w, model.NewBadRequestError(err.Error()))
			return
		}
		n, err := location.Import(r.Context(), docs, records)
		if err != nil {
			WriteError(w, model.NewPersistenceError(err, docs.Name()))
			return
		}
		classifier.Invalidate()
		observability.RequestLogger(r.Context(), logger).Info("location table imported",
			zap.String("file", header.Filename),
			zap.Int("records", n),
		)
		WriteJSON(w, http.StatusOK, map[string]int{"imported": n})
	}
}
