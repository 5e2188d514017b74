package transport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/reportal/internal/observability"
	"github.com/pitabwire/reportal/internal/report"
	"github.com/pitabwire/reportal/internal/submission"
	"github.com/pitabwire/reportal/model"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// queryInt extracts an integer query param with a default.
func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// queryMap extracts all query params with a given prefix as a map.
// e.g., filter[office]=Gulu → {"office": "Gulu"}
func queryMap(r *http.Request, prefix string) map[string]string {
	result := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(key) > len(prefix)+2 && key[:len(prefix)+1] == prefix+"[" && key[len(key)-1] == ']' {
			field := key[len(prefix)+1 : len(key)-1]
			if len(values) > 0 {
				result[field] = values[0]
			}
		}
	}
	return result
}

// queryWindow reads the inclusive from/to dates (YYYY-MM-DD) as a half-open
// time window. The to date covers its whole day.
func queryWindow(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		if from, err = time.Parse(time.DateOnly, s); err != nil {
			return from, to, model.NewBadRequestError("from must be a date (YYYY-MM-DD)")
		}
	}
	if s := q.Get("to"); s != "" {
		if to, err = time.Parse(time.DateOnly, s); err != nil {
			return from, to, model.NewBadRequestError("to must be a date (YYYY-MM-DD)")
		}
		to = to.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, model.NewBadRequestError("from must not be after to")
	}
	return from, to, nil
}

func handleReport(reports *report.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, err := queryWindow(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		categoryID := chi.URLParam(r, "categoryId")
		ctx, span := observability.StartSpan(r.Context(), "report.summarize",
			observability.AttrCategoryID.String(categoryID),
		)
		summary, err := reports.Summarize(ctx, report.Request{
			CategoryID: categoryID,
			Selection:  selectionFromQuery(r),
			From:       from,
			To:         to,
		})
		observability.EndSpanWithError(span, err)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, summary)
	}
}

type submissionPage struct {
	Items    []model.Submission `json:"items"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
}

// handleListSubmissions lists submissions filtered by filter[category],
// filter[user] and filter[office] plus the from/to window. Callers without
// the admin role only see their own submissions.
func handleListSubmissions(submissions *submission.Store, adminRole string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, err := queryWindow(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		filters := queryMap(r, "filter")
		f := submission.Filter{
			CategoryID: filters["category"],
			UserID:     filters["user"],
			Office:     filters["office"],
			From:       from,
			To:         to,
		}
		if rctx := model.RequestContextFrom(r.Context()); rctx != nil && !rctx.HasRole(adminRole) {
			f.UserID = rctx.SubjectID
		}

		items, err := submissions.List(r.Context(), f)
		if err != nil {
			WriteError(w, err)
			return
		}

		page := max(queryInt(r, "page", 1), 1)
		size := queryInt(r, "page_size", defaultPageSize)
		if size <= 0 || size > maxPageSize {
			size = defaultPageSize
		}
		start := min((page-1)*size, len(items))
		end := min(start+size, len(items))
		WriteJSON(w, http.StatusOK, submissionPage{
			Items:    items[start:end],
			Total:    len(items),
			Page:     page,
			PageSize: size,
		})
	}
}

func handleGetSubmission(submissions *submission.Store, adminRole string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := submissions.Get(r.Context(), chi.URLParam(r, "submissionId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		if rctx := model.RequestContextFrom(r.Context()); rctx != nil && !rctx.HasRole(adminRole) && rctx.SubjectID != sub.UserID {
			WriteError(w, model.NewNotFoundError("submission not found"))
			return
		}
		WriteJSON(w, http.StatusOK, sub)
	}
}
