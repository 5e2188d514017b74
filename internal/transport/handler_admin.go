package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/observability"
	"github.com/pitabwire/reportal/model"
)

// handleInvalidateAccess drops the cached offices of one subject.
func handleInvalidateAccess(resolver model.AccessResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resolver.Invalidate(chi.URLParam(r, "subjectId"))
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSyncAccess reloads the access policy and clears every cached grant.
func handleSyncAccess(policy model.AccessPolicy, resolver model.AccessResolver, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := policy.Sync(); err != nil {
			observability.RequestLogger(r.Context(), logger).Error("access policy sync failed", zap.Error(err))
			WriteError(w, model.NewInternalError())
			return
		}
		resolver.Invalidate("")
		w.WriteHeader(http.StatusNoContent)
	}
}
