package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/category"
	"github.com/pitabwire/reportal/internal/observability"
	"github.com/pitabwire/reportal/internal/submission"
	"github.com/pitabwire/reportal/model"
)

func handleListCategories(categories *category.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nodes, err := categories.List(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": nodes})
	}
}

func handleCategoryTree(categories *category.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tree, err := categories.Tree(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"roots": tree.Nested()})
	}
}

func handleGetCategory(categories *category.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		node, err := categories.Get(r.Context(), chi.URLParam(r, "categoryId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, node)
	}
}

func handleRenameCategory(categories *category.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		node, err := categories.Rename(r.Context(), chi.URLParam(r, "categoryId"), req.Title)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, node)
	}
}

// handleDeleteCategory removes the category, its descendants, their
// configurations and their submissions.
func handleDeleteCategory(categories *category.Service, submissions *submission.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := categories.DeleteSubtree(r.Context(), chi.URLParam(r, "categoryId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		removed := 0
		if submissions != nil && len(deleted) > 0 {
			removed, err = submissions.DeleteCategory(r.Context(), deleted...)
			if err != nil {
				observability.RequestLogger(r.Context(), logger).Warn("submissions left behind after subtree delete",
					zap.Strings("category_ids", deleted),
					zap.Error(err),
				)
			}
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"deleted":            deleted,
			"submissionsRemoved": removed,
		})
	}
}
