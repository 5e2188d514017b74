package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/apidoc"
	"github.com/pitabwire/reportal/internal/builder"
	"github.com/pitabwire/reportal/internal/category"
	"github.com/pitabwire/reportal/internal/config"
	"github.com/pitabwire/reportal/internal/formconfig"
	"github.com/pitabwire/reportal/internal/location"
	"github.com/pitabwire/reportal/internal/observability"
	"github.com/pitabwire/reportal/internal/report"
	"github.com/pitabwire/reportal/internal/runtime"
	"github.com/pitabwire/reportal/internal/store"
	"github.com/pitabwire/reportal/internal/submission"
	"github.com/pitabwire/reportal/model"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Authenticate func(http.Handler) http.Handler
	Access       model.AccessResolver
	Policy       model.AccessPolicy

	Categories   *category.Service
	Configs      *formconfig.Store
	Locations    *location.Provider
	LocationDocs store.DocumentStore
	Classifier   *location.Classifier
	Runtime      *runtime.Engine
	Submissions  *submission.Store
	Idempotency  submission.IdempotencyStore
	Reports      *report.Service

	Readiness observability.ReadinessChecks
	APIDoc    *apidoc.Document
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(CORS(cfg.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, "no route for "+r.URL.Path)
	})

	// Public routes, no authentication.
	r.Get("/ui/health", observability.HandleHealth())
	r.Get("/ui/ready", observability.HandleReady(deps.Readiness))
	if deps.APIDoc != nil {
		r.Get("/ui/openapi.json", deps.APIDoc.Handler())
	}
	if cfg.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Observability.Metrics.Path, observability.Handler())
	}

	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	newSession := func() *builder.Session {
		return builder.NewSession(deps.Categories, deps.Configs, deps.Locations, logger)
	}
	guard := &submitGuard{}
	doc := deps.APIDoc
	submits := submitSettings{
		store:  deps.Idempotency,
		ttl:    cfg.Submissions.IdempotencyTTL,
		redact: cfg.Observability.RedactFields,
	}

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(BuildRequestContext(cfg.Identity.ClaimPaths))
		r.Use(ResolveAccess(deps.Access, logger))
		r.Use(HandlerTimeout(cfg.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))

		// Data entry.
		r.Get("/ui/categories", handleListCategories(deps.Categories))
		r.Get("/ui/categories/tree", handleCategoryTree(deps.Categories))
		r.Get("/ui/categories/{categoryId}", handleGetCategory(deps.Categories))
		r.Get("/ui/forms/{categoryId}", handleGetForm(deps.Runtime))
		r.Post("/ui/forms/{categoryId}/submissions", validated(doc, "submitForm", handleSubmitForm(deps.Runtime, guard, submits, deps.Metrics)))
		r.Get("/ui/submissions", handleListSubmissions(deps.Submissions, cfg.Identity.AdminRole))
		r.Get("/ui/submissions/{submissionId}", handleGetSubmission(deps.Submissions, cfg.Identity.AdminRole))
		r.Get("/ui/locations/hierarchy", handleHierarchy(deps.Locations, deps.Metrics))

		// Authoring and administration.
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(cfg.Identity.AdminRole))

			r.Post("/ui/categories", validated(doc, "createCategory", handleCreateCategory(newSession, deps.Metrics)))
			r.Get("/ui/categories/check-id", handleCheckCategoryID(newSession))
			r.Patch("/ui/categories/{categoryId}", validated(doc, "renameCategory", handleRenameCategory(deps.Categories)))
			r.Delete("/ui/categories/{categoryId}", handleDeleteCategory(deps.Categories, deps.Submissions, logger))

			r.Get("/ui/builder/{categoryId}", handleBuilderLoad(newSession))
			r.Put("/ui/builder/{categoryId}", validated(doc, "saveBuilder", handleBuilderSave(newSession, deps.Metrics)))
			r.Get("/ui/builder/{categoryId}/suggestions", handleBuilderSuggestions(newSession))
			r.Post("/ui/builder/preview", validated(doc, "previewForm", handlePreview()))
			r.Get("/ui/configs", handleSearchConfigs(deps.Configs))

			r.Get("/ui/reports/{categoryId}", handleReport(deps.Reports))

			r.Post("/ui/locations/import", handleImportLocations(deps.LocationDocs, deps.Classifier, logger))
			r.Get("/ui/locations/classification", handleClassification(deps.Classifier))
			r.Post("/ui/locations/classification/invalidate", handleInvalidateClassification(deps.Classifier))

			r.Post("/ui/admin/access/sync", handleSyncAccess(deps.Policy, deps.Access, logger))
			r.Post("/ui/admin/access/{subjectId}/invalidate", handleInvalidateAccess(deps.Access))
		})
	})

	return r
}
