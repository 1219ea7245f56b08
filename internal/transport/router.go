package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shaheenweb/portal/internal/cms"
	"github.com/shaheenweb/portal/internal/config"
	"github.com/shaheenweb/portal/internal/form"
	"github.com/shaheenweb/portal/internal/observability"
	"github.com/shaheenweb/portal/internal/search"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	CMS      *cms.Client
	Search   *search.Aggregator
	Sessions *form.SessionStore
	Ready    observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// request-scoped middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	// Operational routes.
	r.Get("/healthz", observability.HandleHealth())
	r.Get("/readyz", observability.HandleReady(deps.Ready))
	if deps.Config.Observability.Metrics.Enabled {
		path := deps.Config.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, observability.Handler())
	}

	// API routes — traced, logged, measured, and deadline-bounded.
	r.Group(func(r chi.Router) {
		r.Use(observability.TracingMiddleware)
		r.Use(HandlerTimeout(deps.Config.Server.WriteTimeout))
		r.Use(RequestLogging(logger))
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}

		r.Get("/api/search", handleSearchGet(deps.Search, deps.Metrics))
		r.Post("/api/search", handleSearchPost(deps.Search, deps.Metrics))

		r.Get("/api/pages/{slug}", handleGetPage(deps.CMS))

		r.Get("/api/forms/{documentId}", handleGetForm(deps.CMS))
		r.Post("/api/forms/{documentId}/sessions", handleCreateSession(deps.CMS, deps.Sessions))

		r.Route("/api/sessions/{sessionId}", func(r chi.Router) {
			r.Get("/", handleGetSession(deps.Sessions))
			r.Post("/values", handleSetValues(deps.Sessions))
			r.Post("/next", handleNext(deps.Sessions, deps.Metrics))
			r.Post("/prev", handlePrev(deps.Sessions, deps.Metrics))
			r.Post("/goto", handleGoto(deps.Sessions, deps.Metrics))
			r.Post("/files/{fieldId}", handleUploadFiles(deps.Sessions, deps.Config.Server.MaxUploadBytes, deps.Metrics))
			r.Post("/submit", handleSubmit(deps.Sessions, deps.Metrics))
		})
	})

	return r
}
