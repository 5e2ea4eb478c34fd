package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	apperrors "github.com/itrc/evaluation-workflow/internal/domain/errors"
)

// Dependencies holds everything the HTTP surface needs. Optional members may
// be nil.
type Dependencies struct {
	Logger *slog.Logger
	Auth   *Authenticator

	Catalog         CatalogReader
	Applications    ApplicationService
	SecurityTargets SecurityTargetService
	Evaluations     EvaluationService
	Reports         ReportService

	Health      *HealthHandler
	Hub         *EventHub
	Metrics     *HTTPMetrics
	Gatherer    prometheus.Gatherer
	RateLimiter *RateLimiter
	Contract    *ContractValidator
}

// NewRouter builds the chi router with the middleware chain and all routes.
func NewRouter(deps Dependencies) http.Handler {
	base := NewBaseHandler(deps.Logger)

	r := chi.NewRouter()
	r.Use(
		RecoveryMiddleware(deps.Logger),
		RequestIDMiddleware(),
		TracingMiddleware(otel.Tracer("api.rest")),
	)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	r.Use(RequestLoggingMiddleware(deps.Logger))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware(base))
	}
	if deps.Contract != nil {
		r.Use(deps.Contract.Middleware(base, deps.Logger))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		base.writeError(w, r, apperrors.NewNotFoundError("route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		err := apperrors.NewValidationError("METHOD_NOT_ALLOWED", r.Method+" is not allowed on "+r.URL.Path)
		err.StatusCode = http.StatusMethodNotAllowed
		base.writeError(w, r, err)
	})

	if deps.Health != nil {
		r.Get("/health", deps.Health.live)
		r.Get("/ready", deps.Health.ready)
	}
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	if deps.Hub != nil {
		r.Handle("/ws", deps.Hub)
	}

	catalog := NewCatalogHandler(base, deps.Catalog)
	apps := NewApplicationHandler(base, deps.Applications, deps.SecurityTargets, deps.Evaluations)
	evals := NewEvaluationHandler(base, deps.Evaluations)
	reports := NewReportHandler(base, deps.Reports)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.Auth.Middleware(base))

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/product-types", catalog.listProductTypes)
			r.Get("/product-types/{id}/classes", catalog.listClasses)
			r.Get("/help/{classID}", catalog.getHelp)
		})

		r.Route("/applications", func(r chi.Router) {
			r.Post("/", apps.create)
			r.Get("/", apps.list)
			r.Get("/stats", apps.stats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", apps.get)
				r.Put("/", apps.update)
				r.Get("/security-target", apps.getSecurityTarget)
				r.Put("/security-target", apps.updateSecurityTarget)
				r.Post("/security-target/selections", apps.upsertSelection)
				r.Post("/security-target/submit", apps.submitSecurityTarget)
				r.Get("/evaluation", apps.getEvaluation)
			})
		})

		r.Delete("/selections/{id}", apps.removeSelection)
		r.Post("/selections/{id}/evaluation", evals.recordClassEvaluation)

		r.Route("/evaluations", func(r chi.Router) {
			r.Post("/", evals.create)
			r.Get("/", evals.list)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", evals.get)
				r.Patch("/", evals.update)
				r.Post("/assign", evals.assign)
				r.Post("/complete", evals.complete)
				r.Get("/score", evals.score)
				r.Post("/reports", reports.generate)
			})
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", reports.list)
			r.Get("/pending-review", reports.pending)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", reports.get)
				r.Post("/submit", reports.submit)
				r.Post("/review", reports.review)
				r.Get("/download", reports.download)
			})
		})
	})

	return r
}
