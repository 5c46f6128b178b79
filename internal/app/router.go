package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/auth"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/catalog"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/forecast"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/ledger"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/observability"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shipments"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/users"
	"github.com/warehouse-wrangler/warehouse-wrangler/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthHandler      *auth.Handler
	AuthMiddleware   auth.Middleware
	CatalogHandler   *catalog.Handler
	LedgerHandler    *ledger.Handler
	ShipmentsHandler *shipments.Handler
	ForecastHandler  *forecast.Handler
	UsersHandler     *users.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Wrangler defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.RequireAuth)
			params.AuthHandler.MountProtectedRoutes(r)
		})
	})

	// Everything below needs a valid bearer token.
	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.RequireAuth)

		r.Route("/products", func(r chi.Router) {
			params.CatalogHandler.MountRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(params.AuthMiddleware.RequireAdmin)
				params.CatalogHandler.MountAdminRoutes(r)
			})
		})

		r.Route("/cartons", params.LedgerHandler.MountRoutes)
		r.Route("/movements", params.LedgerHandler.MountMovementRoutes)
		r.Route("/imports", params.LedgerHandler.MountImportRoutes)
		r.Route("/shipments", params.ShipmentsHandler.MountRoutes)
		r.Route("/dashboard", func(r chi.Router) {
			// The coverage computation touches every product; keep bursts out.
			r.Use(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
			params.ForecastHandler.MountDashboardRoutes(r)
		})
		r.Route("/planned-stock", params.ForecastHandler.MountPlannedRoutes)

		r.Route("/users", func(r chi.Router) {
			r.Use(params.AuthMiddleware.RequireAdmin)
			params.UsersHandler.MountRoutes(r)
		})

		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.AuthMiddleware.RequireAdmin)
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
