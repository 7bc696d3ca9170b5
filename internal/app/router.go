package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gastrodesk/gastrodesk/internal/bills"
	"github.com/gastrodesk/gastrodesk/internal/catalog"
	"github.com/gastrodesk/gastrodesk/internal/disputes"
	"github.com/gastrodesk/gastrodesk/internal/dlc"
	"github.com/gastrodesk/gastrodesk/internal/ledger"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	BillHandler    *bills.Handler
	CatalogHandler *catalog.Handler
	LedgerHandler  *ledger.Handler
	DisputeHandler *disputes.Handler
	DLCHandler     *dlc.Handler
	Pool           *pgxpool.Pool
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/bills", func(rr chi.Router) {
			params.BillHandler.MountRoutes(rr)
		})
		api.Route("/products", func(rr chi.Router) {
			params.CatalogHandler.MountRoutes(rr)
			params.LedgerHandler.MountRoutes(rr)
		})
		api.Route("/disputes", func(rr chi.Router) {
			params.DisputeHandler.MountRoutes(rr)
		})
		api.Route("/dlc", func(rr chi.Router) {
			params.DLCHandler.MountRoutes(rr)
		})
	})

	return r
}
