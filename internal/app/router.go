package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/earthrod-erp/earthrod-erp/internal/allocation"
	"github.com/earthrod-erp/earthrod-erp/internal/catalog"
	"github.com/earthrod-erp/earthrod-erp/internal/jobwork"
	"github.com/earthrod-erp/earthrod-erp/internal/observability"
	"github.com/earthrod-erp/earthrod-erp/internal/rawmaterial"
	"github.com/earthrod-erp/earthrod-erp/internal/reporting"
	"github.com/earthrod-erp/earthrod-erp/internal/sales"
	"github.com/earthrod-erp/earthrod-erp/internal/shipment"
	"github.com/earthrod-erp/earthrod-erp/internal/stageledger"
	"github.com/earthrod-erp/earthrod-erp/jobs"
)

// RouterParams aggregates everything the HTTP surface mounts.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	Metrics     *observability.Metrics
	Catalog     *catalog.Handler
	RawMaterial *rawmaterial.Handler
	StageLedger *stageledger.Handler
	Allocation  *allocation.Handler
	Sales       *sales.Handler
	Shipment    *shipment.Handler
	Jobwork     *jobwork.Handler
	Reporting   *reporting.Handler
	Jobs        *jobs.Handler
}

// NewRouter assembles the chi router with the full middleware chain and
// every module's routes.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: p.Logger, Config: p.Config, Metrics: p.Metrics}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	if p.Catalog != nil {
		r.Route("/catalog", p.Catalog.MountRoutes)
	}
	if p.RawMaterial != nil {
		p.RawMaterial.MountRoutes(r)
	}
	if p.StageLedger != nil {
		r.Route("/production", p.StageLedger.MountRoutes)
	}
	if p.Allocation != nil {
		p.Allocation.MountRoutes(r)
	}
	if p.Sales != nil {
		r.Route("/sales", p.Sales.MountRoutes)
	}
	if p.Shipment != nil {
		p.Shipment.MountRoutes(r)
	}
	if p.Jobwork != nil {
		p.Jobwork.MountRoutes(r)
	}
	if p.Reporting != nil {
		p.Reporting.MountRoutes(r)
	}
	if p.Jobs != nil {
		r.Route("/jobs", p.Jobs.MountRoutes)
	}
	return r
}
