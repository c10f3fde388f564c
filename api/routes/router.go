package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atlaspay-io/atlaspay-backend/api/controllers"
	"github.com/atlaspay-io/atlaspay-backend/api/middleware"
	"github.com/atlaspay-io/atlaspay-backend/internal/chains"
	"github.com/atlaspay-io/atlaspay-backend/internal/chains/simnet"
	"github.com/atlaspay-io/atlaspay-backend/internal/invoices"
	"github.com/atlaspay-io/atlaspay-backend/internal/pipeline"
	"github.com/atlaspay-io/atlaspay-backend/pkg/config"
	"github.com/atlaspay-io/atlaspay-backend/pkg/db"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
	"github.com/atlaspay-io/atlaspay-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	idemStore redis.IdempotencyStore,
	businessRepo invoices.BusinessRepository,
	invoiceRepo invoices.Repository,
	invoiceService invoices.Service,
	pipelineService pipeline.Service,
	registry *chains.Registry,
	simStore *simnet.Store,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/businesses", func(r chi.Router) {
			r.Post("/", controllers.BusinessCreate(businessRepo, logg))
			r.Get("/{businessId}", controllers.BusinessGet(businessRepo, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", controllers.InvoiceCreate(invoiceService, logg))
			r.Get("/", controllers.InvoiceList(invoiceRepo, logg))
			r.Route("/{invoiceId}", func(r chi.Router) {
				r.Get("/", controllers.InvoiceGet(invoiceService, logg))
				r.Get("/summary", controllers.InvoiceSummary(pipelineService, logg))
				r.Post("/issue", controllers.InvoiceIssue(invoiceService, logg))
				r.Post("/check-payment", controllers.InvoiceCheckPayment(pipelineService, logg))
				// The simulated networks only exist outside production.
				if !cfg.App.IsProd() {
					r.Post("/simulate-payment", controllers.InvoiceSimulatePayment(invoiceService, registry, simStore, logg))
				}
			})
		})
	})

	return r
}
