package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lromero-dev/stockroom-backend/api/controllers"
	"github.com/lromero-dev/stockroom-backend/api/middleware"
	"github.com/lromero-dev/stockroom-backend/internal/catalog"
	"github.com/lromero-dev/stockroom-backend/internal/reports"
	"github.com/lromero-dev/stockroom-backend/internal/sales"
	"github.com/lromero-dev/stockroom-backend/internal/stockledger"
	"github.com/lromero-dev/stockroom-backend/pkg/config"
	"github.com/lromero-dev/stockroom-backend/pkg/db"
	"github.com/lromero-dev/stockroom-backend/pkg/logger"
	"github.com/lromero-dev/stockroom-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	catalogService catalog.Service,
	ledgerService stockledger.Service,
	salesService sales.Service,
	reportsService reports.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Post("/", controllers.CreateProduct(catalogService, logg))
		r.Get("/", controllers.ListProducts(catalogService, logg))
		r.Get("/{productID}", controllers.GetProduct(catalogService, logg))
		r.Patch("/{productID}", controllers.UpdateProduct(catalogService, logg))
		r.Delete("/{productID}", controllers.ArchiveProduct(catalogService, logg))
	})

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Get("/", controllers.InventorySummary(reportsService, logg))
		r.Get("/stale", controllers.StaleInventory(ledgerService, logg))
		r.Post("/{productID}/add", controllers.AddStock(ledgerService, logg))
		r.Post("/{productID}/remove", controllers.RemoveStock(ledgerService, logg))
		r.Get("/{productID}/availability", controllers.CheckAvailability(ledgerService, logg))
		r.Get("/{productID}/movements", controllers.ListMovements(ledgerService, logg))
	})

	r.Route("/api/v1/sales", func(r chi.Router) {
		r.Post("/", controllers.CreateSale(salesService, logg))
		r.Get("/", controllers.ListSales(salesService, logg))
		r.Get("/{saleID}", controllers.GetSale(salesService, logg))
		r.Get("/code/{code}", controllers.GetSaleByCode(salesService, logg))
		r.Post("/{saleID}/cancel", controllers.CancelSale(salesService, logg))
	})

	r.Route("/api/v1/reports", func(r chi.Router) {
		r.Get("/sales", controllers.SalesReport(reportsService, logg))
	})

	return r
}
