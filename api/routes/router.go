package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rentaride/rentaride-backend/api/controllers"
	"github.com/rentaride/rentaride-backend/api/middleware"
	"github.com/rentaride/rentaride-backend/internal/bookings"
	"github.com/rentaride/rentaride-backend/internal/payments"
	"github.com/rentaride/rentaride-backend/pkg/config"
	"github.com/rentaride/rentaride-backend/pkg/db"
	"github.com/rentaride/rentaride-backend/pkg/logger"
	"github.com/rentaride/rentaride-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs. The router owns no
// business logic; it only wires controllers to paths.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    redis.Pinger
	Payments payments.Service
	Bookings bookings.Service

	// Gatherer backs the /metrics endpoint. Optional; nil disables it.
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.RequestID(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.CORS())

	r.Get("/health/live", controllers.HealthLive(deps.Config))
	r.Get("/health/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.DB, deps.Redis))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/payment", func(r chi.Router) {
		r.Post("/initiate", controllers.PaymentInitiate(deps.Payments, deps.Logger))
		r.Get("/success", controllers.PaymentSuccess(deps.Payments, deps.Config.Frontend, deps.Logger))
		r.Get("/failure", controllers.PaymentFailure(deps.Payments, deps.Config.Frontend, deps.Logger))
		r.Get("/status/{transactionUUID}", controllers.PaymentStatus(deps.Payments, deps.Logger))
		r.Get("/booking/{transactionID}", controllers.BookingByTransaction(deps.Bookings, deps.Logger))
	})

	r.Route("/booking", func(r chi.Router) {
		r.Post("/create-from-transaction", controllers.BookingCreateFromTransaction(deps.Bookings, deps.Logger))
		r.Get("/user/{userID}", controllers.BookingsByUser(deps.Bookings, deps.Logger))
		r.Get("/{reference}", controllers.BookingByReference(deps.Bookings, deps.Logger))
		r.Post("/{reference}/cancel-request", controllers.BookingCancelRequest(deps.Bookings, deps.Logger))
		r.Post("/{reference}/cancel-request/decision", controllers.BookingCancelDecision(deps.Bookings, deps.Logger))
	})

	return r
}
