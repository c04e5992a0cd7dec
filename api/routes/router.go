package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trocado-app/trocado-backend/api/controllers"
	"github.com/trocado-app/trocado-backend/api/middleware"
	"github.com/trocado-app/trocado-backend/internal/ledger"
	"github.com/trocado-app/trocado-backend/internal/payments"
	"github.com/trocado-app/trocado-backend/internal/reservations"
	"github.com/trocado-app/trocado-backend/internal/waitlist"
	"github.com/trocado-app/trocado-backend/pkg/config"
	"github.com/trocado-app/trocado-backend/pkg/db"
	"github.com/trocado-app/trocado-backend/pkg/logger"
	"github.com/trocado-app/trocado-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	ledgerService ledger.Service,
	reservationService reservations.Service,
	waitlistService waitlist.Service,
	paymentsService payments.Service,
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

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", controllers.PaymentsWebhook(paymentsService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", controllers.WalletBalance(ledgerService, logg))
			r.Get("/history", controllers.WalletHistory(ledgerService, logg))
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", controllers.ReservationCreate(reservationService, logg))
			r.Get("/{reservationId}", controllers.ReservationGet(reservationService, logg))
			r.Post("/{reservationId}/cancel", controllers.ReservationCancel(reservationService, logg))
			r.Post("/{reservationId}/confirm", controllers.ReservationConfirm(reservationService, logg))
		})

		r.Route("/items/{itemId}/waitlist", func(r chi.Router) {
			r.Post("/", controllers.WaitlistJoin(waitlistService, logg))
			r.Get("/position", controllers.WaitlistPosition(waitlistService, logg))
			r.Delete("/", controllers.WaitlistWithdraw(waitlistService, logg))
		})
	})

	return r
}
