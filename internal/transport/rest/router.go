package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/care-payments/internal/admin"
	"github.com/frahmantamala/care-payments/internal/auth"
	"github.com/frahmantamala/care-payments/internal/onboarding"
	"github.com/frahmantamala/care-payments/internal/payment"
	"github.com/frahmantamala/care-payments/internal/payout"
	"github.com/frahmantamala/care-payments/internal/refund"
	"github.com/frahmantamala/care-payments/internal/transport/middleware"
	"github.com/frahmantamala/care-payments/internal/transport/swagger"
)

// Handlers groups everything the router mounts. Nil handlers leave their routes unmounted.
type Handlers struct {
	Auth       *auth.Handler
	RBAC       *auth.RBACAuthorization
	Payment    *payment.Handler
	Payout     *payout.Handler
	Refund     *refund.Handler
	Onboarding *onboarding.Handler
	Webhook    *onboarding.WebhookHandler
	Admin      *admin.Handler
	Health     *HealthHandler
}

// OpenAPIPath is where the served API document is read from.
var OpenAPIPath = "./api/openapi.yml"

func RegisterAllRoutes(router *chi.Mux, h Handlers, allowedOrigins string, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.CORS(allowedOrigins))

	router.Get(swagger.SpecURL, func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, OpenAPIPath)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.healthCheckHandler)
			r.Get("/ping", h.Health.pingHandler)
		}

		// Authenticated by the processor signature, not a bearer token.
		if h.Webhook != nil {
			r.Post("/webhooks/processor", h.Webhook.HandleProcessorEvent)
		}

		if h.Auth == nil {
			return
		}
		rbac := h.RBAC
		if rbac == nil {
			rbac = auth.NewRBACAuthorization(nil, logger)
		}

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/auth/me", h.Auth.Me)

			if h.Payment != nil {
				pr.With(rbac.Require(auth.PermissionChargeBookings)).
					Post("/bookings/{id}/charge", h.Payment.ChargeBooking)
			}
			if h.Payout != nil {
				pr.With(rbac.Require(auth.PermissionRunPayouts)).
					Post("/payouts/run", h.Payout.RunPayouts)
			}
			if h.Refund != nil {
				pr.With(rbac.Require(auth.PermissionRefundPayments)).
					Post("/refunds", h.Refund.CreateRefund)
			}
			if h.Admin != nil {
				pr.With(rbac.RequireClientAccess("id")).
					Get("/clients/{id}/payments", h.Admin.PaymentHistory)
				pr.With(rbac.RequireWorkerAccess("id")).
					Get("/workers/{id}/payouts", h.Admin.PayoutHistory)
				pr.With(rbac.Require(auth.PermissionViewStats)).
					Get("/admin/stats", h.Admin.DashboardStats)
			}
			if h.Onboarding != nil {
				pr.Route("/workers/{id}/connect", func(cr chi.Router) {
					cr.Use(rbac.RequireWorkerAccess("id"))
					cr.Get("/status", h.Onboarding.GetStatus)
					cr.Post("/onboarding-link", h.Onboarding.CreateOnboardingLink)
				})
			}
		})
	})
}
