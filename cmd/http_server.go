package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/care-payments/internal/admin"
	adminpostgres "github.com/frahmantamala/care-payments/internal/admin/postgres"
	"github.com/frahmantamala/care-payments/internal/auth"
	"github.com/frahmantamala/care-payments/internal/onboarding"
	onboardingpostgres "github.com/frahmantamala/care-payments/internal/onboarding/postgres"
	"github.com/frahmantamala/care-payments/internal/payment"
	paymentpostgres "github.com/frahmantamala/care-payments/internal/payment/postgres"
	"github.com/frahmantamala/care-payments/internal/payout"
	"github.com/frahmantamala/care-payments/internal/refund"
	refundpostgres "github.com/frahmantamala/care-payments/internal/refund/postgres"
	"github.com/frahmantamala/care-payments/internal/transport/rest"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests and processor webhooks`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	deps, err := initializeDependencies(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, buildHandlers(deps), deps.Config.Server.AllowedOrigins, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.Close(ctx)
			os.Exit(1)
		}
	}

	deps.Close(ctx)
	deps.Logger.Info("Server stopped")
}

func buildHandlers(deps *Dependencies) rest.Handlers {
	cfg := deps.Config
	log := deps.Logger

	checker := auth.NewPermissionChecker()
	authService := auth.NewService(
		auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.AccessTokenTTL),
		checker,
	)

	paymentService := payment.NewPaymentService(
		paymentpostgres.NewPaymentRepository(deps.Gorm), deps.Gateway, deps.Bus, cfg.Processor.Currency, log)
	refundService := refund.NewRefundService(
		refundpostgres.NewRefundRepository(deps.Gorm), deps.Gateway, deps.Bus, log)
	tracker := onboarding.NewTracker(
		onboardingpostgres.NewAccountRepository(deps.Gorm), deps.Gateway, deps.Bus,
		onboarding.LinkConfig{RefreshURL: cfg.Processor.OnboardingRefresh, ReturnURL: cfg.Processor.OnboardingReturn},
		log)
	facade := admin.NewFacade(
		adminpostgres.NewHistoryRepository(deps.Gorm), adminpostgres.NewStatsRepository(deps.DB),
		deps.Gateway, cfg.Processor.Currency, log)

	checks := map[string]rest.Check{
		"postgres": func(ctx context.Context) error { return deps.DB.PingContext(ctx) },
	}
	if deps.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() }
	}

	return rest.Handlers{
		Auth:       auth.NewHandler(authService, log),
		RBAC:       auth.NewRBACAuthorization(checker, log),
		Payment:    payment.NewHandler(paymentService, log),
		Payout:     payout.NewHandler(deps.PayoutEngine(), deps.Location, log),
		Refund:     refund.NewHandler(refundService, log),
		Onboarding: onboarding.NewHandler(tracker, log),
		Webhook:    onboarding.NewWebhookHandler(tracker, cfg.Processor.WebhookSecret, log),
		Admin:      admin.NewHandler(facade, deps.Location, log),
		Health:     rest.NewHealthHandler(checks),
	}
}
