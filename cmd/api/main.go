package main

import (
	"context"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/trocado-app/trocado-backend/api/routes"
	"github.com/trocado-app/trocado-backend/internal/escrow"
	"github.com/trocado-app/trocado-backend/internal/ledger"
	"github.com/trocado-app/trocado-backend/internal/payments"
	"github.com/trocado-app/trocado-backend/internal/reservations"
	"github.com/trocado-app/trocado-backend/internal/waitlist"
	"github.com/trocado-app/trocado-backend/pkg/config"
	"github.com/trocado-app/trocado-backend/pkg/db"
	"github.com/trocado-app/trocado-backend/pkg/logger"
	"github.com/trocado-app/trocado-backend/pkg/migrate"
	"github.com/trocado-app/trocado-backend/pkg/outbox"
	"github.com/trocado-app/trocado-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	feeAccountID, err := uuid.Parse(cfg.Engine.FeeAccountID)
	if err != nil {
		logg.Error(context.Background(), "invalid fee account id", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	escrowService, err := escrow.NewService(ledgerService, escrow.Config{
		FeeBps:       cfg.Engine.FeeBps,
		FeeAccountID: feeAccountID,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create escrow service", err)
		os.Exit(1)
	}

	waitlistService, err := waitlist.NewService(waitlist.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create waitlist service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	reservationService, err := reservations.NewService(reservations.ServiceParams{
		DB:       dbClient,
		Repo:     reservations.NewRepository(dbClient.DB()),
		Ledger:   ledgerService,
		Escrow:   escrowService,
		Waitlist: waitlistService,
		Outbox:   outboxService,
		Logger:   logg,
		TTL:      cfg.Engine.ReservationTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		DB:          dbClient,
		Repo:        payments.NewRepository(dbClient.DB()),
		Ledger:      ledgerService,
		Outbox:      outboxService,
		Idempotency: redisClient,
		Config:      cfg.Payments,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, ledgerService, reservationService, waitlistService, paymentsService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
