package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/feastline/feastline/internal/auth"
	"github.com/feastline/feastline/internal/config"
	"github.com/feastline/feastline/internal/coupon"
	"github.com/feastline/feastline/internal/db"
	"github.com/feastline/feastline/internal/handler"
	"github.com/feastline/feastline/internal/menu"
	"github.com/feastline/feastline/internal/order"
	"github.com/feastline/feastline/internal/pricing"
	"github.com/feastline/feastline/internal/transport"
	"github.com/feastline/feastline/internal/user"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Info().Msg("Starting feastline...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if err := db.RunMigrations(cfg.Postgres, "migrations"); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	database, err := db.New(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	menuRepo := menu.NewPostgresRepository(database.SQLX)
	couponSvc := coupon.NewService(coupon.NewPostgresCatalog(database.SQLX))
	userSvc := user.NewService(user.NewRepository(database.Pool))
	orderSvc := order.NewService(
		order.NewRepository(database.Pool),
		menuRepo,
		couponSvc,
		order.Config{
			Pricing: pricing.Config{
				DeliveryFeeBase: cfg.Pricing.DeliveryFeeBase,
				ServiceFeeRate:  cfg.Pricing.ServiceFeeRate,
				TaxRate:         cfg.Pricing.TaxRate,
				LoyaltyRate:     cfg.Pricing.LoyaltyRate,
			},
			DeliveryETA: cfg.Pricing.DeliveryETA,
		},
	)

	tokens := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	router := transport.NewRouter(
		handler.NewAuthHandler(userSvc, tokens),
		handler.NewMenuHandler(menuRepo),
		handler.NewOrderHandler(orderSvc),
		tokens,
	)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("port", cfg.App.Port).Msg("Could not listen")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown failed")
	}

	database.Close()

	log.Info().Msg("Feastline stopped gracefully.")
}
