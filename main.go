package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medzoom/accounts-be/internal/api"
	"github.com/medzoom/accounts-be/internal/auth"
	"github.com/medzoom/accounts-be/internal/config"
	"github.com/medzoom/accounts-be/internal/database"
	"github.com/medzoom/accounts-be/internal/logger"
	"github.com/medzoom/accounts-be/internal/mailer"
	"github.com/medzoom/accounts-be/internal/otp"
	"github.com/medzoom/accounts-be/internal/services"
	"github.com/medzoom/accounts-be/internal/store"
	"github.com/rs/zerolog/log"
)

func main() {
	logger.Init()

	// Load configuration. Fails fast when the signing secret is missing.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up the mail transport
	var mail mailer.Mailer
	if cfg.SMTP.Host != "" {
		mail = mailer.NewSMTP(cfg.SMTP)
	} else {
		log.Warn().Msg("No SMTP host configured, OTP mail will be logged instead of sent")
		mail = mailer.LogMailer{}
	}

	// Set up services
	registry := otp.NewRegistry()
	tokens := auth.NewTokens(cfg.JWTSecret)
	accountService := services.NewAccountService(store.NewSQLite(db), mail, registry, tokens)

	// Set up and run the background OTP pruner
	pruner, err := otp.NewPruner(registry, cfg.OTPPruneSchedule)
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.OTPPruneSchedule).Msg("Invalid OTP prune schedule")
	}
	pruner.Start()

	// Set up router
	router := api.NewRouter(accountService)

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	pruner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
