package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/motium/motium-sync/internal/config"
	"github.com/motium/motium-sync/internal/database"
	"github.com/motium/motium-sync/internal/handlers"
	"github.com/motium/motium-sync/internal/logger"
	"github.com/motium/motium-sync/internal/remote"
	"github.com/motium/motium-sync/internal/repository"
	"github.com/motium/motium-sync/internal/service"
	"github.com/motium/motium-sync/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logg := logger.New("[server] ", cfg.LogFile)

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	logg.Println("Database connected successfully")

	// Run migrations
	logg.Println("Running database migrations...")
	if err := database.RunMigrations(db, "migrations"); err != nil {
		return err
	}
	logg.Println("Migrations completed successfully")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	licenseRepo := repository.NewLicenseRepository(db)
	tenantRepo := repository.NewProAccountRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	store := remote.NewGormStore(db)

	// Initialize services
	licenseSvc := service.NewLicenseService(userRepo, licenseRepo, tenantRepo, store, logg)
	processor := webhook.New(eventRepo, paymentRepo, userRepo, tenantRepo, licenseRepo, licenseSvc, logg)

	// HTTP surface
	router := gin.Default()
	handlers.New(processor, licenseSvc, store, logg).Register(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		logg.Printf("Listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logg.Println("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logg.Printf("Forced shutdown: %v", err)
		}

		logg.Println("Application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}
