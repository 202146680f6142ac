// cmd/storefront/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/imi-storefront/internal/auth"
	"github.com/javajoker/imi-storefront/internal/config"
	"github.com/javajoker/imi-storefront/internal/database"
	"github.com/javajoker/imi-storefront/internal/i18n"
	"github.com/javajoker/imi-storefront/internal/remote"
	"github.com/javajoker/imi-storefront/internal/router"
	"github.com/javajoker/imi-storefront/internal/services"
	"github.com/javajoker/imi-storefront/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := logrus.New()
	if cfg.Environment == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		logger.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Open device storage
	store, db, err := openStorage(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open storage")
	}
	if db != nil {
		defer database.Close(db)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens := auth.NewStorageTokenSource(store, cfg.Storage.StorageKey(cfg.Auth.TokenKey))
	decoder := auth.NewDecoder(cfg.Auth.JWTSecret)

	observerCfg := auth.ObserverConfig{
		Source:       tokens,
		Decoder:      decoder,
		PollInterval: time.Duration(cfg.Auth.PollInterval) * time.Second,
		WatchKey:     tokens.Key(),
		Logger:       logger,
	}
	if watcher, ok := store.(storage.Watcher); ok {
		observerCfg.Watcher = watcher
	}
	observer, err := auth.NewObserver(observerCfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create session observer")
	}

	client, err := remote.NewClient(remote.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: time.Duration(cfg.API.Timeout) * time.Second,
		Tokens:  tokens,
		Logger:  logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create storefront API client")
	}

	policy, err := services.ParseMergePolicy(cfg.Cart.MergePolicy)
	if err != nil {
		logger.WithError(err).Fatal("Invalid cart merge policy")
	}

	local := services.NewLocalCartStore(store, cfg.Storage.StorageKey("cart"), logger)
	cartService, err := services.NewCartService(services.CartServiceConfig{
		Local:      local,
		Remote:     client,
		Reconciler: services.NewReconciler(local, client, policy, logger),
		Observer:   observer,
		Logger:     logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create cart service")
	}
	defer cartService.Close()

	// The first check reports an already signed-in session as a login.
	go func() {
		if err := observer.Run(ctx); err != nil {
			logger.WithError(err).Error("Session observer stopped")
		}
	}()

	// Initialize router
	r := router.Initialize(cfg, router.Dependencies{
		CartService: cartService,
		Observer:    observer,
		Tokens:      tokens,
		Decoder:     decoder,
		Logger:      logger,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    srv.Addr,
			"storage": cfg.Storage.Driver,
			"api":     cfg.API.BaseURL,
			"policy":  policy,
		}).Info("Starting storefront cart server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")
	cancel()

	// Create a deadline for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// openStorage returns the device storage for the configured driver. The
// database handle is non-nil only for the postgres driver.
func openStorage(cfg *config.Config, logger logrus.FieldLogger) (storage.Storage, *gorm.DB, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		return storage.NewMemoryStorage(), nil, nil
	case config.StorageDriverPostgres:
		db, err := database.Initialize(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(db); err != nil {
			database.Close(db)
			return nil, nil, err
		}
		return storage.NewGormStorage(db), db, nil
	default:
		store, err := storage.NewFileStorage(cfg.Storage.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}
