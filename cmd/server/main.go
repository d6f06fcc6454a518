package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oguz-kara/pos-app-sub001/internal/cache"
	"github.com/oguz-kara/pos-app-sub001/internal/config"
	"github.com/oguz-kara/pos-app-sub001/internal/httpapi"
	"github.com/oguz-kara/pos-app-sub001/internal/logging"
	"github.com/oguz-kara/pos-app-sub001/internal/search"
	"github.com/oguz-kara/pos-app-sub001/internal/service"
	"github.com/oguz-kara/pos-app-sub001/internal/store"
	"github.com/oguz-kara/pos-app-sub001/internal/store/memory"
	pgstore "github.com/oguz-kara/pos-app-sub001/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogFormat)
	slog.SetDefault(logger)

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Error("invalid security configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	repo, closeRepo, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("repository unavailable", "error", err)
		os.Exit(1)
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	views, closeViews := buildViewCache(ctx, cfg, logger)
	if closeViews != nil {
		closers = append(closers, closeViews)
	}

	svc := service.New(repo, service.Options{
		Views:          views,
		Search:         search.NewEngine(views, search.DefaultLimit, logger),
		DefaultStoreID: cfg.StoreID,
		Logger:         logger,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, cfg.ManagerPIN, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("pos backend listening", "addr", cfg.Address(), "store_id", cfg.StoreID)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", "error", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warn("close error", "error", err)
		}
	}

	logger.Info("server stopped")
}

// buildRepository opens Postgres when DATABASE_URL is set and never falls back
// to memory in that case.
func buildRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("postgres migrate: %w", err)
	}
	logger.Info("repository: postgres")
	return pg, pg.Close, nil
}

// buildViewCache prefers Redis and degrades to a process-local cache when
// Redis is not configured or not reachable.
func buildViewCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (cache.ViewCache, func() error) {
	if cfg.RedisAddr == "" {
		logger.Info("view cache: memory")
		return cache.NewMemoryViewCache(cfg.ViewCacheTTL), nil
	}

	redisCache := cache.NewRedisViewCache(cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.ViewCacheTTL, logger)
	if err := redisCache.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, using memory view cache", "addr", cfg.RedisAddr, "error", err)
		_ = redisCache.Close()
		return cache.NewMemoryViewCache(cfg.ViewCacheTTL), nil
	}
	logger.Info("view cache: redis", "addr", cfg.RedisAddr)
	return redisCache, redisCache.Close
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects repeated digits, straight runs and common PINs.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"121212": true, "112233": true, "123123": true, "159753": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
