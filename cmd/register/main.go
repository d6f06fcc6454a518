package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/oguz-kara/pos-app-sub001/internal/apiclient"
	"github.com/oguz-kara/pos-app-sub001/internal/cache"
	"github.com/oguz-kara/pos-app-sub001/internal/cart"
	"github.com/oguz-kara/pos-app-sub001/internal/checkout"
	"github.com/oguz-kara/pos-app-sub001/internal/config"
	"github.com/oguz-kara/pos-app-sub001/internal/logging"
	"github.com/oguz-kara/pos-app-sub001/internal/money"
	"github.com/oguz-kara/pos-app-sub001/internal/register"
	"github.com/oguz-kara/pos-app-sub001/internal/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	// Logs go to stderr so they do not interleave with the register prompt.
	logger := logging.NewWithWriter(os.Stderr, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	formatter, err := money.NewFormatter(cfg.Currency, cfg.Locale)
	if err != nil {
		logger.Error("money formatter", "error", err)
		os.Exit(1)
	}

	client := apiclient.New(cfg.APIURL, apiclient.WithStoreID(cfg.StoreID), apiclient.WithLogger(logger))
	loginCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	_, err = client.Login(loginCtx, cfg.RegisterUser, cfg.RegisterPassword)
	cancel()
	if err != nil {
		logger.Error("login failed", "api_url", cfg.APIURL, "user", cfg.RegisterUser, "error", err)
		os.Exit(1)
	}

	snapshots, invalidator, closeRedis := buildStores(ctx, cfg, logger)
	if closeRedis != nil {
		defer func() {
			if err := closeRedis(); err != nil {
				logger.Warn("redis close", "error", err)
			}
		}()
	}

	c := cart.New(cart.Options{
		Store:         snapshots,
		Key:           cfg.CartStorageKey,
		FlushInterval: cfg.CartFlushInterval,
		Logger:        logger,
	})
	defer func() {
		if err := c.Close(context.Background()); err != nil {
			logger.Warn("cart close", "error", err)
		}
	}()

	term := newTerminal(os.Stdin, os.Stdout, formatter)
	session := register.NewSession(register.Options{
		Backend:     client,
		Cart:        c,
		Invalidator: invalidator,
		Notifier:    checkout.NotifierFunc(term.notify),
		Policy: retry.Policy{
			Attempts:     cfg.CheckoutAttempts,
			InitialDelay: cfg.CheckoutBackoff,
			Multiplier:   2,
		},
		Logger: logger,
	})
	term.session = session

	if err := term.run(ctx); err != nil {
		logger.Error("register stopped", "error", err)
		os.Exit(1)
	}
}

// buildStores keeps cart snapshots and view invalidation in Redis when it is
// reachable, so a crashed register restores its cart and the backend's cached
// views go stale right after a sale. Without Redis snapshots go to disk.
func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (cart.SnapshotStore, checkout.Invalidator, func() error) {
	if cfg.RedisAddr == "" {
		return fileSnapshots(cfg, logger), nil, nil
	}

	client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	views := cache.NewRedisViewCache(client, cfg.ViewCacheTTL, logger)
	if err := views.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, cart snapshots kept on disk", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return fileSnapshots(cfg, logger), nil, nil
	}
	logger.Info("cart snapshots: redis", "addr", cfg.RedisAddr)
	return cache.NewRedisSnapshotStore(client, cfg.StoreID), views, client.Close
}

// fileSnapshots falls back to process memory only when no directory is usable.
func fileSnapshots(cfg config.Config, logger *slog.Logger) cart.SnapshotStore {
	dir := cfg.CartSnapshotDir
	if dir == "" {
		base, err := cache.DefaultSnapshotDir()
		if err != nil {
			logger.Warn("no cache directory, cart snapshots kept in memory", "error", err)
			return cache.NewMemorySnapshotStore()
		}
		dir = filepath.Join(base, cfg.StoreID)
	}
	store, err := cache.NewFileSnapshotStore(dir)
	if err != nil {
		logger.Warn("cart snapshots kept in memory", "dir", dir, "error", err)
		return cache.NewMemorySnapshotStore()
	}
	logger.Info("cart snapshots: file", "dir", dir)
	return store
}
