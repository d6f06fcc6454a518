package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oguz-kara/pos-app-sub001/internal/cache"
	"github.com/oguz-kara/pos-app-sub001/internal/config"
	"github.com/oguz-kara/pos-app-sub001/internal/logging"
)

func TestBuildStores(t *testing.T) {
	logger := logging.NewWithWriter(io.Discard, "text")
	srv := miniredis.RunT(t)

	cases := []struct {
		name      string
		redisAddr string
		wantFile  bool
	}{
		{name: "no redis", wantFile: true},
		{name: "redis down", redisAddr: "127.0.0.1:1", wantFile: true},
		{name: "redis up", redisAddr: srv.Addr()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Config{
				RedisAddr:       tc.redisAddr,
				StoreID:         "main-store",
				ViewCacheTTL:    time.Minute,
				CartSnapshotDir: t.TempDir(),
			}
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			snapshots, invalidator, closeFn := buildStores(ctx, cfg, logger)
			if closeFn != nil {
				t.Cleanup(func() { _ = closeFn() })
			}

			if tc.wantFile {
				assert.IsType(t, &cache.FileSnapshotStore{}, snapshots)
				assert.Nil(t, invalidator)
				return
			}
			assert.IsType(t, &cache.RedisSnapshotStore{}, snapshots)
			require.NotNil(t, invalidator)
		})
	}
}
