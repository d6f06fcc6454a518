package cache

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNoLoader = errors.New("cache: loader required")

// Loader produces a fresh value for a view when the cache misses.
type Loader func(ctx context.Context) (any, error)

// ViewCache caches JSON-encodable read models grouped by view name. Invalidate
// makes every cached entry of the named views stale.
type ViewCache interface {
	FetchJSON(ctx context.Context, view string, key string, dest any, loader Loader) error
	Invalidate(ctx context.Context, views ...string) error
}

type NoopViewCache struct{}

func (NoopViewCache) FetchJSON(ctx context.Context, _ string, _ string, dest any, loader Loader) error {
	if loader == nil {
		return ErrNoLoader
	}
	raw, err := load(ctx, loader)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (NoopViewCache) Invalidate(_ context.Context, _ ...string) error {
	return nil
}

func load(ctx context.Context, loader Loader) ([]byte, error) {
	value, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(value)
}
