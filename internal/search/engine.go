package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"

	"github.com/oguz-kara/pos-app-sub001/internal/cache"
	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/logging"
)

const DefaultLimit = 20

const (
	rankBarcode = iota
	rankSKU
	rankPrefix
	rankContains
)

// Catalog supplies the products a query is ranked against.
type Catalog func(ctx context.Context) ([]domain.Product, error)

type Engine struct {
	views  cache.ViewCache
	limit  int
	logger *slog.Logger
}

func NewEngine(views cache.ViewCache, limit int, logger *slog.Logger) *Engine {
	if views == nil {
		views = cache.NoopViewCache{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Engine{views: views, limit: limit, logger: logging.OrDefault(logger)}
}

// Search ranks the catalog for query through the product_search view.
func (e *Engine) Search(ctx context.Context, storeID string, query string, catalog Catalog) ([]domain.Product, error) {
	query = normalize(query)
	if query == "" {
		return []domain.Product{}, nil
	}

	var result []domain.Product
	err := e.views.FetchJSON(ctx, domain.ViewProductSearch, cacheKey(storeID, query), &result, func(ctx context.Context) (any, error) {
		products, err := catalog(ctx)
		if err != nil {
			return nil, err
		}
		return e.Rank(query, products), nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []domain.Product{}
	}
	e.logger.Debug("product search", "store_id", storeID, "query", query, "results", len(result))
	return result, nil
}

// Rank orders exact barcode matches first, then exact SKU, name prefix, and
// finally name or brand substring matches. Ties sort by name. Products that do
// not match are dropped.
func (e *Engine) Rank(query string, products []domain.Product) []domain.Product {
	query = normalize(query)
	if query == "" {
		return []domain.Product{}
	}

	type scored struct {
		product domain.Product
		rank    int
	}
	matches := make([]scored, 0, len(products))
	for _, product := range products {
		rank, ok := score(query, product)
		if !ok {
			continue
		}
		matches = append(matches, scored{product: product, rank: rank})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank < matches[j].rank
		}
		return strings.ToLower(matches[i].product.Name) < strings.ToLower(matches[j].product.Name)
	})

	if len(matches) > e.limit {
		matches = matches[:e.limit]
	}
	result := make([]domain.Product, 0, len(matches))
	for _, match := range matches {
		result = append(result, match.product)
	}
	return result
}

// IsExact reports whether product is an exact barcode or SKU hit for query.
func IsExact(query string, product domain.Product) bool {
	rank, ok := score(normalize(query), product)
	return ok && rank <= rankSKU
}

func score(query string, product domain.Product) (int, bool) {
	name := strings.ToLower(product.Name)
	switch {
	case product.Barcode != "" && strings.ToLower(product.Barcode) == query:
		return rankBarcode, true
	case strings.ToLower(product.SKU) == query:
		return rankSKU, true
	case strings.HasPrefix(name, query):
		return rankPrefix, true
	case strings.Contains(name, query), strings.Contains(strings.ToLower(product.Brand), query):
		return rankContains, true
	}
	return 0, false
}

func normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func cacheKey(storeID string, query string) string {
	hash := sha1.Sum([]byte(storeID + "|" + query))
	return storeID + ":" + hex.EncodeToString(hash[:8])
}
