package service

import (
	"context"
	"time"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/observability"
	"github.com/lulicookies/storefront-api/internal/port"

	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"
)

const menuCacheKey = "menu"

// CatalogService serves the product catalog with a short-lived cache
// in front of the store.
type CatalogService struct {
	store   port.CatalogStore
	cache   port.Cache[*domain.Menu]
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(store port.CatalogStore, cache port.Cache[*domain.Menu], logger *zap.Logger, metrics *observability.Metrics) *CatalogService {
	return &CatalogService{store: store, cache: cache, logger: logger, metrics: metrics}
}

// Menu returns products and categories, fetched concurrently on a
// cache miss.
func (s *CatalogService) Menu(ctx context.Context) (*domain.Menu, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.Menu")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("menu", time.Since(start)) }()

	if menu, ok := s.cache.Get(menuCacheKey); ok {
		s.metrics.IncrCacheHit("catalog")
		return menu, nil
	}
	s.metrics.IncrCacheMiss("catalog")

	var (
		products   []domain.Product
		categories []domain.Category
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.store.ListProducts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.store.ListCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("menu fetch failed", zap.Error(err))
		return nil, err
	}

	menu := &domain.Menu{Products: products, Categories: categories}
	s.cache.Set(menuCacheKey, menu)
	return menu, nil
}

// Products returns the catalog's products, served through the same
// cache as the menu.
func (s *CatalogService) Products(ctx context.Context) ([]domain.Product, error) {
	menu, err := s.Menu(ctx)
	if err != nil {
		return nil, err
	}
	return menu.Products, nil
}

// Categories returns the catalog's categories, served through the same
// cache as the menu.
func (s *CatalogService) Categories(ctx context.Context) ([]domain.Category, error) {
	menu, err := s.Menu(ctx)
	if err != nil {
		return nil, err
	}
	return menu.Categories, nil
}

// Product returns one product by id.
func (s *CatalogService) Product(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.Product")
	defer span.End()

	return s.store.GetProduct(ctx, id)
}

// InvalidateCache drops the cached menu, forcing the next read to hit
// the store.
func (s *CatalogService) InvalidateCache() {
	s.cache.Delete(menuCacheKey)
}
