package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/resilience"
)

// ============================================================
// Catalog: products and categories (implements port.CatalogStore)
// ============================================================

type productRow struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Price         float64      `json:"price"`
	CategoryID    int64        `json:"category_id"`
	Category      *categoryRow `json:"category"`
	ImageTopURL   string       `json:"image_top_url"`
	ImageFrontURL string       `json:"image_front_url"`
	CreatedAt     string       `json:"created_at"`
}

type categoryRow struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02T15:04:05.999999", s)
	}
	return t
}

func (r *productRow) toDomain() domain.Product {
	p := domain.Product{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		CategoryID:    r.CategoryID,
		ImageTopURL:   r.ImageTopURL,
		ImageFrontURL: r.ImageFrontURL,
		CreatedAt:     parseTimestamp(r.CreatedAt),
	}
	if r.Category != nil {
		c := r.Category.toDomain()
		p.Category = &c
	}
	return p
}

func (r *categoryRow) toDomain() domain.Category {
	return domain.Category{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   parseTimestamp(r.CreatedAt),
	}
}

// ListProducts fetches all products with their category embedded,
// ordered by id the way the storefront displays them.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListProducts")
	defer span.End()

	var products []domain.Product

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doGet(ctx, "products?select=*,category:categories(*)&order=id.asc")
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				products = []domain.Product{}
				return nil
			}

			var rows []productRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode products: %w", err)
			}

			products = make([]domain.Product, 0, len(rows))
			for _, r := range rows {
				products = append(products, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/products", Err: err}
	}
	return products, nil
}

// GetProduct fetches a single product by id.
func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProduct")
	defer span.End()

	var product *domain.Product

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("products?select=*,category:categories(*)&id=eq.%d&limit=1", id)
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				product = nil
				return nil
			}

			var rows []productRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode product: %w", err)
			}
			if len(rows) == 0 {
				product = nil
				return nil
			}

			p := rows[0].toDomain()
			product = &p
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/products", Err: err}
	}
	if product == nil {
		return nil, &domain.ErrNotFound{Resource: "product", ID: strconv.FormatInt(id, 10)}
	}
	return product, nil
}

// ListCategories fetches all categories ordered by name.
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCategories")
	defer span.End()

	var categories []domain.Category

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doGet(ctx, "categories?select=*&order=name.asc")
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				categories = []domain.Category{}
				return nil
			}

			var rows []categoryRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode categories: %w", err)
			}

			categories = make([]domain.Category, 0, len(rows))
			for _, r := range rows {
				categories = append(categories, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/categories", Err: err}
	}
	return categories, nil
}

// Healthcheck issues a minimal query so /healthz can probe connectivity.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/rest/v1/categories?select=id&limit=1", c.baseURL), nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, "")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("supabase healthcheck returned %d", resp.StatusCode)
	}
	return nil
}
