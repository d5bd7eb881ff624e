package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Orders (implements port.OrderStore)
// ============================================================

type orderRow struct {
	ID           int64           `json:"id"`
	CustomerName string          `json:"customer_name"`
	Total        float64         `json:"total"`
	UserID       *string         `json:"user_id"`
	Status       string          `json:"status"`
	Address      json.RawMessage `json:"address"`
	Items        []orderItemRow  `json:"items"`
	CreatedAt    string          `json:"created_at"`
}

type orderItemRow struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

func (r *orderRow) toDomain() domain.Order {
	o := domain.Order{
		ID:           r.ID,
		CustomerName: r.CustomerName,
		Total:        r.Total,
		Status:       r.Status,
		CreatedAt:    parseTimestamp(r.CreatedAt),
	}
	if r.UserID != nil {
		o.UserID = *r.UserID
	}
	if len(r.Address) > 0 && string(r.Address) != "null" {
		_ = json.Unmarshal(r.Address, &o.Address)
	}
	for _, it := range r.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ID:        it.ID,
			OrderID:   it.OrderID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}
	return o
}

// CreateOrderWithItems commits the order and its line items in a single
// stored-procedure call so a partial order can never be left behind.
// Returns the new order id. Not retried: the procedure is not idempotent.
func (c *Client) CreateOrderWithItems(ctx context.Context, order *domain.Order, items []domain.OrderItem) (int64, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateOrderWithItems")
	defer span.End()
	span.SetAttributes(attribute.Float64("order.total", order.Total))

	itemArgs := make([]map[string]any, 0, len(items))
	for _, it := range items {
		itemArgs = append(itemArgs, map[string]any{
			"product_id": it.ProductID,
			"quantity":   it.Quantity,
			"price":      it.Price,
		})
	}

	args := map[string]any{
		"p_customer_name": order.CustomerName,
		"p_total":         order.Total,
		"p_user_id":       nil,
		"p_status":        order.Status,
		"p_address":       order.Address,
		"p_items":         itemArgs,
	}
	if order.UserID != "" {
		args["p_user_id"] = order.UserID
	}

	var orderID int64

	_, err := c.cb.Execute(func() (any, error) {
		body, err := c.doRPC(ctx, "create_order_with_items", args)
		if err != nil {
			return nil, err
		}
		// The procedure returns the new order id as a bare integer.
		id, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode order id from %q: %w", string(body), err)
		}
		orderID = id
		return nil, nil
	})

	if err != nil {
		return 0, &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	return orderID, nil
}

// ListOrders returns a customer's orders with their items, newest first.
func (c *Client) ListOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListOrders")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if limit <= 0 {
		limit = 20
	}

	var orders []domain.Order

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf(
				"orders?select=*,items:order_items(*)&user_id=eq.%s&order=created_at.desc&limit=%d",
				url.QueryEscape(userID), limit,
			)
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				orders = []domain.Order{}
				return nil
			}

			var rows []orderRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode orders: %w", err)
			}

			orders = make([]domain.Order, 0, len(rows))
			for _, r := range rows {
				orders = append(orders, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	return orders, nil
}

// GetOrder fetches a single order with its items.
func (c *Client) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetOrder")
	defer span.End()

	var order *domain.Order

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("orders?select=*,items:order_items(*)&id=eq.%d&limit=1", orderID)
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				order = nil
				return nil
			}

			var rows []orderRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode order: %w", err)
			}
			if len(rows) == 0 {
				order = nil
				return nil
			}

			o := rows[0].toDomain()
			order = &o
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	if order == nil {
		return nil, &domain.ErrNotFound{Resource: "order", ID: strconv.FormatInt(orderID, 10)}
	}
	return order, nil
}

// UpdateOrderStatus writes a new status label. Used by the payment
// webhook; the storefront itself never transitions status.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateOrderStatus")
	defer span.End()

	_, err := c.cb.Execute(func() (any, error) {
		path := fmt.Sprintf("orders?id=eq.%d", orderID)
		return c.doPatch(ctx, path, map[string]any{"status": status})
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	return nil
}
