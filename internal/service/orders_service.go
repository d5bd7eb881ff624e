package service

import (
	"context"
	"strconv"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/port"

	"go.opentelemetry.io/otel/attribute"
)

const defaultOrderHistoryLimit = 20

// OrderService is the read path for order history.
type OrderService struct {
	store port.OrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(store port.OrderStore) *OrderService {
	return &OrderService{store: store}
}

// History returns the customer's most recent orders with their line
// items, newest first.
func (s *OrderService) History(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.History")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if limit <= 0 || limit > 100 {
		limit = defaultOrderHistoryLimit
	}
	return s.store.ListOrders(ctx, userID, limit)
}

// Get returns one order. Customers may only read their own orders;
// guest orders (no user reference) are not retrievable through this
// path.
func (s *OrderService) Get(ctx context.Context, userID string, orderID int64) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.Get")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID))

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID == "" || order.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "order", ID: strconv.FormatInt(orderID, 10)}
	}
	return order, nil
}
