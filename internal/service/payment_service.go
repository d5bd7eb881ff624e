package service

import (
	"context"
	"strconv"
	"time"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/observability"
	"github.com/lulicookies/storefront-api/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentService wraps the hosted-checkout gateway and reconciles its
// webhook notifications back onto orders.
type PaymentService struct {
	gateway port.PaymentGateway
	orders  port.OrderStore
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(gateway port.PaymentGateway, orders port.OrderStore, logger *zap.Logger, metrics *observability.Metrics) *PaymentService {
	return &PaymentService{gateway: gateway, orders: orders, logger: logger, metrics: metrics}
}

// CreatePreference registers a hosted-checkout preference for an order.
func (s *PaymentService) CreatePreference(ctx context.Context, req *domain.PreferenceRequest) (*domain.Preference, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.CreatePreference")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", req.OrderID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("payment_preference", time.Since(start)) }()

	return s.gateway.CreatePreference(ctx, req)
}

// HandleWebhook processes a gateway notification. Only payment events
// carry anything actionable: the payment is fetched and, when approved
// and tied to an order via its external reference, the order is marked
// as preparing. Unknown notification types are acknowledged and
// ignored so the gateway stops redelivering them.
func (s *PaymentService) HandleWebhook(ctx context.Context, note *domain.WebhookNotification) error {
	ctx, span := tracer.Start(ctx, "PaymentService.HandleWebhook")
	defer span.End()
	span.SetAttributes(attribute.String("type", note.Type))

	if note.Type != "payment" || note.Data.ID == "" {
		return nil
	}

	payment, err := s.gateway.GetPayment(ctx, note.Data.ID)
	if err != nil {
		s.logger.Error("payment lookup failed",
			zap.String("payment_id", note.Data.ID), zap.Error(err))
		return err
	}

	if payment.Status != "approved" || payment.ExternalReference == "" {
		s.logger.Info("payment notification ignored",
			zap.String("payment_id", payment.ID),
			zap.String("status", payment.Status))
		return nil
	}

	orderID, err := strconv.ParseInt(payment.ExternalReference, 10, 64)
	if err != nil {
		s.logger.Warn("payment carries a non-numeric external reference",
			zap.String("payment_id", payment.ID),
			zap.String("external_reference", payment.ExternalReference))
		return nil
	}

	if err := s.orders.UpdateOrderStatus(ctx, orderID, domain.OrderStatusPreparing); err != nil {
		s.logger.Error("order status update from payment failed",
			zap.Int64("order_id", orderID), zap.Error(err))
		return err
	}

	s.logger.Info("payment approved, order moved to preparing",
		zap.Int64("order_id", orderID),
		zap.String("payment_id", payment.ID))
	return nil
}
