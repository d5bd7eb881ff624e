// Package service contains the business logic of the storefront:
// checkout, fidelity, shipping, catalog, orders, profiles, store
// settings and payments. Services depend on the port interfaces only.
package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/lulicookies/storefront-api/internal/config"
	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/observability"
	"github.com/lulicookies/storefront-api/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

// freeCookieTag is appended to the customer display name when the
// purchase consumes an earned reward. The kitchen reads it off the
// order ticket.
const freeCookieTag = " (COOKIE GRÁTIS)"

// fidelityCASAttempts bounds the retry loop when a concurrent checkout
// wins the fidelity compare-and-swap.
const fidelityCASAttempts = 3

// CheckoutService converts a cart plus a delivery address into a
// persisted order, its line items and an updated fidelity record.
type CheckoutService struct {
	orders   port.OrderStore
	profiles port.ProfileStore
	fidelity port.FidelityStore
	settings port.SettingsStore
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	orders port.OrderStore,
	profiles port.ProfileStore,
	fidelity port.FidelityStore,
	settings port.SettingsStore,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *CheckoutService {
	return &CheckoutService{
		orders:   orders,
		profiles: profiles,
		fidelity: fidelity,
		settings: settings,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// PlaceOrder runs the order placement workflow. user is nil for guest
// orders. On any fatal failure nothing is reported as placed and the
// caller keeps its cart; the fidelity and default-address writes are
// best-effort and never fail the order.
func (s *CheckoutService) PlaceOrder(ctx context.Context, user *domain.User, req *domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	ctx, span := tracer.Start(ctx, "CheckoutService.PlaceOrder")
	defer span.End()
	span.SetAttributes(
		attribute.Int("cart.lines", len(req.Lines)),
		attribute.Bool("guest", user == nil),
	)

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("checkout", time.Since(start)) }()

	// --- Validate before any persistence call ---
	cart := domain.NewCart(req.Lines)
	if cart.IsEmpty() {
		return nil, &domain.ErrEmptyCart{}
	}
	if err := req.Address.Validate(); err != nil {
		return nil, err
	}
	if req.ShippingCost < 0 {
		return nil, &domain.ErrValidation{Field: "shipping_cost", Message: "não pode ser negativo"}
	}
	guestName := strings.TrimSpace(req.GuestName)
	if user == nil && guestName == "" {
		return nil, &domain.ErrValidation{Field: "guest_name", Message: "obrigatório"}
	}

	// --- Gate on the store being open ---
	if err := s.ensureStoreOpen(ctx); err != nil {
		return nil, err
	}

	// --- Resolve display name and fidelity lookahead ---
	var (
		customerName   string
		userID         string
		preFetched     *domain.FidelityRecord
		consumesReward bool
		skipFidelity   bool
	)

	if user != nil {
		userID = user.ID
		customerName = s.resolveCustomerName(ctx, user)

		var fetchErr error
		preFetched, fetchErr = s.fidelity.GetFidelity(ctx, userID)
		if fetchErr != nil {
			var notFound *domain.ErrNotFound
			if !errors.As(fetchErr, &notFound) {
				// An unreadable record is not the same as no record.
				// Writing on top of it would clobber accrued points, so
				// this purchase skips the fidelity update entirely.
				skipFidelity = true
				s.logger.Warn("fidelity read failed, skipping fidelity for this order",
					zap.String("user_id", userID),
					zap.Error(fetchErr))
			}
		}
		consumesReward = preFetched != nil &&
			(preFetched.FreeCookieEarned || preFetched.Points >= s.cfg.RewardTarget)

		// The profile row must exist before the order insert: the
		// order's user reference is a foreign key into it.
		if err := s.ensureProfile(ctx, user, customerName); err != nil {
			return nil, err
		}

		if req.SaveAsDefault {
			s.saveDefaultAddress(ctx, user, customerName, &req.Address)
		}
	} else {
		customerName = guestName
	}

	orderName := customerName
	if consumesReward {
		orderName += freeCookieTag
	}

	// --- Build and persist the order atomically with its items ---
	total := cart.Subtotal() + req.ShippingCost
	total = math.Round(total*100) / 100

	items := make([]domain.OrderItem, 0, len(cart.Lines()))
	for _, line := range cart.Lines() {
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.UnitPrice,
		})
	}

	order := &domain.Order{
		CustomerName: orderName,
		Total:        total,
		UserID:       userID,
		Status:       domain.OrderStatusPending,
		Address:      req.Address,
	}

	orderID, err := s.orders.CreateOrderWithItems(ctx, order, items)
	if err != nil {
		s.logger.Error("order creation failed",
			zap.String("user_id", userID),
			zap.Float64("total", total),
			zap.Error(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", orderID))

	// --- Fidelity update, best-effort ---
	if user != nil && !skipFidelity {
		s.applyFidelityTransition(ctx, userID, preFetched, consumesReward)
	}

	kind := "customer"
	if user == nil {
		kind = "guest"
	}
	s.metrics.IncrOrderPlaced(kind)

	s.logger.Info("order placed",
		zap.Int64("order_id", orderID),
		zap.String("customer", orderName),
		zap.Float64("total", total),
		zap.Bool("guest", user == nil),
		zap.Bool("free_cookie", consumesReward),
	)

	return &domain.CheckoutResult{
		OrderID:        orderID,
		Total:          total,
		CustomerName:   orderName,
		FreeCookieUsed: consumesReward,
	}, nil
}

// ensureStoreOpen rejects checkout while the shop is flagged closed.
// A missing settings row means the flag was never configured; the shop
// is treated as open.
func (s *CheckoutService) ensureStoreOpen(ctx context.Context) error {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	if !settings.IsOpen {
		return &domain.ErrStoreClosed{}
	}
	return nil
}

// resolveCustomerName prefers the profile's name and falls back to the
// session e-mail for accounts that have no profile row yet.
func (s *CheckoutService) resolveCustomerName(ctx context.Context, user *domain.User) string {
	profile, err := s.profiles.GetProfile(ctx, user.ID)
	if err == nil && profile != nil && profile.Name != "" {
		return profile.Name
	}
	return user.Email
}

func (s *CheckoutService) ensureProfile(ctx context.Context, user *domain.User, name string) error {
	profile, err := s.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			return err
		}
	}
	if profile != nil {
		return nil
	}
	if err := s.profiles.InsertProfile(ctx, user.ID, user.Email, name); err != nil {
		s.logger.Error("profile creation failed", zap.String("user_id", user.ID), zap.Error(err))
		return err
	}
	return nil
}

// saveDefaultAddress persists the delivery address as the profile
// default under a short deadline. Slowness or failure here must never
// hold up or fail order placement, so errors are logged and dropped.
func (s *CheckoutService) saveDefaultAddress(ctx context.Context, user *domain.User, name string, addr *domain.Address) {
	saveCtx, cancel := context.WithTimeout(ctx, s.cfg.AddressSaveTimeout)
	defer cancel()

	err := s.profiles.UpsertProfile(saveCtx, &domain.Profile{
		ID:      user.ID,
		Email:   user.Email,
		Name:    name,
		Address: addr,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &domain.ErrTimeout{Operation: "save default address"}
		}
		s.logger.Warn("default address save skipped",
			zap.String("user_id", user.ID),
			zap.Error(err))
	}
}

// applyFidelityTransition advances the loyalty counter for one
// purchase. The update is conditional on the record still holding the
// values we read; losing the race to a concurrent checkout triggers a
// re-read and retry, bounded so checkout latency stays flat. Failures
// are logged, never surfaced: the order already exists.
func (s *CheckoutService) applyFidelityTransition(ctx context.Context, userID string, preFetched *domain.FidelityRecord, consumesReward bool) {
	record := preFetched

	if record == nil {
		err := s.fidelity.InsertFidelity(ctx, &domain.FidelityRecord{
			ID:     uuid.New().String(),
			UserID: userID,
			Points: 1,
		})
		if err != nil {
			s.logger.Warn("fidelity record creation failed", zap.String("user_id", userID), zap.Error(err))
			return
		}
		s.metrics.IncrFidelityEvent("accrue")
		return
	}

	for attempt := 0; attempt < fidelityCASAttempts; attempt++ {
		var (
			newPoints int
			newFlag   bool
			event     string
		)
		switch {
		case record.FreeCookieEarned || record.Points >= s.cfg.RewardTarget:
			// An earned reward gets consumed by this purchase; it
			// seeds the next cycle at 1.
			newPoints, newFlag, event = 1, false, "consume"
		case record.Points+1 >= s.cfg.RewardTarget:
			newPoints, newFlag, event = 0, true, "earn"
		default:
			newPoints, newFlag, event = record.Points+1, false, "accrue"
		}

		swapped, err := s.fidelity.CompareAndSwap(ctx, userID,
			record.Points, record.FreeCookieEarned, newPoints, newFlag)
		if err != nil {
			s.logger.Warn("fidelity update failed", zap.String("user_id", userID), zap.Error(err))
			return
		}
		if swapped {
			s.metrics.IncrFidelityEvent(event)
			return
		}

		// A concurrent checkout moved the record; re-read and recompute
		// from the fresh state.
		record, err = s.fidelity.GetFidelity(ctx, userID)
		if err != nil || record == nil {
			s.logger.Warn("fidelity re-read after conflict failed", zap.String("user_id", userID), zap.Error(err))
			return
		}
	}

	s.logger.Warn("fidelity update abandoned after repeated conflicts", zap.String("user_id", userID))
}
