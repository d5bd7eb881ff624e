// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/lulicookies/storefront-api/internal/domain"
)

// CatalogStore reads the product catalog.
type CatalogStore interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// ProfileStore manages customer profile rows.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	InsertProfile(ctx context.Context, userID, email, name string) error
	UpsertProfile(ctx context.Context, profile *domain.Profile) error
}

// OrderStore persists and reads orders.
// CreateOrderWithItems commits the order and all its line items as one
// unit: either everything exists afterwards or nothing does.
type OrderStore interface {
	CreateOrderWithItems(ctx context.Context, order *domain.Order, items []domain.OrderItem) (int64, error)
	ListOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
}

// FidelityStore manages per-customer fidelity records.
// CompareAndSwap applies the update only when the row still carries the
// given points/flag values; it returns false when a concurrent writer
// got there first.
type FidelityStore interface {
	GetFidelity(ctx context.Context, userID string) (*domain.FidelityRecord, error)
	InsertFidelity(ctx context.Context, record *domain.FidelityRecord) error
	CompareAndSwap(ctx context.Context, userID string, expectPoints int, expectFlag bool, newPoints int, newFlag bool) (bool, error)
}

// SettingsStore manages the store open/closed flag.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*domain.StoreSettings, error)
	InsertSettings(ctx context.Context, isOpen bool) (*domain.StoreSettings, error)
	SetOpen(ctx context.Context, id int64, isOpen bool) error
}

// Identity is the external identity provider (sessions, credentials).
type Identity interface {
	SignUp(ctx context.Context, email, password, name string) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	CurrentUser(ctx context.Context, accessToken string) (*domain.User, error)
}

// CEPResolver resolves a postal code to a street/neighborhood pair.
// A well-formed but unknown code returns ErrNotFound, never a plain error.
type CEPResolver interface {
	Resolve(ctx context.Context, cep string) (*domain.ResolvedCEP, error)
}

// Geocoder resolves a street address string to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*domain.Coordinate, error)
}

// PaymentGateway is the hosted-checkout payment provider.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, req *domain.PreferenceRequest) (*domain.Preference, error)
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
