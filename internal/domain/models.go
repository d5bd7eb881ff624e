// Package domain defines the core business entities for the cookie
// storefront. These models are independent of external services and
// represent the canonical data structures used throughout the API.
package domain

import "time"

// ============================================================
// Catalog
// ============================================================

// Category groups products on the menu.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Product is a catalog item. Read-only from the checkout workflow's
// perspective: order line items freeze their own price copy.
type Product struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Price         float64   `json:"price"`
	CategoryID    int64     `json:"category_id"`
	Category      *Category `json:"category,omitempty"`
	ImageTopURL   string    `json:"image_top_url,omitempty"`
	ImageFrontURL string    `json:"image_front_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Menu is the combined catalog payload served to the storefront.
type Menu struct {
	Products   []Product  `json:"products"`
	Categories []Category `json:"categories"`
}

// ============================================================
// Address
// ============================================================

// Address is a delivery address. A copy is embedded verbatim into each
// order at creation time; later edits to a profile's default address
// never change past orders.
type Address struct {
	CEP          string `json:"cep"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
}

// Validate checks the fields required for delivery.
func (a *Address) Validate() error {
	switch {
	case a.Street == "":
		return &ErrValidation{Field: "street", Message: "obrigatório"}
	case a.Number == "":
		return &ErrValidation{Field: "number", Message: "obrigatório"}
	case a.Neighborhood == "":
		return &ErrValidation{Field: "neighborhood", Message: "obrigatório"}
	case a.CEP == "":
		return &ErrValidation{Field: "cep", Message: "obrigatório"}
	}
	return nil
}

// ============================================================
// Customer profile
// ============================================================

// Profile is a customer profile row. Its ID matches the identity
// provider's principal id; orders reference it by foreign key, so a row
// must exist before an authenticated order can be created.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Address   *Address  `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ============================================================
// Orders
// ============================================================

// Order status labels as stored. The set is open: operator tooling may
// write other values, the storefront only reads them.
const (
	OrderStatusPending    = "Pendente"
	OrderStatusPreparing  = "Preparando"
	OrderStatusInProgress = "Em andamento"
	OrderStatusDelivering = "Em entrega"
	OrderStatusDelivered  = "Entregue"
	OrderStatusCancelled  = "Cancelado"
	OrderStatusDone       = "Concluido"
)

// Order is a placed order. UserID is empty for guest orders.
// CustomerName is denormalized at creation time.
type Order struct {
	ID           int64       `json:"id"`
	CustomerName string      `json:"customer_name"`
	Total        float64     `json:"total"`
	UserID       string      `json:"user_id,omitempty"`
	Status       string      `json:"status"`
	Address      Address     `json:"address"`
	Items        []OrderItem `json:"items,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// OrderItem is one line of an order. Price is a snapshot of the cart
// unit price at purchase time, independent of later catalog changes.
type OrderItem struct {
	ID        int64   `json:"id,omitempty"`
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// ============================================================
// Checkout
// ============================================================

// CheckoutRequest is everything the order placement workflow needs:
// the cart contents, the shipping fee already quoted for the address,
// and the delivery address. GuestName identifies anonymous orders.
type CheckoutRequest struct {
	Lines         []CartLine `json:"lines"`
	ShippingCost  float64    `json:"shipping_cost"`
	Address       Address    `json:"address"`
	GuestName     string     `json:"guest_name,omitempty"`
	SaveAsDefault bool       `json:"save_as_default,omitempty"`
}

// CheckoutResult is returned on successful order placement.
type CheckoutResult struct {
	OrderID        int64   `json:"order_id"`
	Total          float64 `json:"total"`
	CustomerName   string  `json:"customer_name"`
	FreeCookieUsed bool    `json:"free_cookie_used"`
}

// ============================================================
// Fidelity
// ============================================================

// FidelityRecord is the per-customer loyalty counter. One row per
// customer (unique on UserID). Points stays below the reward target:
// reaching it resets points to zero and raises FreeCookieEarned.
type FidelityRecord struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Points           int       `json:"points"`
	FreeCookieEarned bool      `json:"free_cookie_earned"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FidelityProgress is the read-side view for display.
type FidelityProgress struct {
	Points     int  `json:"points"`
	Remaining  int  `json:"remaining"`
	FreeCookie bool `json:"free_cookie"`
}

// ============================================================
// Shipping
// ============================================================

// Coordinate is a geographic point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ResolvedCEP is the street/neighborhood pair a postal code resolves to.
type ResolvedCEP struct {
	CEP          string `json:"cep"`
	Street       string `json:"street"`
	Neighborhood string `json:"neighborhood"`
}

// ShippingQuote is a delivery fee derived from distance to the store.
type ShippingQuote struct {
	DistanceKm float64 `json:"distance_km"`
	Cost       float64 `json:"cost"`
}

// ============================================================
// Identity
// ============================================================

// User is the authenticated principal as seen by the identity provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an issued identity-provider session.
type Session struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// ============================================================
// Store settings
// ============================================================

// StoreSettings is the single-row open/closed flag for the shop.
type StoreSettings struct {
	ID        int64     `json:"id"`
	IsOpen    bool      `json:"is_open"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ============================================================
// Payments (Mercado Pago)
// ============================================================

// PaymentItem is one line of a payment preference.
type PaymentItem struct {
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// PreferenceRequest asks the gateway for a hosted checkout preference.
// OrderID, when set, is carried as the external reference so the
// webhook can reconcile the payment back to the order.
type PreferenceRequest struct {
	OrderID int64         `json:"order_id,omitempty"`
	Items   []PaymentItem `json:"items"`
}

// Preference is the gateway's hosted checkout handle.
type Preference struct {
	ID        string `json:"preference_id"`
	InitPoint string `json:"init_point"`
}

// Payment is the gateway's view of a payment, fetched when a webhook
// notification arrives.
type Payment struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference,omitempty"`
}

// WebhookNotification is the body Mercado Pago posts to the webhook.
type WebhookNotification struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ============================================================
// Health
// ============================================================

// ServiceHealth reports one dependency's health.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latency_ms"`
	LastChecked string `json:"last_checked"`
}

// HealthStatus is the aggregate /healthz payload.
type HealthStatus struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
}
