package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lulicookies/storefront-api/internal/config"
	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/handler"
	"github.com/lulicookies/storefront-api/internal/infra/cache"
	"github.com/lulicookies/storefront-api/internal/infra/client"
	"github.com/lulicookies/storefront-api/internal/infra/observability"
	"github.com/lulicookies/storefront-api/internal/infra/resilience"
	"github.com/lulicookies/storefront-api/internal/infra/supabase"
	"github.com/lulicookies/storefront-api/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const jwtSecret = "integration-secret"

// fakeSupabase emulates the PostgREST slice the storefront talks to:
// store settings, customer profiles, fidelity rows and the
// create_order_with_items RPC.
type fakeSupabase struct {
	mu sync.Mutex

	storeOpen      bool
	fidelityPoints int
	fidelityFlag   bool
	hasFidelity    bool

	rpcPayload    map[string]any
	fidelityGets  int
	fidelityPatch string
	patchBody     map[string]any
}

func (f *fakeSupabase) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		path := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
		w.Header().Set("Content-Type", "application/json")

		switch {
		case path == "rpc/create_order_with_items":
			raw, _ := io.ReadAll(r.Body)
			f.rpcPayload = map[string]any{}
			json.Unmarshal(raw, &f.rpcPayload)
			w.Write([]byte("41"))

		case path == "store_settings" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode([]domain.StoreSettings{{ID: 1, IsOpen: f.storeOpen}})

		case path == "customer_users" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode([]map[string]any{{
				"id": "user-1", "email": "ana@example.com", "name": "Ana",
			}})

		case path == "customer_users" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)

		case path == "fidelity" && r.Method == http.MethodGet:
			f.fidelityGets++
			if !f.hasFidelity {
				w.Write([]byte("[]"))
				return
			}
			json.NewEncoder(w).Encode([]map[string]any{{
				"id": "fid-1", "user_id": "user-1",
				"points": f.fidelityPoints, "free_cookie_earned": f.fidelityFlag,
			}})

		case path == "fidelity" && r.Method == http.MethodPatch:
			f.fidelityPatch = r.URL.RawQuery
			raw, _ := io.ReadAll(r.Body)
			f.patchBody = map[string]any{}
			json.Unmarshal(raw, &f.patchBody)
			json.NewEncoder(w).Encode([]map[string]any{{"id": "fid-1"}})

		case path == "fidelity" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)

		default:
			w.Write([]byte("[]"))
		}
	}
}

func newTestServer(t *testing.T, fake *fakeSupabase) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	httpClient := &http.Client{Timeout: 5 * time.Second}
	rcfg := resilience.Config{MaxRetries: 1, InitialBackoff: 5 * time.Millisecond, MaxConcurrency: 10}

	supaServer := httptest.NewServer(fake.handler())
	t.Cleanup(supaServer.Close)

	cb := resilience.NewCircuitBreaker("integration-supabase")
	supa := supabase.NewClient(httpClient, supaServer.URL, "anon-key", "service-key", cb, rcfg, logger)

	cfg := config.Load()
	cfg.AddressSaveTimeout = 100 * time.Millisecond

	return handler.NewRouter(handler.Deps{
		Catalog:   service.NewCatalogService(supa, cache.New[*domain.Menu](time.Minute), logger, metrics),
		Checkout:  service.NewCheckoutService(supa, supa, supa, supa, cfg, logger, metrics),
		Orders:    service.NewOrderService(supa),
		Fidelity:  service.NewFidelityService(supa, cfg),
		Profile:   service.NewProfileService(supa, logger),
		Auth:      service.NewAuthService(supa, supa, logger),
		Shipping:  newShipping(t, cfg, httpClient, rcfg),
		Settings:  service.NewSettingsService(supa, logger),
		Payments:  service.NewPaymentService(nil, supa, logger, metrics),
		Health:    supa,
		Metrics:   metrics,
		Logger:    logger,
		JWTSecret: jwtSecret,
	})
}

// newShipping wires a real ViaCEP client against a fake server so the
// /v1/shipping routes are exercised end to end as well.
func newShipping(t *testing.T, cfg *config.Config, httpClient *http.Client, rcfg resilience.Config) *service.ShippingService {
	t.Helper()

	cepServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"cep": "50030-230", "logradouro": "Rua do Bom Jesus", "bairro": "Recife",
		})
	}))
	t.Cleanup(cepServer.Close)

	geoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"results": []map[string]any{
				{"geometry": map[string]any{"location": map[string]float64{"lat": -8.06, "lng": -34.87}}},
			},
		})
	}))
	t.Cleanup(geoServer.Close)

	cb := resilience.NewCircuitBreaker("integration-shipping")
	return service.NewShippingService(
		client.NewViaCEPClient(httpClient, cepServer.URL, cb, rcfg),
		client.NewGeocoderClient(httpClient, geoServer.URL, "geo-key", cb, rcfg),
		cfg,
	)
}

func signToken(t *testing.T, sub, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub, "email": email, "exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func postCheckout(t *testing.T, router http.Handler, token string, req domain.CheckoutRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest(http.MethodPost, "/v1/checkout", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httpReq)
	return rec
}

// TestIntegration_GuestCheckout runs a full guest purchase through the
// router, the checkout workflow and the PostgREST order RPC.
func TestIntegration_GuestCheckout(t *testing.T) {
	fake := &fakeSupabase{storeOpen: true}
	router := newTestServer(t, fake)

	rec := postCheckout(t, router, "", domain.CheckoutRequest{
		Lines:        []domain.CartLine{{ProductID: 1, Name: "Cookie", UnitPrice: 10.00, Quantity: 3}},
		ShippingCost: 7.00,
		Address:      domain.Address{CEP: "50030230", Street: "Rua do Bom Jesus", Number: "100", Neighborhood: "Recife Antigo"},
		GuestName:    "Maria",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var result domain.CheckoutResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.OrderID != 41 {
		t.Errorf("expected order id 41, got %d", result.OrderID)
	}
	if result.Total != 37.00 {
		t.Errorf("expected total 37.00, got %.2f", result.Total)
	}
	if result.CustomerName != "Maria" {
		t.Errorf("expected customer Maria, got %q", result.CustomerName)
	}

	if fake.rpcPayload == nil {
		t.Fatal("expected the order RPC to be called")
	}
	if userID, present := fake.rpcPayload["p_user_id"]; !present || userID != nil {
		t.Errorf("expected explicit null p_user_id for guest, got %v (present=%t)", userID, present)
	}
	if fake.fidelityGets != 0 {
		t.Errorf("guest checkout must not touch fidelity, saw %d reads", fake.fidelityGets)
	}
}

// TestIntegration_CheckoutEarnsReward places the order that completes
// the customer's loyalty card: four stamps in, one purchase, counter
// back to zero with the free-cookie flag raised.
func TestIntegration_CheckoutEarnsReward(t *testing.T) {
	fake := &fakeSupabase{storeOpen: true, hasFidelity: true, fidelityPoints: 4}
	router := newTestServer(t, fake)
	token := signToken(t, "user-1", "ana@example.com")

	rec := postCheckout(t, router, token, domain.CheckoutRequest{
		Lines:        []domain.CartLine{{ProductID: 1, Name: "Cookie", UnitPrice: 12.50, Quantity: 2}},
		ShippingCost: 5.00,
		Address:      domain.Address{CEP: "50030230", Street: "Rua do Bom Jesus", Number: "100", Neighborhood: "Recife Antigo"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var result domain.CheckoutResult
	json.NewDecoder(rec.Body).Decode(&result)
	if result.Total != 30.00 {
		t.Errorf("expected total 30.00, got %.2f", result.Total)
	}
	if result.CustomerName != "Ana" {
		t.Errorf("expected customer Ana, got %q", result.CustomerName)
	}

	if !strings.Contains(fake.fidelityPatch, "points=eq.4") {
		t.Errorf("expected conditional update on points=eq.4, got %q", fake.fidelityPatch)
	}
	if got := fake.patchBody["points"]; got != float64(0) {
		t.Errorf("expected points reset to 0, got %v", got)
	}
	if got := fake.patchBody["free_cookie_earned"]; got != true {
		t.Errorf("expected free_cookie_earned=true, got %v", got)
	}
}

// TestIntegration_CheckoutConsumesReward spends an earned free cookie:
// the order name carries the annotation, the counter restarts at one,
// and the total is untouched.
func TestIntegration_CheckoutConsumesReward(t *testing.T) {
	fake := &fakeSupabase{storeOpen: true, hasFidelity: true, fidelityFlag: true}
	router := newTestServer(t, fake)
	token := signToken(t, "user-1", "ana@example.com")

	rec := postCheckout(t, router, token, domain.CheckoutRequest{
		Lines:        []domain.CartLine{{ProductID: 2, Name: "Cookie recheado", UnitPrice: 8.00, Quantity: 1}},
		ShippingCost: 5.00,
		Address:      domain.Address{CEP: "50030230", Street: "Rua do Bom Jesus", Number: "100", Neighborhood: "Recife Antigo"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var result domain.CheckoutResult
	json.NewDecoder(rec.Body).Decode(&result)
	if result.Total != 13.00 {
		t.Errorf("expected total 13.00, got %.2f", result.Total)
	}
	if !result.FreeCookieUsed {
		t.Error("expected the free cookie to be consumed")
	}
	if !strings.HasSuffix(result.CustomerName, " (COOKIE GRÁTIS)") {
		t.Errorf("expected annotated customer name, got %q", result.CustomerName)
	}
	if name, _ := fake.rpcPayload["p_customer_name"].(string); !strings.HasSuffix(name, " (COOKIE GRÁTIS)") {
		t.Errorf("expected annotated name in the order payload, got %q", name)
	}

	if got := fake.patchBody["points"]; got != float64(1) {
		t.Errorf("expected counter restarted at 1, got %v", got)
	}
	if got := fake.patchBody["free_cookie_earned"]; got != false {
		t.Errorf("expected flag lowered, got %v", got)
	}
}

// TestIntegration_StoreClosed rejects checkout while the shop is closed.
func TestIntegration_StoreClosed(t *testing.T) {
	fake := &fakeSupabase{storeOpen: false}
	router := newTestServer(t, fake)

	rec := postCheckout(t, router, "", domain.CheckoutRequest{
		Lines:        []domain.CartLine{{ProductID: 1, UnitPrice: 10.00, Quantity: 1}},
		ShippingCost: 5.00,
		Address:      domain.Address{CEP: "50030230", Street: "Rua do Bom Jesus", Number: "100", Neighborhood: "Recife Antigo"},
		GuestName:    "Maria",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while closed, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	if fake.rpcPayload != nil {
		t.Error("no order may be created while the store is closed")
	}
}

// TestIntegration_ShippingQuote prices an address through the real
// ViaCEP and geocoder clients against fake upstreams.
func TestIntegration_ShippingQuote(t *testing.T) {
	fake := &fakeSupabase{storeOpen: true}
	router := newTestServer(t, fake)

	body, _ := json.Marshal(domain.Address{
		CEP: "50030230", Street: "Rua do Bom Jesus", Number: "100", Neighborhood: "Recife Antigo",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/shipping/quote", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var quote domain.ShippingQuote
	json.NewDecoder(rec.Body).Decode(&quote)
	if quote.Cost < 5.00 {
		t.Errorf("cost must never drop below the minimum fee, got %.2f", quote.Cost)
	}
}
