package supabase_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lulicookies/storefront-api/internal/domain"
)

func TestCreateOrderWithItems(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/rpc/create_order_with_items" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`123`))
	}))
	defer server.Close()

	c := newTestClient(server)
	order := &domain.Order{
		CustomerName: "Ana",
		Total:        30.00,
		UserID:       "user-1",
		Status:       domain.OrderStatusPending,
		Address:      domain.Address{CEP: "50000000", Street: "Rua A", Number: "1", Neighborhood: "Centro"},
	}
	items := []domain.OrderItem{{ProductID: 1, Quantity: 2, Price: 12.50}}

	id, err := c.CreateOrderWithItems(context.Background(), order, items)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != 123 {
		t.Errorf("expected order id 123, got %d", id)
	}

	if captured["p_customer_name"] != "Ana" {
		t.Errorf("expected customer name Ana, got %v", captured["p_customer_name"])
	}
	if captured["p_status"] != domain.OrderStatusPending {
		t.Errorf("expected status %q, got %v", domain.OrderStatusPending, captured["p_status"])
	}
	sent := captured["p_items"].([]any)
	if len(sent) != 1 {
		t.Fatalf("expected 1 item, got %d", len(sent))
	}
	first := sent[0].(map[string]any)
	if first["price"] != 12.50 {
		t.Errorf("expected frozen price 12.50, got %v", first["price"])
	}
}

func TestCreateOrderWithItems_GuestSendsNullUser(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte("7\n"))
	}))
	defer server.Close()

	c := newTestClient(server)
	id, err := c.CreateOrderWithItems(context.Background(), &domain.Order{
		CustomerName: "Maria",
		Total:        37,
		Status:       domain.OrderStatusPending,
	}, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != 7 {
		t.Errorf("expected order id 7, got %d", id)
	}
	if v, present := captured["p_user_id"]; !present || v != nil {
		t.Errorf("expected explicit null user id, got %v (present=%t)", v, present)
	}
}

func TestCreateOrderWithItems_FailureSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"foreign key violation"}`))
	}))
	defer server.Close()

	if _, err := newTestClient(server).CreateOrderWithItems(context.Background(), &domain.Order{}, nil); err == nil {
		t.Fatal("expected an error")
	}
}
