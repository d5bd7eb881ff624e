package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/client"
	"github.com/lulicookies/storefront-api/internal/infra/resilience"
)

func testResilience() resilience.Config {
	return resilience.Config{MaxRetries: 1, InitialBackoff: 5 * time.Millisecond, MaxConcurrency: 10}
}

func TestViaCEP_ResolveKnownCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/50030230/json/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cep":"50030-230","logradouro":"Rua do Bom Jesus","bairro":"Recife"}`))
	}))
	defer server.Close()

	c := client.NewViaCEPClient(server.Client(), server.URL, resilience.NewCircuitBreaker("test"), testResilience())

	resolved, err := c.Resolve(context.Background(), "50030-230")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resolved.Street != "Rua do Bom Jesus" || resolved.Neighborhood != "Recife" {
		t.Errorf("unexpected resolution: %+v", resolved)
	}
}

func TestViaCEP_UnknownCodeIsNotFound(t *testing.T) {
	// ViaCEP answers 200 with an "erro" marker for well-formed codes it
	// does not know.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"erro":true}`))
	}))
	defer server.Close()

	c := client.NewViaCEPClient(server.Client(), server.URL, resilience.NewCircuitBreaker("test"), testResilience())

	_, err := c.Resolve(context.Background(), "99999999")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestViaCEP_MalformedCode(t *testing.T) {
	c := client.NewViaCEPClient(http.DefaultClient, "http://viacep.invalid", resilience.NewCircuitBreaker("test"), testResilience())

	_, err := c.Resolve(context.Background(), "abc")
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation before any request, got %v", err)
	}
}

func TestViaCEP_ServerErrorWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := client.NewViaCEPClient(server.Client(), server.URL, resilience.NewCircuitBreaker("test"), testResilience())

	_, err := c.Resolve(context.Background(), "50030230")
	var external *domain.ErrExternalService
	if !errors.As(err, &external) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}
