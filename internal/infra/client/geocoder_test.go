package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/client"
	"github.com/lulicookies/storefront-api/internal/infra/resilience"
)

func newGeocoder(server *httptest.Server) *client.GeocoderClient {
	return client.NewGeocoderClient(server.Client(), server.URL, "test-key",
		resilience.NewCircuitBreaker("test"), testResilience())
}

func TestGeocode_ResolvesAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("expected api key on the request, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":-8.06,"lng":-34.87}}}]}`))
	}))
	defer server.Close()

	coord, err := newGeocoder(server).Geocode(context.Background(), "Rua do Bom Jesus, Recife")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if coord.Lat != -8.06 || coord.Lng != -34.87 {
		t.Errorf("unexpected coordinate: %+v", coord)
	}
}

func TestGeocode_ZeroResultsIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer server.Close()

	_, err := newGeocoder(server).Geocode(context.Background(), "nowhere at all")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGeocode_OKWithEmptyResults(t *testing.T) {
	// A provider answering OK with an empty results array must surface
	// as an upstream error, not a panic.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK","results":[]}`))
	}))
	defer server.Close()

	_, err := newGeocoder(server).Geocode(context.Background(), "Rua do Bom Jesus, Recife")
	var external *domain.ErrExternalService
	if !errors.As(err, &external) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}

func TestGeocode_ErrorStatusWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"REQUEST_DENIED"}`))
	}))
	defer server.Close()

	_, err := newGeocoder(server).Geocode(context.Background(), "Rua do Bom Jesus, Recife")
	var external *domain.ErrExternalService
	if !errors.As(err, &external) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}
