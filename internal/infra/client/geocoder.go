package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/resilience"

	"github.com/sony/gobreaker"
)

// GeocoderClient resolves free-form street addresses to coordinates
// through the Google Geocoding REST endpoint.
type GeocoderClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewGeocoderClient creates a new GeocoderClient.
func NewGeocoderClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *GeocoderClient {
	return &GeocoderClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves an address. An address the provider cannot place
// returns ErrNotFound ("ZERO_RESULTS" is a normal answer, not an outage).
func (c *GeocoderClient) Geocode(ctx context.Context, address string) (*domain.Coordinate, error) {
	ctx, span := tracer.Start(ctx, "Geocoder.Geocode")
	defer span.End()

	var coord *domain.Coordinate

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			q := url.Values{}
			q.Set("address", address)
			q.Set("key", c.apiKey)
			endpoint := fmt.Sprintf("%s/json?%s", c.baseURL, q.Encode())

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("geocoding returned status %d", resp.StatusCode)
			}

			var data geocodeResponse
			if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
				return err
			}

			switch data.Status {
			case "OK":
				if len(data.Results) == 0 {
					return fmt.Errorf("geocoding status OK with no results")
				}
				loc := data.Results[0].Geometry.Location
				coord = &domain.Coordinate{Lat: loc.Lat, Lng: loc.Lng}
				return nil
			case "ZERO_RESULTS":
				coord = nil
				return nil
			default:
				return fmt.Errorf("geocoding status %s", data.Status)
			}
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "geocoding", Err: err}
	}
	if coord == nil {
		return nil, &domain.ErrNotFound{Resource: "address", ID: address}
	}
	return coord, nil
}
