// Package client contains HTTP adapters for external collaborators:
// ViaCEP postal-code lookup, address geocoding and the Mercado Pago
// payment gateway.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// ViaCEPClient resolves Brazilian postal codes to street addresses.
type ViaCEPClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewViaCEPClient creates a new ViaCEPClient.
func NewViaCEPClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *ViaCEPClient {
	return &ViaCEPClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

type viaCEPResponse struct {
	CEP        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Erro       bool   `json:"erro"`
}

// digitsOnly strips everything but 0-9 from a CEP like "50000-000".
func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// Resolve looks up a postal code. A well-formed but unknown code comes
// back as ErrNotFound, not a transport error: ViaCEP reports it with
// an "erro" field in a 200 response.
func (c *ViaCEPClient) Resolve(ctx context.Context, cep string) (*domain.ResolvedCEP, error) {
	ctx, span := tracer.Start(ctx, "ViaCEP.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("cep", cep))

	digits := digitsOnly(cep)
	if len(digits) != 8 {
		return nil, &domain.ErrValidation{Field: "cep", Message: "deve conter 8 dígitos"}
	}

	var resolved *domain.ResolvedCEP

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/ws/%s/json/", c.baseURL, digits)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("viacep returned status %d", resp.StatusCode)
			}

			var data viaCEPResponse
			if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
				return err
			}
			if data.Erro {
				resolved = nil
				return nil
			}

			resolved = &domain.ResolvedCEP{
				CEP:          digits,
				Street:       data.Logradouro,
				Neighborhood: data.Bairro,
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "viacep", Err: err}
	}
	if resolved == nil {
		return nil, &domain.ErrNotFound{Resource: "cep", ID: digits}
	}
	return resolved, nil
}
