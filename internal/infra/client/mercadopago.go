package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/resilience"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MercadoPagoClient talks to the Mercado Pago REST API: creating
// hosted-checkout preferences and fetching payments for webhook
// reconciliation.
type MercadoPagoClient struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	backURL     string
	cb          *gobreaker.CircuitBreaker
	cfg         resilience.Config
	logger      *zap.Logger
}

// NewMercadoPagoClient creates a new MercadoPagoClient. backURL is the
// storefront origin the hosted checkout redirects back to.
func NewMercadoPagoClient(httpClient *http.Client, baseURL, accessToken, backURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *MercadoPagoClient {
	return &MercadoPagoClient{
		httpClient:  httpClient,
		baseURL:     baseURL,
		accessToken: accessToken,
		backURL:     backURL,
		cb:          cb,
		cfg:         cfg,
		logger:      logger,
	}
}

type mpItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type mpBackURLs struct {
	Success string `json:"success"`
	Pending string `json:"pending"`
	Failure string `json:"failure"`
}

type mpPreferencePayload struct {
	Items             []mpItem   `json:"items"`
	BackURLs          mpBackURLs `json:"back_urls"`
	AutoReturn        string     `json:"auto_return"`
	ExternalReference string     `json:"external_reference,omitempty"`
}

type mpPreferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

type mpPaymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
}

// CreatePreference registers a checkout preference with the gateway.
// Requests carry an idempotency key so a retried POST cannot create a
// duplicate preference.
func (c *MercadoPagoClient) CreatePreference(ctx context.Context, req *domain.PreferenceRequest) (*domain.Preference, error) {
	ctx, span := tracer.Start(ctx, "MercadoPago.CreatePreference")
	defer span.End()
	span.SetAttributes(attribute.Int("items", len(req.Items)))

	if len(req.Items) == 0 {
		return nil, &domain.ErrValidation{Field: "items", Message: "obrigatório"}
	}

	items := make([]mpItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, mpItem{
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			CurrencyID: "BRL",
		})
	}

	payload := mpPreferencePayload{
		Items: items,
		BackURLs: mpBackURLs{
			Success: c.backURL + "/checkout/sucesso",
			Pending: c.backURL + "/checkout/pendente",
			Failure: c.backURL + "/checkout/erro",
		},
		AutoReturn: "approved",
	}
	if req.OrderID > 0 {
		payload.ExternalReference = fmt.Sprintf("%d", req.OrderID)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	idempotencyKey := uuid.New().String()

	var pref *domain.Preference

	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkout/preferences", bytes.NewReader(body))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("X-Idempotency-Key", idempotencyKey)

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
				raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
				c.logger.Warn("mercado pago preference rejected",
					zap.Int("status", resp.StatusCode),
					zap.ByteString("body", raw))
				return fmt.Errorf("mercado pago returned status %d", resp.StatusCode)
			}

			var data mpPreferenceResponse
			if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
				return err
			}
			pref = &domain.Preference{ID: data.ID, InitPoint: data.InitPoint}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "mercadopago", Err: err}
	}
	return pref, nil
}

// GetPayment fetches a payment by the id delivered in a webhook
// notification.
func (c *MercadoPagoClient) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "MercadoPago.GetPayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment_id", paymentID))

	var payment *domain.Payment

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+paymentID, nil)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+c.accessToken)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				payment = nil
				return nil
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("mercado pago returned status %d", resp.StatusCode)
			}

			var data mpPaymentResponse
			if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
				return err
			}
			payment = &domain.Payment{
				ID:                data.ID.String(),
				Status:            data.Status,
				ExternalReference: data.ExternalReference,
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "mercadopago", Err: err}
	}
	if payment == nil {
		return nil, &domain.ErrNotFound{Resource: "payment", ID: paymentID}
	}
	return payment, nil
}
