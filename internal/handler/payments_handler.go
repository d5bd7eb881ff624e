package handler

import (
	"net/http"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Payments (Mercado Pago)
// ============================================================

func createPreferenceHandler(svc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/payments/preference")
		defer span.End()

		var req domain.PreferenceRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		pref, err := svc.CreatePreference(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, pref)
	}
}

// mercadoPagoWebhookHandler acknowledges quickly: the gateway retries
// on non-2xx, so only processing failures (not uninteresting events)
// produce an error status.
func mercadoPagoWebhookHandler(svc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/webhooks/mercadopago")
		defer span.End()

		var note domain.WebhookNotification
		if err := decodeJSON(r, &note); err != nil {
			// Malformed payloads are acknowledged; retrying cannot fix them.
			logger.Warn("webhook payload undecodable", zap.Error(err))
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := svc.HandleWebhook(ctx, &note); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
