package handler

import (
	"net/http"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Checkout (POST /v1/checkout)
// ============================================================

func checkoutHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout")
		defer span.End()

		var req domain.CheckoutRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		user := UserFromContext(ctx)
		result, err := svc.PlaceOrder(ctx, user, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}
