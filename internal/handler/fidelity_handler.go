package handler

import (
	"net/http"

	"github.com/lulicookies/storefront-api/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Fidelity (protected)
// ============================================================

func fidelityHandler(svc *service.FidelityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/fidelity")
		defer span.End()

		user := UserFromContext(ctx)
		progress, err := svc.Progress(ctx, user.ID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, progress)
	}
}
