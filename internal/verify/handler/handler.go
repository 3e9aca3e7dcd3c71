package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"greencredits/internal/platform/metrics"
	"greencredits/internal/platform/middleware"
	"greencredits/internal/transport/http/shared"
	"greencredits/internal/verify"
	"greencredits/pkg/domainerrors"
)

// Service defines the verification operation the handler depends on.
type Service interface {
	Verify(ctx context.Context, creditID string) (verify.Outcome, error)
}

// Handler exposes the verification endpoint.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(service Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: m}
}

// Register registers the verification route with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.With(middleware.Latency(h.metrics, "authenticate")).
		Post("/authenticate", h.handleAuthenticate)
}

func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		CreditID string `json:"creditId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CreditID == "" {
		shared.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "creditId is required"))
		return
	}

	outcome, err := h.service.Verify(ctx, req.CreditID)
	if err != nil {
		if !domainerrors.Is(err, domainerrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "verification request failed",
				"request_id", middleware.GetRequestID(ctx),
				"credit_id", req.CreditID,
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"message":    "Certificate authentication process completed!",
		"creditId":   outcome.CreditID,
		"authResult": outcome.AuthResult,
	})
}
