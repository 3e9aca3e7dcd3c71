package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"greencredits/internal/certificate/models"
	"greencredits/internal/marketplace"
	"greencredits/internal/platform/metrics"
	"greencredits/internal/platform/middleware"
	"greencredits/internal/transport/http/shared"
	"greencredits/pkg/domainerrors"
)

// Service defines the marketplace operations the handler depends on.
type Service interface {
	List(ctx context.Context, req marketplace.ListRequest) (marketplace.ListResult, error)
	ListAll(ctx context.Context) ([]models.Certificate, error)
}

// Handler exposes the marketplace listing and dashboard endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(service Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: m}
}

// Register registers the marketplace routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.With(middleware.Latency(h.metrics, "list-on-marketplace")).
		Post("/api/list-on-marketplace", h.handleList)
	r.Get("/api/credits", h.handleListAll)
}

// listRequest mirrors the frontend's listing payload, including its snake_case
// serial number key.
type listRequest struct {
	SerialNumber      string               `json:"serial_number"`
	Price             *float64             `json:"price"`
	PriceType         string               `json:"priceType"`
	ExtractedData     models.ExtractedData `json:"extractedData"`
	CarbonmarkDetails map[string]any       `json:"carbonmarkDetails"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req listRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.service.List(ctx, marketplace.ListRequest{
		SerialNumber:      req.SerialNumber,
		PriceType:         models.PriceType(req.PriceType),
		Price:             req.Price,
		ExtractedData:     req.ExtractedData,
		CarbonmarkDetails: req.CarbonmarkDetails,
	})
	if err != nil {
		if !domainerrors.Is(err, domainerrors.CodeBadRequest) {
			h.logger.ErrorContext(ctx, "marketplace listing failed",
				"request_id", middleware.GetRequestID(ctx),
				"serial_number", req.SerialNumber,
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}

	if result.Created {
		shared.WriteJSON(w, http.StatusCreated, map[string]any{
			"message":  "Credit created and listed on marketplace!",
			"creditId": result.CreditID,
		})
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"message":  "Credit successfully listed on marketplace!",
		"creditId": result.CreditID,
	})
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	certs, err := h.service.ListAll(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to fetch credits",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, certs)
}
