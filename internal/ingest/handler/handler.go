package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"greencredits/internal/certificate/models"
	"greencredits/internal/ingest"
	"greencredits/internal/platform/metrics"
	"greencredits/internal/platform/middleware"
	"greencredits/internal/transport/http/shared"
	"greencredits/pkg/domainerrors"
)

// Service defines the ingestion operations the handler depends on.
type Service interface {
	Submit(ctx context.Context, req ingest.SubmitRequest) (ingest.SubmitResult, error)
	Fetch(ctx context.Context, creditID string) ([]byte, models.Certificate, error)
}

// Handler exposes certificate upload and document retrieval.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(service Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: m}
}

// Register registers the ingestion routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.With(middleware.Latency(h.metrics, "upload-certificate")).
		Post("/api/upload-certificate", h.handleUpload)
	r.Get("/api/certificates/{creditId}/document", h.handleDocument)
}

// handleUpload accepts a multipart upload with the document under the
// "certificate" field, mirroring the frontend's formData contract.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Bound the body before parsing; the service re-checks the exact document
	// size, this guard just stops oversized bodies from being buffered. The
	// slack covers multipart framing overhead.
	r.Body = http.MaxBytesReader(w, r.Body, ingest.MaxUploadBytes+64<<10)

	file, header, err := r.FormFile("certificate")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			shared.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest,
				"File too large. Max 5MB allowed."))
			return
		}
		shared.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest,
			"No file selected for upload."))
		return
	}
	defer file.Close()

	document, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			shared.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest,
				"File too large. Max 5MB allowed."))
			return
		}
		h.logger.ErrorContext(ctx, "failed to read upload",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, domainerrors.New(domainerrors.CodeInternal,
			"An unexpected error occurred during upload."))
		return
	}

	result, err := h.service.Submit(ctx, ingest.SubmitRequest{
		Document:     document,
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
	})
	if err != nil {
		if !domainerrors.Is(err, domainerrors.CodeBadRequest) {
			h.logger.ErrorContext(ctx, "certificate submission failed",
				"request_id", middleware.GetRequestID(ctx),
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}

	if result.Duplicate {
		shared.WriteJSON(w, http.StatusConflict, map[string]any{
			"message":  "Duplicate certificate. This certificate has already been uploaded.",
			"creditId": result.CreditID,
			"hash":     result.ContentHash,
		})
		return
	}

	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":  "Certificate uploaded and details saved for authentication!",
		"creditId": result.CreditID,
		"hash":     result.ContentHash,
	})
}

// handleDocument streams the stored bytes back to the caller.
func (h *Handler) handleDocument(w http.ResponseWriter, r *http.Request) {
	creditID := chi.URLParam(r, "creditId")
	document, cert, err := h.service.Fetch(r.Context(), creditID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", cert.MimeType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(document)
}
