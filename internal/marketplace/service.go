package marketplace

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"greencredits/internal/certificate/models"
	"greencredits/internal/certificate/store"
	"greencredits/internal/platform/kafka"
	"greencredits/internal/platform/metrics"
	"greencredits/pkg/domainerrors"
	"greencredits/pkg/platform/sentinel"
)

// ListRequest carries the marketplace listing terms. SerialNumber is the
// business identity axis: the reconciler resolves certificates through
// extractedData.serial_number, not creditId.
type ListRequest struct {
	SerialNumber      string
	PriceType         models.PriceType
	Price             *float64
	ExtractedData     models.ExtractedData
	CarbonmarkDetails map[string]any
}

// ListResult identifies the listed certificate. Created marks a synthesized
// record: one built from listing input alone, with no verification history.
type ListResult struct {
	CreditID string
	Created  bool
}

// Service reconciles verified records with marketplace listings.
type Service struct {
	certs   store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	events  kafka.Publisher
}

func NewService(certs store.Store, logger *slog.Logger, m *metrics.Metrics, events kafka.Publisher) *Service {
	return &Service{certs: certs, logger: logger, metrics: m, events: events}
}

// List marks the certificate matching the serial number as listed, or
// synthesizes a fresh listed record when none matches. Listing applies on top
// of any status; it does not require a prior authenticated verdict.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	if req.SerialNumber == "" {
		return ListResult{}, domainerrors.New(domainerrors.CodeBadRequest,
			"Serial number is required to list a credit.")
	}

	upd, err := pricingFor(req)
	if err != nil {
		return ListResult{}, err
	}

	cert, err := s.certs.FindBySerialNumber(ctx, req.SerialNumber)
	switch {
	case err == nil:
		updated, err := s.certs.UpdateListing(ctx, cert.CreditID, upd)
		if err != nil {
			return ListResult{}, domainerrors.Wrap(domainerrors.CodeInternal,
				"Failed to list credit on marketplace.", err)
		}
		s.metrics.ListingsUpdated.Inc()
		s.publishListed(ctx, updated.CreditID)
		s.logger.InfoContext(ctx, "credit listed",
			"credit_id", updated.CreditID,
			"serial_number", req.SerialNumber,
			"price_type", string(upd.PriceType),
		)
		return ListResult{CreditID: updated.CreditID}, nil

	case errors.Is(err, sentinel.ErrNotFound):
		return s.synthesize(ctx, req, upd)

	default:
		return ListResult{}, domainerrors.Wrap(domainerrors.CodeInternal,
			"Failed to list credit on marketplace.", err)
	}
}

// synthesize creates a listed record straight from the caller's data. The
// record has no content hash, no stored bytes, and no verification history.
func (s *Service) synthesize(ctx context.Context, req ListRequest, upd models.ListingUpdate) (ListResult, error) {
	now := time.Now()
	cert := models.Certificate{
		CreditID:          models.NewCreditID(now),
		ExtractedData:     req.ExtractedData,
		CarbonmarkDetails: req.CarbonmarkDetails,
		UploadDate:        now,
		Status:            models.StatusListed,
		IsListed:          true,
		PriceType:         upd.PriceType,
		MarketplacePrice:  upd.MarketplacePrice,
		ListedAt:          &upd.ListedAt,
	}
	if err := s.certs.Insert(ctx, cert); err != nil {
		return ListResult{}, domainerrors.Wrap(domainerrors.CodeInternal,
			"Failed to list credit on marketplace.", err)
	}

	s.metrics.ListingsSynthesized.Inc()
	s.publishListed(ctx, cert.CreditID)
	s.logger.WarnContext(ctx, "listed credit synthesized without verification",
		"credit_id", cert.CreditID,
		"serial_number", req.SerialNumber,
	)
	return ListResult{CreditID: cert.CreditID, Created: true}, nil
}

// ListAll returns every stored certificate for dashboard consumption.
func (s *Service) ListAll(ctx context.Context) ([]models.Certificate, error) {
	certs, err := s.certs.ListAll(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeInternal, "Failed to fetch credits.", err)
	}
	return certs, nil
}

func (s *Service) publishListed(ctx context.Context, creditID string) {
	s.events.Publish(ctx, kafka.Event{
		Type:       kafka.EventListed,
		CreditID:   creditID,
		Status:     string(models.StatusListed),
		OccurredAt: time.Now(),
	})
}

// pricingFor validates the pricing terms: fixed requires a numeric price,
// negotiation forces the price to null.
func pricingFor(req ListRequest) (models.ListingUpdate, error) {
	upd := models.ListingUpdate{PriceType: req.PriceType, ListedAt: time.Now()}
	switch req.PriceType {
	case models.PriceFixed:
		if req.Price == nil {
			return models.ListingUpdate{}, domainerrors.New(domainerrors.CodeBadRequest,
				"A numeric price is required for fixed pricing.")
		}
		upd.MarketplacePrice = req.Price
	case models.PriceNegotiation:
		upd.MarketplacePrice = nil
	default:
		return models.ListingUpdate{}, domainerrors.New(domainerrors.CodeBadRequest,
			"priceType must be fixed or negotiation.")
	}
	return upd, nil
}
