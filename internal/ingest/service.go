package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"greencredits/internal/certificate/models"
	"greencredits/internal/certificate/store"
	"greencredits/internal/content"
	"greencredits/internal/platform/kafka"
	"greencredits/internal/platform/metrics"
	"greencredits/pkg/domainerrors"
	"greencredits/pkg/platform/sentinel"
)

const (
	// AcceptedMimeType is the single document type the gateway accepts.
	AcceptedMimeType = "application/pdf"
	// MaxUploadBytes is the upload size ceiling (5 MiB).
	MaxUploadBytes = 5 << 20
)

// SubmitRequest carries one uploaded document and its boundary metadata.
type SubmitRequest struct {
	Document     []byte
	OriginalName string
	MimeType     string
}

// SubmitResult identifies the certificate a submission resolved to. Duplicate
// marks a dedup hit: CreditID and ContentHash then belong to the existing
// record and no new record was created.
type SubmitResult struct {
	CreditID    string
	ContentHash string
	Duplicate   bool
}

// Service is the ingestion gateway: it validates an upload, hashes it,
// stores the bytes, and creates the pending certificate record. Dedup relies
// on the repository's content-hash uniqueness, never on a check-then-act read.
type Service struct {
	certs   store.Store
	blobs   content.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	events  kafka.Publisher
}

func NewService(certs store.Store, blobs content.Store, logger *slog.Logger, m *metrics.Metrics, events kafka.Publisher) *Service {
	return &Service{certs: certs, blobs: blobs, logger: logger, metrics: m, events: events}
}

// Submit ingests one document. Validation happens before any hashing or
// storage; on every failure path after the bytes are written, the bytes are
// deleted so storage never holds orphaned blobs.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if req.MimeType != AcceptedMimeType {
		return SubmitResult{}, domainerrors.New(domainerrors.CodeBadRequest,
			"Invalid file type. Only PDF files are allowed.")
	}
	if len(req.Document) == 0 {
		return SubmitResult{}, domainerrors.New(domainerrors.CodeBadRequest,
			"No file selected for upload.")
	}
	if len(req.Document) > MaxUploadBytes {
		return SubmitResult{}, domainerrors.New(domainerrors.CodeBadRequest,
			"File too large. Max 5MB allowed.")
	}

	digest := sha256.Sum256(req.Document)
	hash := hex.EncodeToString(digest[:])

	// Fast path: a prior upload with this hash short-circuits before any byte
	// write. The insert below remains the authoritative dedup guard.
	if existing, err := s.certs.FindByContentHash(ctx, hash); err == nil {
		s.metrics.DuplicateUploads.Inc()
		return SubmitResult{CreditID: existing.CreditID, ContentHash: hash, Duplicate: true}, nil
	}

	ref, err := s.blobs.Put(ctx, req.OriginalName, req.Document)
	if err != nil {
		return SubmitResult{}, domainerrors.Wrap(domainerrors.CodeInternal,
			"Failed to process certificate. Please try again.", err)
	}

	now := time.Now()
	cert := models.Certificate{
		CreditID:     models.NewCreditID(now),
		ContentHash:  hash,
		StorageRef:   ref,
		OriginalName: req.OriginalName,
		MimeType:     req.MimeType,
		ByteSize:     int64(len(req.Document)),
		UploadDate:   now,
		Status:       models.StatusPending,
	}

	if err := s.certs.Insert(ctx, cert); err != nil {
		s.cleanupBlob(ctx, ref)

		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the race to an identical concurrent upload: the conflict is
			// the duplicate success path, carrying the winner's identity.
			existing, findErr := s.certs.FindByContentHash(ctx, hash)
			if findErr != nil {
				return SubmitResult{}, domainerrors.Wrap(domainerrors.CodeInternal,
					"Failed to process certificate. Please try again.", findErr)
			}
			s.metrics.DuplicateUploads.Inc()
			return SubmitResult{CreditID: existing.CreditID, ContentHash: hash, Duplicate: true}, nil
		}
		return SubmitResult{}, domainerrors.Wrap(domainerrors.CodeInternal,
			"Failed to process certificate. Please try again.", err)
	}

	s.metrics.CertificatesUploaded.Inc()
	s.events.Publish(ctx, kafka.Event{
		Type:       kafka.EventUploaded,
		CreditID:   cert.CreditID,
		Status:     string(cert.Status),
		OccurredAt: now,
	})
	s.logger.InfoContext(ctx, "certificate ingested",
		"credit_id", cert.CreditID,
		"hash", hash,
		"bytes", cert.ByteSize,
	)

	return SubmitResult{CreditID: cert.CreditID, ContentHash: hash}, nil
}

func (s *Service) cleanupBlob(ctx context.Context, ref string) {
	if err := s.blobs.Delete(ctx, ref); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete orphaned upload",
			"storage_ref", ref,
			"error", err.Error(),
		)
	}
}

// Fetch returns the stored document bytes for a certificate.
func (s *Service) Fetch(ctx context.Context, creditID string) ([]byte, models.Certificate, error) {
	cert, err := s.certs.FindByCreditID(ctx, creditID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.Certificate{}, domainerrors.New(domainerrors.CodeNotFound, "credit ID not found")
		}
		return nil, models.Certificate{}, domainerrors.Wrap(domainerrors.CodeInternal, "failed to load certificate", err)
	}
	if cert.StorageRef == "" {
		return nil, models.Certificate{}, domainerrors.New(domainerrors.CodeNotFound, "certificate file not found on server")
	}
	document, err := s.blobs.Get(ctx, cert.StorageRef)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.Certificate{}, domainerrors.New(domainerrors.CodeNotFound, "certificate file not found on server")
		}
		return nil, models.Certificate{}, domainerrors.Wrap(domainerrors.CodeInternal, "failed to read certificate file", err)
	}
	return document, cert, nil
}
