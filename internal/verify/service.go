package verify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"greencredits/internal/certificate/models"
	"greencredits/internal/certificate/store"
	"greencredits/internal/content"
	"greencredits/internal/platform/kafka"
	"greencredits/internal/platform/metrics"
	"greencredits/internal/verify/verifier"
	"greencredits/pkg/domainerrors"
	"greencredits/pkg/platform/circuit"
	"greencredits/pkg/platform/sentinel"
)

// Verifier is the external collaborator contract the orchestrator depends on.
type Verifier interface {
	Verify(ctx context.Context, filename string, document []byte) (*verifier.Response, error)
}

// Outcome is the result of one verification attempt: the certificate's new
// status plus the collaborator's full response for the caller.
type Outcome struct {
	CreditID   string          `json:"creditId"`
	Status     models.Status   `json:"status"`
	AuthResult json.RawMessage `json:"authResult"`
}

// Service orchestrates certificate verification: fetch the stored document,
// call the collaborator, map its verdict onto the state machine, and persist
// the full response for audit.
type Service struct {
	certs    store.Store
	blobs    content.Store
	verifier Verifier
	locker   Locker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	events   kafka.Publisher
	tracer   trace.Tracer
	breaker  *circuit.Breaker

	group singleflight.Group
}

func NewService(
	certs store.Store,
	blobs content.Store,
	v Verifier,
	locker Locker,
	logger *slog.Logger,
	m *metrics.Metrics,
	events kafka.Publisher,
) *Service {
	return &Service{
		certs:    certs,
		blobs:    blobs,
		verifier: v,
		locker:   locker,
		logger:   logger,
		metrics:  m,
		events:   events,
		tracer:   otel.Tracer("greencredits/verify"),
		breaker:  circuit.New("verifier", circuit.WithFailureThreshold(5), circuit.WithOpenTimeout(30*time.Second)),
	}
}

// Verify runs one verification attempt for creditID. Concurrent calls for the
// same id are collapsed in-process and serialized across processes by the
// locker, so an earlier collaborator response can never clobber a later one.
func (s *Service) Verify(ctx context.Context, creditID string) (Outcome, error) {
	result, err, _ := s.group.Do(creditID, func() (any, error) {
		return s.verifyOne(ctx, creditID)
	})
	if err != nil {
		return Outcome{}, err
	}
	return result.(Outcome), nil
}

func (s *Service) verifyOne(ctx context.Context, creditID string) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "verify.certificate",
		trace.WithAttributes(attribute.String("credit_id", creditID)))
	defer span.End()

	release, err := s.locker.Acquire(ctx, creditID)
	if err != nil {
		return Outcome{}, domainerrors.Wrap(domainerrors.CodeInternal, "could not serialize verification", err)
	}
	defer release()

	cert, err := s.certs.FindByCreditID(ctx, creditID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Outcome{}, domainerrors.New(domainerrors.CodeNotFound, "credit ID not found")
		}
		return Outcome{}, domainerrors.Wrap(domainerrors.CodeInternal, "failed to load certificate", err)
	}

	// The state machine only defines verification edges out of pending. A
	// certificate that already left pending keeps its verdict; callers get
	// the recorded outcome back instead of a re-run.
	if cert.Status != models.StatusPending {
		return Outcome{
			CreditID:   cert.CreditID,
			Status:     cert.Status,
			AuthResult: cert.LastVerificationResponse,
		}, nil
	}

	if cert.StorageRef == "" {
		return Outcome{}, domainerrors.New(domainerrors.CodeNotFound, "certificate file not found on server")
	}
	document, err := s.blobs.Get(ctx, cert.StorageRef)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Outcome{}, domainerrors.New(domainerrors.CodeNotFound, "certificate file not found on server")
		}
		return Outcome{}, domainerrors.Wrap(domainerrors.CodeInternal, "failed to read certificate file", err)
	}

	// Fail fast while the collaborator is known to be down. The certificate
	// stays pending, so the attempt can simply be repeated later.
	if !s.breaker.Allow() {
		return Outcome{}, domainerrors.New(domainerrors.CodeUnavailable,
			"Authentication service unavailable. Please try again later.")
	}

	resp, callErr := s.callCollaborator(ctx, cert.OriginalName, document)
	s.recordAvailability(ctx, callErr)
	if callErr != nil {
		return Outcome{}, s.recordFailure(ctx, creditID, callErr)
	}

	status := resp.CertificateStatus()
	updated, err := s.certs.UpdateVerification(ctx, creditID, models.VerificationUpdate{
		Status:                   status,
		ExtractedData:            resp.ExtractedData,
		CarbonmarkDetails:        resp.CarbonmarkDetails,
		BlockchainStatus:         resp.BlockchainStatus,
		FabricTxID:               resp.FabricTxID,
		LastVerificationResponse: resp.Raw,
		AuthenticatedAt:          time.Now(),
	})
	if err != nil {
		return Outcome{}, domainerrors.Wrap(domainerrors.CodeInternal,
			"failed to update certificate details after authentication", err)
	}

	s.metrics.VerificationsByStatus.WithLabelValues(string(status)).Inc()
	s.events.Publish(ctx, kafka.Event{
		Type:       kafka.EventVerified,
		CreditID:   creditID,
		Status:     string(status),
		OccurredAt: time.Now(),
	})
	s.logger.InfoContext(ctx, "certificate verified",
		"credit_id", creditID,
		"status", string(status),
	)

	return Outcome{CreditID: updated.CreditID, Status: updated.Status, AuthResult: resp.Raw}, nil
}

func (s *Service) callCollaborator(ctx context.Context, filename string, document []byte) (*verifier.Response, error) {
	ctx, span := s.tracer.Start(ctx, "verify.collaborator")
	defer span.End()
	resp, err := s.verifier.Verify(ctx, filename, document)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "collaborator call failed")
		return nil, err
	}
	return resp, nil
}

// recordAvailability feeds the breaker. A delivered verdict counts as success
// even when it is an error status: the collaborator is reachable, the breaker
// only tracks transport health.
func (s *Service) recordAvailability(ctx context.Context, callErr error) {
	var upstream *verifier.UpstreamError
	if callErr == nil || errors.As(callErr, &upstream) {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "verifier circuit closed")
		}
		return
	}
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.WarnContext(ctx, "verifier circuit opened")
	}
}

// recordFailure transitions the certificate to authentication_failed before
// surfacing the error, so a failed attempt always leaves an audit trace.
func (s *Service) recordFailure(ctx context.Context, creditID string, callErr error) error {
	var upstream *verifier.UpstreamError
	message := "Authentication request failed."
	if errors.As(callErr, &upstream) {
		message = upstream.Message
	}

	_, err := s.certs.UpdateVerification(ctx, creditID, models.VerificationUpdate{
		Status:              models.StatusAuthenticationFailed,
		AuthenticationError: message,
		AuthenticatedAt:     time.Now(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record verification failure",
			"credit_id", creditID,
			"error", err.Error(),
		)
	}

	s.metrics.VerificationsByStatus.WithLabelValues(string(models.StatusAuthenticationFailed)).Inc()
	s.logger.WarnContext(ctx, "verification failed",
		"credit_id", creditID,
		"error", callErr.Error(),
	)

	if upstream != nil {
		return domainerrors.Upstream(upstream.StatusCode, upstream.Message)
	}
	return domainerrors.Wrap(domainerrors.CodeUpstream, message, callErr)
}
