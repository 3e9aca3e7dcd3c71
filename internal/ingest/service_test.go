package ingest

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"greencredits/internal/certificate/models"
	"greencredits/internal/certificate/store"
	"greencredits/internal/content"
	"greencredits/internal/platform/kafka"
	"greencredits/internal/platform/logger"
	"greencredits/internal/platform/metrics"
	"greencredits/pkg/domainerrors"
	"greencredits/pkg/platform/sentinel"
)

type IngestServiceSuite struct {
	suite.Suite
	certs   *store.InMemoryStore
	blobs   *content.InMemoryStore
	service *Service
}

func TestIngestServiceSuite(t *testing.T) {
	suite.Run(t, new(IngestServiceSuite))
}

func (s *IngestServiceSuite) SetupTest() {
	s.certs = store.NewInMemoryStore()
	s.blobs = content.NewInMemoryStore()
	s.service = NewService(s.certs, s.blobs, logger.New(),
		metrics.NewWithRegistry(prometheus.NewRegistry()), kafka.NopPublisher{})
}

func (s *IngestServiceSuite) submitPDF(doc []byte) (SubmitResult, error) {
	return s.service.Submit(context.Background(), SubmitRequest{
		Document:     doc,
		OriginalName: "certificate.pdf",
		MimeType:     AcceptedMimeType,
	})
}

func (s *IngestServiceSuite) TestValidation() {
	ctx := context.Background()

	s.Run("rejects non-pdf uploads before any storage", func() {
		_, err := s.service.Submit(ctx, SubmitRequest{
			Document:     []byte("plain text"),
			OriginalName: "notes.txt",
			MimeType:     "text/plain",
		})
		s.True(domainerrors.Is(err, domainerrors.CodeBadRequest))
		s.Zero(s.blobs.Len())
	})

	s.Run("rejects empty uploads", func() {
		_, err := s.submitPDF(nil)
		s.True(domainerrors.Is(err, domainerrors.CodeBadRequest))
	})

	s.Run("rejects oversized uploads", func() {
		_, err := s.submitPDF(make([]byte, MaxUploadBytes+1))
		s.True(domainerrors.Is(err, domainerrors.CodeBadRequest))
		s.Zero(s.blobs.Len())
	})
}

func (s *IngestServiceSuite) TestSubmit() {
	ctx := context.Background()

	s.Run("creates a pending record", func() {
		result, err := s.submitPDF([]byte("document-one"))
		s.Require().NoError(err)
		s.False(result.Duplicate)
		s.NotEmpty(result.CreditID)
		s.Len(result.ContentHash, 64, "sha-256 hex digest")

		cert, err := s.certs.FindByCreditID(ctx, result.CreditID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, cert.Status)
		s.Equal(result.ContentHash, cert.ContentHash)
		s.NotEmpty(cert.StorageRef)
		s.Equal(1, s.blobs.Len())
	})

	s.Run("distinct payloads get distinct identities", func() {
		first, err := s.submitPDF([]byte("payload-a"))
		s.Require().NoError(err)
		second, err := s.submitPDF([]byte("payload-b"))
		s.Require().NoError(err)
		s.NotEqual(first.ContentHash, second.ContentHash)
		s.NotEqual(first.CreditID, second.CreditID)
	})
}

func (s *IngestServiceSuite) TestDedup() {
	ctx := context.Background()

	first, err := s.submitPDF([]byte("same-bytes"))
	s.Require().NoError(err)
	blobsAfterFirst := s.blobs.Len()

	s.Run("second identical upload is a duplicate with the original identity", func() {
		second, err := s.submitPDF([]byte("same-bytes"))
		s.Require().NoError(err)
		s.True(second.Duplicate)
		s.Equal(first.CreditID, second.CreditID)
		s.Equal(first.ContentHash, second.ContentHash)
	})

	s.Run("duplicate leaves no extra record or blob behind", func() {
		all, err := s.certs.ListAll(ctx)
		s.Require().NoError(err)
		s.Len(all, 1)
		s.Equal(blobsAfterFirst, s.blobs.Len())
	})
}

// missOnceStore simulates losing the insert race: while armed, the pre-insert
// hash lookup misses, so the submission writes bytes and collides with the
// uniqueness constraint at insert time.
type missOnceStore struct {
	*store.InMemoryStore
	armed bool
}

func (r *missOnceStore) FindByContentHash(ctx context.Context, hash string) (models.Certificate, error) {
	if r.armed {
		r.armed = false
		return models.Certificate{}, sentinel.ErrNotFound
	}
	return r.InMemoryStore.FindByContentHash(ctx, hash)
}

func (s *IngestServiceSuite) TestDedupRace() {
	ctx := context.Background()

	racing := &missOnceStore{InMemoryStore: store.NewInMemoryStore()}
	blobs := content.NewInMemoryStore()
	service := NewService(racing, blobs, logger.New(),
		metrics.NewWithRegistry(prometheus.NewRegistry()), kafka.NopPublisher{})

	winner, err := service.Submit(ctx, SubmitRequest{
		Document: []byte("contested"), OriginalName: "a.pdf", MimeType: AcceptedMimeType,
	})
	s.Require().NoError(err)
	s.False(winner.Duplicate)

	// The second submission's pre-check misses, so it writes bytes and loses
	// at the constraint. It must clean up and resolve to the winner.
	racing.armed = true
	loser, err := service.Submit(ctx, SubmitRequest{
		Document: []byte("contested"), OriginalName: "b.pdf", MimeType: AcceptedMimeType,
	})
	s.Require().NoError(err)
	s.True(loser.Duplicate)
	s.Equal(winner.CreditID, loser.CreditID)
	s.Equal(1, blobs.Len(), "loser's bytes must be deleted")
}
