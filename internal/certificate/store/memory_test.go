package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"greencredits/internal/certificate/models"
	"greencredits/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) pendingCert(creditID, hash string) models.Certificate {
	return models.Certificate{
		CreditID:     creditID,
		ContentHash:  hash,
		StorageRef:   "ref-" + creditID,
		OriginalName: "certificate.pdf",
		MimeType:     "application/pdf",
		ByteSize:     1024,
		UploadDate:   time.Now(),
		Status:       models.StatusPending,
	}
}

func (s *InMemoryStoreSuite) TestInsert() {
	ctx := context.Background()

	s.Run("stores a new certificate", func() {
		err := s.store.Insert(ctx, s.pendingCert("CREDIT-1", "hash-1"))
		s.NoError(err)

		got, err := s.store.FindByCreditID(ctx, "CREDIT-1")
		s.NoError(err)
		s.Equal(models.StatusPending, got.Status)
	})

	s.Run("rejects a duplicate content hash", func() {
		err := s.store.Insert(ctx, s.pendingCert("CREDIT-2", "hash-1"))
		s.ErrorIs(err, sentinel.ErrConflict)

		_, err = s.store.FindByCreditID(ctx, "CREDIT-2")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("allows hashless synthesized records", func() {
		synth := s.pendingCert("CREDIT-3", "")
		synth.Status = models.StatusListed
		s.NoError(s.store.Insert(ctx, synth))
		s.NoError(s.store.Insert(ctx, func() models.Certificate {
			c := s.pendingCert("CREDIT-4", "")
			c.Status = models.StatusListed
			return c
		}()))
	})
}

func (s *InMemoryStoreSuite) TestFindByContentHash() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, s.pendingCert("CREDIT-1", "hash-1")))

	got, err := s.store.FindByContentHash(ctx, "hash-1")
	s.NoError(err)
	s.Equal("CREDIT-1", got.CreditID)

	_, err = s.store.FindByContentHash(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestFindBySerialNumber() {
	ctx := context.Background()
	cert := s.pendingCert("CREDIT-1", "hash-1")
	cert.ExtractedData = models.ExtractedData{"serial_number": "VCS-001"}
	s.Require().NoError(s.store.Insert(ctx, cert))

	got, err := s.store.FindBySerialNumber(ctx, "VCS-001")
	s.NoError(err)
	s.Equal("CREDIT-1", got.CreditID)

	_, err = s.store.FindBySerialNumber(ctx, "UNKNOWN")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestUpdateVerification() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, s.pendingCert("CREDIT-1", "hash-1")))

	s.Run("applies a full verdict", func() {
		raw := json.RawMessage(`{"authenticated":true}`)
		updated, err := s.store.UpdateVerification(ctx, "CREDIT-1", models.VerificationUpdate{
			Status:                   models.StatusAuthenticated,
			ExtractedData:            models.ExtractedData{"serial_number": "VCS-001"},
			BlockchainStatus:         "confirmed",
			LastVerificationResponse: raw,
			AuthenticatedAt:          time.Now(),
		})
		s.NoError(err)
		s.Equal(models.StatusAuthenticated, updated.Status)
		s.Equal("VCS-001", updated.ExtractedData.SerialNumber())
		s.JSONEq(string(raw), string(updated.LastVerificationResponse))
	})

	s.Run("partial update keeps earlier fields", func() {
		updated, err := s.store.UpdateVerification(ctx, "CREDIT-1", models.VerificationUpdate{
			Status:          models.StatusUnauthenticated,
			AuthenticatedAt: time.Now(),
		})
		s.NoError(err)
		s.Equal(models.StatusUnauthenticated, updated.Status)
		s.Equal("VCS-001", updated.ExtractedData.SerialNumber(), "omitted extracted data must survive")
		s.Equal("confirmed", updated.BlockchainStatus)
		s.NotEmpty(updated.LastVerificationResponse)
	})

	s.Run("unknown credit id", func() {
		_, err := s.store.UpdateVerification(ctx, "CREDIT-missing", models.VerificationUpdate{
			Status: models.StatusAuthenticated,
		})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestUpdateListing() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, s.pendingCert("CREDIT-1", "hash-1")))

	price := 10.0
	updated, err := s.store.UpdateListing(ctx, "CREDIT-1", models.ListingUpdate{
		PriceType:        models.PriceFixed,
		MarketplacePrice: &price,
		ListedAt:         time.Now(),
	})
	s.NoError(err)
	s.True(updated.IsListed)
	s.Equal(models.StatusListed, updated.Status)
	s.Require().NotNil(updated.MarketplacePrice)
	s.Equal(10.0, *updated.MarketplacePrice)
	s.NotNil(updated.ListedAt)
}

func (s *InMemoryStoreSuite) TestListAll() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, s.pendingCert("CREDIT-1", "hash-1")))
	s.Require().NoError(s.store.Insert(ctx, s.pendingCert("CREDIT-2", "hash-2")))

	all, err := s.store.ListAll(ctx)
	s.NoError(err)
	s.Len(all, 2)
	s.Equal("CREDIT-1", all[0].CreditID)
	s.Equal("CREDIT-2", all[1].CreditID)
}
