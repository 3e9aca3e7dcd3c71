package store

import (
	"context"
	"fmt"
	"sync"

	"greencredits/internal/certificate/models"
	"greencredits/pkg/platform/sentinel"
)

// InMemoryStore keeps certificates in process memory. It mirrors the postgres
// store's semantics, including hash uniqueness enforced atomically under the
// write lock, so services behave identically against either implementation.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]models.Certificate
	byHash map[string]string // content hash -> creditId
	order  []string          // insertion order for ListAll
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[string]models.Certificate),
		byHash: make(map[string]string),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, cert models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[cert.CreditID]; ok {
		return fmt.Errorf("credit id %s: %w", cert.CreditID, sentinel.ErrConflict)
	}
	if cert.ContentHash != "" {
		if _, ok := s.byHash[cert.ContentHash]; ok {
			return fmt.Errorf("content hash %s: %w", cert.ContentHash, sentinel.ErrConflict)
		}
		s.byHash[cert.ContentHash] = cert.CreditID
	}
	s.byID[cert.CreditID] = cert
	s.order = append(s.order, cert.CreditID)
	return nil
}

func (s *InMemoryStore) FindByCreditID(_ context.Context, creditID string) (models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cert, ok := s.byID[creditID]; ok {
		return cert, nil
	}
	return models.Certificate{}, fmt.Errorf("credit id %s: %w", creditID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByContentHash(_ context.Context, hash string) (models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if creditID, ok := s.byHash[hash]; ok {
		return s.byID[creditID], nil
	}
	return models.Certificate{}, fmt.Errorf("content hash %s: %w", hash, sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindBySerialNumber(_ context.Context, serialNumber string) (models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, creditID := range s.order {
		cert := s.byID[creditID]
		if cert.ExtractedData.SerialNumber() == serialNumber {
			return cert, nil
		}
	}
	return models.Certificate{}, fmt.Errorf("serial number %s: %w", serialNumber, sentinel.ErrNotFound)
}

func (s *InMemoryStore) UpdateVerification(_ context.Context, creditID string, upd models.VerificationUpdate) (models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.byID[creditID]
	if !ok {
		return models.Certificate{}, fmt.Errorf("credit id %s: %w", creditID, sentinel.ErrNotFound)
	}

	cert.Status = upd.Status
	cert.AuthenticatedAt = &upd.AuthenticatedAt
	if upd.LastVerificationResponse != nil {
		cert.LastVerificationResponse = upd.LastVerificationResponse
	}
	if upd.ExtractedData != nil {
		cert.ExtractedData = upd.ExtractedData
	}
	if upd.CarbonmarkDetails != nil {
		cert.CarbonmarkDetails = upd.CarbonmarkDetails
	}
	if upd.BlockchainStatus != "" {
		cert.BlockchainStatus = upd.BlockchainStatus
	}
	if upd.FabricTxID != "" {
		cert.FabricTxID = upd.FabricTxID
	}
	if upd.AuthenticationError != "" {
		cert.AuthenticationError = upd.AuthenticationError
	}

	s.byID[creditID] = cert
	return cert, nil
}

func (s *InMemoryStore) UpdateListing(_ context.Context, creditID string, upd models.ListingUpdate) (models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.byID[creditID]
	if !ok {
		return models.Certificate{}, fmt.Errorf("credit id %s: %w", creditID, sentinel.ErrNotFound)
	}

	cert.IsListed = true
	cert.Status = models.StatusListed
	cert.PriceType = upd.PriceType
	cert.MarketplacePrice = upd.MarketplacePrice
	cert.ListedAt = &upd.ListedAt

	s.byID[creditID] = cert
	return cert, nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Certificate, 0, len(s.order))
	for _, creditID := range s.order {
		out = append(out, s.byID[creditID])
	}
	return out, nil
}
