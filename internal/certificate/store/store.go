package store

import (
	"context"

	"greencredits/internal/certificate/models"
)

// Store is the certificate repository contract. Implementations must make
// Insert atomic with respect to the content-hash uniqueness rule: two
// concurrent inserts of the same hash yield exactly one stored record and one
// conflict, never two records. Conflicts surface as sentinel.ErrConflict
// (wrapped); missing records as sentinel.ErrNotFound.
type Store interface {
	Insert(ctx context.Context, cert models.Certificate) error
	FindByCreditID(ctx context.Context, creditID string) (models.Certificate, error)
	FindByContentHash(ctx context.Context, hash string) (models.Certificate, error)
	FindBySerialNumber(ctx context.Context, serialNumber string) (models.Certificate, error)
	UpdateVerification(ctx context.Context, creditID string, upd models.VerificationUpdate) (models.Certificate, error)
	UpdateListing(ctx context.Context, creditID string, upd models.ListingUpdate) (models.Certificate, error)
	ListAll(ctx context.Context) ([]models.Certificate, error)
}
