package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"greencredits/internal/certificate/models"
	"greencredits/pkg/platform/sentinel"
)

// Schema is the certificate table DDL. The unique index on content_hash is
// what makes dedup check-and-insert atomic: concurrent identical uploads race
// to the constraint, and the loser gets a conflict instead of a second record.
const Schema = `
CREATE TABLE IF NOT EXISTS certificates (
	credit_id                  TEXT PRIMARY KEY,
	content_hash               TEXT UNIQUE,
	storage_ref                TEXT NOT NULL DEFAULT '',
	original_name              TEXT NOT NULL DEFAULT '',
	mime_type                  TEXT NOT NULL DEFAULT '',
	byte_size                  BIGINT NOT NULL DEFAULT 0,
	upload_date                TIMESTAMPTZ NOT NULL,
	status                     TEXT NOT NULL,
	extracted_data             JSONB,
	carbonmark_details         JSONB,
	blockchain_status          TEXT,
	fabric_tx_id               TEXT,
	last_verification_response JSONB,
	authentication_error       TEXT,
	authenticated_at           TIMESTAMPTZ,
	is_listed                  BOOLEAN NOT NULL DEFAULT FALSE,
	price_type                 TEXT,
	marketplace_price          DOUBLE PRECISION,
	listed_at                  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS certificates_serial_number_idx
	ON certificates ((extracted_data->>'serial_number'));
`

const certificateColumns = `credit_id, content_hash, storage_ref, original_name, mime_type,
	byte_size, upload_date, status, extracted_data, carbonmark_details,
	blockchain_status, fabric_tx_id, last_verification_response,
	authentication_error, authenticated_at, is_listed, price_type,
	marketplace_price, listed_at`

// PostgresStore persists certificates in PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed certificate store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the certificate table and indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure certificates schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, cert models.Certificate) error {
	extracted, err := marshalJSONB(cert.ExtractedData)
	if err != nil {
		return fmt.Errorf("encode extracted data: %w", err)
	}
	carbonmark, err := marshalJSONB(cert.CarbonmarkDetails)
	if err != nil {
		return fmt.Errorf("encode carbonmark details: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO certificates (
			credit_id, content_hash, storage_ref, original_name, mime_type,
			byte_size, upload_date, status, extracted_data, carbonmark_details,
			is_listed, price_type, marketplace_price, listed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		cert.CreditID, nullString(cert.ContentHash), cert.StorageRef, cert.OriginalName,
		cert.MimeType, cert.ByteSize, cert.UploadDate, string(cert.Status),
		extracted, carbonmark, cert.IsListed, nullString(string(cert.PriceType)),
		cert.MarketplacePrice, cert.ListedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("insert certificate %s: %w", cert.CreditID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert certificate %s: %w", cert.CreditID, err)
	}
	return nil
}

func (s *PostgresStore) FindByCreditID(ctx context.Context, creditID string) (models.Certificate, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE credit_id = $1`, creditID)
	return scanCertificate(row)
}

func (s *PostgresStore) FindByContentHash(ctx context.Context, hash string) (models.Certificate, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE content_hash = $1`, hash)
	return scanCertificate(row)
}

func (s *PostgresStore) FindBySerialNumber(ctx context.Context, serialNumber string) (models.Certificate, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+certificateColumns+` FROM certificates
		 WHERE extracted_data->>'serial_number' = $1
		 ORDER BY upload_date ASC LIMIT 1`, serialNumber)
	return scanCertificate(row)
}

func (s *PostgresStore) UpdateVerification(ctx context.Context, creditID string, upd models.VerificationUpdate) (models.Certificate, error) {
	extracted, err := marshalJSONB(upd.ExtractedData)
	if err != nil {
		return models.Certificate{}, fmt.Errorf("encode extracted data: %w", err)
	}
	carbonmark, err := marshalJSONB(upd.CarbonmarkDetails)
	if err != nil {
		return models.Certificate{}, fmt.Errorf("encode carbonmark details: %w", err)
	}

	// COALESCE keeps existing values when the collaborator response omitted a
	// field, matching the partial-merge audit semantics.
	row := s.pool.QueryRow(ctx, `
		UPDATE certificates SET
			status                     = $2,
			authenticated_at           = $3,
			last_verification_response = COALESCE($4, last_verification_response),
			extracted_data             = COALESCE($5, extracted_data),
			carbonmark_details         = COALESCE($6, carbonmark_details),
			blockchain_status          = COALESCE($7, blockchain_status),
			fabric_tx_id               = COALESCE($8, fabric_tx_id),
			authentication_error       = COALESCE($9, authentication_error)
		WHERE credit_id = $1
		RETURNING `+certificateColumns,
		creditID, string(upd.Status), upd.AuthenticatedAt,
		[]byte(upd.LastVerificationResponse), extracted, carbonmark,
		nullString(upd.BlockchainStatus), nullString(upd.FabricTxID),
		nullString(upd.AuthenticationError),
	)
	return scanCertificate(row)
}

func (s *PostgresStore) UpdateListing(ctx context.Context, creditID string, upd models.ListingUpdate) (models.Certificate, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE certificates SET
			is_listed         = TRUE,
			status            = $2,
			price_type        = $3,
			marketplace_price = $4,
			listed_at         = $5
		WHERE credit_id = $1
		RETURNING `+certificateColumns,
		creditID, string(models.StatusListed), string(upd.PriceType),
		upd.MarketplacePrice, upd.ListedAt,
	)
	return scanCertificate(row)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]models.Certificate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+certificateColumns+` FROM certificates ORDER BY upload_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	var certs []models.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (models.Certificate, error) {
	var (
		cert       models.Certificate
		status     string
		hash       *string
		extracted  []byte
		carbonmark []byte
		blockchain *string
		fabricTxID *string
		lastResp   []byte
		authErr    *string
		priceType  *string
	)
	err := row.Scan(
		&cert.CreditID, &hash, &cert.StorageRef, &cert.OriginalName, &cert.MimeType,
		&cert.ByteSize, &cert.UploadDate, &status, &extracted, &carbonmark,
		&blockchain, &fabricTxID, &lastResp,
		&authErr, &cert.AuthenticatedAt, &cert.IsListed, &priceType,
		&cert.MarketplacePrice, &cert.ListedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Certificate{}, fmt.Errorf("certificate: %w", sentinel.ErrNotFound)
		}
		return models.Certificate{}, fmt.Errorf("scan certificate: %w", err)
	}

	cert.Status = models.Status(status)
	if hash != nil {
		cert.ContentHash = *hash
	}
	if blockchain != nil {
		cert.BlockchainStatus = *blockchain
	}
	if fabricTxID != nil {
		cert.FabricTxID = *fabricTxID
	}
	if authErr != nil {
		cert.AuthenticationError = *authErr
	}
	if priceType != nil {
		cert.PriceType = models.PriceType(*priceType)
	}
	if len(lastResp) > 0 {
		cert.LastVerificationResponse = json.RawMessage(lastResp)
	}
	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &cert.ExtractedData); err != nil {
			return models.Certificate{}, fmt.Errorf("decode extracted data: %w", err)
		}
	}
	if len(carbonmark) > 0 {
		if err := json.Unmarshal(carbonmark, &cert.CarbonmarkDetails); err != nil {
			return models.Certificate{}, fmt.Errorf("decode carbonmark details: %w", err)
		}
	}
	return cert, nil
}

// marshalJSONB encodes a map for a JSONB column, preserving NULL for absent
// values so COALESCE-based merges can tell "omitted" from "empty".
func marshalJSONB[M ~map[string]K, K any](m M) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ Store = (*PostgresStore)(nil)
var _ Store = (*InMemoryStore)(nil)

// Connect opens a pgx pool against the given URL with a bounded dial timeout.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
