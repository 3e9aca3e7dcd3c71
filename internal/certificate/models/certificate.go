package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the certificate lifecycle state. Transitions out of pending are
// one-way: a certificate never returns to pending.
type Status string

const (
	StatusPending              Status = "pending"
	StatusAuthenticated        Status = "authenticated"
	StatusUnauthenticated      Status = "unauthenticated"
	StatusAuthenticationFailed Status = "authentication_failed"
	StatusListed               Status = "listed"
)

// PriceType selects the marketplace pricing mode. Fixed carries a numeric
// price; negotiation forces the price to null.
type PriceType string

const (
	PriceFixed       PriceType = "fixed"
	PriceNegotiation PriceType = "negotiation"
)

// ExtractedData is the field map the verification collaborator pulls out of a
// certificate document (serial_number, project_id, vintage, amount, ...).
// Values come from an external parser, so shapes are loose by design.
type ExtractedData map[string]any

// SerialNumber returns the business serial number, or "" when absent. The
// marketplace reconciler keys on this value.
func (d ExtractedData) SerialNumber() string {
	s, _ := d["serial_number"].(string)
	return s
}

// Certificate is the persistent record for one uploaded document and its
// lifecycle state. JSON tags match the dashboard API the frontend consumes.
type Certificate struct {
	CreditID     string    `json:"creditId"`
	ContentHash  string    `json:"hash,omitempty"`
	StorageRef   string    `json:"-"`
	OriginalName string    `json:"originalName,omitempty"`
	MimeType     string    `json:"mimeType,omitempty"`
	ByteSize     int64     `json:"byteSize,omitempty"`
	UploadDate   time.Time `json:"uploadDate"`
	Status       Status    `json:"status"`

	ExtractedData     ExtractedData  `json:"extractedData,omitempty"`
	CarbonmarkDetails map[string]any `json:"carbonmarkDetails,omitempty"`
	BlockchainStatus  string         `json:"blockchainStatus,omitempty"`
	FabricTxID        string         `json:"fabricTxId,omitempty"`

	// LastVerificationResponse is the raw collaborator payload from the most
	// recent verification attempt, kept for audit regardless of outcome.
	LastVerificationResponse json.RawMessage `json:"lastVerificationResponse,omitempty"`
	AuthenticationError      string          `json:"authenticationError,omitempty"`
	AuthenticatedAt          *time.Time      `json:"authenticatedAt,omitempty"`

	IsListed         bool       `json:"isListed"`
	PriceType        PriceType  `json:"priceType,omitempty"`
	MarketplacePrice *float64   `json:"marketplacePrice,omitempty"`
	ListedAt         *time.Time `json:"listedAt,omitempty"`
}

// NewCreditID mints a credit identifier. The millisecond timestamp keeps ids
// roughly sortable; the random suffix keeps concurrent mints distinct.
func NewCreditID(now time.Time) string {
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("CREDIT-%d-%s", now.UnixMilli(), suffix)
}

// VerificationUpdate carries the fields a verification attempt writes back.
// Nil optional fields are left untouched so partial collaborator responses
// never erase previously extracted data.
type VerificationUpdate struct {
	Status                   Status
	ExtractedData            ExtractedData
	CarbonmarkDetails        map[string]any
	BlockchainStatus         string
	FabricTxID               string
	LastVerificationResponse json.RawMessage
	AuthenticationError      string
	AuthenticatedAt          time.Time
}

// ListingUpdate carries the marketplace fields applied when a certificate is
// listed. MarketplacePrice is nil for negotiation pricing.
type ListingUpdate struct {
	PriceType        PriceType
	MarketplacePrice *float64
	ListedAt         time.Time
}
