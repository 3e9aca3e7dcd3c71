package verifier

import (
	"encoding/json"
	"fmt"

	"greencredits/internal/certificate/models"
)

// Response is the structured verdict returned by the verification
// collaborator. Raw preserves the exact payload for the audit trail.
type Response struct {
	Authenticated     bool                 `json:"authenticated"`
	Status            string               `json:"status"`
	Message           string               `json:"message"`
	ExtractedData     models.ExtractedData `json:"extracted_data"`
	CarbonmarkDetails map[string]any       `json:"carbonmark_details"`
	BlockchainStatus  string               `json:"blockchain_status"`
	FabricTxID        string               `json:"fabric_tx_id"`

	Raw json.RawMessage `json:"-"`
}

// CertificateStatus maps the verdict onto the certificate state machine. The
// positive flag wins; otherwise the collaborator's own status string is used,
// defaulting to unauthenticated.
func (r *Response) CertificateStatus() models.Status {
	if r.Authenticated {
		return models.StatusAuthenticated
	}
	if r.Status != "" {
		return models.Status(r.Status)
	}
	return models.StatusUnauthenticated
}

// UpstreamError is a collaborator-delivered failure: the collaborator was
// reached and answered with an error status. These are never retried.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("verifier returned %d: %s", e.StatusCode, e.Message)
}
