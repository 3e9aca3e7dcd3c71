package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, the content store, and the
// verifier client return these (optionally wrapped) so services can translate
// them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record or blob does not exist
// - ErrConflict: uniqueness constraint hit (duplicate content hash, email)
// - ErrUnavailable: external service or resource temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domainerrors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
