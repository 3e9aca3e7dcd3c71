package shared

import (
	"encoding/json"
	"net/http"

	"greencredits/pkg/domainerrors"
)

// WriteJSON renders v as a JSON response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope. Only the
// coded error's safe message reaches the client; wrapped causes stay in logs.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, domainerrors.ToHTTPStatus(err), map[string]string{
		"error":   string(codeOf(err)),
		"message": domainerrors.SafeMessage(err),
	})
}

func codeOf(err error) domainerrors.Code {
	for _, code := range []domainerrors.Code{
		domainerrors.CodeBadRequest,
		domainerrors.CodeNotFound,
		domainerrors.CodeDuplicate,
		domainerrors.CodeUpstream,
		domainerrors.CodeUnavailable,
	} {
		if domainerrors.Is(err, code) {
			return code
		}
	}
	return domainerrors.CodeInternal
}
