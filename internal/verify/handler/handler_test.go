package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"greencredits/internal/certificate/models"
	"greencredits/internal/platform/logger"
	"greencredits/internal/platform/metrics"
	"greencredits/internal/verify"
	"greencredits/pkg/domainerrors"
	"greencredits/pkg/testutil"
)

// serviceFunc stubs the verification service per test.
type serviceFunc func(ctx context.Context, creditID string) (verify.Outcome, error)

func (f serviceFunc) Verify(ctx context.Context, creditID string) (verify.Outcome, error) {
	return f(ctx, creditID)
}

func newRouter(t *testing.T, service serviceFunc) chi.Router {
	t.Helper()
	r := chi.NewRouter()
	New(service, logger.New(), metrics.NewWithRegistry(prometheus.NewRegistry())).Register(r)
	return r
}

func TestAuthenticate(t *testing.T) {
	router := newRouter(t, func(_ context.Context, creditID string) (verify.Outcome, error) {
		require.Equal(t, "CREDIT-1", creditID)
		return verify.Outcome{
			CreditID:   creditID,
			Status:     models.StatusAuthenticated,
			AuthResult: json.RawMessage(`{"authenticated":true}`),
		}, nil
	})

	req := testutil.NewJSONRequest(t, http.MethodPost, "/authenticate",
		map[string]string{"creditId": "CREDIT-1"})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertJSONContains(t, rr, "message", "Certificate authentication process completed!")
	testutil.AssertJSONContains(t, rr, "creditId", "CREDIT-1")
	result := testutil.UnmarshalResponse[map[string]any](t, rr)
	require.Equal(t, map[string]any{"authenticated": true}, (*result)["authResult"])
}

func TestAuthenticateRequiresCreditID(t *testing.T) {
	router := newRouter(t, func(context.Context, string) (verify.Outcome, error) {
		t.Fatal("service must not be called")
		return verify.Outcome{}, nil
	})

	req := testutil.NewJSONRequest(t, http.MethodPost, "/authenticate", map[string]string{})
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
}

func TestAuthenticateUnknownCredit(t *testing.T) {
	router := newRouter(t, func(context.Context, string) (verify.Outcome, error) {
		return verify.Outcome{}, domainerrors.New(domainerrors.CodeNotFound, "credit ID not found")
	})

	req := testutil.NewJSONRequest(t, http.MethodPost, "/authenticate",
		map[string]string{"creditId": "CREDIT-missing"})
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	testutil.AssertJSONContains(t, rr, "message", "credit ID not found")
}

func TestAuthenticateUpstreamStatusPassthrough(t *testing.T) {
	router := newRouter(t, func(context.Context, string) (verify.Outcome, error) {
		return verify.Outcome{}, domainerrors.Upstream(http.StatusBadRequest, "Unsupported certificate format")
	})

	req := testutil.NewJSONRequest(t, http.MethodPost, "/authenticate",
		map[string]string{"creditId": "CREDIT-1"})
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "upstream_error")
	testutil.AssertJSONContains(t, rr, "message", "Unsupported certificate format")
}
