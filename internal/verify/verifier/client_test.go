package verifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"greencredits/pkg/platform/sentinel"
)

type ClientSuite struct {
	suite.Suite
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) TestVerifySuccess() {
	var gotFilename string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/authenticate", r.URL.Path)
		file, header, err := r.FormFile("certificate")
		s.Require().NoError(err)
		file.Close()
		gotFilename = header.Filename

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"authenticated": true,
			"status": "authenticated",
			"extracted_data": {"serial_number": "VCS-001"},
			"blockchain_status": "confirmed",
			"fabric_tx_id": "tx-1"
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 2)
	resp, err := client.Verify(context.Background(), "cert.pdf", []byte("%PDF-1.4"))
	s.Require().NoError(err)
	s.Equal("cert.pdf", gotFilename)
	s.True(resp.Authenticated)
	s.Equal("VCS-001", resp.ExtractedData.SerialNumber())
	s.Equal("confirmed", resp.BlockchainStatus)
	s.NotEmpty(resp.Raw, "raw payload must be preserved for audit")
}

func (s *ClientSuite) TestVerifyUpstreamErrorIsNotRetried() {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message": "Unsupported certificate format"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 3)
	_, err := client.Verify(context.Background(), "cert.pdf", []byte("bytes"))

	var upstream *UpstreamError
	s.Require().ErrorAs(err, &upstream)
	s.Equal(http.StatusBadRequest, upstream.StatusCode)
	s.Equal("Unsupported certificate format", upstream.Message)
	s.Equal(int32(1), attempts.Load(), "a delivered verdict is final")
}

func (s *ClientSuite) TestVerifyUpstreamMessageFallback() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 0)
	_, err := client.Verify(context.Background(), "cert.pdf", []byte("bytes"))

	var upstream *UpstreamError
	s.Require().ErrorAs(err, &upstream)
	s.Equal(http.StatusText(http.StatusInternalServerError), upstream.Message)
}

func (s *ClientSuite) TestVerifyRetriesTransportFailures() {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // every attempt gets connection refused

	client := NewClient(server.URL, time.Second, 2)
	start := time.Now()
	_, err := client.Verify(context.Background(), "cert.pdf", []byte("bytes"))
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.GreaterOrEqual(time.Since(start), 250*time.Millisecond, "backoff between attempts")
}

func (s *ClientSuite) TestVerifyRecoversAfterTransportFailure() {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			// Drop the first connection mid-request.
			hj, ok := w.(http.Hijacker)
			s.Require().True(ok)
			conn, _, err := hj.Hijack()
			s.Require().NoError(err)
			conn.Close()
			return
		}
		_, _ = w.Write([]byte(`{"authenticated": true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 2)
	resp, err := client.Verify(context.Background(), "cert.pdf", []byte("bytes"))
	s.Require().NoError(err)
	s.True(resp.Authenticated)
	s.Equal(int32(2), attempts.Load())
}

func (s *ClientSuite) TestCertificateStatusMapping() {
	s.Run("positive flag wins", func() {
		r := Response{Authenticated: true, Status: "whatever"}
		s.Equal("authenticated", string(r.CertificateStatus()))
	})
	s.Run("collaborator status string", func() {
		r := Response{Status: "unauthenticated"}
		s.Equal("unauthenticated", string(r.CertificateStatus()))
	})
	s.Run("defaults to unauthenticated", func() {
		r := Response{}
		s.Equal("unauthenticated", string(r.CertificateStatus()))
	})
}
