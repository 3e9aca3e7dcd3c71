package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the certificate pipeline.
type Metrics struct {
	CertificatesUploaded  prometheus.Counter
	DuplicateUploads      prometheus.Counter
	VerificationsByStatus *prometheus.CounterVec
	ListingsUpdated       prometheus.Counter
	ListingsSynthesized   prometheus.Counter
	RequestLatency        *prometheus.HistogramVec
}

// New creates all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates and registers all Prometheus metrics. Tests pass a
// fresh registry so repeated setup never double-registers.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CertificatesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "greencredits_certificates_uploaded_total",
			Help: "Certificates accepted by the ingestion gateway",
		}),
		DuplicateUploads: factory.NewCounter(prometheus.CounterOpts{
			Name: "greencredits_duplicate_uploads_total",
			Help: "Uploads rejected as duplicates of an existing content hash",
		}),
		VerificationsByStatus: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "greencredits_verifications_total",
			Help: "Verification attempts by resulting certificate status",
		}, []string{"status"}),
		ListingsUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "greencredits_listings_updated_total",
			Help: "Marketplace listings applied to an existing certificate",
		}),
		ListingsSynthesized: factory.NewCounter(prometheus.CounterOpts{
			Name: "greencredits_listings_synthesized_total",
			Help: "Marketplace listings that created a record with no verification history",
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greencredits_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
