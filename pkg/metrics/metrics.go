package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Verification outcome labels
const (
	OutcomeAccepted         = "accepted"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeUntrusted        = "untrusted"
	OutcomeInvalidFormat    = "invalid_format"
	OutcomeExpired          = "expired"
	OutcomeFuture           = "future"
	OutcomeInvalidTimestamp = "invalid_timestamp"
	OutcomeStorageError     = "storage_error"
)

var (
	signaturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgsign_signatures_total",
		Help: "Total number of signatures produced",
	}, []string{"scheme", "status"})

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgsign_verifications_total",
		Help: "Total number of submission verifications by outcome",
	}, []string{"scheme", "outcome"})

	apiSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgsign_api_submissions_total",
		Help: "Total number of API submissions",
	}, []string{"status"})

	ledgerSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "msgsign_ledger_size",
		Help: "Current number of accepted submissions in the ledger",
	})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgsign_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

// RecordSignature records a signing attempt for scheme (personal or typed)
func RecordSignature(scheme string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	signaturesTotal.WithLabelValues(scheme, status).Inc()
}

// RecordVerification records the outcome of a verification
func RecordVerification(scheme, outcome string) {
	verificationsTotal.WithLabelValues(scheme, outcome).Inc()
}

// RecordApiSubmission records an API submission and whether it was accepted
func RecordApiSubmission(accepted bool) {
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	apiSubmissionsTotal.WithLabelValues(status).Inc()
}

func SetLedgerSize(n int) {
	ledgerSizeGauge.Set(float64(n))
}

func RecordHTTPRequest(method, path, status string) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
