package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSignature(t *testing.T) {
	before := testutil.ToFloat64(signaturesTotal.WithLabelValues("personal", "error"))
	RecordSignature("personal", errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(signaturesTotal.WithLabelValues("personal", "error")))
}

func TestRecordVerification(t *testing.T) {
	before := testutil.ToFloat64(verificationsTotal.WithLabelValues("personal", OutcomeExpired))
	RecordVerification("personal", OutcomeExpired)
	assert.Equal(t, before+1, testutil.ToFloat64(verificationsTotal.WithLabelValues("personal", OutcomeExpired)))
}

func TestSetLedgerSize(t *testing.T) {
	SetLedgerSize(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(ledgerSizeGauge))
}

func TestHandler(t *testing.T) {
	RecordApiSubmission(true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "msgsign_api_submissions_total")
}
