// ABOUTME: Tests for the Prometheus recorder
// ABOUTME: Reads counters back with client_golang's testutil helpers
package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()

	r.ObserveOperation("createCallLog", "local", OutcomeSuccess, 20*time.Millisecond)
	r.ObserveOperation("createCallLog", "local", OutcomeSuccess, 10*time.Millisecond)
	r.ObserveOperation("createCallLog", "local", OutcomeWarning, time.Millisecond)
	r.RemoteError("local", 429)
	r.ProcessorRun("before", "sync", OutcomeError)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.operations.WithLabelValues("createCallLog", "local", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("createCallLog", "local", OutcomeWarning)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.remote.WithLabelValues("local", "429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.processors.WithLabelValues("before", "sync", OutcomeError)))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveOperation("x", "y", OutcomeSuccess, time.Second)
		r.RemoteError("y", 500)
		r.ProcessorRun("after", "async", OutcomeSuccess)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.RemoteError("local", 401)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `callbridge_crm_errors_total{platform="local",status="401"} 1`)
}
