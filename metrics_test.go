package decryptfs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordRequest(http.MethodGet, http.StatusOK, time.Millisecond)
		m.InFlight(1)
		m.AddDecrypted(10)
		m.StreamError()
		m.ObserveKDF(time.Millisecond)
		m.KDFQueued(1)
	})
	assert.Nil(t, m.Registry())

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest(http.MethodGet, http.StatusOK, 5*time.Millisecond)
	m.RecordRequest(http.MethodGet, http.StatusOK, 7*time.Millisecond)
	m.RecordRequest(http.MethodGet, http.StatusNotFound, time.Millisecond)
	m.AddDecrypted(100)
	m.AddDecrypted(0)
	m.AddDecrypted(-3)
	m.StreamError()
	m.KDFQueued(1)
	m.KDFQueued(1)
	m.KDFQueued(-1)
	m.InFlight(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "404")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.BytesDecrypted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KDFPending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsInFlight))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest(http.MethodHead, http.StatusOK, time.Millisecond)
	m.ObserveKDF(3 * time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	for _, name := range []string{
		"decryptfs_http_requests_total",
		"decryptfs_http_request_duration_seconds",
		"decryptfs_kdf_duration_seconds",
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(body, name), "metrics output lacks %s", name)
	}
}

func TestMetrics_DeriverObservesKDF(t *testing.T) {
	m := NewMetrics()
	d := NewDeriver(ParallelConfig{MaxWorkers: 1}, m)
	defer d.Close()

	_, err := d.Derive(t.Context(), []byte("pw"), [SaltSize]byte{})
	require.NoError(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(m.KDFDuration))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.KDFPending))
}
