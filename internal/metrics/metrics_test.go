package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveMutation("write", ResultOK, time.Now())
	m.SubscriberAdded()
	m.IncrementSubscriberDrops()
	m.AddReplayed(3)
	StoreHook{}.ObserveBatchCommit(time.Millisecond, 1, 10)
}

func TestCountersAndGauge(t *testing.T) {
	m := New()
	m.ObserveMutation("write", ResultOK, time.Now())
	m.ObserveMutation("write", ResultOK, time.Now())
	m.ObserveMutation("delete", ResultNotFound, time.Now())
	m.SubscriberAdded()
	m.SubscriberAdded()
	m.SubscriberRemoved()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MutationsTotal.WithLabelValues("write", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MutationsTotal.WithLabelValues("delete", ResultNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Subscribers))
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.IncrementBroadcast()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.BroadcastEvents))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.BroadcastEvents))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	StoreHook{M: m}.ObserveBatchCommit(2*time.Millisecond, 2, 64)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "gemdrive_store_write_bytes_total 64"))
	assert.True(t, strings.Contains(string(body), "gemdrive_store_commit_duration_seconds_count 1"))
}
