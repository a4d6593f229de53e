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

func TestObserveSend(t *testing.T) {
	d := New()
	d.ObserveSend("demo", true, 10*time.Millisecond)
	d.ObserveSend("demo", true, 10*time.Millisecond)
	d.ObserveSend("demo", false, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(d.messages.WithLabelValues("demo", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(d.messages.WithLabelValues("demo", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(d.latency))
}

func TestBatchCompleted(t *testing.T) {
	d := New()
	d.BatchCompleted("ABSENT_ALERT")
	assert.Equal(t, 1.0, testutil.ToFloat64(d.batches.WithLabelValues("ABSENT_ALERT")))
}

func TestNilDispatchIsNoop(t *testing.T) {
	var d *Dispatch
	assert.NotPanics(t, func() {
		d.ObserveSend("demo", true, time.Second)
		d.BatchCompleted("X")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	d := New()
	d.ObserveSend("msg91", false, time.Second)

	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `edunotify_messages_total{backend="msg91",status="failed"} 1`)
}
