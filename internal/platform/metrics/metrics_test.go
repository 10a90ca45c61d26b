package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	t.Run("counters increment", func(t *testing.T) {
		m := New(prometheus.NewRegistry())

		m.IncEventRecorded("login_success")
		m.IncEventRecorded("login_success")
		m.IncDetectorBlocked("rate_limited")
		m.IncDropped()

		assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsRecorded.WithLabelValues("login_success")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.DetectorBlocked.WithLabelValues("rate_limited")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDropped))
	})

	t.Run("nil receiver is a no-op", func(t *testing.T) {
		var m *Metrics
		assert.NotPanics(t, func() {
			m.IncEventRecorded("x")
			m.IncWriteFailure()
			m.IncGateDenied("forbidden")
			m.IncBulkLimitRejected()
		})
	})
}
