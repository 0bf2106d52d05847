package lighthouse

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of a connection.
// A nil *Metrics records nothing.
type Metrics struct {
	framesSent        prometheus.Counter
	frameSendDuration prometheus.Histogram
	eventsReceived    *prometheus.CounterVec
	eventsDropped     prometheus.Counter
	responsesFailed   *prometheus.CounterVec
}

// NewMetrics registers the lighthouse collectors with registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Name:      "frames_sent_total",
			Help:      "Total number of frames uploaded to the display",
		}),
		frameSendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lighthouse",
			Name:      "frame_send_seconds",
			Help:      "Time spent writing a frame to the transport",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		eventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Name:      "events_received_total",
			Help:      "Total number of input events received from the display",
		}, []string{"kind"}),
		eventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Name:      "events_dropped_total",
			Help:      "Input events dropped because the event buffer was full",
		}),
		responsesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Name:      "responses_failed_total",
			Help:      "Server responses with a non-2xx status",
		}, []string{"code"}),
	}
}

func (m *Metrics) frameSent(d time.Duration) {
	if m == nil {
		return
	}
	m.framesSent.Inc()
	m.frameSendDuration.Observe(d.Seconds())
}

func (m *Metrics) eventReceived(kind EventKind) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) eventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

func (m *Metrics) responseFailed(code int) {
	if m == nil {
		return
	}
	m.responsesFailed.WithLabelValues(strconv.Itoa(code)).Inc()
}
