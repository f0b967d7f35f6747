package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	broadcasts      *prometheus.CounterVec
	delivered       *prometheus.CounterVec
	sendFailures    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	subscribers     *prometheus.GaugeVec
	refreshersAlive prometheus.Gauge
	lastClose       *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg (useful for testing).
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		broadcasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candleflow_broadcasts_total",
				Help: "Total number of broadcasts per channel",
			},
			[]string{"channel"},
		),
		delivered: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candleflow_messages_delivered_total",
				Help: "Total number of messages delivered to subscribers",
			},
			[]string{"channel"},
		),
		sendFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candleflow_send_failures_total",
				Help: "Total number of failed sends to a subscriber",
			},
			[]string{"channel"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candleflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		subscribers: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "candleflow_channel_subscribers",
				Help: "Current number of subscribers per channel",
			},
			[]string{"channel"},
		),
		refreshersAlive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "candleflow_refreshers_active",
				Help: "Number of running channel refreshers",
			},
		),
		lastClose: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "candleflow_last_close",
				Help: "Close of the last broadcast candle per channel",
			},
			[]string{"channel"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "candleflow_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordBroadcast records one broadcast and how many subscribers received it.
func (r *Recorder) RecordBroadcast(channel string, delivered int) {
	r.broadcasts.WithLabelValues(channel).Inc()
	r.delivered.WithLabelValues(channel).Add(float64(delivered))
}

// RecordSendFailure records a failed send to one subscriber.
func (r *Recorder) RecordSendFailure(channel string) {
	r.sendFailures.WithLabelValues(channel).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordSubscribers sets the subscriber count of a channel. Zero removes the series.
func (r *Recorder) RecordSubscribers(channel string, n int) {
	if n == 0 {
		r.subscribers.DeleteLabelValues(channel)
		r.lastClose.DeleteLabelValues(channel)
		return
	}
	r.subscribers.WithLabelValues(channel).Set(float64(n))
}

// RecordRefresherActive adjusts the running refresher gauge.
func (r *Recorder) RecordRefresherActive(delta int) {
	r.refreshersAlive.Add(float64(delta))
}

// RecordLastClose records the close of the last broadcast candle.
func (r *Recorder) RecordLastClose(channel string, price float64) {
	r.lastClose.WithLabelValues(channel).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop discards all measurements.
type Noop struct{}

func (Noop) RecordBroadcast(string, int)     {}
func (Noop) RecordSendFailure(string)        {}
func (Noop) RecordError(string)              {}
func (Noop) RecordSubscribers(string, int)   {}
func (Noop) RecordRefresherActive(int)       {}
func (Noop) RecordLastClose(string, float64) {}
func (Noop) RecordLatency(string, float64)   {}
