package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	recordsFetched *prometheus.CounterVec
	rowsInserted   *prometheus.CounterVec
	rowsSkipped    *prometheus.CounterVec
	captures       *prometheus.CounterVec
	captureAmount  *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
	pixelHits      prometheus.Counter
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		recordsFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paypull_records_fetched_total",
				Help: "Raw records fetched from the provider reporting API",
			},
			[]string{"account"},
		),
		rowsInserted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paypull_rows_inserted_total",
				Help: "Transactions newly inserted into the store",
			},
			[]string{"account"},
		),
		rowsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paypull_rows_skipped_total",
				Help: "Transactions skipped as already present",
			},
			[]string{"account"},
		),
		captures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paypull_captures_total",
				Help: "Records classified as confirmed monetary inflow",
			},
			[]string{"account"},
		),
		captureAmount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paypull_capture_amount_total",
				Help: "Sum of capture amounts",
			},
			[]string{"account"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paypull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		rateLimited: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paypull_rate_limited_total",
				Help: "Rate-limit responses received from the provider",
			},
			[]string{"account"},
		),
		pixelHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "paypull_pixel_hits_total",
				Help: "Tracking pixel requests served",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paypull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetched records raw records fetched for an account.
func (r *Recorder) RecordFetched(account string, n int) {
	r.recordsFetched.WithLabelValues(account).Add(float64(n))
}

// RecordInserted records rows newly inserted for an account.
func (r *Recorder) RecordInserted(account string, n int) {
	r.rowsInserted.WithLabelValues(account).Add(float64(n))
}

// RecordSkipped records rows skipped as already present.
func (r *Recorder) RecordSkipped(account string, n int) {
	r.rowsSkipped.WithLabelValues(account).Add(float64(n))
}

// RecordCapture records one capture and its amount.
func (r *Recorder) RecordCapture(account string, amount float64) {
	r.captures.WithLabelValues(account).Inc()
	r.captureAmount.WithLabelValues(account).Add(amount)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRateLimited records a 429 received while fetching for an account.
func (r *Recorder) RecordRateLimited(account string) {
	r.rateLimited.WithLabelValues(account).Inc()
}

// RecordPixelHit records a tracking pixel request.
func (r *Recorder) RecordPixelHit() {
	r.pixelHits.Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
