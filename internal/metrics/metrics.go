package metrics

import (
	"strconv"

	"github.com/fxnlabs/gpubench/internal/gpu"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder turns report entries into Prometheus metrics on its own registry,
// so a run can be exported as a node_exporter textfile without serving HTTP.
type Recorder struct {
	registry *prometheus.Registry

	MatrixWidth   prometheus.Gauge
	RunDuration   prometheus.Histogram
	SampleMillis  *prometheus.GaugeVec
	GFLOPS        *prometheus.GaugeVec
	Speedup       *prometheus.GaugeVec
	RunsTotal     *prometheus.CounterVec
	SpeedupMissed prometheus.Counter
}

// NewRecorder creates a recorder with a fresh registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	// index keeps identical devices on one platform apart
	labels := []string{"index", "backend", "platform", "device"}

	return &Recorder{
		registry: registry,
		MatrixWidth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gpubench_matrix_width",
			Help: "N of the benchmarked N×N matrix multiplication",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gpubench_run_duration_ms",
			Help:    "Device-side duration of successful runs in milliseconds",
			Buckets: prometheus.ExponentialBuckets(0.125, 2, 18), // 0.125ms to ~16s
		}),
		SampleMillis: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpubench_sample_ms",
			Help: "Device-side duration of the last successful run in milliseconds",
		}, labels),
		GFLOPS: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpubench_gflops",
			Help: "Throughput of the last successful run in GFLOP/s",
		}, labels),
		Speedup: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpubench_speedup_ratio",
			Help: "Baseline duration divided by the run's duration",
		}, labels),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gpubench_runs_total",
			Help: "Runs by backend and outcome",
		}, []string{"backend", "status"}),
		SpeedupMissed: factory.NewCounter(prometheus.CounterOpts{
			Name: "gpubench_speedup_skipped_total",
			Help: "Successful device runs without a speedup, because the baseline failed or a duration was zero",
		}),
	}
}

// Observe implements gpu.Observer.
func (r *Recorder) Observe(e gpu.Entry) {
	r.RunsTotal.WithLabelValues(e.Backend, string(e.Status)).Inc()
	if e.Status == gpu.StatusFailed {
		return
	}

	labels := prometheus.Labels{
		"index":    strconv.Itoa(e.Index),
		"backend":  e.Backend,
		"platform": e.Platform,
		"device":   e.Device,
	}
	r.RunDuration.Observe(e.Millis)
	r.SampleMillis.With(labels).Set(e.Millis)
	r.GFLOPS.With(labels).Set(e.GFLOPS)

	if e.Status == gpu.StatusNoBaseline || e.Status == gpu.StatusNoSpeedup {
		r.SpeedupMissed.Inc()
		return
	}
	r.Speedup.With(labels).Set(e.Speedup)
}

// SetDimensions records the matrix shape of the run.
func (r *Recorder) SetDimensions(d gpu.Dimensions) {
	r.MatrixWidth.Set(float64(d.Width))
}

// Registry exposes the underlying registry, e.g. for testutil.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

var _ gpu.Observer = (*Recorder)(nil)
