// Package metrics records run counters for the ETL job and exports them once the run ends.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Recorder owns a private registry so runs never share state. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	reg       *prometheus.Registry
	files     *prometheus.CounterVec
	rows      *prometheus.CounterVec
	downloads *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	lastRun   prometheus.Gauge
}

// New creates a recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxietl_files_total",
				Help: "Files handled per stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxietl_rows_total",
				Help: "Rows leaving each stage",
			},
			[]string{"stage"},
		),
		downloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxietl_downloads_total",
				Help: "Monthly file downloads by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taxietl_stage_duration_seconds",
				Help:    "Time spent per stage call",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taxietl_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
	r.reg.MustRegister(r.files, r.rows, r.downloads, r.duration, r.lastRun)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

func (r *Recorder) File(stage, outcome string) {
	if r == nil {
		return
	}
	r.files.WithLabelValues(stage, outcome).Inc()
}

func (r *Recorder) Rows(stage string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rows.WithLabelValues(stage).Add(float64(n))
}

func (r *Recorder) Download(outcome string) {
	if r == nil {
		return
	}
	r.downloads.WithLabelValues(outcome).Inc()
}

// Observe records how long a stage call took since start.
func (r *Recorder) Observe(stage string, start time.Time) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Finish stamps the last-run gauge.
func (r *Recorder) Finish(at time.Time) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}

// Push sends the registry to a Pushgateway, grouped by run id.
func (r *Recorder) Push(ctx context.Context, url, job, runID string) error {
	if r == nil {
		return nil
	}
	p := push.New(url, job).Gatherer(r.reg)
	if runID != "" {
		p = p.Grouping("run_id", runID)
	}
	return p.PushContext(ctx)
}
