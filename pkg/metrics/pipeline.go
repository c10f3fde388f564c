package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records settlement pipeline activity.
type PipelineMetrics struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	detections    *prometheus.CounterVec
}

// NewPipelineMetrics registers pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_runs_total",
		Help: "Completed pipeline runs by settlement target.",
	}, []string{"target"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_failures_total",
		Help: "Pipeline runs that ended in a failed invoice.",
	}, []string{"reason"})
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Duration of individual pipeline stages in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	detections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_payment_detections_total",
		Help: "Inbound payments detected by chain.",
	}, []string{"chain"})
	reg.MustRegister(runs, failures, stageDuration, detections)
	return &PipelineMetrics{
		runs:          runs,
		failures:      failures,
		stageDuration: stageDuration,
		detections:    detections,
	}
}

// IncRun increments the completed-run counter for a settlement target.
func (p *PipelineMetrics) IncRun(target string) {
	if p == nil || p.runs == nil {
		return
	}
	p.runs.WithLabelValues(normalizeLabel(target)).Inc()
}

// IncFailure increments the failure counter for the given reason.
func (p *PipelineMetrics) IncFailure(reason string) {
	if p == nil || p.failures == nil {
		return
	}
	p.failures.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func (p *PipelineMetrics) ObserveStage(stage string, duration time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(normalizeLabel(stage)).Observe(duration.Seconds())
}

// IncDetection increments the payment-detection counter for a chain.
func (p *PipelineMetrics) IncDetection(chain string) {
	if p == nil || p.detections == nil {
		return
	}
	p.detections.WithLabelValues(normalizeLabel(chain)).Inc()
}
