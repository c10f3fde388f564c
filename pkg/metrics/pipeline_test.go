package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPipelineMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPipelineMetrics(reg)
	metrics.IncRun("USD")
	metrics.IncFailure("rail_failure")
	metrics.IncDetection("bitcoin")
	metrics.ObserveStage("conversion", 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "pipeline_runs_total", "target", "USD"); err != nil {
		t.Fatalf("fetch runs: %v", err)
	} else if got != 1 {
		t.Fatalf("expected runs=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "pipeline_failures_total", "reason", "rail_failure"); err != nil {
		t.Fatalf("fetch failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failures=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "pipeline_payment_detections_total", "chain", "bitcoin"); err != nil {
		t.Fatalf("fetch detections: %v", err)
	} else if got != 1 {
		t.Fatalf("expected detections=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "pipeline_stage_duration_seconds", "stage", "conversion"); err != nil {
		t.Fatalf("fetch stage duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected stage duration sum > 0, got %f", got)
	}
}

func TestPipelineMetricsNilReceiverSafe(t *testing.T) {
	var metrics *PipelineMetrics
	metrics.IncRun("USD")
	metrics.IncFailure("x")
	metrics.IncDetection("ethereum")
	metrics.ObserveStage("settlement", time.Second)
}
