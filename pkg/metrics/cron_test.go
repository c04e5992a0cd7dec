package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCronJobMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.IncSuccess("reservation-ttl")
	m.IncSuccess("reservation-ttl")
	m.IncFailure("credit-expiry")
	m.ObserveDuration("reservation-ttl", 120*time.Millisecond)

	if got := testutil.ToFloat64(m.success.WithLabelValues("reservation-ttl")); got != 2 {
		t.Fatalf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("credit-expiry")); got != 1 {
		t.Fatalf("failure count = %v, want 1", got)
	}
}

func TestNilRegistererIsSafe(t *testing.T) {
	m := NewCronJobMetrics(nil)
	m.IncSuccess("anything")
	m.IncFailure("anything")
	m.ObserveDuration("anything", time.Second)
}

func TestNormalizeLabel(t *testing.T) {
	if normalizeLabel("") != "unknown" {
		t.Fatal("empty label should normalize to unknown")
	}
	if normalizeLabel("credit-expiry") != "credit-expiry" {
		t.Fatal("label should pass through")
	}
}
