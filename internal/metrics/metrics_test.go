package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := &dto.Metric{}
	if err := (<-ch).Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestIncStartIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	IncStart("worker")
	if v := counterValue(t, daemonStarts.WithLabelValues("worker")); v != 1 {
		t.Fatalf("expected 1 start recorded, got %v", v)
	}
}

func TestSetCurrentStateMarksExactlyOneActive(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	states := []string{"stopped", "starting", "running", "stopping", "failed", "scheduled"}
	SetCurrentState("worker", states, "running")

	g := &dto.Metric{}
	if err := currentState.WithLabelValues("worker", "running").Write(g); err != nil {
		t.Fatalf("write: %v", err)
	}
	if g.GetGauge().GetValue() != 1 {
		t.Fatalf("expected running=1, got %v", g.GetGauge().GetValue())
	}

	if err := currentState.WithLabelValues("worker", "stopped").Write(g); err != nil {
		t.Fatalf("write: %v", err)
	}
	if g.GetGauge().GetValue() != 0 {
		t.Fatalf("expected stopped=0, got %v", g.GetGauge().GetValue())
	}
}
