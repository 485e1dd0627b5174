package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveProviderCall(t *testing.T) {
	c := NewCollector()
	c.ObserveProviderCall("openai", "ok", 200*time.Millisecond)
	c.ObserveProviderCall("openai", "ok", time.Second)
	c.ObserveProviderCall("gemini", "not_configured", 0)

	if got := testutil.ToFloat64(c.providerCalls.WithLabelValues("openai", "ok")); got != 2 {
		t.Errorf("openai ok calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.providerCalls.WithLabelValues("gemini", "not_configured")); got != 1 {
		t.Errorf("gemini calls = %v, want 1", got)
	}
}

func TestCounters(t *testing.T) {
	c := NewCollector()
	c.IncEdit("persisted")
	c.IncAnalysis(true)
	c.IncAnalysis(false)
	c.ObserveDataSize(200000, true)
	c.ObserveDataSize(10, false)

	if got := testutil.ToFloat64(c.edits.WithLabelValues("persisted")); got != 1 {
		t.Errorf("edits = %v", got)
	}
	if got := testutil.ToFloat64(c.analyses.WithLabelValues("error")); got != 1 {
		t.Errorf("analysis errors = %v", got)
	}
	if got := testutil.ToFloat64(c.truncations); got != 1 {
		t.Errorf("truncations = %v", got)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveProviderCall("openai", "ok", time.Second)
	c.IncEdit("persisted")
	c.IncAnalysis(true)
	c.ObserveDataSize(1, false)
}

func TestWriteFile(t *testing.T) {
	c := NewCollector()
	c.IncEdit("execution_failed")

	path := filepath.Join(t.TempDir(), "sheetbot.prom")
	if err := c.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `sheetbot_edits_total{state="execution_failed"} 1`) {
		t.Errorf("metrics file missing edit counter:\n%s", data)
	}
}
