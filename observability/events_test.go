package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
)

func TestEventsCountsByType(t *testing.T) {
	m := Events()
	before := testutil.ToFloat64(m.emitted.WithLabelValues(events.TypeRewardClaimed))
	m.Emit(events.RewardClaimed{})
	m.Emit(nil)
	if got := testutil.ToFloat64(m.emitted.WithLabelValues(events.TypeRewardClaimed)); got != before+1 {
		t.Fatalf("emitted: got %v want %v", got, before+1)
	}
}

func TestModuleMetricsObserveSplitsOutcomes(t *testing.T) {
	m := ModuleMetrics()
	ok := testutil.ToFloat64(m.requests.WithLabelValues("pool", "GET", "success"))
	failed := testutil.ToFloat64(m.errors.WithLabelValues("pool", "GET", "404"))

	m.Observe("pool", "GET", 200, time.Millisecond)
	m.Observe("pool", "GET", 404, time.Millisecond)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("pool", "GET", "success")); got != ok+1 {
		t.Fatalf("success requests: got %v want %v", got, ok+1)
	}
	if got := testutil.ToFloat64(m.errors.WithLabelValues("pool", "GET", "404")); got != failed+1 {
		t.Fatalf("error requests: got %v want %v", got, failed+1)
	}
}
