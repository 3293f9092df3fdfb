package metrics

import (
	"errors"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
)

func TestRewardsConsumesCommittedEvents(t *testing.T) {
	m := Rewards()

	m.Emit(events.RewardPoolFunded{Amount: big.NewInt(500), Pool: big.NewInt(500)})
	if got := testutil.ToFloat64(m.pool); got != 500 {
		t.Fatalf("pool gauge: got %v want 500", got)
	}

	before := testutil.ToFloat64(m.allocations.WithLabelValues(events.AllocationSourceSigned))
	m.Emit(events.RewardAllocated{Source: events.AllocationSourceSigned, Amount: big.NewInt(120), Pool: big.NewInt(380)})
	if got := testutil.ToFloat64(m.allocations.WithLabelValues(events.AllocationSourceSigned)); got != before+1 {
		t.Fatalf("allocations: got %v want %v", got, before+1)
	}
	if got := testutil.ToFloat64(m.pool); got != 380 {
		t.Fatalf("pool gauge after allocation: got %v want 380", got)
	}

	claims := testutil.ToFloat64(m.claims)
	m.Emit(events.RewardClaimed{Amount: big.NewInt(120)})
	if got := testutil.ToFloat64(m.claims); got != claims+1 {
		t.Fatalf("claims: got %v want %v", got, claims+1)
	}

	purchases := testutil.ToFloat64(m.purchases.WithLabelValues("GOLD"))
	m.Emit(events.CashbackProcessed{TierName: "GOLD", Amount: big.NewInt(1), Reward: big.NewInt(0)})
	if got := testutil.ToFloat64(m.purchases.WithLabelValues("GOLD")); got != purchases+1 {
		t.Fatalf("purchases: got %v want %v", got, purchases+1)
	}

	reclaimed := testutil.ToFloat64(m.resets.WithLabelValues("reclaimed"))
	m.Emit(events.RewardUserReset{Forfeited: big.NewInt(3), Reclaimed: true})
	if got := testutil.ToFloat64(m.resets.WithLabelValues("reclaimed")); got != reclaimed+1 {
		t.Fatalf("resets: got %v want %v", got, reclaimed+1)
	}
}

func TestObserverCountsOnlyReverts(t *testing.T) {
	m := Rewards()
	obs := m.Observer(func(err error) string { return "PoolLow" })

	before := testutil.ToFloat64(m.reverts.WithLabelValues("rewards.allocate", "PoolLow"))
	obs.ObserveCall("rewards.allocate", nil)
	obs.ObserveCall("rewards.allocate", errors.New("boom"))
	if got := testutil.ToFloat64(m.reverts.WithLabelValues("rewards.allocate", "PoolLow")); got != before+1 {
		t.Fatalf("reverts: got %v want %v", got, before+1)
	}
}

func TestBigToFloatHandlesNil(t *testing.T) {
	if got := bigToFloat(nil); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := bigToFloat(big.NewInt(42)); got != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
}
