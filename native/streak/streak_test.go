package streak

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/core/host"
	"github.com/monalisastar/elr-protocol-mainnet/storage"
)

var (
	moduleAddr = [20]byte{0x40}
	engineAddr = [20]byte{0x41}
	userAddr   = [20]byte{0x0a}
)

type fakeLedger struct {
	total int64
}

func (l *fakeLedger) AllocateFromModule(_ *host.Context, _ [20]byte, amount *big.Int) error {
	l.total += amount.Int64()
	return nil
}

func TestStreakProgression(t *testing.T) {
	ledger := &fakeLedger{}
	m, err := New(Config{Address: moduleAddr, Engine: engineAddr, Ledger: ledger, Length: 3, Bonus: big.NewInt(25)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := events.NewRecorder(0)
	h := host.New(storage.NewMemDB(), host.WithEmitter(rec), host.WithClock(func() time.Time { return now }))

	purchase := func() {
		t.Helper()
		if err := h.Execute(engineAddr, "purchase", func(ctx *host.Context) error {
			return m.OnPurchase(ctx, userAddr, big.NewInt(1))
		}); err != nil {
			t.Fatalf("purchase: %v", err)
		}
	}
	streakOf := func() Streak {
		t.Helper()
		var s Streak
		if err := h.View(func(ctx *host.Context) error {
			var err error
			s, err = m.StreakOf(ctx, userAddr)
			return err
		}); err != nil {
			t.Fatalf("streak of: %v", err)
		}
		return s
	}

	purchase()
	purchase()
	if s := streakOf(); s.Days != 1 {
		t.Fatalf("same-day purchases count once, got %d", s.Days)
	}
	now = now.Add(24 * time.Hour)
	purchase()
	now = now.Add(24 * time.Hour)
	purchase()
	if s := streakOf(); s.Days != 3 || ledger.total != 25 {
		t.Fatalf("expected bonus on day three, streak %+v credited %d", s, ledger.total)
	}
	if n := len(rec.OfType(events.TypeStreakBonus)); n != 1 {
		t.Fatalf("expected one streak event, got %d", n)
	}

	now = now.Add(48 * time.Hour)
	purchase()
	s := streakOf()
	if s.Days != 1 || s.Longest != 3 {
		t.Fatalf("missed day should reset the streak: %+v", s)
	}

	err = h.Execute(userAddr, "purchase", func(ctx *host.Context) error {
		return m.OnPurchase(ctx, userAddr, big.NewInt(1))
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
