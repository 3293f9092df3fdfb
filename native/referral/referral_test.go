package referral

import (
	"errors"
	"math/big"
	"testing"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/core/host"
	"github.com/monalisastar/elr-protocol-mainnet/storage"
)

var (
	moduleAddr = [20]byte{0x30}
	engineAddr = [20]byte{0x31}
	userAddr   = [20]byte{0x0a}
	refAddr    = [20]byte{0x0b}
)

type credit struct {
	caller      [20]byte
	beneficiary [20]byte
	amount      int64
}

type fakeLedger struct {
	credits []credit
	err     error
}

func (l *fakeLedger) AllocateFromModule(ctx *host.Context, beneficiary [20]byte, amount *big.Int) error {
	if l.err != nil {
		return l.err
	}
	l.credits = append(l.credits, credit{caller: ctx.Caller(), beneficiary: beneficiary, amount: amount.Int64()})
	return nil
}

func newModule(t *testing.T, ledger *fakeLedger, welcome int64) (*host.Host, *Module, *events.Recorder) {
	t.Helper()
	m, err := New(Config{
		Address:      moduleAddr,
		Engine:       engineAddr,
		Ledger:       ledger,
		BonusBps:     300,
		WelcomeBonus: big.NewInt(welcome),
	})
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	rec := events.NewRecorder(0)
	return host.New(storage.NewMemDB(), host.WithEmitter(rec)), m, rec
}

func TestRegisterReferral(t *testing.T) {
	ledger := &fakeLedger{}
	h, m, rec := newModule(t, ledger, 10)

	err := h.Execute(userAddr, "refer", func(ctx *host.Context) error {
		return m.RegisterReferral(ctx, userAddr)
	})
	if !errors.Is(err, ErrCannotReferSelf) {
		t.Fatalf("expected ErrCannotReferSelf, got %v", err)
	}
	err = h.Execute(userAddr, "refer", func(ctx *host.Context) error {
		return m.RegisterReferral(ctx, [20]byte{})
	})
	if !errors.Is(err, ErrInvalidReferrer) {
		t.Fatalf("expected ErrInvalidReferrer, got %v", err)
	}
	if err := h.Execute(userAddr, "refer", func(ctx *host.Context) error {
		return m.RegisterReferral(ctx, refAddr)
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	err = h.Execute(userAddr, "refer", func(ctx *host.Context) error {
		return m.RegisterReferral(ctx, refAddr)
	})
	if !errors.Is(err, ErrAlreadyReferred) {
		t.Fatalf("expected ErrAlreadyReferred, got %v", err)
	}

	if len(ledger.credits) != 1 {
		t.Fatalf("expected one welcome credit, got %d", len(ledger.credits))
	}
	c := ledger.credits[0]
	if c.caller != moduleAddr || c.beneficiary != userAddr || c.amount != 10 {
		t.Fatalf("unexpected welcome credit %+v", c)
	}
	if n := len(rec.OfType(events.TypeReferralRegistered)); n != 1 {
		t.Fatalf("expected one referral event, got %d", n)
	}

	var got [20]byte
	if err := h.View(func(ctx *host.Context) error {
		var err error
		got, _, err = m.ReferrerOf(ctx, userAddr)
		return err
	}); err != nil {
		t.Fatalf("referrer of: %v", err)
	}
	if got != refAddr {
		t.Fatalf("unexpected referrer %x", got)
	}
}

func TestWelcomeBonusFailureReverts(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("pool low")}
	h, m, _ := newModule(t, ledger, 10)
	if err := h.Execute(userAddr, "refer", func(ctx *host.Context) error {
		return m.RegisterReferral(ctx, refAddr)
	}); err == nil {
		t.Fatalf("expected ledger failure")
	}
	var ok bool
	if err := h.View(func(ctx *host.Context) error {
		var err error
		_, ok, err = m.ReferrerOf(ctx, userAddr)
		return err
	}); err != nil {
		t.Fatalf("referrer of: %v", err)
	}
	if ok {
		t.Fatalf("failed registration must not record a referrer")
	}
}

func TestOnPurchase(t *testing.T) {
	ledger := &fakeLedger{}
	h, m, _ := newModule(t, ledger, 0)
	if err := h.Execute(userAddr, "refer", func(ctx *host.Context) error {
		return m.RegisterReferral(ctx, refAddr)
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(ledger.credits) != 0 {
		t.Fatalf("zero welcome bonus must not credit")
	}

	err := h.Execute(userAddr, "purchase", func(ctx *host.Context) error {
		return m.OnPurchase(ctx, userAddr, big.NewInt(1000))
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if err := h.Execute(engineAddr, "purchase", func(ctx *host.Context) error {
		if err := m.OnPurchase(ctx, userAddr, big.NewInt(1000)); err != nil {
			return err
		}
		// Users without a referrer and dust purchases are ignored.
		if err := m.OnPurchase(ctx, refAddr, big.NewInt(1000)); err != nil {
			return err
		}
		return m.OnPurchase(ctx, userAddr, big.NewInt(3))
	}); err != nil {
		t.Fatalf("on purchase: %v", err)
	}
	if len(ledger.credits) != 1 {
		t.Fatalf("expected one referral credit, got %d", len(ledger.credits))
	}
	c := ledger.credits[0]
	if c.beneficiary != refAddr || c.amount != 30 || c.caller != moduleAddr {
		t.Fatalf("unexpected credit %+v", c)
	}
}
