package cashback

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/core/host"
	nativecommon "github.com/monalisastar/elr-protocol-mainnet/native/common"
	"github.com/monalisastar/elr-protocol-mainnet/native/merchants"
)

const moduleName = "cashback"

// Config wires an engine instance to its collaborators.
type Config struct {
	// Address is the engine identity. It must hold module rights on the
	// ledger and volume reporter rights on the registry.
	Address  [20]byte
	Admin    [20]byte
	Registry MerchantDirectory
	Ledger   RewardSink
	Rates    Rates
}

// Engine computes tiered cashback for purchases and fans out to optional
// bonus hooks.
type Engine struct {
	addr     [20]byte
	admin    [20]byte
	registry MerchantDirectory
	ledger   RewardSink
	rates    Rates
	pauses   nativecommon.PauseView

	mu    sync.RWMutex
	hooks [slotCount]PurchaseHook
	boost BoostHook
}

// NewEngine validates cfg and constructs an engine with every hook slot
// empty.
func NewEngine(cfg Config) (*Engine, error) {
	var zero [20]byte
	if cfg.Address == zero {
		return nil, fmt.Errorf("%w: engine address required", ErrInvalidConfig)
	}
	if cfg.Admin == zero {
		return nil, fmt.Errorf("%w: admin required", ErrInvalidConfig)
	}
	if cfg.Registry == nil || cfg.Ledger == nil {
		return nil, fmt.Errorf("%w: registry and ledger required", ErrInvalidConfig)
	}
	if err := cfg.Rates.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		addr:     cfg.Address,
		admin:    cfg.Admin,
		registry: cfg.Registry,
		ledger:   cfg.Ledger,
		rates:    cfg.Rates,
	}, nil
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Address returns the engine identity.
func (e *Engine) Address() [20]byte { return e.addr }

// Rates returns the configured base rates.
func (e *Engine) Rates() Rates { return e.rates }

// SetHook installs hook in slot. A nil hook empties the slot. Hook wiring is
// held in memory and takes effect only when the enclosing call commits; a
// reverted call leaves the slot unchanged.
func (e *Engine) SetHook(ctx *host.Context, slot Slot, hook PurchaseHook) error {
	if ctx.Caller() != e.admin {
		return ErrNotAdmin
	}
	if slot >= slotCount {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, uint8(slot))
	}
	ctx.OnCommit(func() {
		e.mu.Lock()
		e.hooks[slot] = hook
		e.mu.Unlock()
	})
	return nil
}

// SetBoostHook installs the merchant boost hook. Nil removes it. Like
// SetHook, the change applies when the enclosing call commits.
func (e *Engine) SetBoostHook(ctx *host.Context, hook BoostHook) error {
	if ctx.Caller() != e.admin {
		return ErrNotAdmin
	}
	ctx.OnCommit(func() {
		e.mu.Lock()
		e.boost = hook
		e.mu.Unlock()
	})
	return nil
}

// Hook returns the hook installed in slot, or nil.
func (e *Engine) Hook(slot Slot) PurchaseHook {
	if slot >= slotCount {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hooks[slot]
}

func (e *Engine) snapshot() ([slotCount]PurchaseHook, BoostHook) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hooks, e.boost
}

// ProcessPurchase credits cashback for a purchase of amount by user at
// merchant, records the merchant volume and runs the bonus hooks in slot
// order. Any failure, including a hook failure, reverts the whole purchase.
func (e *Engine) ProcessPurchase(ctx *host.Context, user [20]byte, amount *big.Int, merchant [20]byte) (Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return Receipt{}, ErrInvalidAmount
	}
	if user == ([20]byte{}) {
		return Receipt{}, ErrInvalidUser
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return Receipt{}, err
	}
	amount = new(big.Int).Set(amount)
	hooks, boost := e.snapshot()

	var receipt Receipt
	err := ctx.Atomic(func(frame *host.Context) error {
		m, ok, err := e.registry.GetMerchant(frame, merchant)
		if err != nil {
			return err
		}
		switch {
		case !ok:
			return ErrNotMerchant
		case m.Blacklisted:
			return ErrBlacklisted
		case !m.Approved:
			return ErrNotApproved
		}

		rate, err := e.rate(frame, m.Tier, merchant, boost)
		if err != nil {
			return err
		}
		reward := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(rate)))
		reward.Quo(reward, big.NewInt(BasisPoints))

		isModule, err := e.ledger.IsModule(frame, e.addr)
		if err != nil {
			return err
		}
		if !isModule {
			return ErrNotModule
		}
		if reward.Sign() > 0 {
			if err := frame.Call(e.addr, func(inner *host.Context) error {
				return e.ledger.AllocateFromModule(inner, user, reward)
			}); err != nil {
				return err
			}
		}

		var newTier merchants.Tier
		if err := frame.Call(e.addr, func(inner *host.Context) error {
			var err error
			newTier, err = e.registry.UpdateVolumeAndTier(inner, merchant, amount)
			return err
		}); err != nil {
			return err
		}

		for slot, hook := range hooks {
			if hook == nil {
				continue
			}
			if err := frame.Call(e.addr, func(inner *host.Context) error {
				return hook.OnPurchase(inner, user, new(big.Int).Set(amount))
			}); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrHookFailed, Slot(slot), err)
			}
		}

		frame.Emit(events.CashbackProcessed{
			Engine:   e.addr,
			User:     user,
			Merchant: merchant,
			Amount:   new(big.Int).Set(amount),
			Reward:   new(big.Int).Set(reward),
			Tier:     uint8(m.Tier),
			TierName: m.Tier.String(),
			RateBps:  rate,
		})
		receipt = Receipt{
			User:     user,
			Merchant: merchant,
			Amount:   amount,
			Reward:   reward,
			Tier:     m.Tier,
			RateBps:  rate,
			NewTier:  newTier,
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// rate returns the effective rate for tier, scaled by the boost hook when one
// is installed and capped at 100%.
func (e *Engine) rate(ctx *host.Context, tier merchants.Tier, merchant [20]byte, boost BoostHook) (uint32, error) {
	base := e.rates.For(tier)
	if boost == nil || base == 0 {
		return base, nil
	}
	var bps uint32
	if err := ctx.Call(e.addr, func(inner *host.Context) error {
		var err error
		bps, err = boost.BoostBps(inner, merchant)
		return err
	}); err != nil {
		return 0, fmt.Errorf("%w: boost: %w", ErrHookFailed, err)
	}
	scaled := uint64(base) * uint64(bps) / BasisPoints
	if scaled > BasisPoints {
		scaled = BasisPoints
	}
	return uint32(scaled), nil
}
