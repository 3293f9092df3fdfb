package referral

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/core/host"
	"github.com/monalisastar/elr-protocol-mainnet/core/state"
)

const (
	moduleName  = "referral"
	basisPoints = 10_000
)

var (
	ErrInvalidConfig   = errors.New("referral: invalid config")
	ErrInvalidReferrer = errors.New("referral: invalid referrer")
	ErrCannotReferSelf = errors.New("referral: cannot refer self")
	ErrAlreadyReferred = errors.New("referral: already referred")
	ErrUnauthorized    = errors.New("referral: caller is not the purchase engine")
)

// Ledger is the reward ledger surface the module credits through. The module
// address must hold module rights.
type Ledger interface {
	AllocateFromModule(ctx *host.Context, beneficiary [20]byte, amount *big.Int) error
}

type Config struct {
	Address [20]byte
	// Engine is the only caller allowed to report purchases.
	Engine   [20]byte
	Ledger   Ledger
	BonusBps uint32
	// WelcomeBonus is credited to a user when they record a referrer. Nil or
	// zero disables it.
	WelcomeBonus *big.Int
}

// Module pays referrers a share of every purchase made by the users they
// referred.
type Module struct {
	addr     [20]byte
	engine   [20]byte
	ledger   Ledger
	bonusBps uint32
	welcome  *big.Int
}

func New(cfg Config) (*Module, error) {
	var zero [20]byte
	if cfg.Address == zero || cfg.Engine == zero {
		return nil, fmt.Errorf("%w: module and engine addresses required", ErrInvalidConfig)
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("%w: ledger required", ErrInvalidConfig)
	}
	if cfg.BonusBps > basisPoints {
		return nil, fmt.Errorf("%w: bonus %d bps exceeds %d", ErrInvalidConfig, cfg.BonusBps, basisPoints)
	}
	welcome := big.NewInt(0)
	if cfg.WelcomeBonus != nil {
		if cfg.WelcomeBonus.Sign() < 0 {
			return nil, fmt.Errorf("%w: negative welcome bonus", ErrInvalidConfig)
		}
		welcome.Set(cfg.WelcomeBonus)
	}
	return &Module{
		addr:     cfg.Address,
		engine:   cfg.Engine,
		ledger:   cfg.Ledger,
		bonusBps: cfg.BonusBps,
		welcome:  welcome,
	}, nil
}

func (m *Module) Address() [20]byte { return m.addr }

func (m *Module) referrerKey(user [20]byte) []byte {
	return state.Key([]byte(moduleName), m.addr[:], []byte("referrer"), user[:])
}

// RegisterReferral records referrer for the caller. A user can record a
// referrer once.
func (m *Module) RegisterReferral(ctx *host.Context, referrer [20]byte) error {
	user := ctx.Caller()
	if referrer == ([20]byte{}) {
		return ErrInvalidReferrer
	}
	if referrer == user {
		return ErrCannotReferSelf
	}
	st := ctx.State()
	var existing []byte
	found, err := st.KVGet(m.referrerKey(user), &existing)
	if err != nil {
		return err
	}
	if found {
		return ErrAlreadyReferred
	}
	if err := st.KVPut(m.referrerKey(user), referrer[:]); err != nil {
		return err
	}
	if m.welcome.Sign() > 0 {
		if err := ctx.Call(m.addr, func(inner *host.Context) error {
			return m.ledger.AllocateFromModule(inner, user, m.welcome)
		}); err != nil {
			return err
		}
	}
	ctx.Emit(events.ReferralRegistered{
		Module:       m.addr,
		User:         user,
		Referrer:     referrer,
		WelcomeBonus: new(big.Int).Set(m.welcome),
	})
	return nil
}

// ReferrerOf returns the referrer recorded for user.
func (m *Module) ReferrerOf(ctx *host.Context, user [20]byte) ([20]byte, bool, error) {
	var raw []byte
	found, err := ctx.State().KVGet(m.referrerKey(user), &raw)
	if err != nil || !found {
		return [20]byte{}, false, err
	}
	var out [20]byte
	copy(out[:], raw)
	return out, true, nil
}

// OnPurchase credits the user's referrer with BonusBps of amount. Users
// without a referrer are ignored.
func (m *Module) OnPurchase(ctx *host.Context, user [20]byte, amount *big.Int) error {
	if ctx.Caller() != m.engine {
		return ErrUnauthorized
	}
	referrer, ok, err := m.ReferrerOf(ctx, user)
	if err != nil || !ok {
		return err
	}
	bonus := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(m.bonusBps)))
	bonus.Quo(bonus, big.NewInt(basisPoints))
	if bonus.Sign() == 0 {
		return nil
	}
	return ctx.Call(m.addr, func(inner *host.Context) error {
		return m.ledger.AllocateFromModule(inner, referrer, bonus)
	})
}
