package streak

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/core/host"
	"github.com/monalisastar/elr-protocol-mainnet/core/state"
)

const (
	moduleName    = "streak"
	secondsPerDay = 24 * 60 * 60
)

var (
	ErrInvalidConfig = errors.New("streak: invalid config")
	ErrUnauthorized  = errors.New("streak: caller is not the purchase engine")
)

// Ledger is the reward ledger surface the module credits through.
type Ledger interface {
	AllocateFromModule(ctx *host.Context, beneficiary [20]byte, amount *big.Int) error
}

type Config struct {
	Address [20]byte
	Engine  [20]byte
	Ledger  Ledger
	// Length is the number of consecutive purchase days that earns a bonus.
	Length uint64
	// Bonus is the flat amount credited every Length days.
	Bonus *big.Int
}

// Streak is the per-user record. Day is a UTC day number.
type Streak struct {
	LastDay uint64
	Days    uint64
	Longest uint64
}

// Module rewards users who purchase on consecutive UTC days.
type Module struct {
	addr   [20]byte
	engine [20]byte
	ledger Ledger
	length uint64
	bonus  *big.Int
}

func New(cfg Config) (*Module, error) {
	var zero [20]byte
	if cfg.Address == zero || cfg.Engine == zero {
		return nil, fmt.Errorf("%w: module and engine addresses required", ErrInvalidConfig)
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("%w: ledger required", ErrInvalidConfig)
	}
	if cfg.Length == 0 {
		return nil, fmt.Errorf("%w: streak length must be positive", ErrInvalidConfig)
	}
	if cfg.Bonus == nil || cfg.Bonus.Sign() < 0 {
		return nil, fmt.Errorf("%w: bonus must be non-negative", ErrInvalidConfig)
	}
	return &Module{
		addr:   cfg.Address,
		engine: cfg.Engine,
		ledger: cfg.Ledger,
		length: cfg.Length,
		bonus:  new(big.Int).Set(cfg.Bonus),
	}, nil
}

func (m *Module) Address() [20]byte { return m.addr }

func (m *Module) streakKey(user [20]byte) []byte {
	return state.Key([]byte(moduleName), m.addr[:], []byte("user"), user[:])
}

// StreakOf returns the user's streak record.
func (m *Module) StreakOf(ctx *host.Context, user [20]byte) (Streak, error) {
	var s Streak
	if _, err := ctx.State().KVGet(m.streakKey(user), &s); err != nil {
		return Streak{}, err
	}
	return s, nil
}

// OnPurchase advances the user's streak. Several purchases on the same day
// count once; a missed day restarts the streak at one.
func (m *Module) OnPurchase(ctx *host.Context, user [20]byte, _ *big.Int) error {
	if ctx.Caller() != m.engine {
		return ErrUnauthorized
	}
	s, err := m.StreakOf(ctx, user)
	if err != nil {
		return err
	}
	day := uint64(ctx.Now().Unix()) / secondsPerDay
	switch {
	case s.Days > 0 && s.LastDay == day:
		return nil
	case s.Days > 0 && s.LastDay+1 == day:
		s.Days++
	default:
		s.Days = 1
	}
	s.LastDay = day
	if s.Days > s.Longest {
		s.Longest = s.Days
	}
	if err := ctx.State().KVPut(m.streakKey(user), &s); err != nil {
		return err
	}
	if s.Days%m.length != 0 || m.bonus.Sign() == 0 {
		return nil
	}
	bonus := new(big.Int).Set(m.bonus)
	if err := ctx.Call(m.addr, func(inner *host.Context) error {
		return m.ledger.AllocateFromModule(inner, user, bonus)
	}); err != nil {
		return err
	}
	ctx.Emit(events.StreakBonus{Module: m.addr, User: user, Days: s.Days, Bonus: bonus})
	return nil
}
