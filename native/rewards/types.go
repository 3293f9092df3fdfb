package rewards

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/monalisastar/elr-protocol-mainnet/core/host"
)

// Asset is the custodied fungible asset the ledger holds. Transfers run as
// nested calls issued by the ledger, so Caller() inside them is the ledger
// address. Any error aborts the ledger operation that triggered it.
type Asset interface {
	TransferFrom(ctx *host.Context, from, to [20]byte, amount *big.Int) error
	Transfer(ctx *host.Context, to [20]byte, amount *big.Int) error
	BalanceOf(ctx *host.Context, owner [20]byte) (*big.Int, error)
}

// ResetPolicy decides what happens to the pending balance of a reset account.
type ResetPolicy uint8

const (
	// ResetReclaim returns the pending balance to the pool.
	ResetReclaim ResetPolicy = iota
	// ResetForfeit drops the pending balance. The funds stay in custody but
	// are no longer allocatable; the amount is tracked in Totals.Forfeited.
	ResetForfeit
)

// ParseResetPolicy maps a configured policy name onto a ResetPolicy.
func ParseResetPolicy(name string) (ResetPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "reclaim":
		return ResetReclaim, nil
	case "forfeit":
		return ResetForfeit, nil
	default:
		return ResetReclaim, fmt.Errorf("%w: unknown reset policy %q", ErrInvalidConfig, name)
	}
}

func (p ResetPolicy) String() string {
	switch p {
	case ResetReclaim:
		return "reclaim"
	case ResetForfeit:
		return "forfeit"
	default:
		return "unknown"
	}
}

// Account is the per-beneficiary reward record.
type Account struct {
	Earned        *big.Int
	Claimed       *big.Int
	LastClaimedAt uint64
}

func newAccount() *Account {
	return &Account{Earned: big.NewInt(0), Claimed: big.NewInt(0)}
}

func (a *Account) normalize() *Account {
	if a.Earned == nil {
		a.Earned = big.NewInt(0)
	}
	if a.Claimed == nil {
		a.Claimed = big.NewInt(0)
	}
	return a
}

// Pending is the amount the account can still claim.
func (a Account) Pending() *big.Int {
	earned, claimed := a.Earned, a.Claimed
	if earned == nil {
		earned = new(big.Int)
	}
	if claimed == nil {
		claimed = new(big.Int)
	}
	return new(big.Int).Sub(earned, claimed)
}

// Totals are cumulative audit counters. They always satisfy
// pool = Funded - Allocated + Reclaimed.
type Totals struct {
	Funded    *big.Int
	Allocated *big.Int
	Claimed   *big.Int
	Reclaimed *big.Int
	Forfeited *big.Int
}

func (t *Totals) normalize() *Totals {
	for _, v := range []**big.Int{&t.Funded, &t.Allocated, &t.Claimed, &t.Reclaimed, &t.Forfeited} {
		if *v == nil {
			*v = big.NewInt(0)
		}
	}
	return t
}

// Solvency compares what the ledger holds in custody against what it owes.
type Solvency struct {
	Custody     *big.Int
	Pool        *big.Int
	Liabilities *big.Int
}

// Obligations is pool plus outstanding liabilities.
func (s Solvency) Obligations() *big.Int {
	return new(big.Int).Add(s.Pool, s.Liabilities)
}

// Solvent reports whether custody covers every obligation.
func (s Solvency) Solvent() bool {
	return s.Custody.Cmp(s.Obligations()) >= 0
}

// Surplus is custody held beyond obligations, e.g. forfeited balances or
// direct transfers to the ledger.
func (s Solvency) Surplus() *big.Int {
	return new(big.Int).Sub(s.Custody, s.Obligations())
}
