package rewards

import (
	"fmt"
	"math/big"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/core/host"
	"github.com/monalisastar/elr-protocol-mainnet/core/state"
	"github.com/monalisastar/elr-protocol-mainnet/crypto/attestation"
	nativecommon "github.com/monalisastar/elr-protocol-mainnet/native/common"
)

const moduleName = "rewards"

// Config fixes the identities and collaborators of a ledger instance.
type Config struct {
	// Address is the ledger's own identity. Custody is held at this address
	// and it is bound into every signed allocation.
	Address     [20]byte
	Admin       [20]byte
	Authority   [20]byte
	Asset       Asset
	Scheme      attestation.Scheme
	ResetPolicy ResetPolicy
}

// Ledger is the single source of truth for the reward pool and per-account
// balances.
type Ledger struct {
	addr     [20]byte
	admin    [20]byte
	asset    Asset
	policy   ResetPolicy
	verifier *attestation.Verifier
	nonces   attestation.NonceBook
	pauses   nativecommon.PauseView
}

// NewLedger validates cfg and constructs a ledger.
func NewLedger(cfg Config) (*Ledger, error) {
	var zero [20]byte
	if cfg.Address == zero {
		return nil, fmt.Errorf("%w: ledger address required", ErrInvalidConfig)
	}
	if cfg.Admin == zero {
		return nil, fmt.Errorf("%w: admin required", ErrInvalidConfig)
	}
	if cfg.Authority == zero {
		return nil, fmt.Errorf("%w: authority required", ErrInvalidConfig)
	}
	if cfg.Asset == nil {
		return nil, fmt.Errorf("%w: custody asset required", ErrInvalidConfig)
	}
	if cfg.ResetPolicy != ResetReclaim && cfg.ResetPolicy != ResetForfeit {
		return nil, fmt.Errorf("%w: unknown reset policy %d", ErrInvalidConfig, cfg.ResetPolicy)
	}
	return &Ledger{
		addr:     cfg.Address,
		admin:    cfg.Admin,
		asset:    cfg.Asset,
		policy:   cfg.ResetPolicy,
		verifier: attestation.NewVerifier(cfg.Scheme, cfg.Authority),
		nonces:   attestation.NewNonceBook(cfg.Address),
	}, nil
}

func (l *Ledger) SetPauses(p nativecommon.PauseView) {
	if l == nil {
		return
	}
	l.pauses = p
}

// Address returns the ledger identity.
func (l *Ledger) Address() [20]byte { return l.addr }

// Admin returns the ledger admin.
func (l *Ledger) Admin() [20]byte { return l.admin }

// ResetPolicy returns the configured reset behaviour.
func (l *Ledger) ResetPolicy() ResetPolicy { return l.policy }

func (l *Ledger) key(parts ...[]byte) []byte {
	return state.Key(append([][]byte{[]byte(moduleName), l.addr[:]}, parts...)...)
}

func (l *Ledger) poolKey() []byte        { return l.key([]byte("pool")) }
func (l *Ledger) liabilitiesKey() []byte { return l.key([]byte("liabilities")) }
func (l *Ledger) totalsKey() []byte      { return l.key([]byte("totals")) }
func (l *Ledger) lockKey() []byte        { return l.key([]byte("lock")) }

func (l *Ledger) accountKey(addr [20]byte) []byte {
	return l.key([]byte("account"), addr[:])
}

func (l *Ledger) moduleKey(addr [20]byte) []byte {
	return l.key([]byte("module"), addr[:])
}

func (l *Ledger) loadAccount(st *state.Manager, addr [20]byte) (*Account, error) {
	acct := newAccount()
	if _, err := st.KVGet(l.accountKey(addr), acct); err != nil {
		return nil, err
	}
	return acct.normalize(), nil
}

func (l *Ledger) loadTotals(st *state.Manager) (*Totals, error) {
	totals := new(Totals)
	if _, err := st.KVGet(l.totalsKey(), totals); err != nil {
		return nil, err
	}
	return totals.normalize(), nil
}

func (l *Ledger) addScalar(st *state.Manager, key []byte, delta *big.Int) (*big.Int, error) {
	current, err := st.BigGet(key)
	if err != nil {
		return nil, err
	}
	next := new(big.Int).Add(current, delta)
	if next.Sign() < 0 {
		return nil, fmt.Errorf("rewards: scalar underflow")
	}
	if err := st.BigPut(key, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (l *Ledger) requireAdmin(ctx *host.Context) error {
	if ctx.Caller() != l.admin {
		return ErrNotAdmin
	}
	return nil
}

func positive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	return nil
}

// FundRewardPool pulls amount from the admin into custody and makes it
// available for allocation. The admin must have approved the ledger on the
// custody asset beforehand.
func (l *Ledger) FundRewardPool(ctx *host.Context, amount *big.Int) error {
	if err := l.requireAdmin(ctx); err != nil {
		return err
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if err := positive(amount); err != nil {
		return err
	}
	amount = new(big.Int).Set(amount)
	return ctx.Atomic(func(frame *host.Context) error {
		st := frame.State()
		pool, err := l.addScalar(st, l.poolKey(), amount)
		if err != nil {
			return err
		}
		totals, err := l.loadTotals(st)
		if err != nil {
			return err
		}
		totals.Funded.Add(totals.Funded, amount)
		if err := st.KVPut(l.totalsKey(), totals); err != nil {
			return err
		}
		funder := frame.Caller()
		if err := frame.Call(l.addr, func(inner *host.Context) error {
			return l.asset.TransferFrom(inner, funder, l.addr, amount)
		}); err != nil {
			return fmt.Errorf("%w: pull: %w", ErrCustodyTransfer, err)
		}
		frame.Emit(events.RewardPoolFunded{Ledger: l.addr, Funder: funder, Amount: amount, Pool: pool})
		return nil
	})
}

// SetModule grants or revokes push-allocation rights.
func (l *Ledger) SetModule(ctx *host.Context, module [20]byte, enabled bool) error {
	if err := l.requireAdmin(ctx); err != nil {
		return err
	}
	if module == ([20]byte{}) {
		return fmt.Errorf("%w: zero module", ErrInvalidConfig)
	}
	if err := ctx.State().SetFlag(l.moduleKey(module), enabled); err != nil {
		return err
	}
	ctx.Emit(events.RewardModuleSet{Ledger: l.addr, Module: module, Enabled: enabled})
	return nil
}

// IsModule reports whether addr holds push-allocation rights.
func (l *Ledger) IsModule(ctx *host.Context, addr [20]byte) (bool, error) {
	return ctx.State().Flag(l.moduleKey(addr))
}

// AllocateFromModule credits beneficiary from the pool. The caller's module
// membership is the only authorisation.
func (l *Ledger) AllocateFromModule(ctx *host.Context, beneficiary [20]byte, amount *big.Int) error {
	caller := ctx.Caller()
	ok, err := l.IsModule(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotModule
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if err := positive(amount); err != nil {
		return err
	}
	amount = new(big.Int).Set(amount)
	return ctx.Atomic(func(frame *host.Context) error {
		pool, err := l.credit(frame.State(), beneficiary, amount)
		if err != nil {
			return err
		}
		frame.Emit(events.RewardAllocated{
			Ledger:      l.addr,
			Source:      events.AllocationSourceModule,
			Module:      caller,
			Beneficiary: beneficiary,
			Amount:      amount,
			Pool:        pool,
		})
		return nil
	})
}

// AllocateRewardSigned credits beneficiary from the pool under an authority
// attestation. Each nonce is accepted once per ledger, whatever the
// beneficiary.
func (l *Ledger) AllocateRewardSigned(ctx *host.Context, beneficiary [20]byte, amount *big.Int, nonce [32]byte, sig []byte) error {
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrZeroAmount
	}
	if err := l.verifier.Verify(sig, attestation.AllocationPayload(beneficiary, amount, nonce, l.addr)...); err != nil {
		return err
	}
	used, err := l.nonces.Used(ctx.State(), nonce)
	if err != nil {
		return err
	}
	if used {
		return ErrAlreadyUsedNonce
	}
	if err := positive(amount); err != nil {
		return err
	}
	amount = new(big.Int).Set(amount)
	return ctx.Atomic(func(frame *host.Context) error {
		st := frame.State()
		if err := l.nonces.Consume(st, nonce); err != nil {
			return err
		}
		pool, err := l.credit(st, beneficiary, amount)
		if err != nil {
			return err
		}
		frame.Emit(events.RewardAllocated{
			Ledger:      l.addr,
			Source:      events.AllocationSourceSigned,
			Beneficiary: beneficiary,
			Amount:      amount,
			Nonce:       nonce,
			Pool:        pool,
		})
		return nil
	})
}

// credit moves amount from the pool to the beneficiary's earned balance and
// returns the remaining pool.
func (l *Ledger) credit(st *state.Manager, beneficiary [20]byte, amount *big.Int) (*big.Int, error) {
	if beneficiary == ([20]byte{}) {
		return nil, ErrInvalidBeneficiary
	}
	pool, err := st.BigGet(l.poolKey())
	if err != nil {
		return nil, err
	}
	if amount.Cmp(pool) > 0 {
		return nil, fmt.Errorf("%w: requested %s, available %s", ErrPoolLow, amount, pool)
	}
	pool = new(big.Int).Sub(pool, amount)
	if err := st.BigPut(l.poolKey(), pool); err != nil {
		return nil, err
	}
	acct, err := l.loadAccount(st, beneficiary)
	if err != nil {
		return nil, err
	}
	acct.Earned.Add(acct.Earned, amount)
	if err := st.KVPut(l.accountKey(beneficiary), acct); err != nil {
		return nil, err
	}
	if _, err := l.addScalar(st, l.liabilitiesKey(), amount); err != nil {
		return nil, err
	}
	totals, err := l.loadTotals(st)
	if err != nil {
		return nil, err
	}
	totals.Allocated.Add(totals.Allocated, amount)
	if err := st.KVPut(l.totalsKey(), totals); err != nil {
		return nil, err
	}
	return pool, nil
}

// ClaimRewards pays the caller's pending balance and returns the amount paid.
// The account is settled before the payout transfer runs, and the ledger is
// locked against re-entry for the duration of the transfer.
func (l *Ledger) ClaimRewards(ctx *host.Context) (*big.Int, error) {
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return nil, err
	}
	var paid *big.Int
	err := ctx.Atomic(func(frame *host.Context) error {
		st := frame.State()
		locked, err := st.Flag(l.lockKey())
		if err != nil {
			return err
		}
		if locked {
			return ErrReentrantCall
		}
		beneficiary := frame.Caller()
		acct, err := l.loadAccount(st, beneficiary)
		if err != nil {
			return err
		}
		pending := acct.Pending()
		if pending.Sign() <= 0 {
			return ErrNothingToClaim
		}
		claimedAt := uint64(frame.Now().Unix())

		acct.Claimed.Add(acct.Claimed, pending)
		acct.LastClaimedAt = claimedAt
		if err := st.KVPut(l.accountKey(beneficiary), acct); err != nil {
			return err
		}
		if _, err := l.addScalar(st, l.liabilitiesKey(), new(big.Int).Neg(pending)); err != nil {
			return err
		}
		totals, err := l.loadTotals(st)
		if err != nil {
			return err
		}
		totals.Claimed.Add(totals.Claimed, pending)
		if err := st.KVPut(l.totalsKey(), totals); err != nil {
			return err
		}

		if err := st.SetFlag(l.lockKey(), true); err != nil {
			return err
		}
		if err := frame.Call(l.addr, func(inner *host.Context) error {
			return l.asset.Transfer(inner, beneficiary, pending)
		}); err != nil {
			return fmt.Errorf("%w: payout: %w", ErrCustodyTransfer, err)
		}
		if err := st.SetFlag(l.lockKey(), false); err != nil {
			return err
		}

		frame.Emit(events.RewardClaimed{Ledger: l.addr, Beneficiary: beneficiary, Amount: pending, ClaimedAt: claimedAt})
		paid = pending
		return nil
	})
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(paid), nil
}

// ResetUser zeroes an account. Under ResetReclaim the pending balance returns
// to the pool; under ResetForfeit it is dropped and recorded as forfeited.
func (l *Ledger) ResetUser(ctx *host.Context, addr [20]byte) error {
	if err := l.requireAdmin(ctx); err != nil {
		return err
	}
	return ctx.Atomic(func(frame *host.Context) error {
		st := frame.State()
		acct, err := l.loadAccount(st, addr)
		if err != nil {
			return err
		}
		pending := acct.Pending()
		if err := st.KVDelete(l.accountKey(addr)); err != nil {
			return err
		}
		if _, err := l.addScalar(st, l.liabilitiesKey(), new(big.Int).Neg(pending)); err != nil {
			return err
		}
		totals, err := l.loadTotals(st)
		if err != nil {
			return err
		}
		reclaimed := l.policy == ResetReclaim
		if reclaimed {
			if _, err := l.addScalar(st, l.poolKey(), pending); err != nil {
				return err
			}
			totals.Reclaimed.Add(totals.Reclaimed, pending)
		} else {
			totals.Forfeited.Add(totals.Forfeited, pending)
		}
		if err := st.KVPut(l.totalsKey(), totals); err != nil {
			return err
		}
		frame.Emit(events.RewardUserReset{Ledger: l.addr, Account: addr, Forfeited: pending, Reclaimed: reclaimed})
		return nil
	})
}

// Pool returns the amount available for allocation.
func (l *Ledger) Pool(ctx *host.Context) (*big.Int, error) {
	return ctx.State().BigGet(l.poolKey())
}

// Account returns the reward record for addr. Unknown accounts read as zero.
func (l *Ledger) Account(ctx *host.Context, addr [20]byte) (Account, error) {
	acct, err := l.loadAccount(ctx.State(), addr)
	if err != nil {
		return Account{}, err
	}
	return *acct, nil
}

// Liabilities returns the sum of pending balances over all accounts.
func (l *Ledger) Liabilities(ctx *host.Context) (*big.Int, error) {
	return ctx.State().BigGet(l.liabilitiesKey())
}

// Totals returns the cumulative audit counters.
func (l *Ledger) Totals(ctx *host.Context) (Totals, error) {
	totals, err := l.loadTotals(ctx.State())
	if err != nil {
		return Totals{}, err
	}
	return *totals, nil
}

// NonceUsed reports whether a signed allocation nonce was consumed.
func (l *Ledger) NonceUsed(ctx *host.Context, nonce [32]byte) (bool, error) {
	return l.nonces.Used(ctx.State(), nonce)
}

// Solvency compares the custody balance with the pool and liabilities.
func (l *Ledger) Solvency(ctx *host.Context) (Solvency, error) {
	custody, err := l.asset.BalanceOf(ctx, l.addr)
	if err != nil {
		return Solvency{}, err
	}
	pool, err := l.Pool(ctx)
	if err != nil {
		return Solvency{}, err
	}
	liabilities, err := l.Liabilities(ctx)
	if err != nil {
		return Solvency{}, err
	}
	return Solvency{Custody: custody, Pool: pool, Liabilities: liabilities}, nil
}
