package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/monalisastar/elr-protocol-mainnet/config"
	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/core/host"
	"github.com/monalisastar/elr-protocol-mainnet/core/state"
	"github.com/monalisastar/elr-protocol-mainnet/crypto/attestation"
	"github.com/monalisastar/elr-protocol-mainnet/native/bank"
	"github.com/monalisastar/elr-protocol-mainnet/native/cashback"
	nativecommon "github.com/monalisastar/elr-protocol-mainnet/native/common"
	"github.com/monalisastar/elr-protocol-mainnet/native/merchants"
	"github.com/monalisastar/elr-protocol-mainnet/native/referral"
	"github.com/monalisastar/elr-protocol-mainnet/native/rewards"
	"github.com/monalisastar/elr-protocol-mainnet/native/streak"
	"github.com/monalisastar/elr-protocol-mainnet/storage"
)

// Operation names reported to observers and logs.
const (
	OpGenesis           = "genesis"
	OpInstallHooks      = "cashback.hooks"
	OpRegisterMerchant  = "merchants.register"
	OpApproveMerchant   = "merchants.approve"
	OpBlacklistMerchant = "merchants.blacklist"
	OpFundPool          = "rewards.fund"
	OpAllocateSigned    = "rewards.allocate_signed"
	OpClaim             = "rewards.claim"
	OpResetUser         = "rewards.reset"
	OpProcessPurchase   = "cashback.purchase"
	OpRegisterReferral  = "referral.register"
)

var genesisKey = state.Key([]byte("node"), []byte("genesis"))

// ErrNotFound is returned by views for unknown records.
var ErrNotFound = errors.New("core: not found")

type nodeOptions struct {
	logger   *slog.Logger
	emitter  events.Emitter
	observer host.Observer
	clock    func() time.Time
}

// Option customises a Node.
type Option func(*nodeOptions)

// WithLogger sets the logger shared by the node and its host.
func WithLogger(logger *slog.Logger) Option {
	return func(o *nodeOptions) { o.logger = logger }
}

// WithEmitter adds a downstream consumer for committed events. The node
// always keeps its own bounded recorder.
func WithEmitter(e events.Emitter) Option {
	return func(o *nodeOptions) { o.emitter = e }
}

// WithObserver installs a call observer on the host.
func WithObserver(obs host.Observer) Option {
	return func(o *nodeOptions) { o.observer = obs }
}

// WithClock overrides the host clock.
func WithClock(clock func() time.Time) Option {
	return func(o *nodeOptions) { o.clock = clock }
}

// Node is the central controller, wiring the protocol components over a
// single host.
type Node struct {
	host     *host.Host
	recorder *events.Recorder
	pauses   *nativecommon.Pauses
	logger   *slog.Logger

	relayer [20]byte
	admin   [20]byte
	supply  *big.Int

	token    *bank.Token
	ledger   *rewards.Ledger
	registry *merchants.Registry
	engine   *cashback.Engine
	referral *referral.Module
	streak   *streak.Module
}

// NewNode validates cfg and builds every component it names. Call Bootstrap
// before serving traffic.
func NewNode(db storage.Database, cfg *config.Config, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("core: config required")
	}
	resolved, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	scheme, err := attestation.SchemeByName(cfg.Rewards.SignatureScheme)
	if err != nil {
		return nil, err
	}
	policy, err := rewards.ParseResetPolicy(cfg.Rewards.ResetPolicy)
	if err != nil {
		return nil, err
	}

	o := nodeOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	n := &Node{
		recorder: events.NewRecorder(cfg.RecentEvents),
		pauses:   nativecommon.NewPauses(cfg.Pauses.Modules()...),
		logger:   o.logger,
		relayer:  resolved.Relayer,
		admin:    resolved.Admin,
		supply:   resolved.GenesisSupply,
	}

	n.token = bank.NewToken(resolved.Token, cfg.Token.Symbol, resolved.Admin)
	n.ledger, err = rewards.NewLedger(rewards.Config{
		Address:     resolved.Ledger,
		Admin:       resolved.Admin,
		Authority:   resolved.Authority,
		Asset:       n.token,
		Scheme:      scheme,
		ResetPolicy: policy,
	})
	if err != nil {
		return nil, err
	}
	n.registry, err = merchants.NewRegistry(merchants.Config{
		Address:   resolved.Registry,
		Admin:     resolved.Admin,
		Authority: resolved.Authority,
		Ladder: merchants.TierLadder{
			Silver:   resolved.SilverThreshold,
			Gold:     resolved.GoldThreshold,
			Platinum: resolved.PlatinumThreshold,
		},
		Scheme: scheme,
	})
	if err != nil {
		return nil, err
	}
	n.engine, err = cashback.NewEngine(cashback.Config{
		Address:  resolved.Engine,
		Admin:    resolved.Admin,
		Registry: n.registry,
		Ledger:   n.ledger,
		Rates: cashback.Rates{
			Silver:   cfg.Tiers.SilverBps,
			Gold:     cfg.Tiers.GoldBps,
			Platinum: cfg.Tiers.PlatinumBps,
		},
	})
	if err != nil {
		return nil, err
	}
	if cfg.Referral.Enabled {
		n.referral, err = referral.New(referral.Config{
			Address:      resolved.Referral,
			Engine:       resolved.Engine,
			Ledger:       n.ledger,
			BonusBps:     cfg.Referral.BonusBps,
			WelcomeBonus: resolved.WelcomeBonus,
		})
		if err != nil {
			return nil, err
		}
	}
	if cfg.Streak.Enabled {
		n.streak, err = streak.New(streak.Config{
			Address: resolved.Streak,
			Engine:  resolved.Engine,
			Ledger:  n.ledger,
			Length:  cfg.Streak.Length,
			Bonus:   resolved.StreakBonus,
		})
		if err != nil {
			return nil, err
		}
	}

	n.ledger.SetPauses(n.pauses)
	n.registry.SetPauses(n.pauses)
	n.engine.SetPauses(n.pauses)

	var emitter events.Emitter = n.recorder
	if o.emitter != nil {
		emitter = events.Fanout{n.recorder, o.emitter}
	}
	hostOpts := []host.Option{host.WithEmitter(emitter), host.WithLogger(o.logger)}
	if o.observer != nil {
		hostOpts = append(hostOpts, host.WithObserver(o.observer))
	}
	if o.clock != nil {
		hostOpts = append(hostOpts, host.WithClock(o.clock))
	}
	n.host = host.New(db, hostOpts...)
	return n, nil
}

// Bootstrap applies the one-time genesis writes and installs the bonus hooks.
// Genesis mints the configured supply to the admin and grants the engine and
// bonus modules the rights they need. It is a no-op on restart.
func (n *Node) Bootstrap() error {
	err := n.host.Execute(n.admin, OpGenesis, func(ctx *host.Context) error {
		done, err := ctx.State().Flag(genesisKey)
		if err != nil || done {
			return err
		}
		if n.supply.Sign() > 0 {
			if err := n.token.Mint(ctx, n.admin, n.supply); err != nil {
				return err
			}
		}
		if err := n.ledger.SetModule(ctx, n.engine.Address(), true); err != nil {
			return err
		}
		if err := n.registry.SetVolumeReporter(ctx, n.engine.Address(), true); err != nil {
			return err
		}
		if n.referral != nil {
			if err := n.ledger.SetModule(ctx, n.referral.Address(), true); err != nil {
				return err
			}
		}
		if n.streak != nil {
			if err := n.ledger.SetModule(ctx, n.streak.Address(), true); err != nil {
				return err
			}
		}
		n.logger.Info("genesis applied", "supply", n.supply.String())
		return ctx.State().SetFlag(genesisKey, true)
	})
	if err != nil {
		return fmt.Errorf("core: genesis: %w", err)
	}
	return n.host.Execute(n.admin, OpInstallHooks, func(ctx *host.Context) error {
		if n.referral != nil {
			if err := n.engine.SetHook(ctx, cashback.SlotReferral, n.referral); err != nil {
				return err
			}
		}
		if n.streak != nil {
			if err := n.engine.SetHook(ctx, cashback.SlotStreak, n.streak); err != nil {
				return err
			}
		}
		return nil
	})
}

// Relayer is the caller identity used for permissionless signed submissions.
func (n *Node) Relayer() [20]byte { return n.relayer }

// Admin returns the configured administrator.
func (n *Node) Admin() [20]byte { return n.admin }

// Token returns the custody token.
func (n *Node) Token() *bank.Token { return n.token }

// Ledger returns the reward ledger.
func (n *Node) Ledger() *rewards.Ledger { return n.ledger }

// Registry returns the merchant registry.
func (n *Node) Registry() *merchants.Registry { return n.registry }

// Engine returns the cashback engine.
func (n *Node) Engine() *cashback.Engine { return n.engine }

// Events returns the retained committed events, oldest first.
func (n *Node) Events() []events.Event { return n.recorder.Events() }

// EventsTotal reports how many events were ever committed.
func (n *Node) EventsTotal() uint64 { return n.recorder.Total() }

// SetPaused toggles the pause switch of a module.
func (n *Node) SetPaused(module string, paused bool) { n.pauses.Set(module, paused) }

// Execute runs an arbitrary call against the node's host.
func (n *Node) Execute(caller [20]byte, op string, fn func(*host.Context) error) error {
	return n.host.Execute(caller, op, fn)
}

// RegisterMerchant records caller as a merchant.
func (n *Node) RegisterMerchant(caller [20]byte, name, ref string) error {
	return n.host.Execute(caller, OpRegisterMerchant, func(ctx *host.Context) error {
		return n.registry.RegisterMerchant(ctx, name, ref)
	})
}

// ApproveMerchant submits an approval attestation through the relayer.
func (n *Node) ApproveMerchant(merchant [20]byte, tier merchants.Tier, sig []byte) error {
	return n.host.Execute(n.relayer, OpApproveMerchant, func(ctx *host.Context) error {
		return n.registry.ApproveBySig(ctx, merchant, tier, sig)
	})
}

// BlacklistMerchant submits a blacklist attestation through the relayer.
func (n *Node) BlacklistMerchant(merchant [20]byte, sig []byte) error {
	return n.host.Execute(n.relayer, OpBlacklistMerchant, func(ctx *host.Context) error {
		return n.registry.BlacklistBySig(ctx, merchant, sig)
	})
}

// AllocateSigned submits a signed one-off allocation through the relayer.
func (n *Node) AllocateSigned(beneficiary [20]byte, amount *big.Int, nonce [32]byte, sig []byte) error {
	return n.host.Execute(n.relayer, OpAllocateSigned, func(ctx *host.Context) error {
		return n.ledger.AllocateRewardSigned(ctx, beneficiary, amount, nonce, sig)
	})
}

// FundPool moves amount from caller into the reward pool. Caller must be the
// admin and have approved the ledger on the token.
func (n *Node) FundPool(caller [20]byte, amount *big.Int) error {
	return n.host.Execute(caller, OpFundPool, func(ctx *host.Context) error {
		if err := n.token.Approve(ctx, n.ledger.Address(), amount); err != nil {
			return err
		}
		return n.ledger.FundRewardPool(ctx, amount)
	})
}

// Claim pays out caller's pending rewards.
func (n *Node) Claim(caller [20]byte) (*big.Int, error) {
	var paid *big.Int
	err := n.host.Execute(caller, OpClaim, func(ctx *host.Context) error {
		amount, err := n.ledger.ClaimRewards(ctx)
		paid = amount
		return err
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// ResetUser zeroes an account on behalf of caller.
func (n *Node) ResetUser(caller, account [20]byte) error {
	return n.host.Execute(caller, OpResetUser, func(ctx *host.Context) error {
		return n.ledger.ResetUser(ctx, account)
	})
}

// ProcessPurchase runs the cashback pipeline for a purchase.
func (n *Node) ProcessPurchase(caller, user [20]byte, amount *big.Int, merchant [20]byte) (cashback.Receipt, error) {
	var receipt cashback.Receipt
	err := n.host.Execute(caller, OpProcessPurchase, func(ctx *host.Context) error {
		r, err := n.engine.ProcessPurchase(ctx, user, amount, merchant)
		receipt = r
		return err
	})
	if err != nil {
		return cashback.Receipt{}, err
	}
	return receipt, nil
}

// RegisterReferral records referrer for caller.
func (n *Node) RegisterReferral(caller, referrer [20]byte) error {
	if n.referral == nil {
		return fmt.Errorf("%w: referral module disabled", ErrNotFound)
	}
	return n.host.Execute(caller, OpRegisterReferral, func(ctx *host.Context) error {
		return n.referral.RegisterReferral(ctx, referrer)
	})
}

// PoolView is the snapshot served for the reward pool.
type PoolView struct {
	Pool     *big.Int
	Totals   rewards.Totals
	Solvency rewards.Solvency
}

// Pool reads the pool, the conservation book and the custody snapshot.
func (n *Node) Pool() (PoolView, error) {
	var out PoolView
	err := n.host.View(func(ctx *host.Context) error {
		pool, err := n.ledger.Pool(ctx)
		if err != nil {
			return err
		}
		totals, err := n.ledger.Totals(ctx)
		if err != nil {
			return err
		}
		solvency, err := n.ledger.Solvency(ctx)
		if err != nil {
			return err
		}
		out = PoolView{Pool: pool, Totals: totals, Solvency: solvency}
		return nil
	})
	return out, err
}

// AccountView is the snapshot served for a reward account.
type AccountView struct {
	Account  rewards.Account
	Balance  *big.Int
	Referrer *[20]byte
	Streak   *streak.Streak
}

// Account reads the reward account of addr together with its bonus module
// records.
func (n *Node) Account(addr [20]byte) (AccountView, error) {
	var out AccountView
	err := n.host.View(func(ctx *host.Context) error {
		account, err := n.ledger.Account(ctx, addr)
		if err != nil {
			return err
		}
		balance, err := n.token.BalanceOf(ctx, addr)
		if err != nil {
			return err
		}
		out = AccountView{Account: account, Balance: balance}
		if n.referral != nil {
			referrer, ok, err := n.referral.ReferrerOf(ctx, addr)
			if err != nil {
				return err
			}
			if ok {
				out.Referrer = &referrer
			}
		}
		if n.streak != nil {
			s, err := n.streak.StreakOf(ctx, addr)
			if err != nil {
				return err
			}
			out.Streak = &s
		}
		return nil
	})
	return out, err
}

// Merchant reads a merchant record. ErrNotFound reports an unknown address.
func (n *Node) Merchant(addr [20]byte) (merchants.Merchant, error) {
	var out merchants.Merchant
	err := n.host.View(func(ctx *host.Context) error {
		m, ok, err := n.registry.GetMerchant(ctx, addr)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		out = m
		return nil
	})
	return out, err
}

// NonceUsed reports whether a signed allocation nonce was consumed.
func (n *Node) NonceUsed(nonce [32]byte) (bool, error) {
	var used bool
	err := n.host.View(func(ctx *host.Context) error {
		var err error
		used, err = n.ledger.NonceUsed(ctx, nonce)
		return err
	})
	return used, err
}
