package cashback

import (
	"errors"
	"math/big"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/core/host"
	"github.com/monalisastar/elr-protocol-mainnet/crypto/attestation"
	"github.com/monalisastar/elr-protocol-mainnet/native/bank"
	"github.com/monalisastar/elr-protocol-mainnet/native/merchants"
	"github.com/monalisastar/elr-protocol-mainnet/native/referral"
	"github.com/monalisastar/elr-protocol-mainnet/native/rewards"
	"github.com/monalisastar/elr-protocol-mainnet/storage"
)

var (
	adminAddr    = [20]byte{0x01}
	tokenAddr    = [20]byte{0x70}
	ledgerAddr   = [20]byte{0x71}
	registryAddr = [20]byte{0x72}
	engineAddr   = [20]byte{0x73}
	referralAddr = [20]byte{0x74}
	merchantAddr = [20]byte{0x0a}
	userAddr     = [20]byte{0x0b}
	referrerAddr = [20]byte{0x0c}
)

type system struct {
	host     *host.Host
	token    *bank.Token
	ledger   *rewards.Ledger
	registry *merchants.Registry
	engine   *Engine
	signer   *attestation.Signer
	recorder *events.Recorder
}

func newSystem(t *testing.T, registerModule bool) *system {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	signer := attestation.NewSigner(key, nil)

	token := bank.NewToken(tokenAddr, "ELR", adminAddr)
	ledger, err := rewards.NewLedger(rewards.Config{
		Address:   ledgerAddr,
		Admin:     adminAddr,
		Authority: signer.Address(),
		Asset:     token,
	})
	require.NoError(t, err)
	registry, err := merchants.NewRegistry(merchants.Config{
		Address:   registryAddr,
		Admin:     adminAddr,
		Authority: signer.Address(),
		Ladder: merchants.TierLadder{
			Silver:   big.NewInt(1_000),
			Gold:     big.NewInt(50_000),
			Platinum: big.NewInt(100_000),
		},
	})
	require.NoError(t, err)
	engine, err := NewEngine(Config{
		Address:  engineAddr,
		Admin:    adminAddr,
		Registry: registry,
		Ledger:   ledger,
		Rates:    DefaultRates(),
	})
	require.NoError(t, err)

	rec := events.NewRecorder(0)
	h := host.New(storage.NewMemDB(), host.WithEmitter(rec), host.WithClock(func() time.Time { return time.Unix(86_400*100, 0) }))
	require.NoError(t, h.Execute(adminAddr, "bootstrap", func(ctx *host.Context) error {
		if err := token.Mint(ctx, adminAddr, big.NewInt(1_000_000)); err != nil {
			return err
		}
		if err := token.Approve(ctx, ledgerAddr, big.NewInt(1_000_000)); err != nil {
			return err
		}
		if err := ledger.FundRewardPool(ctx, big.NewInt(100_000)); err != nil {
			return err
		}
		if registerModule {
			if err := ledger.SetModule(ctx, engineAddr, true); err != nil {
				return err
			}
		}
		return registry.SetVolumeReporter(ctx, engineAddr, true)
	}))
	require.NoError(t, h.Execute(merchantAddr, "register", func(ctx *host.Context) error {
		return registry.RegisterMerchant(ctx, "Corner Shop", "ref")
	}))
	return &system{host: h, token: token, ledger: ledger, registry: registry, engine: engine, signer: signer, recorder: rec}
}

func (s *system) approve(t *testing.T, tier merchants.Tier) {
	t.Helper()
	sig, err := s.signer.Sign(attestation.ApprovalPayload(merchantAddr, uint8(tier), registryAddr)...)
	require.NoError(t, err)
	require.NoError(t, s.host.Execute(adminAddr, "approve", func(ctx *host.Context) error {
		return s.registry.ApproveBySig(ctx, merchantAddr, tier, sig)
	}))
}

func (s *system) blacklist(t *testing.T) {
	t.Helper()
	sig, err := s.signer.Sign(attestation.BlacklistPayload(merchantAddr, registryAddr)...)
	require.NoError(t, err)
	require.NoError(t, s.host.Execute(adminAddr, "blacklist", func(ctx *host.Context) error {
		return s.registry.BlacklistBySig(ctx, merchantAddr, sig)
	}))
}

func (s *system) purchase(amount int64) (Receipt, error) {
	var receipt Receipt
	err := s.host.Execute(userAddr, "purchase", func(ctx *host.Context) error {
		var err error
		receipt, err = s.engine.ProcessPurchase(ctx, userAddr, big.NewInt(amount), merchantAddr)
		return err
	})
	return receipt, err
}

func (s *system) earned(t *testing.T, addr [20]byte) int64 {
	t.Helper()
	var acct rewards.Account
	require.NoError(t, s.host.View(func(ctx *host.Context) error {
		var err error
		acct, err = s.ledger.Account(ctx, addr)
		return err
	}))
	return acct.Earned.Int64()
}

func (s *system) merchant(t *testing.T) merchants.Merchant {
	t.Helper()
	var m merchants.Merchant
	require.NoError(t, s.host.View(func(ctx *host.Context) error {
		var err error
		m, _, err = s.registry.GetMerchant(ctx, merchantAddr)
		return err
	}))
	return m
}

func TestScenarioApprovalUnlocksCashback(t *testing.T) {
	s := newSystem(t, true)

	_, err := s.purchase(10_000)
	require.ErrorIs(t, err, ErrNotApproved)

	s.approve(t, merchants.TierSilver)
	receipt, err := s.purchase(10_000)
	require.NoError(t, err)
	require.EqualValues(t, 100, receipt.Reward.Int64())
	require.EqualValues(t, 100, receipt.RateBps)
	require.Equal(t, merchants.TierSilver, receipt.Tier)
	require.EqualValues(t, 100, s.earned(t, userAddr))
	require.EqualValues(t, 10_000, s.merchant(t).Volume.Int64())

	processed := s.recorder.OfType(events.TypeCashbackProcessed)
	require.Len(t, processed, 1)
	evt := processed[0].(events.CashbackProcessed)
	require.Equal(t, userAddr, evt.User)
	require.EqualValues(t, 100, evt.Reward.Int64())
}

func TestScenarioBlacklistOverridesApproval(t *testing.T) {
	s := newSystem(t, true)
	s.approve(t, merchants.TierGold)
	s.blacklist(t)

	m := s.merchant(t)
	require.True(t, m.Approved)
	_, err := s.purchase(10_000)
	require.ErrorIs(t, err, ErrBlacklisted)
	require.Zero(t, s.earned(t, userAddr))
}

func TestProcessPurchaseValidation(t *testing.T) {
	s := newSystem(t, true)
	_, err := s.purchase(0)
	require.ErrorIs(t, err, ErrInvalidAmount)

	err = s.host.Execute(userAddr, "purchase", func(ctx *host.Context) error {
		_, err := s.engine.ProcessPurchase(ctx, userAddr, big.NewInt(10), [20]byte{0xde})
		return err
	})
	require.ErrorIs(t, err, ErrNotMerchant)
}

func TestEngineMustBeModule(t *testing.T) {
	s := newSystem(t, false)
	s.approve(t, merchants.TierSilver)

	_, err := s.purchase(10_000)
	require.ErrorIs(t, err, ErrNotModule)
	// Checked even when the reward rounds to zero.
	_, err = s.purchase(50)
	require.ErrorIs(t, err, ErrNotModule)
	require.Zero(t, s.merchant(t).Volume.Sign())
}

func TestZeroRewardStillRecordsVolumeAndRunsHooks(t *testing.T) {
	s := newSystem(t, true)
	s.approve(t, merchants.TierSilver)
	calls := 0
	require.NoError(t, s.host.Execute(adminAddr, "hook", func(ctx *host.Context) error {
		return s.engine.SetHook(ctx, SlotQuest, PurchaseHookFunc(func(*host.Context, [20]byte, *big.Int) error {
			calls++
			return nil
		}))
	}))

	receipt, err := s.purchase(99)
	require.NoError(t, err)
	require.Zero(t, receipt.Reward.Sign())
	require.Zero(t, s.earned(t, userAddr))
	require.EqualValues(t, 99, s.merchant(t).Volume.Int64())
	require.Equal(t, 1, calls)
}

func TestTierUpgradeAppliesToLaterPurchases(t *testing.T) {
	s := newSystem(t, true)
	s.approve(t, merchants.TierNone)

	receipt, err := s.purchase(60_000)
	require.NoError(t, err)
	require.Zero(t, receipt.Reward.Sign(), "rate comes from the tier before the update")
	require.Equal(t, merchants.TierGold, receipt.NewTier)

	receipt, err = s.purchase(10_000)
	require.NoError(t, err)
	require.EqualValues(t, 200, receipt.Reward.Int64())
}

func TestHooksRunInSlotOrderAsEngine(t *testing.T) {
	s := newSystem(t, true)
	s.approve(t, merchants.TierSilver)

	var order []Slot
	install := func(slot Slot) {
		require.NoError(t, s.host.Execute(adminAddr, "hook", func(ctx *host.Context) error {
			return s.engine.SetHook(ctx, slot, PurchaseHookFunc(func(ctx *host.Context, user [20]byte, amount *big.Int) error {
				require.Equal(t, engineAddr, ctx.Caller())
				require.Equal(t, userAddr, user)
				require.EqualValues(t, 10_000, amount.Int64())
				order = append(order, slot)
				return nil
			}))
		}))
	}
	for _, slot := range []Slot{SlotQuest, SlotReferral, SlotRandom, SlotStreak, SlotLevel} {
		install(slot)
	}
	_, err := s.purchase(10_000)
	require.NoError(t, err)
	require.Equal(t, []Slot{SlotReferral, SlotStreak, SlotLevel, SlotRandom, SlotQuest}, order)

	// Clearing a slot skips it.
	require.NoError(t, s.host.Execute(adminAddr, "hook", func(ctx *host.Context) error {
		return s.engine.SetHook(ctx, SlotLevel, nil)
	}))
	order = nil
	_, err = s.purchase(10_000)
	require.NoError(t, err)
	require.Equal(t, []Slot{SlotReferral, SlotStreak, SlotRandom, SlotQuest}, order)
}

func TestHookFailureAbortsPurchase(t *testing.T) {
	s := newSystem(t, true)
	s.approve(t, merchants.TierSilver)
	boom := errors.New("boom")
	require.NoError(t, s.host.Execute(adminAddr, "hook", func(ctx *host.Context) error {
		return s.engine.SetHook(ctx, SlotStreak, PurchaseHookFunc(func(*host.Context, [20]byte, *big.Int) error {
			return boom
		}))
	}))

	_, err := s.purchase(10_000)
	require.ErrorIs(t, err, ErrHookFailed)
	require.ErrorIs(t, err, boom)
	require.Zero(t, s.earned(t, userAddr))
	require.Zero(t, s.merchant(t).Volume.Sign())
	require.Empty(t, s.recorder.OfType(events.TypeCashbackProcessed))
}

func TestSetHookAdminOnly(t *testing.T) {
	s := newSystem(t, true)
	err := s.host.Execute(userAddr, "hook", func(ctx *host.Context) error {
		return s.engine.SetHook(ctx, SlotReferral, nil)
	})
	require.ErrorIs(t, err, ErrNotAdmin)
	err = s.host.Execute(adminAddr, "hook", func(ctx *host.Context) error {
		return s.engine.SetHook(ctx, Slot(9), nil)
	})
	require.ErrorIs(t, err, ErrInvalidSlot)
}

func TestRevertedHookInstallLeavesSlotEmpty(t *testing.T) {
	s := newSystem(t, true)
	later := errors.New("later step fails")
	err := s.host.Execute(adminAddr, "hook", func(ctx *host.Context) error {
		if err := s.engine.SetHook(ctx, SlotQuest, PurchaseHookFunc(func(*host.Context, [20]byte, *big.Int) error {
			return nil
		})); err != nil {
			return err
		}
		if err := s.engine.SetBoostHook(ctx, fixedBoost(20_000)); err != nil {
			return err
		}
		return later
	})
	require.ErrorIs(t, err, later)
	require.Nil(t, s.engine.Hook(SlotQuest))

	s.approve(t, merchants.TierSilver)
	receipt, err := s.purchase(10_000)
	require.NoError(t, err)
	require.EqualValues(t, 100, receipt.RateBps, "boost from the reverted call must not apply")
}

type fixedBoost uint32

func (b fixedBoost) BoostBps(*host.Context, [20]byte) (uint32, error) { return uint32(b), nil }

func TestBoostScalesRate(t *testing.T) {
	s := newSystem(t, true)
	s.approve(t, merchants.TierSilver)
	require.NoError(t, s.host.Execute(adminAddr, "boost", func(ctx *host.Context) error {
		return s.engine.SetBoostHook(ctx, fixedBoost(15_000))
	}))
	receipt, err := s.purchase(10_000)
	require.NoError(t, err)
	require.EqualValues(t, 150, receipt.RateBps)
	require.EqualValues(t, 150, receipt.Reward.Int64())
}

func TestReferralHookCreditsReferrer(t *testing.T) {
	s := newSystem(t, true)
	s.approve(t, merchants.TierSilver)
	ref, err := referral.New(referral.Config{
		Address:      referralAddr,
		Engine:       engineAddr,
		Ledger:       s.ledger,
		BonusBps:     300,
		WelcomeBonus: big.NewInt(10),
	})
	require.NoError(t, err)
	require.NoError(t, s.host.Execute(adminAddr, "wire", func(ctx *host.Context) error {
		if err := s.ledger.SetModule(ctx, referralAddr, true); err != nil {
			return err
		}
		return s.engine.SetHook(ctx, SlotReferral, ref)
	}))
	require.NoError(t, s.host.Execute(userAddr, "refer", func(ctx *host.Context) error {
		return ref.RegisterReferral(ctx, referrerAddr)
	}))

	_, err = s.purchase(1_000)
	require.NoError(t, err)
	require.EqualValues(t, 10+10, s.earned(t, userAddr))
	require.EqualValues(t, 30, s.earned(t, referrerAddr))
}
