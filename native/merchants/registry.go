package merchants

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/core/host"
	"github.com/monalisastar/elr-protocol-mainnet/core/state"
	"github.com/monalisastar/elr-protocol-mainnet/crypto/attestation"
	nativecommon "github.com/monalisastar/elr-protocol-mainnet/native/common"
)

const (
	moduleName = "merchants"

	maxNameLength        = 64
	maxExternalRefLength = 128
)

// Config fixes the identities a registry instance trusts.
type Config struct {
	// Address is the registry's own identity. It is bound into every
	// attestation the registry accepts.
	Address   [20]byte
	Admin     [20]byte
	Authority [20]byte
	Ladder    TierLadder
	// Scheme selects the attestation digest. Nil selects personal_sign.
	Scheme attestation.Scheme
}

// Registry tracks merchant trust state. Approval and blacklisting are only
// admitted through attestations signed by the authority.
type Registry struct {
	addr     [20]byte
	admin    [20]byte
	ladder   TierLadder
	verifier *attestation.Verifier
	pauses   nativecommon.PauseView
}

// NewRegistry validates cfg and constructs a registry.
func NewRegistry(cfg Config) (*Registry, error) {
	var zero [20]byte
	if cfg.Address == zero {
		return nil, fmt.Errorf("%w: registry address required", ErrInvalidConfig)
	}
	if cfg.Admin == zero {
		return nil, fmt.Errorf("%w: admin required", ErrInvalidConfig)
	}
	if cfg.Authority == zero {
		return nil, fmt.Errorf("%w: authority required", ErrInvalidConfig)
	}
	if err := cfg.Ladder.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		addr:     cfg.Address,
		admin:    cfg.Admin,
		ladder:   cfg.Ladder,
		verifier: attestation.NewVerifier(cfg.Scheme, cfg.Authority),
	}, nil
}

func (r *Registry) SetPauses(p nativecommon.PauseView) {
	if r == nil {
		return
	}
	r.pauses = p
}

// Address returns the registry identity.
func (r *Registry) Address() [20]byte { return r.addr }

// Admin returns the registry admin.
func (r *Registry) Admin() [20]byte { return r.admin }

// Ladder returns the configured tier thresholds.
func (r *Registry) Ladder() TierLadder { return r.ladder }

func (r *Registry) merchantKey(addr [20]byte) []byte {
	return state.Key([]byte(moduleName), r.addr[:], []byte("merchant"), addr[:])
}

func (r *Registry) reporterKey(addr [20]byte) []byte {
	return state.Key([]byte(moduleName), r.addr[:], []byte("reporter"), addr[:])
}

func (r *Registry) load(st *state.Manager, addr [20]byte) (*Merchant, error) {
	m := new(Merchant)
	found, err := st.KVGet(r.merchantKey(addr), m)
	if err != nil {
		return nil, err
	}
	if !found || !m.Exists {
		return nil, nil
	}
	if m.Volume == nil {
		m.Volume = big.NewInt(0)
	}
	return m, nil
}

func (r *Registry) store(st *state.Manager, addr [20]byte, m *Merchant) error {
	return st.KVPut(r.merchantKey(addr), m)
}

// RegisterMerchant creates an unapproved merchant record for the caller.
func (r *Registry) RegisterMerchant(ctx *host.Context, name, ref string) error {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	ref = strings.TrimSpace(ref)
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d bytes", ErrInvalidMerchant, maxNameLength)
	}
	if len(ref) > maxExternalRefLength {
		return fmt.Errorf("%w: external ref exceeds %d bytes", ErrInvalidMerchant, maxExternalRefLength)
	}
	caller := ctx.Caller()
	st := ctx.State()
	existing, err := r.load(st, caller)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateRegistration
	}
	m := &Merchant{
		Exists:       true,
		Tier:         TierNone,
		Volume:       big.NewInt(0),
		Name:         name,
		ExternalRef:  ref,
		RegisteredAt: uint64(ctx.Now().Unix()),
	}
	if err := r.store(st, caller, m); err != nil {
		return err
	}
	ctx.Emit(events.MerchantRegistered{Registry: r.addr, Merchant: caller, Name: name, ExternalRef: ref})
	return nil
}

// ApproveBySig admits a registered merchant at tier. The tier recorded is the
// higher of the current and the signed tier. Approving an already approved
// merchant at the same or a lower tier succeeds without changing anything.
func (r *Registry) ApproveBySig(ctx *host.Context, merchant [20]byte, tier Tier, sig []byte) error {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if !tier.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTier, uint8(tier))
	}
	if err := r.verifier.Verify(sig, attestation.ApprovalPayload(merchant, uint8(tier), r.addr)...); err != nil {
		return err
	}
	st := ctx.State()
	m, err := r.load(st, merchant)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrNotRegistered
	}
	if m.Blacklisted {
		return ErrBlacklisted
	}
	next := maxTier(m.Tier, tier)
	if m.Approved && next == m.Tier {
		return nil
	}
	if !m.Approved {
		m.ApprovedAt = uint64(ctx.Now().Unix())
	}
	m.Approved = true
	m.Tier = next
	if err := r.store(st, merchant, m); err != nil {
		return err
	}
	ctx.Emit(events.MerchantApproved{Registry: r.addr, Merchant: merchant, Tier: uint8(m.Tier), TierName: m.Tier.String()})
	return nil
}

// BlacklistBySig permanently blacklists a registered merchant.
func (r *Registry) BlacklistBySig(ctx *host.Context, merchant [20]byte, sig []byte) error {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if err := r.verifier.Verify(sig, attestation.BlacklistPayload(merchant, r.addr)...); err != nil {
		return err
	}
	st := ctx.State()
	m, err := r.load(st, merchant)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrNotRegistered
	}
	if m.Blacklisted {
		return nil
	}
	m.Blacklisted = true
	if err := r.store(st, merchant, m); err != nil {
		return err
	}
	ctx.Emit(events.MerchantBlacklisted{Registry: r.addr, Merchant: merchant})
	return nil
}

// SetVolumeReporter grants or revokes the right to report purchase volume.
func (r *Registry) SetVolumeReporter(ctx *host.Context, reporter [20]byte, enabled bool) error {
	if ctx.Caller() != r.admin {
		return ErrNotAdmin
	}
	if reporter == ([20]byte{}) {
		return fmt.Errorf("%w: zero reporter", ErrInvalidConfig)
	}
	if err := ctx.State().SetFlag(r.reporterKey(reporter), enabled); err != nil {
		return err
	}
	ctx.Emit(events.MerchantReporterSet{Registry: r.addr, Reporter: reporter, Enabled: enabled})
	return nil
}

// IsVolumeReporter reports whether addr may call UpdateVolumeAndTier.
func (r *Registry) IsVolumeReporter(ctx *host.Context, addr [20]byte) (bool, error) {
	return ctx.State().Flag(r.reporterKey(addr))
}

// UpdateVolumeAndTier adds amount to the merchant's cumulative volume and
// raises the tier if the new total crosses a threshold. It returns the tier
// after the update.
func (r *Registry) UpdateVolumeAndTier(ctx *host.Context, merchant [20]byte, amount *big.Int) (Tier, error) {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return TierNone, err
	}
	ok, err := r.IsVolumeReporter(ctx, ctx.Caller())
	if err != nil {
		return TierNone, err
	}
	if !ok {
		return TierNone, ErrNotReporter
	}
	if amount == nil || amount.Sign() <= 0 {
		return TierNone, ErrZeroAmount
	}
	st := ctx.State()
	m, err := r.load(st, merchant)
	if err != nil {
		return TierNone, err
	}
	if m == nil {
		return TierNone, ErrNotRegistered
	}
	m.Volume = new(big.Int).Add(m.Volume, amount)
	prev := m.Tier
	m.Tier = maxTier(m.Tier, r.ladder.TierFor(m.Volume))
	if err := r.store(st, merchant, m); err != nil {
		return TierNone, err
	}
	if m.Tier != prev {
		ctx.Emit(events.MerchantTierUpgraded{
			Registry: r.addr,
			Merchant: merchant,
			OldTier:  uint8(prev),
			NewTier:  uint8(m.Tier),
			TierName: m.Tier.String(),
			Volume:   new(big.Int).Set(m.Volume),
		})
	}
	return m.Tier, nil
}

// GetMerchant returns a copy of the merchant record. The boolean reports
// whether the merchant is registered.
func (r *Registry) GetMerchant(ctx *host.Context, addr [20]byte) (Merchant, bool, error) {
	m, err := r.load(ctx.State(), addr)
	if err != nil || m == nil {
		return Merchant{Volume: big.NewInt(0)}, false, err
	}
	return *m.Clone(), true, nil
}
