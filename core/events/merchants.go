package events

import (
	"math/big"
	"strconv"

	"github.com/monalisastar/elr-protocol-mainnet/core/types"
)

const (
	TypeMerchantRegistered   = "merchant.registered"
	TypeMerchantApproved     = "merchant.approved"
	TypeMerchantBlacklisted  = "merchant.blacklisted"
	TypeMerchantTierUpgraded = "merchant.tier.upgraded"
	TypeMerchantReporterSet  = "merchant.reporter.set"
)

const (
	registryAttr = "registry"
	merchantAttr = "merchant"
	tierAttr     = "tier"
	tierNameAttr = "tierName"
)

func tierName(name string) string {
	if name == "" {
		return "NONE"
	}
	return name
}

// MerchantRegistered is emitted when an address registers as a merchant.
type MerchantRegistered struct {
	Registry    [20]byte
	Merchant    [20]byte
	Name        string
	ExternalRef string
}

// EventType implements the Event interface.
func (MerchantRegistered) EventType() string { return TypeMerchantRegistered }

// Event converts the typed event to the generic representation.
func (e MerchantRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeMerchantRegistered,
		Attributes: map[string]string{
			registryAttr:  formatAddr(e.Registry),
			merchantAttr:  formatAddr(e.Merchant),
			"name":        e.Name,
			"externalRef": e.ExternalRef,
		},
	}
}

// MerchantApproved is emitted after a verified approval attestation.
type MerchantApproved struct {
	Registry [20]byte
	Merchant [20]byte
	Tier     uint8
	TierName string
}

// EventType implements the Event interface.
func (MerchantApproved) EventType() string { return TypeMerchantApproved }

// Event converts the typed event to the generic representation.
func (e MerchantApproved) Event() *types.Event {
	return &types.Event{
		Type: TypeMerchantApproved,
		Attributes: map[string]string{
			registryAttr: formatAddr(e.Registry),
			merchantAttr: formatAddr(e.Merchant),
			tierAttr:     strconv.FormatUint(uint64(e.Tier), 10),
			tierNameAttr: tierName(e.TierName),
		},
	}
}

// MerchantBlacklisted is emitted after a verified blacklist attestation.
type MerchantBlacklisted struct {
	Registry [20]byte
	Merchant [20]byte
}

// EventType implements the Event interface.
func (MerchantBlacklisted) EventType() string { return TypeMerchantBlacklisted }

// Event converts the typed event to the generic representation.
func (e MerchantBlacklisted) Event() *types.Event {
	return &types.Event{
		Type: TypeMerchantBlacklisted,
		Attributes: map[string]string{
			registryAttr: formatAddr(e.Registry),
			merchantAttr: formatAddr(e.Merchant),
		},
	}
}

// MerchantTierUpgraded is emitted when cumulative volume crosses a threshold.
type MerchantTierUpgraded struct {
	Registry [20]byte
	Merchant [20]byte
	OldTier  uint8
	NewTier  uint8
	TierName string
	Volume   *big.Int
}

// EventType implements the Event interface.
func (MerchantTierUpgraded) EventType() string { return TypeMerchantTierUpgraded }

// Event converts the typed event to the generic representation.
func (e MerchantTierUpgraded) Event() *types.Event {
	return &types.Event{
		Type: TypeMerchantTierUpgraded,
		Attributes: map[string]string{
			registryAttr: formatAddr(e.Registry),
			merchantAttr: formatAddr(e.Merchant),
			"oldTier":    strconv.FormatUint(uint64(e.OldTier), 10),
			tierAttr:     strconv.FormatUint(uint64(e.NewTier), 10),
			tierNameAttr: tierName(e.TierName),
			"volume":     formatAmount(e.Volume),
		},
	}
}

// MerchantReporterSet is emitted when the volume reporter allow-list changes.
type MerchantReporterSet struct {
	Registry [20]byte
	Reporter [20]byte
	Enabled  bool
}

// EventType implements the Event interface.
func (MerchantReporterSet) EventType() string { return TypeMerchantReporterSet }

// Event converts the typed event to the generic representation.
func (e MerchantReporterSet) Event() *types.Event {
	return &types.Event{
		Type: TypeMerchantReporterSet,
		Attributes: map[string]string{
			registryAttr: formatAddr(e.Registry),
			"reporter":   formatAddr(e.Reporter),
			"enabled":    strconv.FormatBool(e.Enabled),
		},
	}
}
