package cashback

import (
	"errors"

	"github.com/monalisastar/elr-protocol-mainnet/native/rewards"
)

var (
	ErrInvalidConfig = errors.New("cashback: invalid config")
	ErrNotAdmin      = errors.New("cashback: caller is not admin")
	ErrInvalidAmount = errors.New("cashback: invalid amount")
	ErrInvalidUser   = errors.New("cashback: invalid user")
	ErrNotMerchant   = errors.New("cashback: merchant not registered")
	ErrBlacklisted   = errors.New("cashback: merchant blacklisted")
	ErrNotApproved   = errors.New("cashback: merchant not approved")
	ErrInvalidSlot   = errors.New("cashback: invalid hook slot")
	ErrInvalidRate   = errors.New("cashback: invalid rate")
	ErrHookFailed    = errors.New("cashback: bonus hook failed")

	// ErrNotModule is returned when the engine itself lacks ledger module
	// rights.
	ErrNotModule = rewards.ErrNotModule
)
