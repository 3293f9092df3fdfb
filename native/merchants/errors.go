package merchants

import (
	"errors"

	"github.com/monalisastar/elr-protocol-mainnet/crypto/attestation"
)

var (
	ErrInvalidConfig         = errors.New("merchants: invalid config")
	ErrNotAdmin              = errors.New("merchants: caller is not admin")
	ErrNotReporter           = errors.New("merchants: caller is not a volume reporter")
	ErrInvalidMerchant       = errors.New("merchants: invalid merchant")
	ErrDuplicateRegistration = errors.New("merchants: merchant already registered")
	ErrNotRegistered         = errors.New("merchants: merchant not registered")
	ErrBlacklisted           = errors.New("merchants: merchant blacklisted")
	ErrInvalidTier           = errors.New("merchants: invalid tier")
	ErrZeroAmount            = errors.New("merchants: zero amount")
	ErrInvalidLadder         = errors.New("merchants: invalid tier ladder")

	// ErrInvalidSignature is shared with the attestation package so callers
	// can match either.
	ErrInvalidSignature = attestation.ErrInvalidSignature
)
