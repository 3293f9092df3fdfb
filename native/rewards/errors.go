package rewards

import (
	"errors"

	"github.com/monalisastar/elr-protocol-mainnet/crypto/attestation"
)

var (
	ErrInvalidConfig      = errors.New("rewards: invalid config")
	ErrNotAdmin           = errors.New("rewards: caller is not admin")
	ErrNotModule          = errors.New("rewards: caller is not a registered module")
	ErrZeroAmount         = errors.New("rewards: zero amount")
	ErrPoolLow            = errors.New("rewards: pool low")
	ErrInvalidBeneficiary = errors.New("rewards: invalid beneficiary")
	ErrNothingToClaim     = errors.New("rewards: nothing to claim")
	ErrReentrantCall      = errors.New("rewards: reentrant call")
	ErrCustodyTransfer    = errors.New("rewards: custody transfer failed")

	ErrInvalidSignature = attestation.ErrInvalidSignature
	ErrAlreadyUsedNonce = attestation.ErrNonceUsed
)
