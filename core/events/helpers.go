package events

import (
	"math/big"

	"github.com/monalisastar/elr-protocol-mainnet/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddr(addr [20]byte) string {
	return crypto.FormatAddress(addr)
}
