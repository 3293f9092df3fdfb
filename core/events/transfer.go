package events

import (
	"math/big"
	"strings"

	"github.com/monalisastar/elr-protocol-mainnet/core/types"
)

const (
	// TypeTransfer is emitted for custody token balance movements. Mints are
	// reported as transfers from the zero address.
	TypeTransfer = "token.transfer"
	// TypeApproval is emitted when an owner sets a spender allowance.
	TypeApproval = "token.approval"
)

type Transfer struct {
	Asset  string
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{}
	if asset := strings.ToUpper(strings.TrimSpace(e.Asset)); asset != "" {
		attrs["asset"] = asset
	}
	attrs["from"] = formatAddr(e.From)
	attrs["to"] = formatAddr(e.To)
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

type Approval struct {
	Asset   string
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

func (Approval) EventType() string { return TypeApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{
		Type: TypeApproval,
		Attributes: map[string]string{
			"asset":   strings.ToUpper(strings.TrimSpace(e.Asset)),
			"owner":   formatAddr(e.Owner),
			"spender": formatAddr(e.Spender),
			"amount":  formatAmount(e.Amount),
		},
	}
}
