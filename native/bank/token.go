package bank

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/core/host"
	"github.com/monalisastar/elr-protocol-mainnet/core/state"
)

// Receiver is invoked after tokens are credited to the address it is
// registered for. The callback runs as a nested call issued by the token, so
// it may call back into any contract, including the one that triggered the
// transfer. An error aborts the transfer.
type Receiver interface {
	OnReceive(ctx *host.Context, from [20]byte, amount *big.Int) error
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc func(ctx *host.Context, from [20]byte, amount *big.Int) error

func (f ReceiverFunc) OnReceive(ctx *host.Context, from [20]byte, amount *big.Int) error {
	return f(ctx, from, amount)
}

// Token is a fungible token held in host state. Balances and allowances are
// namespaced by the token address.
type Token struct {
	address   [20]byte
	symbol    string
	minter    [20]byte
	receivers map[[20]byte]Receiver
}

// NewToken constructs a token living at address. Only minter may mint.
func NewToken(address [20]byte, symbol string, minter [20]byte) *Token {
	return &Token{
		address:   address,
		symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
		minter:    minter,
		receivers: make(map[[20]byte]Receiver),
	}
}

func (t *Token) Address() [20]byte { return t.address }

func (t *Token) Symbol() string { return t.symbol }

// SetReceiver installs (or, with nil, removes) the receive callback for addr.
func (t *Token) SetReceiver(addr [20]byte, r Receiver) {
	if r == nil {
		delete(t.receivers, addr)
		return
	}
	t.receivers[addr] = r
}

func (t *Token) balanceKey(owner [20]byte) []byte {
	return state.Key([]byte("bank"), t.address[:], []byte("balance"), owner[:])
}

func (t *Token) allowanceKey(owner, spender [20]byte) []byte {
	return state.Key([]byte("bank"), t.address[:], []byte("allowance"), owner[:], spender[:])
}

func (t *Token) supplyKey() []byte {
	return state.Key([]byte("bank"), t.address[:], []byte("supply"))
}

// BalanceOf returns the balance held by owner.
func (t *Token) BalanceOf(ctx *host.Context, owner [20]byte) (*big.Int, error) {
	return ctx.State().BigGet(t.balanceKey(owner))
}

// Allowance returns how much spender may still pull from owner.
func (t *Token) Allowance(ctx *host.Context, owner, spender [20]byte) (*big.Int, error) {
	return ctx.State().BigGet(t.allowanceKey(owner, spender))
}

// TotalSupply returns the amount minted so far.
func (t *Token) TotalSupply(ctx *host.Context) (*big.Int, error) {
	return ctx.State().BigGet(t.supplyKey())
}

// Mint credits amount to the recipient. The caller must be the minter.
func (t *Token) Mint(ctx *host.Context, to [20]byte, amount *big.Int) error {
	if ctx.Caller() != t.minter {
		return ErrUnauthorized
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrInvalidRecipient
	}
	st := ctx.State()
	supply, err := st.BigGet(t.supplyKey())
	if err != nil {
		return err
	}
	if err := st.BigPut(t.supplyKey(), new(big.Int).Add(supply, amount)); err != nil {
		return err
	}
	if err := t.credit(st, to, amount); err != nil {
		return err
	}
	ctx.Emit(events.Transfer{Asset: t.symbol, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Approve sets the allowance of spender over the caller's balance.
func (t *Token) Approve(ctx *host.Context, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	owner := ctx.Caller()
	if err := ctx.State().BigPut(t.allowanceKey(owner, spender), amount); err != nil {
		return err
	}
	ctx.Emit(events.Approval{Asset: t.symbol, Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves amount from the caller to the recipient and then runs the
// recipient's receive callback, if any.
func (t *Token) Transfer(ctx *host.Context, to [20]byte, amount *big.Int) error {
	return t.move(ctx, ctx.Caller(), to, amount)
}

// TransferFrom moves amount from owner to the recipient using the caller's
// allowance.
func (t *Token) TransferFrom(ctx *host.Context, from, to [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	spender := ctx.Caller()
	st := ctx.State()
	allowed, err := st.BigGet(t.allowanceKey(from, spender))
	if err != nil {
		return err
	}
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowed, amount)
	}
	if err := st.BigPut(t.allowanceKey(from, spender), new(big.Int).Sub(allowed, amount)); err != nil {
		return err
	}
	return t.move(ctx, from, to, amount)
}

func (t *Token) move(ctx *host.Context, from, to [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrInvalidRecipient
	}
	st := ctx.State()
	balance, err := st.BigGet(t.balanceKey(from))
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance, amount)
	}
	if err := st.BigPut(t.balanceKey(from), new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	if err := t.credit(st, to, amount); err != nil {
		return err
	}
	ctx.Emit(events.Transfer{Asset: t.symbol, From: from, To: to, Amount: new(big.Int).Set(amount)})

	recv, ok := t.receivers[to]
	if !ok {
		return nil
	}
	return ctx.Call(t.address, func(inner *host.Context) error {
		return recv.OnReceive(inner, from, new(big.Int).Set(amount))
	})
}

func (t *Token) credit(st *state.Manager, to [20]byte, amount *big.Int) error {
	balance, err := st.BigGet(t.balanceKey(to))
	if err != nil {
		return err
	}
	return st.BigPut(t.balanceKey(to), new(big.Int).Add(balance, amount))
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
