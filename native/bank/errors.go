package bank

import "errors"

var (
	ErrUnauthorized          = errors.New("bank: unauthorized")
	ErrInvalidAmount         = errors.New("bank: invalid amount")
	ErrInvalidRecipient      = errors.New("bank: invalid recipient")
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
)
