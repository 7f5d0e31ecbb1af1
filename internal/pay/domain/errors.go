package domain

import "errors"

var (
	ErrPayOrderNotFound    = errors.New("pay order not found")
	ErrAlreadyPaid         = errors.New("order already paid")
	ErrOrderClosed         = errors.New("order closed")
	ErrAlreadyPaidOrClosed = errors.New("trade already paid or closed")

	// ErrInvalidCredential and ErrInsufficientFunds come back from the
	// account collaborator's deduction.
	ErrInvalidCredential = errors.New("invalid payment credential")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateBizOrderNo maps the unique index on biz_order_no;
	// applyPayOrder uses it to resolve concurrent first applies.
	ErrDuplicateBizOrderNo = errors.New("pay order already exists for business order")
)
