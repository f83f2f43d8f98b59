package service

import "errors"

// Validation rejections returned by the write paths. They reach the API
// layer as a structured error body; no write is performed and nothing panics.
var (
	ErrInsufficientQuantity     = errors.New("sell quantity exceeds available quantity")
	ErrWithdrawExceedsPrincipal = errors.New("withdrawal exceeds remaining principal")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrDepositNotFound          = errors.New("deposit not found")
	ErrInvalidTransaction       = errors.New("invalid transaction")
)
