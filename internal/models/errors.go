package models

import "errors"

var (
	ErrDuplicateUsername      = errors.New("username already exists")
	ErrDuplicateAccountNumber = errors.New("account number already exists")
	ErrAuthFailure            = errors.New("invalid credentials")
	ErrNotFound               = errors.New("account not found")
	ErrRecipientNotFound      = errors.New("recipient account not found")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrInsufficientFunds      = errors.New("transfer amount exceeds account balance")
	ErrStorage                = errors.New("storage failure")
)
