package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTransportFailure          = errors.New("transport failure")
	ErrNotAuthorized             = errors.New("not authorized")
	ErrInvalidDuration           = errors.New("invalid session duration")
	ErrMalformedPaymasterData    = errors.New("malformed paymaster data")
	ErrSequenceNumberConflict    = errors.New("sequence number conflict")
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrFeeDataUnavailable        = errors.New("fee data unavailable")
	ErrSequenceNumberUnavailable = errors.New("sequence number unavailable")
	ErrRetriesExhausted          = errors.New("retries exhausted")
	ErrUnknownTask               = errors.New("unknown task")
	ErrNotConnected              = errors.New("account is not connected")
	ErrInvalidAddress            = errors.New("invalid address")
	ErrInvalidMode               = errors.New("invalid paymaster mode")
	ErrOperationNotFound         = errors.New("user operation not found")
	ErrSecretNotFound            = errors.New("secret not found")
	ErrUnsupportedCall           = errors.New("call cannot be carried by an operation envelope")
	ErrTransactionReverted       = errors.New("transaction reverted")
)

// All match ErrMalformedPaymasterData with errors.Is.
var (
	ErrMalformedLength = fmt.Errorf("%w: length", ErrMalformedPaymasterData)
	ErrUnknownMode     = fmt.Errorf("%w: unknown mode", ErrMalformedPaymasterData)
	ErrModeMismatch    = fmt.Errorf("%w: mode not backed by eligibility", ErrMalformedPaymasterData)
)
