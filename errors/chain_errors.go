package errors

import (
	"fmt"
)

// ChainErrorCode represents standardized error codes for chain operations
type ChainErrorCode string

const (
	// Lifecycle errors
	ErrCodeAlreadyInitialized ChainErrorCode = "already_initialized"
	ErrCodeUninitialized      ChainErrorCode = "uninitialized"

	// Mining errors
	ErrCodeClock           ChainErrorCode = "clock_error"
	ErrCodeMiningExhausted ChainErrorCode = "mining_exhausted"
	ErrCodeCanceled        ChainErrorCode = "canceled"

	// Data errors
	ErrCodeStoreIO         ChainErrorCode = "store_io_error"
	ErrCodeSerialization   ChainErrorCode = "serialization_error"
	ErrCodeChainIntegrity  ChainErrorCode = "chain_integrity_error"
	ErrCodeInvalidArgument ChainErrorCode = "invalid_argument"
	ErrCodePayloadRejected ChainErrorCode = "payload_rejected"
)

// Error message constants
const (
	ErrMsgAlreadyInitialized = "chain already initialized"
	ErrMsgUninitialized      = "chain not initialized, run createchain first"
	ErrMsgClockBeforeEpoch   = "system time %s is before the unix epoch"
	ErrMsgMiningExhausted    = "nonce space [0, %d] exhausted at difficulty %d"
	ErrMsgCanceled           = "%s aborted after %d steps"
	ErrMsgTipMissing         = "tip %s does not resolve to a stored block"
	ErrMsgDanglingPrevHash   = "block %s references missing parent %s"
	ErrMsgDifficultyTooHigh  = "difficulty %d exceeds hash length %d"
)

// ChainError is the single tagged error type returned by the chain core.
// Code identifies the failure class; Err carries the underlying cause if any.
type ChainError struct {
	Code    ChainErrorCode `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
}

// Error implements the error interface
func (e *ChainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As
func (e *ChainError) Unwrap() error {
	return e.Err
}

// Is matches any *ChainError carrying the same code, so the sentinels below
// can be used with the standard errors.Is.
func (e *ChainError) Is(target error) bool {
	t, ok := target.(*ChainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons
var (
	ErrAlreadyInitialized = &ChainError{Code: ErrCodeAlreadyInitialized, Message: ErrMsgAlreadyInitialized}
	ErrUninitialized      = &ChainError{Code: ErrCodeUninitialized, Message: ErrMsgUninitialized}
	ErrClock              = &ChainError{Code: ErrCodeClock}
	ErrMiningExhausted    = &ChainError{Code: ErrCodeMiningExhausted}
	ErrCanceled           = &ChainError{Code: ErrCodeCanceled}
	ErrStoreIO            = &ChainError{Code: ErrCodeStoreIO}
	ErrSerialization      = &ChainError{Code: ErrCodeSerialization}
	ErrChainIntegrity     = &ChainError{Code: ErrCodeChainIntegrity}
	ErrInvalidArgument    = &ChainError{Code: ErrCodeInvalidArgument}
	ErrPayloadRejected    = &ChainError{Code: ErrCodePayloadRejected}
)

// NewError creates a new ChainError and returns it as error interface
func NewError(code ChainErrorCode, message string) error {
	return &ChainError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a ChainError with a formatted message
func Newf(code ChainErrorCode, format string, args ...interface{}) error {
	return &ChainError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap attaches a code and message to an underlying cause. A nil cause returns nil.
func Wrap(code ChainErrorCode, err error, message string) error {
	if err == nil {
		return nil
	}
	return &ChainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first ChainError in err's chain, or "" if none.
func CodeOf(err error) ChainErrorCode {
	for err != nil {
		if ce, ok := err.(*ChainError); ok {
			return ce.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
