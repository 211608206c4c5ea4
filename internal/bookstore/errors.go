package bookstore

import (
	"errors"
	"fmt"
)

// Store facts. Stores return these (optionally wrapped) and the engine
// translates them into classified errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrSoldOut           = errors.New("sold out")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyBound      = errors.New("already bound")
	ErrProofUnusable     = errors.New("proof expired or missing")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Code classifies every failure that crosses the engine boundary.
type Code string

const (
	CodeNotFound                     Code = "NOT_FOUND"
	CodeBookNotFound                 Code = "BOOK_NOT_FOUND"
	CodeUnauthorized                 Code = "UNAUTHORIZED"
	CodeInvalidInput                 Code = "INVALID_INPUT"
	CodeEmptyCart                    Code = "EMPTY_CART"
	CodeInvalidQuantityForSingleCopy Code = "INVALID_QUANTITY_FOR_SINGLE_COPY"
	CodeConflict                     Code = "CONFLICT"
	CodeDuplicateOrder               Code = "DUPLICATE_ORDER"
	CodeSoldOut                      Code = "SOLD_OUT"
	CodeInsufficientFunds            Code = "INSUFFICIENT_FUNDS"
	CodeKycRequired                  Code = "KYC_REQUIRED"
	CodeKycExpired                   Code = "KYC_EXPIRED"
	CodeKycAlreadyUsed               Code = "KYC_ALREADY_USED_FOR_RESTRICTED_PURCHASE"
	CodeBlacklisted                  Code = "BLACKLISTED"
	CodeRecoveryUnavailable          Code = "RECOVERY_UNAVAILABLE"
	CodeInternal                     Code = "INTERNAL"
)

// Class groups codes into the coarse taxonomy used by transports.
func (c Code) Class() Code {
	switch c {
	case CodeBookNotFound:
		return CodeNotFound
	case CodeEmptyCart, CodeInvalidQuantityForSingleCopy:
		return CodeInvalidInput
	case CodeDuplicateOrder, CodeSoldOut:
		return CodeConflict
	case CodeKycExpired, CodeKycAlreadyUsed, CodeBlacklisted:
		return CodeKycRequired
	}
	return c
}

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so errors.Is(err, &Error{Code: CodeSoldOut}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf extracts the classification of err; unclassified errors are internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the human readable part of a classified error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
