// Package apperror holds the typed failures returned across the booking engine.
// Each failure carries a stable code for clients and the HTTP status it maps to.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeClassFull           Code = "class_full"
	CodeWaitlistFull        Code = "waitlist_full"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeInvalidTransition   Code = "invalid_transition"
	CodeAlreadyBooked       Code = "already_booked"
	CodePolicyViolation     Code = "policy_violation"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeForbidden           Code = "forbidden"
	CodeInvalidInput        Code = "invalid_input"
)

type Error struct {
	Code    Code
	Status  int
	Message string
	Err     error
}

func New(status int, code Code, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so sentinels work with errors.Is
// regardless of the message or wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Withf returns a copy of e with a more specific message.
func (e *Error) Withf(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy of e that wraps cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

var (
	ErrClassFull           = New(http.StatusConflict, CodeClassFull, "class and its waitlist are full")
	ErrWaitlistFull        = New(http.StatusConflict, CodeWaitlistFull, "waitlist is full")
	ErrInsufficientBalance = New(http.StatusPaymentRequired, CodeInsufficientBalance, "membership balance is too low")
	ErrInvalidTransition   = New(http.StatusConflict, CodeInvalidTransition, "booking cannot move to the requested status")
	ErrAlreadyBooked       = New(http.StatusConflict, CodeAlreadyBooked, "customer already holds an active booking for this class")
	ErrPolicyViolation     = New(http.StatusUnprocessableEntity, CodePolicyViolation, "request violates booking policy")
	ErrNotFound            = New(http.StatusNotFound, CodeNotFound, "resource not found")
	ErrConflict            = New(http.StatusConflict, CodeConflict, "concurrent update, retry the request")
	ErrForbidden           = New(http.StatusForbidden, CodeForbidden, "permission denied")
	ErrInvalidInput        = New(http.StatusBadRequest, CodeInvalidInput, "invalid input")
)

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
