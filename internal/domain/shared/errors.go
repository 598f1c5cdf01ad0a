// Package shared holds the error kinds and events every layer agrees on.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify with errors.Is or the Is* helpers below,
// never by message.
var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidProfile      = errors.New("invalid profile")
	ErrProviderUnavailable = errors.New("stats provider unavailable")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// DomainError tags a failure with where it happened and what kind it is.
// Message is safe to show to API clients; Err is not.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	msg := e.Domain + "." + e.Op + ": " + e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *DomainError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError is NewDomainError with an underlying cause.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// ─────────────────────────────────────────────────────────────────────────────
// Student
// ─────────────────────────────────────────────────────────────────────────────

var (
	ErrStudentNotFound      = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrStudentAlreadyExists = NewDomainError("student", "Create", ErrDuplicateKey, "student with this registration number already exists")

	ErrEmptyRegNo          = invalid("registration number is required")
	ErrEmptyName           = invalid("name is required")
	ErrEmptyProfileURL     = invalid("profile url is required")
	ErrUnknownDepartment   = invalid("unknown department")
	ErrUnknownYear         = invalid("unknown year")
	ErrNegativeSolvedCount = invalid("solved count cannot be negative")

	ErrEmptyProfileID = NewDomainError("student", "ExtractProfileID", ErrInvalidProfile, "profile url has no username segment")
)

func invalid(message string) *DomainError {
	return NewDomainError("student", "Validate", ErrValidation, message)
}

// ─────────────────────────────────────────────────────────────────────────────
// Classification
// ─────────────────────────────────────────────────────────────────────────────

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsDuplicateKey(err error) bool { return errors.Is(err, ErrDuplicateKey) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsInvalidProfile(err error) bool { return errors.Is(err, ErrInvalidProfile) }
func IsProviderUnavailable(err error) bool { return errors.Is(err, ErrProviderUnavailable) }
func IsStoreUnavailable(err error) bool { return errors.Is(err, ErrStoreUnavailable) }
