package internal

import (
	"errors"
	"fmt"
)

// Family distinguishes the two structurally different provider families.
type Family string

const (
	FamilyRetailer Family = "retailer"
	FamilyEmail    Family = "email"
)

// Provider is implemented by the closed retailer and email enumerations.
type Provider interface {
	Family() Family
	String() string
}

// Account identifies a linked source. Credentials pass through login and are
// never retained here; the orchestrator's view of accounts is a transient
// projection sourced live from the provider engines.
type Account struct {
	Provider Provider
	Username string
	Verified bool
}

type ErrorKind string

const (
	KindPermissionDenied      ErrorKind = "permission_denied"
	KindNoCredentials         ErrorKind = "no_credentials"
	KindInvalidCredentials    ErrorKind = "invalid_credentials"
	KindVerificationCancelled ErrorKind = "verification_cancelled"
	KindLinkConflict          ErrorKind = "link_conflict"
	KindUnsupportedProvider   ErrorKind = "unsupported_provider"
	KindEngineInternal        ErrorKind = "engine_internal"
	KindParseFailure          ErrorKind = "parse_failure"
	KindNetwork               ErrorKind = "network"
	KindNotInitialized        ErrorKind = "not_initialized"
	KindScanInProgress        ErrorKind = "scan_in_progress"
	KindVerificationPending   ErrorKind = "verification_pending"
)

// Error carries a stable kind so callers can branch on failure class without
// parsing messages.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf classifies any error; untyped errors map to engine_internal.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindEngineInternal
}

// AsError returns err as *Error, wrapping untyped errors with the given
// fallback kind.
func AsError(err error, fallback ErrorKind) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return &Error{Kind: fallback, Message: err.Error()}
}
