// Package tokenurl implements the token url issuance pipeline: the ordered
// anti-abuse checks, the token lifecycle and the confirmation hand-off.
package tokenurl

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a notice or token url does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the subject lacks the capability.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidSecret is returned when a presented token secret does not match.
	ErrInvalidSecret = errors.New("invalid secret")
)

// Rejection reasons, in the order the validator checks them.
const (
	ReasonNoticeNotFound = "Notice not found."
	ReasonCaptchaFailed  = "Captcha verification failed, please try again."
	ReasonEmailUsed      = "This email address has been used already. Use a different " +
		"email, wait until the previous url expires or contact our " +
		"team at team@lumendatabase.org to get a researcher account."
	ReasonEmailInvalid = "This email address is not valid. Try to use a different email address."
)

// ValidationError is a rejection that persisted nothing. Messages are
// meant to be shown to the requester as is.
type ValidationError struct {
	Messages []string
}

func rejected(msgs ...string) *ValidationError { return &ValidationError{Messages: msgs} }

func (e *ValidationError) Error() string { return strings.Join(e.Messages, "; ") }
