package store

import (
	"errors"
	"strings"
)

// Store errors surfaced to the protocol layer.
var (
	// ErrUnknownUser is returned when no account exists for a username.
	ErrUnknownUser = errors.New("unknown user")

	// ErrBadPassword is returned when the password hash does not match.
	ErrBadPassword = errors.New("bad password")

	// ErrInvalidChoice is returned for an out-of-range message number.
	ErrInvalidChoice = errors.New("invalid choice")

	// ErrUnknownRecipient is returned when the local part of a destination
	// names no account. The message is kept in the lost-mail directory.
	ErrUnknownRecipient = errors.New("unknown recipient")

	// ErrExternalDelivery is returned for destinations outside the server's
	// domain. Nothing is stored.
	ErrExternalDelivery = errors.New("external delivery unsupported")
)

// ValidationError collects every registration rule violated by a single
// request. Rules are checked in full rather than short-circuited so the
// client sees all problems at once.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, "; ")
}
