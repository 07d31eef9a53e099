// Package reserr defines the stable error codes returned by the reservation
// core. Codes are part of the API contract: clients branch on them, so they
// are closed constants here rather than free-form strings built at call sites.
package reserr

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type Code string

const (
	// Not-found family. Distinct from generic store errors so callers can
	// render a 404 instead of a 500.
	CodeNotFound            Code = "not_found"
	CodeReservationNotFound Code = "reservation_not_found"
	CodeDisputeNotFound     Code = "dispute_not_found"
	CodeSlotNotFound        Code = "slot_not_found"
	CodeClientNotFound      Code = "client_not_found"

	// Input/validation errors.
	CodeInvalidArgument  Code = "invalid_argument"
	CodeEmailNotVerified Code = "email_not_verified"
	CodeInvalidPartySize Code = "invalid_party_size"
	CodeForbidden        Code = "forbidden"

	// Business-rule rejections on the reservation lifecycle.
	CodeInvalidTransition    Code = "invalid_status_transition"
	CodeReservationProtected Code = "reservation_protected"
	CodeReservationUnpaid    Code = "reservation_is_unpaid"
	CodeSelfBookingForbidden Code = "self_booking_forbidden"
	CodeDoubleBooking        Code = "double_booking"
	CodeRedirectToQuote      Code = "redirect_to_quote"
	CodeUserSuspended        Code = "user_suspended"
	CodeSlotFull             Code = "slot_full"

	// Dispute workflow rejections.
	CodeDisputeNotPending    Code = "dispute_not_pending"
	CodeDisputeWindowClosed  Code = "dispute_response_window_closed"
	CodeDisputeInvalidState  Code = "dispute_invalid_state"
	CodeDisputeNotArbitrable Code = "dispute_not_arbitrable"

	// Waitlist rejections.
	CodeOfferExpired  Code = "waitlist_offer_expired"
	CodeOfferNotFound Code = "waitlist_offer_not_found"

	// Infrastructure.
	CodeConflict   Code = "conflict"
	CodeStoreError Code = "store_error"
)

// Error is a coded error with optional metadata for the caller to render
// (e.g. reservation_protected carries hours_until_start and window_hours).
type Error struct {
	Code    Code
	Message string
	Meta    map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error, keeping the cause reachable
// through errors.Unwrap.
func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Store wraps an infrastructure error from the database layer.
func Store(err error) *Error {
	return &Error{Code: CodeStoreError, Message: "store error", cause: err}
}

// WithMeta returns a copy of the error carrying extra key/value metadata.
func (e *Error) WithMeta(kv map[string]any) *Error {
	clone := *e
	clone.Meta = kv
	return &clone
}

// CodeOf extracts the code from err, or CodeStoreError for anything uncoded.
func CodeOf(err error) Code {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return CodeStoreError
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsNotFound reports whether err is any of the *_not_found codes.
func IsNotFound(err error) bool {
	switch CodeOf(err) {
	case CodeNotFound, CodeReservationNotFound, CodeDisputeNotFound,
		CodeSlotNotFound, CodeClientNotFound, CodeOfferNotFound:
		return true
	}
	return false
}

// IsDuplicateKey reports whether err is a Postgres unique-constraint
// violation. The dispute and waitlist repositories rely on this to turn a
// concurrent insert race into an idempotent read of the winning row.
func IsDuplicateKey(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
