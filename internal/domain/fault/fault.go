// Package fault defines the tagged error kinds shared by all checkout
// domain operations. The request layer maps kinds to transport status codes;
// the core never inspects error message text to decide anything.
package fault

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// KindNotFound covers missing entities and entities not owned by the caller.
	KindNotFound Kind = "not_found"
	// KindInvalidState covers operations illegal for the entity's current
	// state, e.g. cancelling a shipped order or re-paying a paid one.
	KindInvalidState Kind = "invalid_state"
	// KindInsufficientStock covers reservation or cart checks that exceed
	// available stock.
	KindInsufficientStock Kind = "insufficient_stock"
	// KindItemUnavailable covers inactive or delisted products.
	KindItemUnavailable Kind = "item_unavailable"
	// KindAlreadyExists covers duplicate creation attempts.
	KindAlreadyExists Kind = "already_exists"
	// KindValidationFailed covers business-rule rejections distinct from
	// transport schema validation.
	KindValidationFailed Kind = "validation_failed"
	// KindGatewayError covers payment gateway failures and timeouts. Retry
	// may help, but the caller must re-query state first (unknown outcome).
	KindGatewayError Kind = "gateway_error"
	// KindSignatureInvalid covers webhook signature verification failures.
	KindSignatureInvalid Kind = "signature_invalid"
)

// Error is a domain error tagged with a Kind. It wraps an optional cause.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is match any *Error with the same Kind, so packages can
// export kind sentinels without sharing an instance.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && (t.Message == "" || t.Message == e.Message)
}

// New creates a tagged error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a tagged error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and message.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: err}
}

// KindOf extracts the Kind from an error chain. The second return reports
// whether a tagged error was present at all.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Retryable reports whether retrying the failed operation might help.
// Gateway failures and untagged (infrastructure) errors are retryable;
// every other tagged kind describes a fact that a retry cannot change.
func Retryable(err error) bool {
	k, ok := KindOf(err)
	if !ok {
		return true
	}
	return k == KindGatewayError
}
