// Package status defines the closed set of error kinds every component in
// ticketbot returns instead of throwing. It generalizes the teacher's
// internal/status package, which held two ad-hoc sentinel errors
// (ErrFailedPayment, ErrRefCodeNotFound), into one typed error value that
// every layer (controller, webhook ingress, booking engine) can branch on.
package status

import "fmt"

type Kind string

const (
	InvalidPhone            Kind = "INVALID_PHONE"
	InvalidInput             Kind = "INVALID_INPUT"
	NotFound                 Kind = "NOT_FOUND"
	InvalidState             Kind = "INVALID_STATE"
	Conflict                 Kind = "CONFLICT"
	AlreadyProcessed         Kind = "ALREADY_PROCESSED"
	CodeGenerationExhausted  Kind = "CODE_GENERATION_EXHAUSTED"
	PaymentErrorKind         Kind = "PAYMENT_ERROR"
	ProviderUnavailable      Kind = "PROVIDER_UNAVAILABLE"
	ConfigError              Kind = "CONFIG_ERROR"
	InternalError            Kind = "INTERNAL_ERROR"
)

// Error is the single error type returned by ticketbot's core components.
type Error struct {
	Kind     Kind
	Provider string // set only for PaymentErrorKind
	Code     string // provider-specific code, e.g. BusinessNotEligible
	Cause    error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: provider=%s code=%s: %v", e.Kind, e.Provider, e.Code, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

func Payment(provider, code string, cause error) *Error {
	return &Error{Kind: PaymentErrorKind, Provider: provider, Code: code, Cause: cause}
}

// Is reports whether err carries the given Kind. Mirrors errors.Is
// ergonomics without requiring callers to import errors for the common case.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// BusinessNotEligible is the distinguished STK provider error code surfaced
// from the provider's error body (spec §4.5).
const BusinessNotEligible = "BusinessNotEligible"
