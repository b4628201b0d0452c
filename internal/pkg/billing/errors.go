package billing

import "errors"

// Terminal client-input errors. The provider may still retry deliveries
// that fail with these, which is safe because verification has no side
// effects.
var (
	// ErrMissingCredential means the signature header, body or configured
	// secret was absent or empty.
	ErrMissingCredential = errors.New("billing: missing webhook credential")

	// ErrAuthentication means the supplied signature did not match the
	// recomputed one.
	ErrAuthentication = errors.New("billing: webhook signature mismatch")

	// ErrStalePayload means the embedded timestamp fell outside the replay
	// tolerance window.
	ErrStalePayload = errors.New("billing: webhook payload outside tolerance window")

	// ErrMalformedPayload means the verified body could not be decoded into
	// a known event envelope.
	ErrMalformedPayload = errors.New("billing: malformed webhook payload")
)

// ErrHandlerFailure marks transient processing failures (store unavailable,
// conditional-write retries exhausted). Events failing with it are not
// recorded as processed, so the provider's redelivery re-attempts them.
var ErrHandlerFailure = errors.New("billing: event handler failure")
