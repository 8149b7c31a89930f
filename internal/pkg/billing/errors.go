package billing

import "errors"

var (
	// ErrInvalidSignature rejects an event envelope whose signature does
	// not verify against the raw body. Nothing is processed after it.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrCheckoutCreation wraps processor failures while creating a
	// checkout session. No local state was written.
	ErrCheckoutCreation = errors.New("checkout session creation failed")

	// ErrNoActiveEntitlement is returned when a customer tries to consume
	// quota without an active plan.
	ErrNoActiveEntitlement = errors.New("no active entitlement")

	// ErrQuotaExceeded is the expected business rejection when the job
	// limit is reached. It is always checked before mutation.
	ErrQuotaExceeded = errors.New("job quota exhausted")
)
