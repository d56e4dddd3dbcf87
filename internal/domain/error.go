package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPaymentsDisabled   = errors.New("payment processor not configured")

	// Entitlement / usage errors
	ErrUnauthenticated      = errors.New("authentication required")
	ErrEntitlementExhausted = errors.New("demo allowance exhausted")
	ErrTransientDependency  = errors.New("dependency temporarily unavailable")
	ErrLedgerWrite          = errors.New("usage ledger write failed")
	ErrRateLimited          = errors.New("too many requests")

	// Billing reconciliation errors
	ErrDuplicatePaymentEvent    = errors.New("payment event already processed")
	ErrUnknownCustomerReference = errors.New("unknown customer reference")
	ErrMalformedEvent           = errors.New("malformed payment event")
)

// IsRetryable reports whether the caller may retry the same request unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientDependency) || errors.Is(err, ErrRateLimited)
}
