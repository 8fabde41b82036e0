package activities

import (
	"go.temporal.io/sdk/temporal"
)

// Application-error types surfaced to workflows. The type string drives both
// retry classification and the error_code field on emitted error signals.
const (
	ErrTypeUpstreamUnavailable = "UpstreamUnavailable"
	ErrTypeMalformedResponse   = "MalformedResponse"
	ErrTypeStoreUnavailable    = "StoreUnavailable"
	ErrTypeBudgetExceeded      = "BudgetExceeded"
	ErrTypeExtractionFailure   = "ExtractionFailure"
	ErrTypeDeliveryFailure     = "DeliveryFailure"
)

// upstreamErr marks a transient upstream failure, left retryable.
func upstreamErr(msg string, cause error) error {
	return temporal.NewApplicationError(msg, ErrTypeUpstreamUnavailable, cause)
}

// malformedErr marks a schema violation in model output. Retryable: another
// generation may produce valid output.
func malformedErr(msg string, cause error) error {
	return temporal.NewApplicationError(msg, ErrTypeMalformedResponse, cause)
}

// storeErr marks a transient store failure, left retryable.
func storeErr(msg string, cause error) error {
	return temporal.NewApplicationError(msg, ErrTypeStoreUnavailable, cause)
}

// budgetErr is terminal for the activity: retrying cannot lower the cost.
func budgetErr(msg string, cause error) error {
	return temporal.NewNonRetryableApplicationError(msg, ErrTypeBudgetExceeded, cause)
}

// extractionErr is terminal: the file will not become readable on retry.
func extractionErr(msg string, cause error) error {
	return temporal.NewNonRetryableApplicationError(msg, ErrTypeExtractionFailure, cause)
}
