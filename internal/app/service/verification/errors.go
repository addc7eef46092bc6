package verification

import "errors"

var (
	ErrRateLimited          = errors.New("too many verification attempts for this charge")
	ErrAmountMismatch       = errors.New("charge amount does not match the billing amount")
	ErrCurrencyMismatch     = errors.New("charge currency is not supported")
	ErrInvalidStatus        = errors.New("charge status does not allow activation")
	ErrSubscriptionMismatch = errors.New("charge belongs to another subscription")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

const (
	ReasonAmountMismatch       = "amount_mismatch"
	ReasonCurrencyMismatch     = "currency_mismatch"
	ReasonInvalidStatus        = "invalid_status"
	ReasonSubscriptionMismatch = "subscription_mismatch"
	ReasonRateLimited          = "rate_limited"
)

// ReasonOf maps a rejection error to its reason code, or "" for other errors.
func ReasonOf(err error) string {
	switch {
	case errors.Is(err, ErrAmountMismatch):
		return ReasonAmountMismatch
	case errors.Is(err, ErrCurrencyMismatch):
		return ReasonCurrencyMismatch
	case errors.Is(err, ErrInvalidStatus):
		return ReasonInvalidStatus
	case errors.Is(err, ErrSubscriptionMismatch):
		return ReasonSubscriptionMismatch
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimited
	}
	return ""
}

// IsRejection reports whether err is a validation outcome rather than a failure.
func IsRejection(err error) bool {
	r := ReasonOf(err)
	return r != "" && r != ReasonRateLimited
}
