package types

import "strings"

type PaymentProvider string

const (
	PaymentProviderTap PaymentProvider = "tap"
)

type PaymentStatus string

const (
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// ChargeStatus is the status string reported by the payment gateway.
type ChargeStatus string

const (
	ChargeStatusInitiated  ChargeStatus = "INITIATED"
	ChargeStatusInProgress ChargeStatus = "IN_PROGRESS"
	ChargeStatusCaptured   ChargeStatus = "CAPTURED"
	ChargeStatusFailed     ChargeStatus = "FAILED"
	ChargeStatusDeclined   ChargeStatus = "DECLINED"
	ChargeStatusCancelled  ChargeStatus = "CANCELLED"
	ChargeStatusAbandoned  ChargeStatus = "ABANDONED"
	ChargeStatusVoid       ChargeStatus = "VOID"
	ChargeStatusTimedOut   ChargeStatus = "TIMEDOUT"
	ChargeStatusRestricted ChargeStatus = "RESTRICTED"
)

func NormalizeChargeStatus(s string) ChargeStatus {
	return ChargeStatus(strings.ToUpper(strings.TrimSpace(s)))
}

func (s ChargeStatus) IsPending() bool {
	return s == ChargeStatusInitiated || s == ChargeStatusInProgress
}

func (s ChargeStatus) IsFailure() bool {
	switch s {
	case ChargeStatusFailed, ChargeStatusDeclined, ChargeStatusCancelled,
		ChargeStatusAbandoned, ChargeStatusVoid, ChargeStatusTimedOut, ChargeStatusRestricted:
		return true
	}
	return false
}

// PaymentStatus maps a failed gateway status onto the ledger status.
func (s ChargeStatus) PaymentStatus() PaymentStatus {
	switch s {
	case ChargeStatusCaptured:
		return PaymentStatusPaid
	case ChargeStatusCancelled, ChargeStatusAbandoned, ChargeStatusVoid:
		return PaymentStatusCancelled
	default:
		return PaymentStatusFailed
	}
}
