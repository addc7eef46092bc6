package types

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusFailed    SubscriptionStatus = "failed"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonOnboarding      SubscriptionChangeReason = "onboarding"
	SubscriptionChangeReasonPaymentCaptured SubscriptionChangeReason = "payment_captured"
	SubscriptionChangeReasonPaymentFailed   SubscriptionChangeReason = "payment_failed"
	SubscriptionChangeReasonCancel          SubscriptionChangeReason = "cancel"
	SubscriptionChangeReasonCoachAssigned   SubscriptionChangeReason = "coach_assigned"
)

// ServiceType is the bucket a service falls into for payout reporting.
// It is stored on the pricing row, never inferred from the service name.
type ServiceType string

const (
	ServiceTypeTeam             ServiceType = "team"
	ServiceTypeOneToOneInPerson ServiceType = "one_to_one_in_person"
	ServiceTypeHybrid           ServiceType = "hybrid"
	ServiceTypeOnline           ServiceType = "online"
)

var ServiceTypes = []ServiceType{
	ServiceTypeTeam,
	ServiceTypeOneToOneInPerson,
	ServiceTypeHybrid,
	ServiceTypeOnline,
}

func (t ServiceType) Valid() bool {
	for _, v := range ServiceTypes {
		if v == t {
			return true
		}
	}
	return false
}

type PayoutType string

const (
	PayoutTypePercent PayoutType = "percent"
	PayoutTypeFixed   PayoutType = "fixed"
)

type PayoutRecipient string

const (
	PayoutRecipientPrimaryCoach PayoutRecipient = "primary_coach"
	PayoutRecipientStaff        PayoutRecipient = "staff"
)

type UserRole string

const (
	UserRoleClient UserRole = "client"
	UserRoleCoach  UserRole = "coach"
	UserRoleAdmin  UserRole = "admin"
	UserRoleStaff  UserRole = "staff"
)

type CoachStatus string

const (
	CoachStatusPending   CoachStatus = "pending"
	CoachStatusApproved  CoachStatus = "approved"
	CoachStatusSuspended CoachStatus = "suspended"
)
