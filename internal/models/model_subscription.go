package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fatflowers/coachpay/pkg/types"
)

// Subscription is one client-coach subscription to a service.
// Lifecycle: pending -> active -> past_due/failed -> cancelled -> hard-deleted
// by the cleanup sweep once the grace period has elapsed.
type Subscription struct {
	ID        string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID    string                   `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	CoachID   *string                  `gorm:"column:coach_id;type:uuid;index:idx_subscription_coach_service,priority:1" json:"coach_id"`
	ServiceID string                   `gorm:"column:service_id;type:varchar(64);not null;index:idx_subscription_coach_service,priority:2" json:"service_id"`
	Status    types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`

	DiscountCodeID *string         `gorm:"column:discount_code_id;type:uuid" json:"discount_code_id"`
	BasePrice      decimal.Decimal `gorm:"column:base_price;type:numeric(12,3);not null" json:"base_price"`
	BillingAmount  decimal.Decimal `gorm:"column:billing_amount;type:numeric(12,3);not null" json:"billing_amount"`

	GatewaySubscriptionID *string    `gorm:"column:gateway_subscription_id;type:varchar(128)" json:"gateway_subscription_id"`
	StartDate             *time.Time `gorm:"column:start_date;default:null" json:"start_date"`
	NextBillingDate       *time.Time `gorm:"column:next_billing_date;default:null;index" json:"next_billing_date"`

	LastVerifiedChargeID  *string    `gorm:"column:last_verified_charge_id;type:varchar(128)" json:"last_verified_charge_id"`
	LastPaymentVerifiedAt *time.Time `gorm:"column:last_payment_verified_at;default:null" json:"last_payment_verified_at"`
	LastPaymentStatus     *string    `gorm:"column:last_payment_status;type:varchar(32)" json:"last_payment_status"`
	PastDue               bool       `gorm:"column:past_due;not null;default:false" json:"past_due"`
	PaymentFailedAt       *time.Time `gorm:"column:payment_failed_at;default:null" json:"payment_failed_at"`
	FailureReason         *string    `gorm:"column:failure_reason;type:varchar(255)" json:"failure_reason"`
	// CardToken must stay NULL: card data is never stored.
	CardToken *string `gorm:"column:card_token;type:varchar(255)" json:"-"`

	NeedsCoachAssignment bool `gorm:"column:needs_coach_assignment;not null;default:false" json:"needs_coach_assignment"`

	CancelledAt            *time.Time `gorm:"column:cancelled_at;default:null" json:"cancelled_at"`
	CancellationReason     *string    `gorm:"column:cancellation_reason;type:varchar(255)" json:"cancellation_reason"`
	GracePeriodEndsAt      *time.Time `gorm:"column:grace_period_ends_at;default:null;index" json:"grace_period_ends_at"`
	RenewalReminderSentFor *time.Time `gorm:"column:renewal_reminder_sent_for;default:null" json:"renewal_reminder_sent_for"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

func (s *Subscription) BeforeSave(*gorm.DB) error {
	s.CardToken = nil
	return nil
}

// IsVerifiedFor reports whether the subscription is already active on chargeID.
func (s *Subscription) IsVerifiedFor(chargeID string) bool {
	return s != nil &&
		s.Status == types.SubscriptionStatusActive &&
		!s.PastDue &&
		s.LastVerifiedChargeID != nil &&
		*s.LastVerifiedChargeID == chargeID
}

// HasDiscount reports whether a discount code reduced the billed amount.
func (s *Subscription) HasDiscount() bool {
	return s != nil && s.DiscountCodeID != nil && s.BillingAmount.LessThan(s.BasePrice)
}

// AddonSubscription is a recurring add-on attached to a primary subscription.
type AddonSubscription struct {
	ID             string  `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID         string  `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	SubscriptionID string  `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	AddonID        *string `gorm:"column:addon_id;type:varchar(64)" json:"addon_id"`
	// SpecialtyCode identifies add-ons created before add-on ids existed.
	SpecialtyCode string  `gorm:"column:specialty_code;type:varchar(64)" json:"specialty_code"`
	StaffUserID   *string `gorm:"column:staff_user_id;type:uuid" json:"staff_user_id"`
	// LegacyPayoutAmount is the payout stored on pre-rule add-ons.
	LegacyPayoutAmount *decimal.Decimal         `gorm:"column:legacy_payout_amount;type:numeric(12,3)" json:"legacy_payout_amount"`
	Recurring          bool                     `gorm:"column:recurring;not null;default:true" json:"recurring"`
	Status             types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

func (AddonSubscription) TableName() string { return "addon_subscription" }

func (a *AddonSubscription) BeforeSave(*gorm.DB) error {
	a.SpecialtyCode = NormalizeSpecialtyCode(a.SpecialtyCode)
	return nil
}
