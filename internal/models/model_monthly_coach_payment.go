package models

import (
	"time"

	"github.com/fatflowers/coachpay/pkg/types"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ClientBreakdownEntry is one subscription's contribution to a coach payout.
type ClientBreakdownEntry struct {
	SubscriptionID string            `json:"subscription_id"`
	UserID         string            `json:"user_id"`
	ServiceID      string            `json:"service_id"`
	ServiceType    types.ServiceType `json:"service_type"`
	GrossPrice     decimal.Decimal   `json:"gross_price"`
	Discount       decimal.Decimal   `json:"discount"`
	Payout         decimal.Decimal   `json:"payout"`
	// Addon is set when the entry comes from an add-on subscription.
	Addon string `json:"addon,omitempty"`
}

// MonthlyCoachPayment is the payout of one coach for one month. Rows are
// overwritten on recompute.
type MonthlyCoachPayment struct {
	ID               string                                        `gorm:"column:id;type:uuid;primary_key" json:"id"`
	PaymentMonth     string                                        `gorm:"column:payment_month;type:char(7);not null;uniqueIndex:uniq_month_coach,priority:1" json:"payment_month"`
	CoachID          string                                        `gorm:"column:coach_id;type:uuid;not null;uniqueIndex:uniq_month_coach,priority:2" json:"coach_id"`
	ClientBreakdown  datatypes.JSONType[[]ClientBreakdownEntry]    `gorm:"column:client_breakdown;type:jsonb;default:'[]'" json:"client_breakdown"`
	ClientCounts     datatypes.JSONType[map[types.ServiceType]int] `gorm:"column:client_counts;type:jsonb;default:'{}'" json:"client_counts"`
	GrossRevenue     decimal.Decimal                               `gorm:"column:gross_revenue;type:numeric(12,3);not null" json:"gross_revenue"`
	DiscountsApplied decimal.Decimal                               `gorm:"column:discounts_applied;type:numeric(12,3);not null" json:"discounts_applied"`
	NetCollected     decimal.Decimal                               `gorm:"column:net_collected;type:numeric(12,3);not null" json:"net_collected"`
	BasePayout       decimal.Decimal                               `gorm:"column:base_payout;type:numeric(12,3);not null" json:"base_payout"`
	AddonPayout      decimal.Decimal                               `gorm:"column:addon_payout;type:numeric(12,3);not null" json:"addon_payout"`
	TotalPayment     decimal.Decimal                               `gorm:"column:total_payment;type:numeric(12,3);not null" json:"total_payment"`
	CreatedAt        time.Time                                     `json:"created_at"`
	UpdatedAt        time.Time                                     `json:"updated_at"`
}

func (MonthlyCoachPayment) TableName() string { return "monthly_coach_payment" }
