package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountCode struct {
	ID         string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Code       string           `gorm:"column:code;type:varchar(64);not null;uniqueIndex" json:"code"`
	PercentOff *decimal.Decimal `gorm:"column:percent_off;type:numeric(6,3)" json:"percent_off"`
	AmountOff  *decimal.Decimal `gorm:"column:amount_off;type:numeric(12,3)" json:"amount_off"`
	TimesUsed  int              `gorm:"column:times_used;not null;default:0" json:"times_used"`
	MaxUses    *int             `gorm:"column:max_uses" json:"max_uses"`
	Active     bool             `gorm:"column:active;not null;default:true" json:"active"`
	ExpiresAt  *time.Time       `gorm:"column:expires_at;default:null" json:"expires_at"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (DiscountCode) TableName() string { return "discount_code" }

// Usable reports whether the code can still be redeemed at now.
func (d *DiscountCode) Usable(now time.Time) bool {
	if d == nil || !d.Active {
		return false
	}
	if d.ExpiresAt != nil && !now.Before(*d.ExpiresAt) {
		return false
	}
	return d.MaxUses == nil || d.TimesUsed < *d.MaxUses
}

// Apply returns the discounted price, never below zero.
func (d *DiscountCode) Apply(price decimal.Decimal) decimal.Decimal {
	if d == nil {
		return price
	}
	out := price
	if d.PercentOff != nil {
		out = out.Sub(price.Mul(*d.PercentOff).Div(decimal.NewFromInt(100)))
	}
	if d.AmountOff != nil {
		out = out.Sub(*d.AmountOff)
	}
	if out.IsNegative() {
		return decimal.Zero
	}
	return out.Round(3)
}

// DiscountRedemption records the discount given to one subscription in one
// billing period. It feeds reporting only; it never reduces coach payout.
type DiscountRedemption struct {
	ID             string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string          `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:uniq_redemption_period,priority:1" json:"subscription_id"`
	DiscountCodeID string          `gorm:"column:discount_code_id;type:uuid;not null" json:"discount_code_id"`
	Period         string          `gorm:"column:period;type:char(7);not null;uniqueIndex:uniq_redemption_period,priority:2" json:"period"`
	AmountBefore   decimal.Decimal `gorm:"column:amount_before;type:numeric(12,3);not null" json:"amount_before"`
	AmountAfter    decimal.Decimal `gorm:"column:amount_after;type:numeric(12,3);not null" json:"amount_after"`
	TotalSaved     decimal.Decimal `gorm:"column:total_saved;type:numeric(12,3);not null" json:"total_saved"`
	PeriodAt       time.Time       `gorm:"column:period_at;not null" json:"period_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (DiscountRedemption) TableName() string { return "discount_redemption" }
