package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatflowers/coachpay/pkg/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NormalizeSpecialtyCode is applied to legacy add-on codes at write time so
// lookups are exact matches.
func NormalizeSpecialtyCode(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ServicePricing is the gross list price of a subscription service.
type ServicePricing struct {
	ServiceID   string            `gorm:"column:service_id;type:varchar(64);primary_key" json:"service_id"`
	Name        string            `gorm:"column:name;type:varchar(255);not null" json:"name"`
	ServiceType types.ServiceType `gorm:"column:service_type;type:varchar(32);not null" json:"service_type"`
	GrossPrice  decimal.Decimal   `gorm:"column:gross_price;type:numeric(12,3);not null" json:"gross_price"`
	Active      bool              `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (ServicePricing) TableName() string { return "service_pricing" }

func (p *ServicePricing) BeforeSave(*gorm.DB) error {
	if !p.ServiceType.Valid() {
		return fmt.Errorf("invalid service type %q for service %s", p.ServiceType, p.ServiceID)
	}
	return nil
}

// PayoutRule converts a service's gross price into the coach payout.
type PayoutRule struct {
	ServiceID        string           `gorm:"column:service_id;type:varchar(64);primary_key" json:"service_id"`
	PayoutType       types.PayoutType `gorm:"column:payout_type;type:varchar(16);not null" json:"payout_type"`
	PayoutValue      decimal.Decimal  `gorm:"column:payout_value;type:numeric(12,3);not null" json:"payout_value"`
	PlatformFeeType  types.PayoutType `gorm:"column:platform_fee_type;type:varchar(16)" json:"platform_fee_type"`
	PlatformFeeValue decimal.Decimal  `gorm:"column:platform_fee_value;type:numeric(12,3);default:0" json:"platform_fee_value"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (PayoutRule) TableName() string { return "payout_rule" }

// AddonPricing is the gross price of an add-on, addressable by id or by its
// legacy specialty code.
type AddonPricing struct {
	AddonID       string          `gorm:"column:addon_id;type:varchar(64);primary_key" json:"addon_id"`
	SpecialtyCode string          `gorm:"column:specialty_code;type:varchar(64);index" json:"specialty_code"`
	GrossPrice    decimal.Decimal `gorm:"column:gross_price;type:numeric(12,3);not null" json:"gross_price"`
	Active        bool            `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (AddonPricing) TableName() string { return "addon_pricing" }

func (p *AddonPricing) BeforeSave(*gorm.DB) error {
	p.SpecialtyCode = NormalizeSpecialtyCode(p.SpecialtyCode)
	return nil
}

type AddonPayoutRule struct {
	AddonID       string                `gorm:"column:addon_id;type:varchar(64);primary_key" json:"addon_id"`
	SpecialtyCode string                `gorm:"column:specialty_code;type:varchar(64);index" json:"specialty_code"`
	PayoutType    types.PayoutType      `gorm:"column:payout_type;type:varchar(16);not null" json:"payout_type"`
	PayoutValue   decimal.Decimal       `gorm:"column:payout_value;type:numeric(12,3);not null" json:"payout_value"`
	Recipient     types.PayoutRecipient `gorm:"column:recipient;type:varchar(32);not null;default:'primary_coach'" json:"recipient"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func (AddonPayoutRule) TableName() string { return "addon_payout_rule" }

func (r *AddonPayoutRule) BeforeSave(*gorm.DB) error {
	r.SpecialtyCode = NormalizeSpecialtyCode(r.SpecialtyCode)
	return nil
}
