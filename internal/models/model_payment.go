package models

import (
	"time"

	"github.com/fatflowers/coachpay/pkg/types"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentEvent is the idempotency ledger of gateway events. A row exists at
// most once per (provider, charge_id, status).
type PaymentEvent struct {
	ID               string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Provider         types.PaymentProvider `gorm:"column:provider;type:varchar(64);not null;uniqueIndex:uniq_payment_event,priority:1" json:"provider"`
	ChargeID         string                `gorm:"column:charge_id;type:varchar(128);not null;uniqueIndex:uniq_payment_event,priority:2" json:"charge_id"`
	Status           types.ChargeStatus    `gorm:"column:status;type:varchar(32);not null;uniqueIndex:uniq_payment_event,priority:3" json:"status"`
	SubscriptionID   string                `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	VerifiedPayload  datatypes.JSON        `gorm:"column:verified_payload;type:jsonb" json:"verified_payload"`
	ProcessingResult string                `gorm:"column:processing_result;type:varchar(64)" json:"processing_result"`
	CreatedAt        time.Time             `json:"created_at"`
}

func (PaymentEvent) TableName() string { return "payment_event" }

// Payment is the payments ledger, one row per gateway charge.
type Payment struct {
	ID             string                `gorm:"column:id;type:uuid;primary_key;index:idx_payment_user_id_id,priority:2,sort:desc" json:"id"`
	SubscriptionID string                `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	UserID         string                `gorm:"column:user_id;type:uuid;not null;index:idx_payment_user_id_id,priority:1" json:"user_id"`
	Provider       types.PaymentProvider `gorm:"column:provider;type:varchar(64);not null" json:"provider"`
	ChargeID       string                `gorm:"column:charge_id;type:varchar(128);not null;uniqueIndex" json:"charge_id"`
	Amount         decimal.Decimal       `gorm:"column:amount;type:numeric(12,3);not null" json:"amount"`
	Currency       string                `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status         types.PaymentStatus   `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	FailureReason  *string               `gorm:"column:failure_reason;type:varchar(255)" json:"failure_reason"`
	PaidAt         *time.Time            `gorm:"column:paid_at;default:null" json:"paid_at"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func (Payment) TableName() string { return "payment" }
