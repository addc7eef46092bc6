package models

import (
	"time"

	"github.com/fatflowers/coachpay/pkg/types"
	"gorm.io/datatypes"
)

type VerificationLogStatus string

const (
	VerificationLogStatusReceived     VerificationLogStatus = "received"
	VerificationLogStatusHandled      VerificationLogStatus = "handled"
	VerificationLogStatusHandleFailed VerificationLogStatus = "handle_failed"
)

type VerificationLogSource string

const (
	VerificationLogSourceClient  VerificationLogSource = "client"
	VerificationLogSourceWebhook VerificationLogSource = "webhook"
)

// VerificationLog is the audit row of one verification attempt.
type VerificationLog struct {
	ID             string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ProviderID     types.PaymentProvider `gorm:"column:provider_id;type:varchar(64);not null" json:"provider_id"`
	Source         VerificationLogSource `gorm:"column:source;type:varchar(32);not null" json:"source"`
	SubscriptionID *string               `gorm:"column:subscription_id;type:uuid;index" json:"subscription_id"`
	TraceID        string                `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	ChargeID       string                `gorm:"column:charge_id;type:varchar(128);index" json:"charge_id"`
	ReceivedAt     time.Time             `gorm:"column:received_at" json:"received_at"`
	Data           datatypes.JSON        `gorm:"column:data;type:jsonb" json:"data"`
	Result         *datatypes.JSON       `gorm:"column:result;type:jsonb" json:"result"`
	Status         VerificationLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func (VerificationLog) TableName() string { return "verification_log" }
