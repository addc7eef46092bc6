package models

import (
	"time"

	"github.com/fatflowers/coachpay/pkg/types"
	"gorm.io/datatypes"
)

// SubscriptionLog records changes to subscriptions for troubleshooting.
type SubscriptionLog struct {
	ID             string                         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string                         `gorm:"column:subscription_id;type:uuid;index;not null" json:"subscription_id"`
	UserID         string                         `gorm:"column:user_id;type:uuid;index;not null" json:"user_id"`
	Reason         types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null" json:"reason"`
	// Before is the subscription before the change, null on creation.
	Before datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb;default:'null'" json:"before"`
	After  datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb;default:'null'" json:"after"`
	// Extra holds trigger details such as the charge id or operator.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time         `json:"created_at"`
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
