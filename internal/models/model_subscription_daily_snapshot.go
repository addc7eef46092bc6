package models

import (
	"time"

	"github.com/fatflowers/coachpay/pkg/types"
	"github.com/shopspring/decimal"
)

// SubscriptionDailySnapshot is a daily copy of a subscription's state for analytics.
type SubscriptionDailySnapshot struct {
	ID             string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string                   `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:idx_subscription_snapshot_date,priority:1" json:"subscription_id"`
	UserID         string                   `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	CoachID        *string                  `gorm:"column:coach_id;type:uuid" json:"coach_id"`
	ServiceID      string                   `gorm:"column:service_id;type:varchar(64);not null" json:"service_id"`
	Status         types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	BillingAmount  decimal.Decimal          `gorm:"column:billing_amount;type:numeric(12,3);not null" json:"billing_amount"`
	// SnapshotDate is YYYY-MM-DD.
	SnapshotDate      string    `gorm:"column:snapshot_date;type:char(10);uniqueIndex:idx_subscription_snapshot_date,priority:2" json:"snapshot_date"`
	SnapshotCreatedAt time.Time `gorm:"column:snapshot_created_at" json:"snapshot_created_at"`
}

func (SubscriptionDailySnapshot) TableName() string {
	return "subscription_daily_snapshot"
}

// NewSubscriptionDailySnapshot copies the reportable fields of s.
func NewSubscriptionDailySnapshot(id string, s *Subscription, date, now time.Time) *SubscriptionDailySnapshot {
	return &SubscriptionDailySnapshot{
		ID:                id,
		SubscriptionID:    s.ID,
		UserID:            s.UserID,
		CoachID:           s.CoachID,
		ServiceID:         s.ServiceID,
		Status:            s.Status,
		BillingAmount:     s.BillingAmount,
		SnapshotDate:      date.Format(time.DateOnly),
		SnapshotCreatedAt: now,
	}
}
