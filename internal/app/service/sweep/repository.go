package sweep

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/types"
)

type Repository interface {
	// DueForReminder lists active subscriptions billing in [from, to) whose
	// reminder for that billing date has not been sent.
	DueForReminder(ctx context.Context, from, to time.Time) ([]*models.Subscription, error)
	MarkReminded(ctx context.Context, subscriptionID string, billingDate time.Time) error
	// DeleteExpiredCancelled hard-deletes cancelled subscriptions whose grace
	// period ended before now, with their add-ons, and returns their ids.
	DeleteExpiredCancelled(ctx context.Context, now time.Time) ([]string, error)
	// ListSubscriptions pages through all subscriptions ordered by id.
	ListSubscriptions(ctx context.Context, afterID string, limit int) ([]*models.Subscription, error)
	SaveSnapshots(ctx context.Context, rows []*models.SubscriptionDailySnapshot) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository { return &gormRepository{db: db} }

func (r *gormRepository) DueForReminder(ctx context.Context, from, to time.Time) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_billing_date >= ? AND next_billing_date < ?", types.SubscriptionStatusActive, from, to).
		Where("renewal_reminder_sent_for IS NULL OR renewal_reminder_sent_for <> next_billing_date").
		Order("next_billing_date, id").
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) MarkReminded(ctx context.Context, subscriptionID string, billingDate time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", subscriptionID).
		UpdateColumn("renewal_reminder_sent_for", billingDate).Error
}

func (r *gormRepository) DeleteExpiredCancelled(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Subscription{}).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND grace_period_ends_at IS NOT NULL AND grace_period_ends_at <= ?", types.SubscriptionStatusCancelled, now).
			Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("select expired subscriptions: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("subscription_id IN ?", ids).Delete(&models.AddonSubscription{}).Error; err != nil {
			return fmt.Errorf("delete add-ons: %w", err)
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Subscription{}).Error; err != nil {
			return fmt.Errorf("delete subscriptions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *gormRepository) ListSubscriptions(ctx context.Context, afterID string, limit int) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := r.db.WithContext(ctx).Where("id > ?", afterID).Order("id").Limit(limit).Find(&subs).Error
	return subs, err
}

func (r *gormRepository) SaveSnapshots(ctx context.Context, rows []*models.SubscriptionDailySnapshot) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subscription_id"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"coach_id", "status", "billing_amount", "snapshot_created_at"}),
	}).Create(rows).Error
}
