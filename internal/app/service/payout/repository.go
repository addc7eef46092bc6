package payout

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/types"
)

// Repository reads payout inputs and stores payout rows.
type Repository interface {
	LoadSnapshot(ctx context.Context, month string) (*Snapshot, error)
	UpsertPayments(ctx context.Context, rows []*models.MonthlyCoachPayment) error
	ListPayments(ctx context.Context, month string) ([]*models.MonthlyCoachPayment, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository { return &gormRepository{db: db} }

type discountRow struct {
	SubscriptionID string
	Total          decimal.Decimal
}

// payoutCoaches selects every coach account. Deactivated coaches stay in so
// the subscriptions still assigned to them are paid out.
func payoutCoaches(db *gorm.DB) *gorm.DB {
	return db.Where("role = ?", types.UserRoleCoach)
}

func (r *gormRepository) LoadSnapshot(ctx context.Context, month string) (*Snapshot, error) {
	db := r.db.WithContext(ctx)
	snap := &Snapshot{
		Month:       month,
		Discounts:   make(map[string]decimal.Decimal),
		ExemptUsers: make(map[string]bool),
	}

	if err := db.Where("active = ?", true).Find(&snap.Services).Error; err != nil {
		return nil, fmt.Errorf("load service pricing: %w", err)
	}
	if err := db.Find(&snap.ServiceRules).Error; err != nil {
		return nil, fmt.Errorf("load payout rules: %w", err)
	}
	if err := db.Where("active = ?", true).Find(&snap.AddonPrices).Error; err != nil {
		return nil, fmt.Errorf("load addon pricing: %w", err)
	}
	if err := db.Find(&snap.AddonRules).Error; err != nil {
		return nil, fmt.Errorf("load addon payout rules: %w", err)
	}
	if err := db.Scopes(payoutCoaches).Find(&snap.Coaches).Error; err != nil {
		return nil, fmt.Errorf("load coaches: %w", err)
	}
	if err := db.Where("status = ?", types.SubscriptionStatusActive).Find(&snap.Subscriptions).Error; err != nil {
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}
	if err := db.Where("status = ? AND recurring = ?", types.SubscriptionStatusActive, true).Find(&snap.Addons).Error; err != nil {
		return nil, fmt.Errorf("load addon subscriptions: %w", err)
	}

	var discounts []discountRow
	if err := db.Model(&models.DiscountRedemption{}).
		Select("subscription_id, SUM(total_saved) AS total").
		Where("period = ?", month).
		Group("subscription_id").
		Scan(&discounts).Error; err != nil {
		return nil, fmt.Errorf("load discount redemptions: %w", err)
	}
	for _, d := range discounts {
		snap.Discounts[d.SubscriptionID] = d.Total
	}

	var exempt []string
	if err := db.Model(&models.User{}).Where("payment_exempt = ?", true).Pluck("id", &exempt).Error; err != nil {
		return nil, fmt.Errorf("load exempt users: %w", err)
	}
	for _, id := range exempt {
		snap.ExemptUsers[id] = true
	}
	return snap, nil
}

func (r *gormRepository) UpsertPayments(ctx context.Context, rows []*models.MonthlyCoachPayment) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "payment_month"}, {Name: "coach_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"client_breakdown", "client_counts", "gross_revenue", "discounts_applied",
			"net_collected", "base_payout", "addon_payout", "total_payment", "updated_at",
		}),
	}).Create(&rows).Error
}

func (r *gormRepository) ListPayments(ctx context.Context, month string) ([]*models.MonthlyCoachPayment, error) {
	var rows []*models.MonthlyCoachPayment
	err := r.db.WithContext(ctx).
		Where("payment_month = ?", month).
		Order("coach_id").
		Find(&rows).Error
	return rows, err
}
