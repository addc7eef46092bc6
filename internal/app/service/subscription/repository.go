package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/tool"
	"github.com/fatflowers/coachpay/pkg/types"
)

// Change is one persisted subscription transition. Before is nil on create.
type Change struct {
	Before *models.Subscription
	After  *models.Subscription
	Reason types.SubscriptionChangeReason
	Extra  map[string]any
}

type Repository interface {
	// ServicePrice returns nil when the service is unknown or inactive.
	ServicePrice(ctx context.Context, serviceID string) (*models.ServicePricing, error)
	// DiscountByCode returns nil when no code matches.
	DiscountByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	Get(ctx context.Context, id string) (*models.Subscription, error)
	// Apply saves the subscription and its change log in one transaction.
	Apply(ctx context.Context, c *Change) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository { return &gormRepository{db: db} }

func (r *gormRepository) ServicePrice(ctx context.Context, serviceID string) (*models.ServicePricing, error) {
	var p models.ServicePricing
	err := r.db.WithContext(ctx).Where("service_id = ? AND active", serviceID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) DiscountByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var d models.DiscountCode
	err := r.db.WithContext(ctx).Where("lower(code) = ?", strings.ToLower(strings.TrimSpace(code))).Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *gormRepository) Get(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) Apply(ctx context.Context, c *Change) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(c.After).Error; err != nil {
			return fmt.Errorf("save subscription: %w", err)
		}
		if c.After.Status == types.SubscriptionStatusCancelled {
			if err := tx.Model(&models.AddonSubscription{}).
				Where("subscription_id = ? AND status <> ?", c.After.ID, types.SubscriptionStatusCancelled).
				UpdateColumn("status", types.SubscriptionStatusCancelled).Error; err != nil {
				return fmt.Errorf("cancel add-ons: %w", err)
			}
		}
		extra := datatypes.JSONMap{}
		for k, v := range c.Extra {
			extra[k] = v
		}
		return tx.Create(&models.SubscriptionLog{
			ID:             tool.GenerateUUIDV7(),
			SubscriptionID: c.After.ID,
			UserID:         c.After.UserID,
			Reason:         c.Reason,
			Before:         datatypes.NewJSONType(c.Before),
			After:          datatypes.NewJSONType(c.After),
			Extra:          extra,
		}).Error
	})
}
