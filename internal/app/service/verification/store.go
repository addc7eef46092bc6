package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/internal/platform/gateway"
	"github.com/fatflowers/coachpay/pkg/tool"
	"github.com/fatflowers/coachpay/pkg/types"
)

// Activation is everything written when a captured charge activates a subscription.
type Activation struct {
	Provider     types.PaymentProvider
	Subscription *models.Subscription
	Charge       *gateway.Charge
	At           time.Time
}

// Failure is everything written when a charge failed or was cancelled.
type Failure struct {
	Provider     types.PaymentProvider
	Subscription *models.Subscription
	Charge       *gateway.Charge
	At           time.Time
}

// Activated is what an activation wrote.
type Activated struct {
	Subscription *models.Subscription
	Payment      *models.Payment
}

// FailureEffect tells what RecordFailure changed.
type FailureEffect string

const (
	// FailureApplied moved the subscription to failed or past_due.
	FailureApplied FailureEffect = "applied"
	// FailureDuplicate means the event was already recorded and nothing changed.
	FailureDuplicate FailureEffect = "duplicate"
	// FailureSuperseded recorded the failed payment but left the subscription
	// alone, a later charge already verified it.
	FailureSuperseded FailureEffect = "superseded"
)

// Store persists verification outcomes.
type Store interface {
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	// HasPaidCharge reports whether the charge already activated a subscription.
	HasPaidCharge(ctx context.Context, provider types.PaymentProvider, chargeID string) (bool, error)
	// Activate applies an activation atomically. It returns false without
	// changes when the charge was already processed.
	Activate(ctx context.Context, a *Activation) (*Activated, bool, error)
	// RecordFailure is a no-op for an event it has already seen.
	RecordFailure(ctx context.Context, f *Failure) (FailureEffect, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store { return &gormStore{db: db} }

var errAlreadyProcessed = errors.New("charge already processed")

func (s *gormStore) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *gormStore) HasPaidCharge(ctx context.Context, provider types.PaymentProvider, chargeID string) (bool, error) {
	db := s.db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.PaymentEvent{}).
		Where("provider = ? AND charge_id = ? AND status = ?", provider, chargeID, types.ChargeStatusCaptured).
		Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := db.Model(&models.Payment{}).
		Where("charge_id = ? AND status = ?", chargeID, types.PaymentStatusPaid).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// NextBillingDate advances a renewal from the previous billing date and a
// first activation from at.
func NextBillingDate(sub *models.Subscription, at time.Time) time.Time {
	if sub.Status != types.SubscriptionStatusPending && sub.NextBillingDate != nil {
		if next := sub.NextBillingDate.AddDate(0, 1, 0); next.After(at) {
			return next
		}
	}
	return at.AddDate(0, 1, 0)
}

// superseded reports whether a failed charge predates the payment that last
// verified sub. firstSeen is when the charge was first recorded, if ever.
func superseded(sub *models.Subscription, charge *gateway.Charge, firstSeen *time.Time) bool {
	if sub.LastVerifiedChargeID == nil || *sub.LastVerifiedChargeID == charge.ID || sub.LastPaymentVerifiedAt == nil {
		return false
	}
	verified := *sub.LastPaymentVerifiedAt
	if created, ok := charge.CreatedAt(); ok && created.Before(verified) {
		return true
	}
	return firstSeen != nil && firstSeen.Before(verified)
}

func (s *gormStore) Activate(ctx context.Context, a *Activation) (*Activated, bool, error) {
	sub, charge := a.Subscription, a.Charge
	payment := &models.Payment{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Provider:       a.Provider,
		ChargeID:       charge.ID,
		Amount:         charge.Amount,
		Currency:       charge.Currency,
		Status:         types.PaymentStatusPaid,
		PaidAt:         &a.At,
	}

	var after models.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event := &models.PaymentEvent{
			ID:               tool.GenerateUUIDV7(),
			Provider:         a.Provider,
			ChargeID:         charge.ID,
			Status:           charge.Status,
			SubscriptionID:   sub.ID,
			VerifiedPayload:  datatypes.JSON(rawOrEmpty(charge.Raw)),
			ProcessingResult: "activated",
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
		if res.Error != nil {
			return fmt.Errorf("insert payment event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errAlreadyProcessed
		}

		before := *sub
		after = *sub
		startDate := a.At
		if sub.StartDate != nil {
			startDate = *sub.StartDate
		}
		nextBilling := NextBillingDate(sub, a.At)
		status := string(charge.Status)
		after.Status = types.SubscriptionStatusActive
		after.StartDate = &startDate
		after.NextBillingDate = &nextBilling
		after.LastVerifiedChargeID = &charge.ID
		after.LastPaymentVerifiedAt = &a.At
		after.LastPaymentStatus = &status
		after.PastDue = false
		after.PaymentFailedAt = nil
		after.FailureReason = nil
		after.CardToken = nil

		if err := tx.Model(&models.Subscription{}).Where("id = ?", sub.ID).Updates(map[string]any{
			"status":                   after.Status,
			"start_date":               after.StartDate,
			"next_billing_date":        after.NextBillingDate,
			"last_verified_charge_id":  charge.ID,
			"last_payment_verified_at": a.At,
			"last_payment_status":      status,
			"past_due":                 false,
			"payment_failed_at":        nil,
			"failure_reason":           nil,
			"card_token":               nil,
			"updated_at":               a.At,
		}).Error; err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "charge_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "currency", "status", "paid_at", "failure_reason", "updated_at"}),
		}).Create(payment).Error; err != nil {
			return fmt.Errorf("upsert payment: %w", err)
		}

		if sub.HasDiscount() {
			if err := recordRedemption(tx, sub, a.At); err != nil {
				return err
			}
		}

		return tx.Create(&models.SubscriptionLog{
			ID:             tool.GenerateUUIDV7(),
			SubscriptionID: sub.ID,
			UserID:         sub.UserID,
			Reason:         types.SubscriptionChangeReasonPaymentCaptured,
			Before:         datatypes.NewJSONType(&before),
			After:          datatypes.NewJSONType(&after),
			Extra:          datatypes.JSONMap{"charge_id": charge.ID},
		}).Error
	})
	if errors.Is(err, errAlreadyProcessed) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &Activated{Subscription: &after, Payment: payment}, true, nil
}

// recordRedemption stores the period's discount once and counts the code use
// only when the period row is new.
func recordRedemption(tx *gorm.DB, sub *models.Subscription, at time.Time) error {
	redemption := &models.DiscountRedemption{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: sub.ID,
		DiscountCodeID: *sub.DiscountCodeID,
		Period:         tool.MonthKey(at),
		AmountBefore:   sub.BasePrice,
		AmountAfter:    sub.BillingAmount,
		TotalSaved:     sub.BasePrice.Sub(sub.BillingAmount),
		PeriodAt:       at,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(redemption)
	if res.Error != nil {
		return fmt.Errorf("insert discount redemption: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	if err := tx.Model(&models.DiscountCode{}).
		Where("id = ?", *sub.DiscountCodeID).
		UpdateColumn("times_used", gorm.Expr("times_used + ?", 1)).Error; err != nil {
		return fmt.Errorf("increment discount usage: %w", err)
	}
	return nil
}

func (s *gormStore) RecordFailure(ctx context.Context, f *Failure) (FailureEffect, error) {
	sub, charge := f.Subscription, f.Charge
	reason := charge.FailureReason()
	status := string(charge.Status)

	effect := FailureApplied
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var first models.PaymentEvent
		q := tx.Where("provider = ? AND charge_id = ?", f.Provider, charge.ID).Order("created_at").Limit(1).Find(&first)
		if q.Error != nil {
			return fmt.Errorf("load payment events: %w", q.Error)
		}
		var firstSeen *time.Time
		if q.RowsAffected > 0 {
			firstSeen = &first.CreatedAt
		}
		result := "failed"
		if superseded(sub, charge, firstSeen) {
			effect, result = FailureSuperseded, "superseded"
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.PaymentEvent{
			ID:               tool.GenerateUUIDV7(),
			Provider:         f.Provider,
			ChargeID:         charge.ID,
			Status:           charge.Status,
			SubscriptionID:   sub.ID,
			VerifiedPayload:  datatypes.JSON(rawOrEmpty(charge.Raw)),
			ProcessingResult: result,
		})
		if res.Error != nil {
			return fmt.Errorf("insert payment event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errAlreadyProcessed
		}

		payment := &models.Payment{
			ID:             tool.GenerateUUIDV7(),
			SubscriptionID: sub.ID,
			UserID:         sub.UserID,
			Provider:       f.Provider,
			ChargeID:       charge.ID,
			Amount:         nonNegative(charge.Amount),
			Currency:       charge.Currency,
			Status:         charge.Status.PaymentStatus(),
			FailureReason:  &reason,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "charge_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "failure_reason", "updated_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Neq{Column: clause.Column{Table: models.Payment{}.TableName(), Name: "status"}, Value: types.PaymentStatusPaid},
			}},
		}).Create(payment).Error; err != nil {
			return fmt.Errorf("upsert payment: %w", err)
		}
		if effect == FailureSuperseded {
			return nil
		}

		updates := map[string]any{
			"payment_failed_at":   f.At,
			"failure_reason":      reason,
			"last_payment_status": status,
			"updated_at":          f.At,
		}
		before, after := *sub, *sub
		after.PaymentFailedAt = &f.At
		after.FailureReason = &reason
		after.LastPaymentStatus = &status
		switch sub.Status {
		case types.SubscriptionStatusActive:
			updates["status"] = types.SubscriptionStatusPastDue
			updates["past_due"] = true
			after.Status, after.PastDue = types.SubscriptionStatusPastDue, true
		case types.SubscriptionStatusPending:
			updates["status"] = types.SubscriptionStatusFailed
			after.Status = types.SubscriptionStatusFailed
		}
		if err := tx.Model(&models.Subscription{}).Where("id = ?", sub.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}

		return tx.Create(&models.SubscriptionLog{
			ID:             tool.GenerateUUIDV7(),
			SubscriptionID: sub.ID,
			UserID:         sub.UserID,
			Reason:         types.SubscriptionChangeReasonPaymentFailed,
			Before:         datatypes.NewJSONType(&before),
			After:          datatypes.NewJSONType(&after),
			Extra:          datatypes.JSONMap{"charge_id": charge.ID, "reason": reason},
		}).Error
	})
	if errors.Is(err, errAlreadyProcessed) {
		return FailureDuplicate, nil
	}
	if err != nil {
		return "", err
	}
	return effect, nil
}

func rawOrEmpty(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
