package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/internal/app/service/assignment"
	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/config"
	"github.com/fatflowers/coachpay/pkg/logctx"
	"github.com/fatflowers/coachpay/pkg/tool"
	"github.com/fatflowers/coachpay/pkg/types"
)

var (
	ErrNotFound         = errors.New("subscription not found")
	ErrUnknownService   = errors.New("service is not offered")
	ErrInvalidDiscount  = errors.New("discount code is not valid")
	ErrAlreadyCancelled = errors.New("subscription is already cancelled")
)

// Assigner picks a coach for a new subscription.
type Assigner interface {
	Assign(ctx context.Context, req assignment.Request) (*assignment.Decision, error)
}

// RecurringCanceller stops the recurring charge at the payment gateway.
type RecurringCanceller interface {
	CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error
}

// CoachNotifier is told when a coach receives a new client. Must not block.
type CoachNotifier interface {
	CoachAssigned(ctx context.Context, sub *models.Subscription)
}

type OnboardRequest struct {
	UserID           string   `json:"user_id" validate:"required,uuid"`
	ServiceID        string   `json:"service_id" validate:"required,max=64"`
	DiscountCode     string   `json:"discount_code,omitempty" validate:"omitempty,max=64"`
	FocusAreas       []string `json:"focus_areas,omitempty" validate:"max=20,dive,required,max=64"`
	PreferredCoachID string   `json:"preferred_coach_id,omitempty" validate:"omitempty,uuid"`
}

type OnboardResult struct {
	Subscription *models.Subscription `json:"subscription"`
	Assignment   *assignment.Decision `json:"assignment"`
	Discount     *models.DiscountCode `json:"discount,omitempty"`
}

type Service struct {
	repo      Repository
	assigner  Assigner
	gateway   RecurringCanceller
	notifier  CoachNotifier
	validate  *validator.Validate
	graceDays int
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewService(cfg *config.Config, repo Repository, assigner Assigner, gateway RecurringCanceller, notifier CoachNotifier, log *zap.SugaredLogger) *Service {
	return &Service{
		repo:      repo,
		assigner:  assigner,
		gateway:   gateway,
		notifier:  notifier,
		validate:  newValidator(),
		graceDays: cfg.Sweep.GraceDays,
		log:       log,
		now:       time.Now,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*models.Subscription, error) {
	return s.repo.Get(ctx, id)
}

// Onboard creates a pending subscription priced from the service catalogue
// and assigns it a coach. The subscription turns active once its first charge
// is verified.
func (s *Service) Onboard(ctx context.Context, req *OnboardRequest) (*OnboardResult, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}
	log := logctx.FromCtx(ctx, s.log).With("user_id", req.UserID, "service_id", req.ServiceID)
	now := s.now()

	price, err := s.repo.ServicePrice(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("load service price: %w", err)
	}
	if price == nil {
		return nil, ErrUnknownService
	}

	sub := &models.Subscription{
		ID:            tool.GenerateUUIDV7(),
		UserID:        req.UserID,
		ServiceID:     req.ServiceID,
		Status:        types.SubscriptionStatusPending,
		BasePrice:     price.GrossPrice,
		BillingAmount: price.GrossPrice,
	}

	var discount *models.DiscountCode
	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		discount, err = s.repo.DiscountByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("load discount code: %w", err)
		}
		if !discount.Usable(now) {
			return nil, ErrInvalidDiscount
		}
		sub.DiscountCodeID = &discount.ID
		sub.BillingAmount = discount.Apply(price.GrossPrice)
	}

	decision, err := s.assigner.Assign(ctx, assignment.Request{
		ServiceID:        req.ServiceID,
		FocusAreas:       req.FocusAreas,
		PreferredCoachID: req.PreferredCoachID,
	})
	if err != nil {
		return nil, fmt.Errorf("assign coach: %w", err)
	}
	if decision.NeedsManualAssignment {
		sub.NeedsCoachAssignment = true
	} else {
		coachID := decision.CoachID
		sub.CoachID = &coachID
	}

	extra := map[string]any{"assignment_path": string(decision.Path)}
	if discount != nil {
		extra["discount_code"] = discount.Code
	}
	if err := s.repo.Apply(ctx, &Change{After: sub, Reason: types.SubscriptionChangeReasonOnboarding, Extra: extra}); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	log.Infow("subscription created",
		"subscription_id", sub.ID,
		"billing_amount", sub.BillingAmount.String(),
		"coach_id", decision.CoachID,
		"assignment_path", decision.Path,
	)

	if sub.CoachID != nil && s.notifier != nil {
		s.notifier.CoachAssigned(ctx, sub)
	}
	return &OnboardResult{Subscription: sub, Assignment: decision, Discount: discount}, nil
}

// Cancel stops billing and keeps access until the grace period ends. The
// gateway is told first so a failure there leaves the subscription untouched.
func (s *Service) Cancel(ctx context.Context, id, reason string) (*models.Subscription, error) {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == types.SubscriptionStatusCancelled {
		return sub, ErrAlreadyCancelled
	}
	log := logctx.FromCtx(ctx, s.log).With("subscription_id", sub.ID)

	if sub.GatewaySubscriptionID != nil && *sub.GatewaySubscriptionID != "" {
		if err := s.gateway.CancelSubscription(ctx, *sub.GatewaySubscriptionID); err != nil {
			return nil, fmt.Errorf("cancel recurring charge: %w", err)
		}
	}

	now := s.now()
	before := *sub
	grace := GracePeriodEnd(sub, now, s.graceDays)
	sub.Status = types.SubscriptionStatusCancelled
	sub.CancelledAt = &now
	sub.GracePeriodEndsAt = &grace
	if reason = strings.TrimSpace(reason); reason != "" {
		sub.CancellationReason = &reason
	}

	if err := s.repo.Apply(ctx, &Change{Before: &before, After: sub, Reason: types.SubscriptionChangeReasonCancel, Extra: map[string]any{"reason": reason}}); err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}
	log.Infow("subscription cancelled", "grace_period_ends_at", grace, "previous_status", before.Status)
	return sub, nil
}

// GracePeriodEnd is the later of the paid-through date and now plus graceDays.
func GracePeriodEnd(sub *models.Subscription, now time.Time, graceDays int) time.Time {
	end := now.AddDate(0, 0, graceDays)
	if sub.NextBillingDate != nil && sub.NextBillingDate.After(end) {
		end = *sub.NextBillingDate
	}
	return end
}
