package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/internal/platform/gateway"
	"github.com/fatflowers/coachpay/pkg/config"
	"github.com/fatflowers/coachpay/pkg/logctx"
	"github.com/fatflowers/coachpay/pkg/metrics"
	"github.com/fatflowers/coachpay/pkg/tool"
	"github.com/fatflowers/coachpay/pkg/types"
)

// amountTolerance is the largest accepted difference between the charged and
// the billed amount.
var amountTolerance = decimal.RequireFromString("0.01")

type Outcome string

const (
	OutcomeActivated     Outcome = "activated"
	OutcomeAlreadyActive Outcome = "already_active"
	OutcomePending       Outcome = "pending"
	OutcomeFailed        Outcome = "failed"
	OutcomeRejected      Outcome = "rejected"
	OutcomeError         Outcome = "error"
)

// Gateway is the part of the payment gateway the pipeline needs.
type Gateway interface {
	GetCharge(ctx context.Context, chargeID string) (*gateway.Charge, error)
}

// Notifier sends the payment confirmation. Implementations must not block.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, sub *models.Subscription, payment *models.Payment)
}

// AttemptLog records verification attempts. Implementations must not block.
type AttemptLog interface {
	Save(ctx context.Context, log *models.VerificationLog)
}

type Request struct {
	SubscriptionID string                       `json:"subscription_id"`
	ChargeID       string                       `json:"charge_id"`
	Source         models.VerificationLogSource `json:"source"`
}

type Result struct {
	Outcome        Outcome            `json:"outcome"`
	Reason         string             `json:"reason,omitempty"`
	SubscriptionID string             `json:"subscription_id"`
	ChargeID       string             `json:"charge_id"`
	ChargeStatus   types.ChargeStatus `json:"charge_status,omitempty"`
}

type Pipeline struct {
	provider types.PaymentProvider
	currency string
	limiter  Limiter
	store    Store
	gateway  Gateway
	notifier Notifier
	attempts AttemptLog
	log      *zap.SugaredLogger
	metrics  *metrics.Business
	now      func() time.Time
}

type Deps struct {
	Config   *config.Config
	Limiter  Limiter
	Store    Store
	Gateway  Gateway
	Notifier Notifier
	Attempts AttemptLog
	Log      *zap.SugaredLogger
	Metrics  *metrics.Business
}

func NewPipeline(d Deps) *Pipeline {
	return &Pipeline{
		provider: types.PaymentProviderTap,
		currency: strings.ToUpper(d.Config.Gateway.Currency),
		limiter:  d.Limiter,
		store:    d.Store,
		gateway:  d.Gateway,
		notifier: d.Notifier,
		attempts: d.Attempts,
		log:      d.Log,
		metrics:  d.Metrics,
		now:      time.Now,
	}
}

// Verify drives one subscription towards active using the gateway's view of
// a charge. Rejections are returned as errors matched by ReasonOf.
func (p *Pipeline) Verify(ctx context.Context, req Request) (*Result, error) {
	if req.SubscriptionID == "" || req.ChargeID == "" {
		return nil, errors.New("subscription_id and charge_id are required")
	}
	if req.Source == "" {
		req.Source = models.VerificationLogSourceClient
	}
	log := logctx.FromCtx(ctx, p.log).With("subscription_id", req.SubscriptionID, "charge_id", req.ChargeID)

	attempt := p.startAttempt(ctx, req)
	res, err := p.verify(ctx, log, req)
	p.finishAttempt(ctx, attempt, res, err)

	outcome, reason := OutcomeError, ReasonOf(err)
	switch {
	case err == nil:
		outcome, reason = res.Outcome, res.Reason
	case IsRejection(err):
		outcome = OutcomeRejected
		log.Warnw("payment verification rejected", "reason", reason, "err", err)
	case errors.Is(err, ErrRateLimited):
		outcome = OutcomeRejected
	default:
		log.Errorw("payment verification failed", "err", err)
	}
	p.metrics.VerificationOutcomes.WithLabelValues(string(outcome), reason).Inc()
	return res, err
}

func (p *Pipeline) verify(ctx context.Context, log *zap.SugaredLogger, req Request) (*Result, error) {
	if err := p.limiter.Wait(ctx, req.ChargeID); err != nil {
		return nil, err
	}

	result := &Result{SubscriptionID: req.SubscriptionID, ChargeID: req.ChargeID}

	sub, err := p.store.GetSubscription(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.IsVerifiedFor(req.ChargeID) {
		result.Outcome = OutcomeAlreadyActive
		return result, nil
	}

	charge, err := p.gateway.GetCharge(ctx, req.ChargeID)
	if err != nil {
		return nil, fmt.Errorf("query gateway: %w", err)
	}
	if charge.ID == "" {
		charge.ID = req.ChargeID
	}
	result.ChargeStatus = charge.Status
	if owner := charge.Metadata["subscription_id"]; owner != "" && owner != sub.ID {
		return nil, ErrSubscriptionMismatch
	}

	switch {
	case charge.Status.IsPending():
		log.Infow("charge still pending", "status", charge.Status)
		result.Outcome = OutcomePending
		return result, nil
	case charge.Status.IsFailure():
		effect, err := p.store.RecordFailure(ctx, &Failure{Provider: p.provider, Subscription: sub, Charge: charge, At: p.now()})
		if err != nil {
			return nil, fmt.Errorf("record payment failure: %w", err)
		}
		log.Infow("charge failed", "status", charge.Status, "reason", charge.FailureReason(), "effect", effect)
		result.Outcome = OutcomeFailed
		result.Reason = strings.ToLower(string(charge.Status))
		return result, nil
	}

	if err := p.validate(sub, charge); err != nil {
		return nil, err
	}

	paid, err := p.store.HasPaidCharge(ctx, p.provider, charge.ID)
	if err != nil {
		return nil, fmt.Errorf("check payment ledger: %w", err)
	}
	if paid {
		result.Outcome = OutcomeAlreadyActive
		return result, nil
	}

	done, activated, err := p.store.Activate(ctx, &Activation{Provider: p.provider, Subscription: sub, Charge: charge, At: p.now()})
	if err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}
	if !activated {
		result.Outcome = OutcomeAlreadyActive
		return result, nil
	}

	log.Infow("subscription activated", "amount", charge.Amount.String(), "currency", charge.Currency)
	if p.notifier != nil {
		p.notifier.PaymentConfirmed(ctx, done.Subscription, done.Payment)
	}
	result.Outcome = OutcomeActivated
	return result, nil
}

func (p *Pipeline) validate(sub *models.Subscription, charge *gateway.Charge) error {
	if charge.Status != types.ChargeStatusCaptured {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, charge.Status)
	}
	if charge.Amount.Sub(sub.BillingAmount).Abs().GreaterThan(amountTolerance) {
		return fmt.Errorf("%w: charged %s, expected %s", ErrAmountMismatch, charge.Amount, sub.BillingAmount)
	}
	if !strings.EqualFold(charge.Currency, p.currency) {
		return fmt.Errorf("%w: %s", ErrCurrencyMismatch, charge.Currency)
	}
	return nil
}

func (p *Pipeline) startAttempt(ctx context.Context, req Request) *models.VerificationLog {
	if p.attempts == nil {
		return nil
	}
	data, _ := json.Marshal(req)
	entry := &models.VerificationLog{
		ID:             tool.GenerateUUIDV7(),
		ProviderID:     p.provider,
		Source:         req.Source,
		SubscriptionID: &req.SubscriptionID,
		TraceID:        logctx.TraceID(ctx),
		ChargeID:       req.ChargeID,
		ReceivedAt:     p.now(),
		Data:           datatypes.JSON(data),
		Status:         models.VerificationLogStatusReceived,
	}
	cp := *entry
	p.attempts.Save(ctx, &cp)
	return entry
}

type attemptResult struct {
	Result *Result `json:"result,omitempty"`
	Reason string  `json:"reason,omitempty"`
	Error  string  `json:"error,omitempty"`
}

func (p *Pipeline) finishAttempt(ctx context.Context, entry *models.VerificationLog, res *Result, err error) {
	if entry == nil {
		return
	}
	out := attemptResult{Result: res}
	entry.Status = models.VerificationLogStatusHandled
	if err != nil {
		out.Reason = ReasonOf(err)
		out.Error = err.Error()
		if !IsRejection(err) {
			entry.Status = models.VerificationLogStatusHandleFailed
		}
	}
	body, _ := json.Marshal(out)
	raw := datatypes.JSON(body)
	entry.Result = &raw
	p.attempts.Save(ctx, entry)
}
