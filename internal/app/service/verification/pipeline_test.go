package verification

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/internal/platform/gateway"
	"github.com/fatflowers/coachpay/pkg/config"
	"github.com/fatflowers/coachpay/pkg/metrics"
	"github.com/fatflowers/coachpay/pkg/types"
)

// memStore applies the same uniqueness rules as the database schema.
type memStore struct {
	mu          sync.Mutex
	subs        map[string]*models.Subscription
	events      map[string]bool
	firstSeen   map[string]time.Time
	payments    map[string]*models.Payment
	redemptions map[string]*models.DiscountRedemption
	timesUsed   map[string]int
	activations int
	failures    int
}

func newMemStore(subs ...*models.Subscription) *memStore {
	s := &memStore{
		subs:        map[string]*models.Subscription{},
		events:      map[string]bool{},
		firstSeen:   map[string]time.Time{},
		payments:    map[string]*models.Payment{},
		redemptions: map[string]*models.DiscountRedemption{},
		timesUsed:   map[string]int{},
	}
	for _, sub := range subs {
		s.subs[sub.ID] = sub
	}
	return s
}

func (s *memStore) GetSubscription(_ context.Context, id string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *memStore) HasPaidCharge(_ context.Context, provider types.PaymentProvider, chargeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events[string(provider)+"/"+chargeID+"/"+string(types.ChargeStatusCaptured)] {
		return true, nil
	}
	p, ok := s.payments[chargeID]
	return ok && p.Status == types.PaymentStatusPaid, nil
}

// seen records the first time a charge was processed and returns the
// earlier time, if any.
func (s *memStore) seen(provider types.PaymentProvider, chargeID string, at time.Time) *time.Time {
	key := string(provider) + "/" + chargeID
	if first, ok := s.firstSeen[key]; ok {
		return &first
	}
	s.firstSeen[key] = at
	return nil
}

func (s *memStore) Activate(_ context.Context, a *Activation) (*Activated, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(a.Provider) + "/" + a.Charge.ID + "/" + string(a.Charge.Status)
	if s.events[key] {
		return nil, false, nil
	}
	s.events[key] = true
	s.seen(a.Provider, a.Charge.ID, a.At)
	s.activations++

	sub := s.subs[a.Subscription.ID]
	next := NextBillingDate(sub, a.At)
	status := string(a.Charge.Status)
	chargeID := a.Charge.ID
	at := a.At
	if sub.StartDate == nil {
		sub.StartDate = &at
	}
	sub.Status = types.SubscriptionStatusActive
	sub.LastPaymentVerifiedAt = &at
	sub.LastVerifiedChargeID = &chargeID
	sub.LastPaymentStatus = &status
	sub.NextBillingDate = &next
	sub.PastDue = false
	sub.CardToken = nil

	p := &models.Payment{ChargeID: chargeID, SubscriptionID: sub.ID, Amount: a.Charge.Amount, Status: types.PaymentStatusPaid}
	s.payments[chargeID] = p
	if a.Subscription.HasDiscount() {
		k := sub.ID + "/2025-03"
		if _, ok := s.redemptions[k]; !ok {
			s.redemptions[k] = &models.DiscountRedemption{TotalSaved: sub.BasePrice.Sub(sub.BillingAmount)}
			s.timesUsed[*sub.DiscountCodeID]++
		}
	}
	after := *sub
	return &Activated{Subscription: &after, Payment: p}, true, nil
}

func (s *memStore) RecordFailure(_ context.Context, f *Failure) (FailureEffect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(f.Provider) + "/" + f.Charge.ID + "/" + string(f.Charge.Status)
	if s.events[key] {
		return FailureDuplicate, nil
	}
	s.events[key] = true
	firstSeen := s.seen(f.Provider, f.Charge.ID, f.At)
	if p, ok := s.payments[f.Charge.ID]; !ok || p.Status != types.PaymentStatusPaid {
		s.payments[f.Charge.ID] = &models.Payment{ChargeID: f.Charge.ID, Status: f.Charge.Status.PaymentStatus()}
	}

	sub := s.subs[f.Subscription.ID]
	if superseded(sub, f.Charge, firstSeen) {
		return FailureSuperseded, nil
	}
	s.failures++
	reason := f.Charge.FailureReason()
	sub.FailureReason = &reason
	switch sub.Status {
	case types.SubscriptionStatusActive:
		sub.Status, sub.PastDue = types.SubscriptionStatusPastDue, true
	case types.SubscriptionStatusPending:
		sub.Status = types.SubscriptionStatusFailed
	}
	return FailureApplied, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	charges map[string]*gateway.Charge
	err     error
	calls   int
}

func (g *fakeGateway) GetCharge(_ context.Context, id string) (*gateway.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	c, ok := g.charges[id]
	if !ok {
		return nil, gateway.ErrUnexpectedStatus
	}
	cp := *c
	return &cp, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	subs []models.Subscription
}

func (n *fakeNotifier) PaymentConfirmed(_ context.Context, sub *models.Subscription, p *models.Payment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, p.ChargeID)
	n.subs = append(n.subs, *sub)
}

type fakeAttempts struct {
	mu   sync.Mutex
	logs []models.VerificationLog
}

func (a *fakeAttempts) Save(_ context.Context, l *models.VerificationLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, *l)
}

type fixture struct {
	pipeline *Pipeline
	store    *memStore
	gateway  *fakeGateway
	notifier *fakeNotifier
	attempts *fakeAttempts
	metrics  *metrics.Business
}

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func pendingSub(id, amount string) *models.Subscription {
	return &models.Subscription{
		ID:            id,
		UserID:        "u_" + id,
		ServiceID:     "online",
		Status:        types.SubscriptionStatusPending,
		BasePrice:     decimal.RequireFromString(amount),
		BillingAmount: decimal.RequireFromString(amount),
	}
}

func captured(id, amount, currency string) *gateway.Charge {
	return &gateway.Charge{ID: id, Status: types.ChargeStatusCaptured, Amount: decimal.RequireFromString(amount), Currency: currency}
}

func newFixture(subs []*models.Subscription, charges ...*gateway.Charge) *fixture {
	f := &fixture{
		store:    newMemStore(subs...),
		gateway:  &fakeGateway{charges: lo.KeyBy(charges, func(c *gateway.Charge) string { return c.ID })},
		notifier: &fakeNotifier{},
		attempts: &fakeAttempts{},
		metrics:  metrics.NewNopBusiness(),
	}
	limiter := NewMemoryLimiter(testLimits)
	limiter.sleep = func(context.Context, time.Duration) error { return nil }
	f.pipeline = NewPipeline(Deps{
		Config:   &config.Config{Gateway: config.GatewayConfig{Currency: "KWD"}},
		Limiter:  limiter,
		Store:    f.store,
		Gateway:  f.gateway,
		Notifier: f.notifier,
		Attempts: f.attempts,
		Log:      zap.NewNop().Sugar(),
		Metrics:  f.metrics,
	})
	f.pipeline.now = func() time.Time { return testNow }
	return f
}

func TestVerifyCapturedActivates(t *testing.T) {
	f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")}, captured("ch_123", "100", "KWD"))

	res, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_123"})
	require.NoError(t, err)
	require.Equal(t, OutcomeActivated, res.Outcome)

	sub := f.store.subs["sub_1"]
	require.Equal(t, types.SubscriptionStatusActive, sub.Status)
	require.Equal(t, "ch_123", *sub.LastVerifiedChargeID)
	require.Equal(t, testNow.AddDate(0, 1, 0), *sub.NextBillingDate)
	require.Nil(t, sub.CardToken)
	require.Equal(t, []string{"ch_123"}, f.notifier.sent)
	notified := f.notifier.subs[0]
	require.Equal(t, types.SubscriptionStatusActive, notified.Status)
	require.NotNil(t, notified.NextBillingDate)
	require.Equal(t, testNow.AddDate(0, 1, 0), *notified.NextBillingDate)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.VerificationOutcomes.WithLabelValues(string(OutcomeActivated), "")))

	require.Len(t, f.attempts.logs, 2)
	require.Equal(t, models.VerificationLogStatusReceived, f.attempts.logs[0].Status)
	require.Equal(t, models.VerificationLogStatusHandled, f.attempts.logs[1].Status)
	require.Equal(t, f.attempts.logs[0].ID, f.attempts.logs[1].ID)
}

func TestVerifyTwiceActivatesOnce(t *testing.T) {
	f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")}, captured("ch_123", "100", "KWD"))
	ctx := context.Background()

	_, err := f.pipeline.Verify(ctx, Request{SubscriptionID: "sub_1", ChargeID: "ch_123"})
	require.NoError(t, err)
	res, err := f.pipeline.Verify(ctx, Request{SubscriptionID: "sub_1", ChargeID: "ch_123"})
	require.NoError(t, err)

	require.Equal(t, OutcomeAlreadyActive, res.Outcome)
	require.Equal(t, 1, f.store.activations)
	require.Len(t, f.store.payments, 1)
	require.Equal(t, 1, f.gateway.calls, "fast path must not query the gateway")
	require.Len(t, f.notifier.sent, 1)
}

func TestVerifyConcurrentCallsActivateOnce(t *testing.T) {
	f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")}, captured("ch_123", "100", "KWD"))

	var wg sync.WaitGroup
	outcomes := make(chan Outcome, 2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_123"})
			if err != nil {
				errs <- err
				return
			}
			outcomes <- res.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	var got []Outcome
	for o := range outcomes {
		got = append(got, o)
	}
	require.ElementsMatch(t, []Outcome{OutcomeActivated, OutcomeAlreadyActive}, got)
	require.Equal(t, 1, f.store.activations)
	require.Len(t, f.store.payments, 1)
}

func TestVerifyAmountMismatch(t *testing.T) {
	f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")}, captured("ch_456", "95", "KWD"))

	_, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_456"})
	require.ErrorIs(t, err, ErrAmountMismatch)
	require.Equal(t, ReasonAmountMismatch, ReasonOf(err))
	require.Equal(t, types.SubscriptionStatusPending, f.store.subs["sub_1"].Status)
	require.Zero(t, f.store.activations)
	require.Empty(t, f.notifier.sent)
	require.Equal(t, models.VerificationLogStatusHandled, f.attempts.logs[1].Status)
}

func TestVerifyAmountWithinTolerance(t *testing.T) {
	f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")}, captured("ch_1", "99.995", "KWD"))
	res, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeActivated, res.Outcome)
}

func TestVerifyCurrencyMismatch(t *testing.T) {
	f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")}, captured("ch_1", "100", "USD"))
	_, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
	require.ErrorIs(t, err, ErrCurrencyMismatch)
	require.Equal(t, ReasonCurrencyMismatch, ReasonOf(err))
}

func TestVerifyUnknownStatusIsInvalid(t *testing.T) {
	c := captured("ch_1", "100", "KWD")
	c.Status = "AUTHORIZED"
	f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")}, c)
	_, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
	require.ErrorIs(t, err, ErrInvalidStatus)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.VerificationOutcomes.WithLabelValues(string(OutcomeRejected), ReasonInvalidStatus)))
}

func TestVerifyChargeOfAnotherSubscription(t *testing.T) {
	c := captured("ch_1", "100", "KWD")
	c.Metadata = map[string]string{"subscription_id": "sub_other"}
	f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")}, c)
	_, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
	require.ErrorIs(t, err, ErrSubscriptionMismatch)
}

func TestVerifyPendingDoesNotMutate(t *testing.T) {
	c := captured("ch_1", "100", "KWD")
	c.Status = types.ChargeStatusInProgress
	f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")}, c)

	res, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
	require.NoError(t, err)
	require.Equal(t, OutcomePending, res.Outcome)
	require.Zero(t, f.store.activations)
	require.Zero(t, f.store.failures)
}

func TestVerifyFailedChargeOnPendingSubscription(t *testing.T) {
	c := captured("ch_1", "100", "KWD")
	c.Status = types.ChargeStatusDeclined
	f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")}, c)

	res, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.Equal(t, "declined", res.Reason)
	require.Equal(t, types.SubscriptionStatusFailed, f.store.subs["sub_1"].Status)
	require.Equal(t, types.PaymentStatusFailed, f.store.payments["ch_1"].Status)
}

func TestVerifyFailedRenewalMarksPastDue(t *testing.T) {
	sub := pendingSub("sub_1", "100")
	sub.Status = types.SubscriptionStatusActive
	prev := "ch_prev"
	sub.LastVerifiedChargeID = &prev
	c := captured("ch_renew", "100", "KWD")
	c.Status = types.ChargeStatusCancelled
	f := newFixture([]*models.Subscription{sub}, c)

	res, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_renew"})
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.Equal(t, types.SubscriptionStatusPastDue, f.store.subs["sub_1"].Status)
	require.True(t, f.store.subs["sub_1"].PastDue)
	require.Equal(t, types.PaymentStatusCancelled, f.store.payments["ch_renew"].Status)
}

func TestVerifyReplayedDeclineKeepsActive(t *testing.T) {
	declined := captured("ch_1", "100", "KWD")
	declined.Status = types.ChargeStatusDeclined
	f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")}, declined, captured("ch_2", "100", "KWD"))
	ctx := context.Background()

	res, err := f.pipeline.Verify(ctx, Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, res.Outcome)
	res, err = f.pipeline.Verify(ctx, Request{SubscriptionID: "sub_1", ChargeID: "ch_2"})
	require.NoError(t, err)
	require.Equal(t, OutcomeActivated, res.Outcome)

	res, err = f.pipeline.Verify(ctx, Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.Equal(t, "declined", res.Reason)

	sub := f.store.subs["sub_1"]
	require.Equal(t, types.SubscriptionStatusActive, sub.Status)
	require.False(t, sub.PastDue)
	require.Equal(t, 1, f.store.failures)
	require.Equal(t, types.PaymentStatusPaid, f.store.payments["ch_2"].Status)
}

func TestVerifyStaleFailureDoesNotRegress(t *testing.T) {
	t.Run("charge seen before the activation", func(t *testing.T) {
		failed := captured("ch_1", "100", "KWD")
		failed.Status = types.ChargeStatusFailed
		f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")}, failed, captured("ch_2", "100", "KWD"))
		now := testNow
		f.pipeline.now = func() time.Time { return now }
		ctx := context.Background()

		_, err := f.pipeline.Verify(ctx, Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
		require.NoError(t, err)
		now = now.Add(time.Minute)
		_, err = f.pipeline.Verify(ctx, Request{SubscriptionID: "sub_1", ChargeID: "ch_2"})
		require.NoError(t, err)

		// the gateway now reports the old charge with a different status
		f.gateway.mu.Lock()
		f.gateway.charges["ch_1"].Status = types.ChargeStatusDeclined
		f.gateway.mu.Unlock()
		now = now.Add(time.Minute)
		res, err := f.pipeline.Verify(ctx, Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
		require.NoError(t, err)
		require.Equal(t, OutcomeFailed, res.Outcome)

		sub := f.store.subs["sub_1"]
		require.Equal(t, types.SubscriptionStatusActive, sub.Status)
		require.False(t, sub.PastDue)
		require.Equal(t, 1, f.store.failures)
		require.Equal(t, types.PaymentStatusFailed, f.store.payments["ch_1"].Status)
	})

	t.Run("charge created before the activation", func(t *testing.T) {
		sub := pendingSub("sub_1", "100")
		sub.Status = types.SubscriptionStatusActive
		last, verified := "ch_2", testNow.Add(-time.Hour)
		sub.LastVerifiedChargeID = &last
		sub.LastPaymentVerifiedAt = &verified
		old := captured("ch_old", "100", "KWD")
		old.Status = types.ChargeStatusDeclined
		old.Transaction = &gateway.ChargeTransaction{Created: json.Number(strconv.FormatInt(testNow.Add(-2*time.Hour).UnixMilli(), 10))}
		f := newFixture([]*models.Subscription{sub}, old)

		res, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_old"})
		require.NoError(t, err)
		require.Equal(t, OutcomeFailed, res.Outcome)
		require.Equal(t, types.SubscriptionStatusActive, f.store.subs["sub_1"].Status)
		require.Zero(t, f.store.failures)
		require.Equal(t, types.PaymentStatusFailed, f.store.payments["ch_old"].Status)
	})
}

func TestVerifyRecoversPastDueOnSameCharge(t *testing.T) {
	sub := pendingSub("sub_1", "100")
	sub.Status = types.SubscriptionStatusPastDue
	sub.PastDue = true
	charge := "ch_1"
	sub.LastVerifiedChargeID = &charge
	f := newFixture([]*models.Subscription{sub}, captured("ch_2", "100", "KWD"))

	res, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_2"})
	require.NoError(t, err)
	require.Equal(t, OutcomeActivated, res.Outcome)
	require.False(t, f.store.subs["sub_1"].PastDue)
}

func TestVerifyGatewayErrorAborts(t *testing.T) {
	f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")})
	f.gateway.err = errors.New("dial tcp: i/o timeout")

	_, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
	require.Error(t, err)
	require.Empty(t, ReasonOf(err))
	require.Equal(t, types.SubscriptionStatusPending, f.store.subs["sub_1"].Status)
	require.Equal(t, models.VerificationLogStatusHandleFailed, f.attempts.logs[1].Status)
}

func TestVerifyLedgerShortCircuit(t *testing.T) {
	f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")}, captured("ch_1", "100", "KWD"))
	f.store.payments["ch_1"] = &models.Payment{ChargeID: "ch_1", Status: types.PaymentStatusPaid}

	res, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyActive, res.Outcome)
	require.Zero(t, f.store.activations)
}

func TestVerifyDiscountRecordsRedemption(t *testing.T) {
	sub := pendingSub("sub_1", "100")
	sub.BillingAmount = decimal.RequireFromString("90")
	code := "dc_1"
	sub.DiscountCodeID = &code
	f := newFixture([]*models.Subscription{sub}, captured("ch_1", "90", "KWD"))

	_, err := f.pipeline.Verify(context.Background(), Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
	require.NoError(t, err)
	require.Len(t, f.store.redemptions, 1)
	require.Equal(t, 1, f.store.timesUsed["dc_1"])
	for _, r := range f.store.redemptions {
		require.True(t, decimal.NewFromInt(10).Equal(r.TotalSaved))
	}
}

func TestVerifyRateLimited(t *testing.T) {
	c := captured("ch_1", "100", "KWD")
	c.Status = types.ChargeStatusInitiated
	f := newFixture([]*models.Subscription{pendingSub("sub_1", "100")}, c)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.pipeline.Verify(ctx, Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
		require.NoError(t, err)
	}
	_, err := f.pipeline.Verify(ctx, Request{SubscriptionID: "sub_1", ChargeID: "ch_1"})
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, 5, f.gateway.calls)
}

func TestVerifyRequiresIDs(t *testing.T) {
	f := newFixture(nil)
	_, err := f.pipeline.Verify(context.Background(), Request{ChargeID: "ch_1"})
	require.Error(t, err)

	_, err = f.pipeline.Verify(context.Background(), Request{SubscriptionID: "missing", ChargeID: "ch_1"})
	require.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestNextBillingDate(t *testing.T) {
	at := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	sub := &models.Subscription{Status: types.SubscriptionStatusPending}
	require.Equal(t, at.AddDate(0, 1, 0), NextBillingDate(sub, at))

	due := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	sub = &models.Subscription{Status: types.SubscriptionStatusActive, NextBillingDate: &due}
	require.Equal(t, due.AddDate(0, 1, 0), NextBillingDate(sub, at))

	stale := time.Date(2024, 11, 8, 0, 0, 0, 0, time.UTC)
	sub.NextBillingDate = &stale
	require.Equal(t, at.AddDate(0, 1, 0), NextBillingDate(sub, at))
}
