package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/internal/app/service/assignment"
	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/config"
	"github.com/fatflowers/coachpay/pkg/types"
)

const (
	clientID = "0190a1b2-0000-7000-8000-000000000001"
	coachID  = "0190a1b2-0000-7000-8000-000000000002"
)

type memRepository struct {
	mu        sync.Mutex
	prices    map[string]*models.ServicePricing
	discounts map[string]*models.DiscountCode
	subs      map[string]*models.Subscription
	changes   []*Change
	applyErr  error
}

func newMemRepository() *memRepository {
	return &memRepository{
		prices: map[string]*models.ServicePricing{
			"online": {ServiceID: "online", ServiceType: types.ServiceTypeOnline, GrossPrice: decimal.NewFromInt(100), Active: true},
		},
		discounts: map[string]*models.DiscountCode{},
		subs:      map[string]*models.Subscription{},
	}
}

func (r *memRepository) ServicePrice(_ context.Context, id string) (*models.ServicePricing, error) {
	return r.prices[id], nil
}

func (r *memRepository) DiscountByCode(_ context.Context, code string) (*models.DiscountCode, error) {
	return r.discounts[code], nil
}

func (r *memRepository) Get(_ context.Context, id string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *memRepository) Apply(_ context.Context, c *Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applyErr != nil {
		return r.applyErr
	}
	cp := *c.After
	r.subs[cp.ID] = &cp
	r.changes = append(r.changes, c)
	return nil
}

type stubAssigner struct {
	decision *assignment.Decision
	err      error
	got      assignment.Request
}

func (a *stubAssigner) Assign(_ context.Context, req assignment.Request) (*assignment.Decision, error) {
	a.got = req
	return a.decision, a.err
}

type stubGateway struct {
	cancelled []string
	err       error
}

func (g *stubGateway) CancelSubscription(_ context.Context, id string) error {
	if g.err != nil {
		return g.err
	}
	g.cancelled = append(g.cancelled, id)
	return nil
}

type stubNotifier struct {
	assigned []string
}

func (n *stubNotifier) CoachAssigned(_ context.Context, sub *models.Subscription) {
	n.assigned = append(n.assigned, *sub.CoachID)
}

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	repo     *memRepository
	assigner *stubAssigner
	gateway  *stubGateway
	notifier *stubNotifier
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMemRepository(),
		assigner: &stubAssigner{decision: &assignment.Decision{CoachID: coachID, Path: assignment.PathScored}},
		gateway:  &stubGateway{},
		notifier: &stubNotifier{},
	}
	cfg := &config.Config{Sweep: config.SweepConfig{GraceDays: 7}}
	f.svc = NewService(cfg, f.repo, f.assigner, f.gateway, f.notifier, zap.NewNop().Sugar())
	f.svc.now = func() time.Time { return testNow }
	return f
}

func TestOnboardCreatesPendingAssignedSubscription(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Onboard(context.Background(), &OnboardRequest{
		UserID:     clientID,
		ServiceID:  "online",
		FocusAreas: []string{"strength", "nutrition"},
	})
	require.NoError(t, err)

	sub := res.Subscription
	require.Equal(t, types.SubscriptionStatusPending, sub.Status)
	require.True(t, decimal.NewFromInt(100).Equal(sub.BillingAmount))
	require.Equal(t, coachID, *sub.CoachID)
	require.False(t, sub.NeedsCoachAssignment)
	require.Equal(t, []string{"strength", "nutrition"}, f.assigner.got.FocusAreas)
	require.Equal(t, []string{coachID}, f.notifier.assigned)

	require.Len(t, f.repo.changes, 1)
	require.Nil(t, f.repo.changes[0].Before)
	require.Equal(t, types.SubscriptionChangeReasonOnboarding, f.repo.changes[0].Reason)
	require.Equal(t, "scored", f.repo.changes[0].Extra["assignment_path"])
}

func TestOnboardFlagsManualAssignment(t *testing.T) {
	f := newFixture()
	f.assigner.decision = &assignment.Decision{NeedsManualAssignment: true, Path: assignment.PathManual}

	res, err := f.svc.Onboard(context.Background(), &OnboardRequest{UserID: clientID, ServiceID: "online"})
	require.NoError(t, err)
	require.Nil(t, res.Subscription.CoachID)
	require.True(t, res.Subscription.NeedsCoachAssignment)
	require.Empty(t, f.notifier.assigned)
}

func TestOnboardAppliesDiscount(t *testing.T) {
	f := newFixture()
	pct := decimal.NewFromInt(15)
	f.repo.discounts["SPRING"] = &models.DiscountCode{ID: "dc_1", Code: "SPRING", PercentOff: &pct, Active: true}

	res, err := f.svc.Onboard(context.Background(), &OnboardRequest{UserID: clientID, ServiceID: "online", DiscountCode: "SPRING"})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(85).Equal(res.Subscription.BillingAmount))
	require.True(t, decimal.NewFromInt(100).Equal(res.Subscription.BasePrice))
	require.Equal(t, "dc_1", *res.Subscription.DiscountCodeID)
	require.True(t, res.Subscription.HasDiscount())
}

func TestOnboardRejectsUnusableDiscount(t *testing.T) {
	f := newFixture()
	maxUses := 1
	f.repo.discounts["ONCE"] = &models.DiscountCode{ID: "dc_1", Code: "ONCE", Active: true, MaxUses: &maxUses, TimesUsed: 1}

	_, err := f.svc.Onboard(context.Background(), &OnboardRequest{UserID: clientID, ServiceID: "online", DiscountCode: "ONCE"})
	require.ErrorIs(t, err, ErrInvalidDiscount)

	_, err = f.svc.Onboard(context.Background(), &OnboardRequest{UserID: clientID, ServiceID: "online", DiscountCode: "MISSING"})
	require.ErrorIs(t, err, ErrInvalidDiscount)
	require.Empty(t, f.repo.changes)
}

func TestOnboardUnknownService(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Onboard(context.Background(), &OnboardRequest{UserID: clientID, ServiceID: "yoga"})
	require.ErrorIs(t, err, ErrUnknownService)
}

func TestOnboardValidatesRequest(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Onboard(context.Background(), &OnboardRequest{UserID: "not-a-uuid"})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "must be a uuid", verr.Fields["user_id"])
	require.Equal(t, "is required", verr.Fields["service_id"])
	require.Contains(t, verr.Error(), "service_id: is required")
}

func TestOnboardAssignmentErrorAborts(t *testing.T) {
	f := newFixture()
	f.assigner.err = errors.New("db down")
	_, err := f.svc.Onboard(context.Background(), &OnboardRequest{UserID: clientID, ServiceID: "online"})
	require.Error(t, err)
	require.Empty(t, f.repo.changes)
}

func activeSub(next *time.Time, gatewayID *string) *models.Subscription {
	coach := coachID
	return &models.Subscription{
		ID:                    "sub_1",
		UserID:                clientID,
		CoachID:               &coach,
		ServiceID:             "online",
		Status:                types.SubscriptionStatusActive,
		NextBillingDate:       next,
		GatewaySubscriptionID: gatewayID,
	}
}

func TestCancelKeepsAccessUntilPaidThrough(t *testing.T) {
	f := newFixture()
	next := testNow.AddDate(0, 0, 20)
	gw := "sub_gw_1"
	f.repo.subs["sub_1"] = activeSub(&next, &gw)

	sub, err := f.svc.Cancel(context.Background(), "sub_1", "moving abroad")
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusCancelled, sub.Status)
	require.Equal(t, testNow, *sub.CancelledAt)
	require.Equal(t, next, *sub.GracePeriodEndsAt)
	require.Equal(t, "moving abroad", *sub.CancellationReason)
	require.Equal(t, []string{"sub_gw_1"}, f.gateway.cancelled)

	require.Len(t, f.repo.changes, 1)
	require.Equal(t, types.SubscriptionStatusActive, f.repo.changes[0].Before.Status)
	require.Equal(t, types.SubscriptionChangeReasonCancel, f.repo.changes[0].Reason)
}

func TestCancelUsesGraceDaysWhenBillingIsSooner(t *testing.T) {
	f := newFixture()
	next := testNow.AddDate(0, 0, 2)
	f.repo.subs["sub_1"] = activeSub(&next, nil)

	sub, err := f.svc.Cancel(context.Background(), "sub_1", "")
	require.NoError(t, err)
	require.Equal(t, testNow.AddDate(0, 0, 7), *sub.GracePeriodEndsAt)
	require.Nil(t, sub.CancellationReason)
	require.Empty(t, f.gateway.cancelled)
}

func TestCancelGatewayFailureLeavesSubscription(t *testing.T) {
	f := newFixture()
	gw := "sub_gw_1"
	f.repo.subs["sub_1"] = activeSub(nil, &gw)
	f.gateway.err = errors.New("gateway: unexpected http status")

	_, err := f.svc.Cancel(context.Background(), "sub_1", "")
	require.Error(t, err)
	require.Equal(t, types.SubscriptionStatusActive, f.repo.subs["sub_1"].Status)
	require.Empty(t, f.repo.changes)
}

func TestCancelTwice(t *testing.T) {
	f := newFixture()
	f.repo.subs["sub_1"] = activeSub(nil, nil)

	_, err := f.svc.Cancel(context.Background(), "sub_1", "")
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), "sub_1", "")
	require.ErrorIs(t, err, ErrAlreadyCancelled)

	_, err = f.svc.Cancel(context.Background(), "missing", "")
	require.ErrorIs(t, err, ErrNotFound)
}
