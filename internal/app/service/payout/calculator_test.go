package payout

import (
	"encoding/json"
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/types"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s, got %s", want, got.String())
}

var testPolicy = DefaultPolicy{ServicePayoutPercent: d("70"), AddonPayoutPercent: d("100")}

func coach(id string) models.User {
	return models.User{ID: id, Role: types.UserRoleCoach, Active: true}
}

func activeSub(id, user, coachID, service string) models.Subscription {
	return models.Subscription{
		ID:        id,
		UserID:    user,
		CoachID:   lo.ToPtr(coachID),
		ServiceID: service,
		Status:    types.SubscriptionStatusActive,
	}
}

func baseSnapshot() Snapshot {
	return Snapshot{
		Month: "2025-03",
		Services: []models.ServicePricing{
			{ServiceID: "online_1to1", Name: "1:1 Online", ServiceType: types.ServiceTypeOnline, GrossPrice: d("100"), Active: true},
			{ServiceID: "team", Name: "Team Plan", ServiceType: types.ServiceTypeTeam, GrossPrice: d("30"), Active: true},
		},
		ServiceRules: []models.PayoutRule{
			{ServiceID: "online_1to1", PayoutType: types.PayoutTypePercent, PayoutValue: d("70")},
			{ServiceID: "team", PayoutType: types.PayoutTypeFixed, PayoutValue: d("12.5")},
		},
		Coaches:     []models.User{coach("c1"), coach("c2")},
		Discounts:   map[string]decimal.Decimal{},
		ExemptUsers: map[string]bool{},
	}
}

func paymentFor(t *testing.T, r *Result, coachID string) *models.MonthlyCoachPayment {
	t.Helper()
	row, ok := lo.Find(r.Payments, func(p *models.MonthlyCoachPayment) bool { return p.CoachID == coachID })
	require.Truef(t, ok, "no payout row for %s", coachID)
	return row
}

func TestCalculateDiscountDoesNotReducePayout(t *testing.T) {
	snap := baseSnapshot()
	snap.Subscriptions = []models.Subscription{activeSub("s1", "u1", "c1", "online_1to1")}
	snap.Discounts["s1"] = d("10")

	res, warnings := Calculate(snap, testPolicy)
	require.Empty(t, warnings)

	row := paymentFor(t, res, "c1")
	requireDec(t, "100", row.GrossRevenue)
	requireDec(t, "10", row.DiscountsApplied)
	requireDec(t, "70", row.BasePayout)
	requireDec(t, "90", row.NetCollected)
	requireDec(t, "70", row.TotalPayment)

	requireDec(t, "90", res.Totals.NetCollected)
	requireDec(t, "70", res.Totals.TotalCoachPayout)
	requireDec(t, "20", res.Totals.PlatformRetained)
}

func TestCalculateEveryCoachGetsARow(t *testing.T) {
	res, _ := Calculate(baseSnapshot(), testPolicy)
	require.Len(t, res.Payments, 2)
	row := paymentFor(t, res, "c2")
	requireDec(t, "0", row.TotalPayment)
	require.Equal(t, 0, row.ClientCounts.Data()[types.ServiceTypeOnline])
	require.Len(t, row.ClientCounts.Data(), len(types.ServiceTypes))
}

func TestCalculatePaysDeactivatedCoach(t *testing.T) {
	snap := baseSnapshot()
	retired := coach("c3")
	retired.Active = false
	snap.Coaches = append(snap.Coaches, retired)
	snap.Subscriptions = []models.Subscription{activeSub("s1", "u1", "c3", "online_1to1")}

	res, warnings := Calculate(snap, testPolicy)
	require.Empty(t, warnings)
	row := paymentFor(t, res, "c3")
	requireDec(t, "100", row.GrossRevenue)
	requireDec(t, "70", row.BasePayout)
}

func TestCalculatePercentAndFixedRules(t *testing.T) {
	cases := []struct {
		name   string
		kind   types.PayoutType
		value  string
		gross  string
		payout string
	}{
		{name: "percent", kind: types.PayoutTypePercent, value: "70", gross: "100", payout: "70"},
		{name: "percent fractional", kind: types.PayoutTypePercent, value: "65", gross: "45.5", payout: "29.575"},
		{name: "fixed ignores gross", kind: types.PayoutTypeFixed, value: "40", gross: "100", payout: "40"},
		{name: "fixed with zero gross", kind: types.PayoutTypeFixed, value: "40", gross: "0", payout: "40"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := baseSnapshot()
			snap.Services[0].GrossPrice = d(tc.gross)
			snap.ServiceRules[0] = models.PayoutRule{ServiceID: "online_1to1", PayoutType: tc.kind, PayoutValue: d(tc.value)}
			snap.Subscriptions = []models.Subscription{activeSub("s1", "u1", "c1", "online_1to1")}

			res, _ := Calculate(snap, testPolicy)
			requireDec(t, tc.payout, paymentFor(t, res, "c1").BasePayout)
		})
	}
}

func TestCalculateMissingRuleFallsBackToPolicy(t *testing.T) {
	snap := baseSnapshot()
	snap.ServiceRules = nil
	snap.Subscriptions = []models.Subscription{activeSub("s1", "u1", "c1", "online_1to1")}

	res, warnings := Calculate(snap, testPolicy)
	requireDec(t, "70", paymentFor(t, res, "c1").BasePayout)
	require.Len(t, warnings, 1)
	require.Equal(t, WarningMissingPayoutRule, warnings[0].Kind)

	res, _ = Calculate(snap, DefaultPolicy{ServicePayoutPercent: d("50"), AddonPayoutPercent: d("100")})
	requireDec(t, "50", paymentFor(t, res, "c1").BasePayout)
}

func TestCalculateMissingPricingDefaultsToZero(t *testing.T) {
	snap := baseSnapshot()
	snap.Subscriptions = []models.Subscription{activeSub("s1", "u1", "c1", "retired_service")}

	res, warnings := Calculate(snap, testPolicy)
	row := paymentFor(t, res, "c1")
	requireDec(t, "0", row.GrossRevenue)
	requireDec(t, "0", row.BasePayout)
	kinds := lo.Map(warnings, func(w Warning, _ int) WarningKind { return w.Kind })
	require.ElementsMatch(t, []WarningKind{WarningMissingPricing, WarningMissingPayoutRule}, kinds)
}

func TestCalculateSkipsExemptAndUnassigned(t *testing.T) {
	snap := baseSnapshot()
	unassigned := activeSub("s3", "u3", "", "online_1to1")
	unassigned.CoachID = nil
	snap.Subscriptions = []models.Subscription{
		activeSub("s1", "u1", "c1", "online_1to1"),
		activeSub("s2", "vip", "c1", "online_1to1"),
		unassigned,
	}
	snap.ExemptUsers["vip"] = true

	res, warnings := Calculate(snap, testPolicy)
	requireDec(t, "100", paymentFor(t, res, "c1").GrossRevenue)
	require.Len(t, warnings, 1)
	require.Equal(t, WarningUnassigned, warnings[0].Kind)
}

func TestCalculateServiceTypeBuckets(t *testing.T) {
	snap := baseSnapshot()
	snap.Subscriptions = []models.Subscription{
		activeSub("s1", "u1", "c1", "online_1to1"),
		activeSub("s2", "u2", "c1", "online_1to1"),
		activeSub("s3", "u3", "c1", "team"),
	}
	res, _ := Calculate(snap, testPolicy)
	counts := paymentFor(t, res, "c1").ClientCounts.Data()
	require.Equal(t, 2, counts[types.ServiceTypeOnline])
	require.Equal(t, 1, counts[types.ServiceTypeTeam])
	require.Equal(t, 0, counts[types.ServiceTypeHybrid])
	requireDec(t, "152.5", paymentFor(t, res, "c1").BasePayout)
}

func TestCalculateAddons(t *testing.T) {
	snap := baseSnapshot()
	snap.Subscriptions = []models.Subscription{activeSub("s1", "u1", "c1", "online_1to1")}
	snap.AddonPrices = []models.AddonPricing{
		{AddonID: "nutrition", SpecialtyCode: "nutrition", GrossPrice: d("20"), Active: true},
		{AddonID: "yoga", SpecialtyCode: "Yoga", GrossPrice: d("15"), Active: true},
		{AddonID: "mobility", GrossPrice: d("8"), Active: true},
	}
	snap.AddonRules = []models.AddonPayoutRule{
		{AddonID: "nutrition", PayoutType: types.PayoutTypePercent, PayoutValue: d("50"), Recipient: types.PayoutRecipientPrimaryCoach},
		{AddonID: "yoga", SpecialtyCode: "yoga", PayoutType: types.PayoutTypeFixed, PayoutValue: d("10"), Recipient: types.PayoutRecipientStaff},
	}
	legacy := d("6")
	snap.Addons = []models.AddonSubscription{
		{ID: "a1", UserID: "u1", SubscriptionID: "s1", AddonID: lo.ToPtr("nutrition"), Recurring: true, Status: types.SubscriptionStatusActive},
		// legacy row resolved by specialty code, paid to a staff member without a coach record
		{ID: "a2", UserID: "u1", SubscriptionID: "s1", SpecialtyCode: " YOGA ", StaffUserID: lo.ToPtr("staff1"), Recurring: true, Status: types.SubscriptionStatusActive},
		{ID: "a3", UserID: "u1", SubscriptionID: "s1", AddonID: lo.ToPtr("mobility"), LegacyPayoutAmount: &legacy, Recurring: true, Status: types.SubscriptionStatusActive},
		{ID: "a4", UserID: "u1", SubscriptionID: "s1", AddonID: lo.ToPtr("mobility"), Recurring: true, Status: types.SubscriptionStatusActive},
	}

	res, warnings := Calculate(snap, testPolicy)

	c1 := paymentFor(t, res, "c1")
	// nutrition 50% of 20 + legacy 6 + mobility default 100% of 8
	requireDec(t, "24", c1.AddonPayout)
	requireDec(t, "70", c1.BasePayout)
	requireDec(t, "94", c1.TotalPayment)
	requireDec(t, "136", c1.GrossRevenue)

	staff := paymentFor(t, res, "staff1")
	requireDec(t, "10", staff.AddonPayout)
	requireDec(t, "15", staff.GrossRevenue)
	requireDec(t, "10", staff.TotalPayment)

	require.Len(t, warnings, 1)
	require.Equal(t, WarningMissingAddonRule, warnings[0].Kind)
	require.Equal(t, "a4", warnings[0].SubjectID)
}

func TestCalculateStaffRuleWithoutDistinctStaffPaysPrimaryCoach(t *testing.T) {
	snap := baseSnapshot()
	snap.Subscriptions = []models.Subscription{activeSub("s1", "u1", "c1", "online_1to1")}
	snap.AddonPrices = []models.AddonPricing{{AddonID: "pt", GrossPrice: d("10"), Active: true}}
	snap.AddonRules = []models.AddonPayoutRule{{AddonID: "pt", PayoutType: types.PayoutTypePercent, PayoutValue: d("100"), Recipient: types.PayoutRecipientStaff}}
	snap.Addons = []models.AddonSubscription{
		{ID: "a1", UserID: "u1", SubscriptionID: "s1", AddonID: lo.ToPtr("pt"), StaffUserID: lo.ToPtr("c1"), Recurring: true, Status: types.SubscriptionStatusActive},
		{ID: "a2", UserID: "u1", SubscriptionID: "s1", AddonID: lo.ToPtr("pt"), Recurring: true, Status: types.SubscriptionStatusActive},
	}

	res, _ := Calculate(snap, testPolicy)
	require.Len(t, res.Payments, 2)
	requireDec(t, "20", paymentFor(t, res, "c1").AddonPayout)
}

func TestCalculateIsDeterministic(t *testing.T) {
	snap := baseSnapshot()
	snap.Subscriptions = []models.Subscription{
		activeSub("s2", "u2", "c2", "team"),
		activeSub("s1", "u1", "c1", "online_1to1"),
		activeSub("s3", "u3", "c1", "team"),
	}
	snap.Discounts["s1"] = d("10")

	first, _ := Calculate(snap, testPolicy)

	snap.Subscriptions[0], snap.Subscriptions[2] = snap.Subscriptions[2], snap.Subscriptions[0]
	second, _ := Calculate(snap, testPolicy)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	require.JSONEq(t, string(a), string(b))
	require.Equal(t, "c1", first.Payments[0].CoachID)
	require.Equal(t, "c2", first.Payments[1].CoachID)
}
