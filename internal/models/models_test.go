package models

import (
	"testing"
	"time"

	"github.com/fatflowers/coachpay/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestTableNames(t *testing.T) {
	require.Equal(t, "subscription", Subscription{}.TableName())
	require.Equal(t, "payment_event", PaymentEvent{}.TableName())
	require.Equal(t, "monthly_coach_payment", MonthlyCoachPayment{}.TableName())
	require.Equal(t, "discount_redemption", DiscountRedemption{}.TableName())
	require.Equal(t, "verification_log", VerificationLog{}.TableName())
}

func TestSpecialtyCodeNormalizedOnSave(t *testing.T) {
	p := &AddonPricing{AddonID: "a1", SpecialtyCode: "  Nutrition Plan "}
	require.NoError(t, p.BeforeSave(nil))
	require.Equal(t, "nutrition plan", p.SpecialtyCode)

	r := &AddonPayoutRule{SpecialtyCode: "YOGA"}
	require.NoError(t, r.BeforeSave(nil))
	require.Equal(t, "yoga", r.SpecialtyCode)
}

func TestServicePricingRejectsUnknownType(t *testing.T) {
	p := &ServicePricing{ServiceID: "s1", ServiceType: "1:1 online"}
	require.Error(t, p.BeforeSave(nil))

	p.ServiceType = types.ServiceTypeOnline
	require.NoError(t, p.BeforeSave(nil))
}

func TestCoachProfileSpecializationsLowered(t *testing.T) {
	p := &CoachProfile{Specializations: datatypes.NewJSONType([]string{" Strength", "", "MOBILITY"})}
	require.NoError(t, p.BeforeSave(nil))
	require.Equal(t, []string{"strength", "mobility"}, p.Specializations.Data())
}

func TestSubscriptionNeverStoresCardToken(t *testing.T) {
	token := "tok_123"
	s := &Subscription{CardToken: &token}
	require.NoError(t, s.BeforeSave(nil))
	require.Nil(t, s.CardToken)
}

func TestSubscriptionIsVerifiedFor(t *testing.T) {
	charge := "ch_123"
	s := &Subscription{Status: types.SubscriptionStatusActive, LastVerifiedChargeID: &charge}
	require.True(t, s.IsVerifiedFor("ch_123"))
	require.False(t, s.IsVerifiedFor("ch_999"))

	s.PastDue = true
	require.False(t, s.IsVerifiedFor("ch_123"))

	var nilSub *Subscription
	require.False(t, nilSub.IsVerifiedFor("ch_123"))
}

func TestDiscountCodeApply(t *testing.T) {
	pct := decimal.NewFromInt(10)
	amt := decimal.NewFromInt(5)

	require.True(t, decimal.NewFromInt(90).Equal((&DiscountCode{PercentOff: &pct}).Apply(decimal.NewFromInt(100))))
	require.True(t, decimal.NewFromInt(85).Equal((&DiscountCode{PercentOff: &pct, AmountOff: &amt}).Apply(decimal.NewFromInt(100))))
	require.True(t, decimal.Zero.Equal((&DiscountCode{AmountOff: &amt}).Apply(decimal.NewFromInt(3))))

	var none *DiscountCode
	require.True(t, decimal.NewFromInt(100).Equal(none.Apply(decimal.NewFromInt(100))))
}

func TestDiscountCodeUsable(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	one := 1

	require.True(t, (&DiscountCode{Active: true}).Usable(now))
	require.False(t, (&DiscountCode{Active: false}).Usable(now))
	require.False(t, (&DiscountCode{Active: true, ExpiresAt: &past}).Usable(now))
	require.False(t, (&DiscountCode{Active: true, MaxUses: &one, TimesUsed: 1}).Usable(now))
}
