package payout

import (
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/types"
)

// Snapshot is everything the calculator reads for one month.
type Snapshot struct {
	Month         string
	Services      []models.ServicePricing
	ServiceRules  []models.PayoutRule
	AddonPrices   []models.AddonPricing
	AddonRules    []models.AddonPayoutRule
	Coaches       []models.User
	Subscriptions []models.Subscription
	Addons        []models.AddonSubscription
	// Discounts is the redeemed amount per subscription id for the month.
	Discounts map[string]decimal.Decimal
	// ExemptUsers are clients excluded from payouts.
	ExemptUsers map[string]bool
}

type WarningKind string

const (
	WarningMissingPricing      WarningKind = "missing_pricing"
	WarningMissingPayoutRule   WarningKind = "missing_payout_rule"
	WarningMissingAddonPricing WarningKind = "missing_addon_pricing"
	WarningMissingAddonRule    WarningKind = "missing_addon_rule"
	WarningUnassigned          WarningKind = "unassigned_subscription"
	WarningUnknownCoach        WarningKind = "unknown_coach"
	WarningOrphanAddon         WarningKind = "orphan_addon"
)

// Warning is a configuration gap the calculator degraded around.
type Warning struct {
	Kind      WarningKind `json:"kind"`
	SubjectID string      `json:"subject_id"`
	Detail    string      `json:"detail,omitempty"`
}

type Totals struct {
	GrossRevenue     decimal.Decimal `json:"gross_revenue"`
	DiscountsApplied decimal.Decimal `json:"discounts_applied"`
	NetCollected     decimal.Decimal `json:"net_collected"`
	TotalCoachPayout decimal.Decimal `json:"total_coach_payout"`
	// PlatformRetained is NetCollected minus TotalCoachPayout. It is reported
	// only; discounts are absorbed by the platform, not the coach.
	PlatformRetained decimal.Decimal `json:"platform_retained"`
}

type Result struct {
	Month    string                        `json:"month"`
	Payments []*models.MonthlyCoachPayment `json:"payments"`
	Totals   Totals                        `json:"totals"`
}

type accumulator struct {
	coachID   string
	gross     decimal.Decimal
	discounts decimal.Decimal
	base      decimal.Decimal
	addon     decimal.Decimal
	counts    map[types.ServiceType]int
	breakdown []models.ClientBreakdownEntry
}

func newAccumulator(coachID string) *accumulator {
	counts := make(map[types.ServiceType]int, len(types.ServiceTypes))
	for _, t := range types.ServiceTypes {
		counts[t] = 0
	}
	return &accumulator{coachID: coachID, counts: counts}
}

// Calculate computes one payout row per coach. It is pure: the same snapshot
// always yields the same rows in the same order.
func Calculate(snap Snapshot, policy DefaultPolicy) (*Result, []Warning) {
	var warnings []Warning
	warn := func(kind WarningKind, id, detail string) {
		warnings = append(warnings, Warning{Kind: kind, SubjectID: id, Detail: detail})
	}

	pricing := lo.KeyBy(snap.Services, func(p models.ServicePricing) string { return p.ServiceID })
	rules := lo.KeyBy(snap.ServiceRules, func(r models.PayoutRule) string { return r.ServiceID })
	addonPriceByID := lo.KeyBy(snap.AddonPrices, func(p models.AddonPricing) string { return p.AddonID })
	addonRuleByID := lo.KeyBy(snap.AddonRules, func(r models.AddonPayoutRule) string { return r.AddonID })
	addonPriceByCode := make(map[string]models.AddonPricing)
	for _, p := range snap.AddonPrices {
		if code := models.NormalizeSpecialtyCode(p.SpecialtyCode); code != "" {
			addonPriceByCode[code] = p
		}
	}
	addonRuleByCode := make(map[string]models.AddonPayoutRule)
	for _, r := range snap.AddonRules {
		if code := models.NormalizeSpecialtyCode(r.SpecialtyCode); code != "" {
			addonRuleByCode[code] = r
		}
	}

	accs := make(map[string]*accumulator, len(snap.Coaches))
	for _, c := range snap.Coaches {
		accs[c.ID] = newAccumulator(c.ID)
	}

	subs := sortedByID(snap.Subscriptions, func(s models.Subscription) string { return s.ID })
	subByID := make(map[string]models.Subscription, len(subs))
	for _, sub := range subs {
		subByID[sub.ID] = sub
		if snap.ExemptUsers[sub.UserID] {
			continue
		}
		if sub.CoachID == nil {
			warn(WarningUnassigned, sub.ID, "")
			continue
		}
		acc, ok := accs[*sub.CoachID]
		if !ok {
			warn(WarningUnknownCoach, sub.ID, *sub.CoachID)
			continue
		}

		gross := decimal.Zero
		price, hasPrice := pricing[sub.ServiceID]
		if hasPrice {
			gross = price.GrossPrice
		} else {
			warn(WarningMissingPricing, sub.ID, sub.ServiceID)
		}

		var payout decimal.Decimal
		if rule, ok := rules[sub.ServiceID]; ok {
			payout = applyRule(rule.PayoutType, rule.PayoutValue, gross)
		} else {
			warn(WarningMissingPayoutRule, sub.ID, sub.ServiceID)
			payout = percentOf(gross, policy.ServicePayoutPercent)
		}

		discount := snap.Discounts[sub.ID]
		acc.gross = acc.gross.Add(gross)
		acc.discounts = acc.discounts.Add(discount)
		acc.base = acc.base.Add(payout)
		if hasPrice {
			acc.counts[price.ServiceType]++
		}
		acc.breakdown = append(acc.breakdown, models.ClientBreakdownEntry{
			SubscriptionID: sub.ID,
			UserID:         sub.UserID,
			ServiceID:      sub.ServiceID,
			ServiceType:    price.ServiceType,
			GrossPrice:     gross.Round(3),
			Discount:       discount.Round(3),
			Payout:         payout.Round(3),
		})
	}

	for _, addon := range sortedByID(snap.Addons, func(a models.AddonSubscription) string { return a.ID }) {
		if snap.ExemptUsers[addon.UserID] {
			continue
		}
		code := models.NormalizeSpecialtyCode(addon.SpecialtyCode)

		var (
			price    models.AddonPricing
			hasPrice bool
			rule     models.AddonPayoutRule
			hasRule  bool
		)
		if addon.AddonID != nil {
			price, hasPrice = addonPriceByID[*addon.AddonID]
			rule, hasRule = addonRuleByID[*addon.AddonID]
		}
		if !hasPrice && code != "" {
			price, hasPrice = addonPriceByCode[code]
		}
		if !hasRule && code != "" {
			rule, hasRule = addonRuleByCode[code]
		}

		gross := decimal.Zero
		if hasPrice {
			gross = price.GrossPrice
		} else {
			warn(WarningMissingAddonPricing, addon.ID, addonLabel(addon))
		}

		var payout decimal.Decimal
		switch {
		case hasRule:
			payout = applyRule(rule.PayoutType, rule.PayoutValue, gross)
		case addon.LegacyPayoutAmount != nil:
			payout = *addon.LegacyPayoutAmount
		default:
			warn(WarningMissingAddonRule, addon.ID, addonLabel(addon))
			payout = percentOf(gross, policy.AddonPayoutPercent)
		}

		var primaryCoach string
		if parent, ok := subByID[addon.SubscriptionID]; ok && parent.CoachID != nil {
			primaryCoach = *parent.CoachID
		}
		recipient := primaryCoach
		toStaff := hasRule && rule.Recipient == types.PayoutRecipientStaff &&
			addon.StaffUserID != nil && *addon.StaffUserID != primaryCoach
		if toStaff {
			recipient = *addon.StaffUserID
		}
		if recipient == "" {
			warn(WarningOrphanAddon, addon.ID, addon.SubscriptionID)
			continue
		}

		acc, ok := accs[recipient]
		if !ok {
			if !toStaff {
				warn(WarningUnknownCoach, addon.ID, recipient)
				continue
			}
			acc = newAccumulator(recipient)
			accs[recipient] = acc
		}
		acc.addon = acc.addon.Add(payout)
		acc.gross = acc.gross.Add(gross)
		acc.breakdown = append(acc.breakdown, models.ClientBreakdownEntry{
			SubscriptionID: addon.SubscriptionID,
			UserID:         addon.UserID,
			GrossPrice:     gross.Round(3),
			Discount:       decimal.Zero,
			Payout:         payout.Round(3),
			Addon:          addonLabel(addon),
		})
	}

	result := &Result{Month: snap.Month}
	ids := lo.Keys(accs)
	sort.Strings(ids)
	for _, id := range ids {
		acc := accs[id]
		row := &models.MonthlyCoachPayment{
			PaymentMonth:     snap.Month,
			CoachID:          id,
			ClientBreakdown:  datatypes.NewJSONType(breakdownOrEmpty(acc.breakdown)),
			ClientCounts:     datatypes.NewJSONType(acc.counts),
			GrossRevenue:     acc.gross.Round(3),
			DiscountsApplied: acc.discounts.Round(3),
			NetCollected:     acc.gross.Sub(acc.discounts).Round(3),
			BasePayout:       acc.base.Round(3),
			AddonPayout:      acc.addon.Round(3),
			TotalPayment:     acc.base.Add(acc.addon).Round(3),
		}
		result.Payments = append(result.Payments, row)

		result.Totals.GrossRevenue = result.Totals.GrossRevenue.Add(row.GrossRevenue)
		result.Totals.DiscountsApplied = result.Totals.DiscountsApplied.Add(row.DiscountsApplied)
		result.Totals.NetCollected = result.Totals.NetCollected.Add(row.NetCollected)
		result.Totals.TotalCoachPayout = result.Totals.TotalCoachPayout.Add(row.TotalPayment)
	}
	result.Totals.PlatformRetained = result.Totals.NetCollected.Sub(result.Totals.TotalCoachPayout)
	return result, warnings
}

func addonLabel(a models.AddonSubscription) string {
	if a.AddonID != nil {
		return *a.AddonID
	}
	return a.SpecialtyCode
}

func breakdownOrEmpty(b []models.ClientBreakdownEntry) []models.ClientBreakdownEntry {
	if b == nil {
		return []models.ClientBreakdownEntry{}
	}
	return b
}

func sortedByID[T any](in []T, id func(T) string) []T {
	out := make([]T, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
