package payout

import (
	"github.com/shopspring/decimal"

	"github.com/fatflowers/coachpay/pkg/config"
	"github.com/fatflowers/coachpay/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// DefaultPolicy holds the fallbacks applied when pricing rules are missing.
type DefaultPolicy struct {
	// ServicePayoutPercent applies to subscriptions whose service has no payout rule.
	ServicePayoutPercent decimal.Decimal
	// AddonPayoutPercent applies to add-ons with neither a rule nor a legacy amount.
	AddonPayoutPercent decimal.Decimal
}

func NewDefaultPolicy(cfg *config.Config) DefaultPolicy {
	return DefaultPolicy{
		ServicePayoutPercent: decimal.NewFromFloat(cfg.Payout.DefaultServicePercent),
		AddonPayoutPercent:   decimal.NewFromFloat(cfg.Payout.DefaultAddonPercent),
	}
}

// applyRule returns gross*value/100 for percent rules and value for fixed ones.
func applyRule(kind types.PayoutType, value, gross decimal.Decimal) decimal.Decimal {
	if kind == types.PayoutTypeFixed {
		return value
	}
	return percentOf(gross, value)
}

func percentOf(gross, pct decimal.Decimal) decimal.Decimal {
	return gross.Mul(pct).Div(hundred)
}
