package payout

import "go.uber.org/fx"

// Module exposes the payout service via Fx.
var Module = fx.Options(
	fx.Provide(NewRepository),
	fx.Provide(NewService),
)
