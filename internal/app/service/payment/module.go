package payment

import "go.uber.org/fx"

// Module exposes the payments ledger via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
