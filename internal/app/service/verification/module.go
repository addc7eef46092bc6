package verification

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/internal/platform/gateway"
	"github.com/fatflowers/coachpay/pkg/config"
	"github.com/fatflowers/coachpay/pkg/metrics"
)

type pipelineParams struct {
	fx.In

	Config   *config.Config
	Limiter  Limiter
	Store    Store
	Gateway  *gateway.Client
	Notifier Notifier
	Attempts AttemptLog
	Log      *zap.SugaredLogger
	Metrics  *metrics.Business
}

func newPipeline(p pipelineParams) *Pipeline {
	return NewPipeline(Deps{
		Config:   p.Config,
		Limiter:  p.Limiter,
		Store:    p.Store,
		Gateway:  p.Gateway,
		Notifier: p.Notifier,
		Attempts: p.Attempts,
		Log:      p.Log,
		Metrics:  p.Metrics,
	})
}

// Module exposes the verification pipeline via Fx.
var Module = fx.Options(
	fx.Provide(NewLimiter),
	fx.Provide(NewStore),
	fx.Provide(newPipeline),
)
