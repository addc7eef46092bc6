package sweep

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/internal/app/service/notification"
	"github.com/fatflowers/coachpay/internal/app/service/payout"
	"github.com/fatflowers/coachpay/pkg/config"
	"github.com/fatflowers/coachpay/pkg/metrics"
)

type runnerParams struct {
	fx.In

	Config   *config.Config
	Repo     Repository
	Locker   Locker
	Notifier *notification.Service
	Payouts  *payout.Service
	Log      *zap.SugaredLogger
	Metrics  *metrics.Business
}

func newRunner(p runnerParams) *Runner {
	return NewRunner(p.Config, p.Repo, p.Locker, p.Notifier, p.Payouts, p.Log, p.Metrics)
}

// Module provides the maintenance runner.
var Module = fx.Options(
	fx.Provide(NewRepository),
	fx.Provide(NewLocker),
	fx.Provide(newRunner),
)

// SchedulerModule runs the jobs on their schedules for the app's lifetime.
var SchedulerModule = fx.Options(
	fx.Provide(NewScheduler),
	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { s.Start(); return nil },
			OnStop:  s.Stop,
		})
	}),
)
