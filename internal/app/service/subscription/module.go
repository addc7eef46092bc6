package subscription

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/internal/app/service/assignment"
	"github.com/fatflowers/coachpay/internal/app/service/notification"
	"github.com/fatflowers/coachpay/internal/platform/gateway"
	"github.com/fatflowers/coachpay/pkg/config"
)

type serviceParams struct {
	fx.In

	Config   *config.Config
	Repo     Repository
	Engine   *assignment.Engine
	Gateway  *gateway.Client
	Notifier *notification.Service
	Log      *zap.SugaredLogger
}

func newService(p serviceParams) *Service {
	return NewService(p.Config, p.Repo, p.Engine, p.Gateway, p.Notifier, p.Log)
}

// Module exposes the subscription service via Fx.
var Module = fx.Options(
	fx.Provide(NewRepository),
	fx.Provide(newService),
)
