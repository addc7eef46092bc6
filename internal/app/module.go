package app

import (
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/internal/app/api/server"
	"github.com/fatflowers/coachpay/internal/app/service/assignment"
	"github.com/fatflowers/coachpay/internal/app/service/notification"
	"github.com/fatflowers/coachpay/internal/app/service/payment"
	"github.com/fatflowers/coachpay/internal/app/service/payout"
	"github.com/fatflowers/coachpay/internal/app/service/statistics"
	"github.com/fatflowers/coachpay/internal/app/service/subscription"
	"github.com/fatflowers/coachpay/internal/app/service/sweep"
	"github.com/fatflowers/coachpay/internal/app/service/verification"
	verificationlog "github.com/fatflowers/coachpay/internal/app/service/verification_log"
	"github.com/fatflowers/coachpay/internal/platform/cache"
	"github.com/fatflowers/coachpay/internal/platform/db"
	"github.com/fatflowers/coachpay/internal/platform/gateway"
	"github.com/fatflowers/coachpay/internal/platform/mail"
	"github.com/fatflowers/coachpay/pkg/config"
	"github.com/fatflowers/coachpay/pkg/logger"
	"github.com/fatflowers/coachpay/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// coreModule is shared by the API server and the scheduler.
var coreModule = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	cache.Module,
	mail.Module,
	notification.Module,
	payout.Module,
)

// Module is the HTTP API application.
var Module = fx.Options(
	coreModule,
	gateway.Module,
	verificationlog.Module,
	assignment.Module,
	verification.Module,
	subscription.Module,
	payment.Module,
	statistics.Module,
	fx.Provide(
		func(s *notification.Service) verification.Notifier { return s },
		func(s *verificationlog.Service) verification.AttemptLog { return s },
	),
	server.Module,
)

// CronModule is the scheduler application. It serves only metrics.
var CronModule = fx.Options(
	coreModule,
	sweep.Module,
	sweep.SchedulerModule,
	fx.Invoke(serveMetrics),
)

func serveMetrics(cfg *config.Config, log *zap.SugaredLogger) {
	if cfg.MetricsAddr == "" {
		return
	}
	metrics.Serve(cfg.MetricsAddr, log)
	log.Infow("metrics started", "addr", cfg.MetricsAddr)
}
