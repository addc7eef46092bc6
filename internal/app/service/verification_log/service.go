package verification_log

import (
	"context"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/logctx"
	"github.com/fatflowers/coachpay/pkg/tool"
)

const queueSize = 256

type entry struct {
	ctx context.Context
	log *models.VerificationLog
}

// Service persists verification attempt logs off the request path. Writes
// go through one worker so the received row is stored before its outcome.
type Service struct {
	write func(ctx context.Context, l *models.VerificationLog) error
	log   *zap.SugaredLogger

	mu     sync.RWMutex
	closed bool
	queue  chan entry
	done   chan struct{}
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return newService(func(ctx context.Context, l *models.VerificationLog) error {
		return db.WithContext(ctx).Save(l).Error
	}, log)
}

func newService(write func(context.Context, *models.VerificationLog) error, log *zap.SugaredLogger) *Service {
	return &Service{
		write: write,
		log:   log,
		queue: make(chan entry, queueSize),
		done:  make(chan struct{}),
	}
}

// Save enqueues a log row. Nil input is ignored; a full or stopped queue
// drops the row.
func (s *Service) Save(ctx context.Context, l *models.VerificationLog) {
	if l == nil {
		return
	}
	if l.ID == "" {
		l.ID = tool.GenerateUUIDV7()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		logctx.FromCtx(ctx, s.log).Warnw("verification log stopped, dropping entry", "charge_id", l.ChargeID, "status", l.Status)
		return
	}
	select {
	case s.queue <- entry{ctx: context.WithoutCancel(ctx), log: l}:
	default:
		logctx.FromCtx(ctx, s.log).Warnw("verification log queue full, dropping entry", "charge_id", l.ChargeID, "status", l.Status)
	}
}

func (s *Service) run() {
	defer close(s.done)
	for e := range s.queue {
		if err := s.write(e.ctx, e.log); err != nil {
			logctx.FromCtx(e.ctx, s.log).Errorf("failed to save verification log: %v", err)
		}
	}
}

// Start launches the writer.
func (s *Service) Start() { go s.run() }

// Stop drains queued rows, giving up when ctx ends.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func register(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { s.Start(); return nil },
		OnStop:  s.Stop,
	})
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(register),
)
