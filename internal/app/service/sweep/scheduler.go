package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/pkg/config"
)

const jobTimeout = 30 * time.Minute

// Job is one scheduled maintenance task.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Jobs lists the maintenance jobs with their configured schedules.
func Jobs(cfg *config.Config, r *Runner) []Job {
	counted := func(f func(context.Context) (int, error)) func(context.Context) error {
		return func(ctx context.Context) error {
			_, err := f(ctx)
			return err
		}
	}
	return []Job{
		{Name: JobPayoutCurrent, Spec: cfg.Sweep.PayoutSpec, Run: r.PayoutCurrentMonth},
		{Name: JobPayoutPrevious, Spec: cfg.Sweep.CloseMonthSpec, Run: r.PayoutPreviousMonth},
		{Name: JobReminders, Spec: cfg.Sweep.ReminderSpec, Run: counted(r.RenewalReminders)},
		{Name: JobCleanup, Spec: cfg.Sweep.CleanupSpec, Run: counted(r.CleanupCancelled)},
		{Name: JobSnapshot, Spec: cfg.Sweep.SnapshotSpec, Run: counted(r.SnapshotSubscriptions)},
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "err", err)...)
}

// Scheduler runs Jobs on a seconds-resolution cron.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	log    *zap.SugaredLogger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(cfg *config.Config, r *Runner, log *zap.SugaredLogger) (*Scheduler, error) {
	log = log.With("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger{log: log}),
			cron.WithChain(cron.Recover(cronLogger{log: log})),
		),
		runner: r,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, job := range Jobs(cfg, r) {
		if job.Spec == "" {
			log.Infow("job disabled", "job", job.Name)
			continue
		}
		if _, err := s.cron.AddFunc(job.Spec, s.wrap(job)); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %s (%q): %w", job.Name, job.Spec, err)
		}
		log.Infow("job scheduled", "job", job.Name, "spec", job.Spec)
	}
	return s, nil
}

func (s *Scheduler) wrap(job Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
		defer cancel()
		// Run logs and records failures.
		_ = s.runner.Run(ctx, job.Name, job.Run)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
