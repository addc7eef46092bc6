package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/internal/app/service/payout"
	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/config"
	"github.com/fatflowers/coachpay/pkg/logctx"
	"github.com/fatflowers/coachpay/pkg/metrics"
	"github.com/fatflowers/coachpay/pkg/tool"
)

const (
	JobPayoutCurrent  = "payout_current_month"
	JobPayoutPrevious = "payout_previous_month"
	JobReminders      = "renewal_reminders"
	JobCleanup        = "cleanup_cancelled"
	JobSnapshot       = "subscription_snapshot"

	snapshotPageSize = 500
)

// ReminderNotifier sends the renewal reminder. Must not block.
type ReminderNotifier interface {
	RenewalReminder(ctx context.Context, sub *models.Subscription)
}

// PayoutRunner recomputes one month of coach payouts.
type PayoutRunner interface {
	Run(ctx context.Context, month string) (*payout.Result, error)
}

// Runner holds the periodic maintenance jobs. Each job runs under a
// cluster-wide lock so concurrent schedulers do not overlap.
type Runner struct {
	repo         Repository
	locker       Locker
	notifier     ReminderNotifier
	payouts      PayoutRunner
	reminderDays int
	log          *zap.SugaredLogger
	metrics      *metrics.Business
	now          func() time.Time
}

func NewRunner(cfg *config.Config, repo Repository, locker Locker, notifier ReminderNotifier, payouts PayoutRunner, log *zap.SugaredLogger, m *metrics.Business) *Runner {
	return &Runner{
		repo:         repo,
		locker:       locker,
		notifier:     notifier,
		payouts:      payouts,
		reminderDays: cfg.Sweep.ReminderDays,
		log:          log,
		metrics:      m,
		now:          time.Now,
	}
}

// Run executes fn under the job lock and records its duration. A job held
// by another instance is skipped without error.
func (r *Runner) Run(ctx context.Context, job string, fn func(ctx context.Context) error) error {
	ctx = logctx.WithTraceID(ctx, tool.GenerateUUIDV7())
	log := logctx.FromCtx(ctx, r.log).With("job", job)
	start := time.Now()

	unlock, err := r.locker.Lock(ctx, job)
	if errors.Is(err, ErrLocked) {
		log.Infow("job skipped, lock held elsewhere")
		r.observe(job, "skipped", start)
		return nil
	}
	if err != nil {
		r.observe(job, "error", start)
		log.Errorw("acquire job lock failed", "err", err)
		return fmt.Errorf("lock %s: %w", job, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warnw("release job lock failed", "err", err)
		}
	}()

	log.Infow("job started")
	if err := fn(ctx); err != nil {
		r.observe(job, "error", start)
		log.Errorw("job failed", "err", err, "elapsed", time.Since(start))
		return err
	}
	r.observe(job, "ok", start)
	log.Infow("job finished", "elapsed", time.Since(start))
	return nil
}

func (r *Runner) observe(job, result string, start time.Time) {
	r.metrics.JobDuration.WithLabelValues(job, result).Observe(float64(time.Since(start).Milliseconds()))
}

// PayoutCurrentMonth recomputes the running month.
func (r *Runner) PayoutCurrentMonth(ctx context.Context) error {
	return r.runPayout(ctx, tool.MonthKey(r.now()))
}

// PayoutPreviousMonth closes the month that just ended.
func (r *Runner) PayoutPreviousMonth(ctx context.Context) error {
	return r.runPayout(ctx, tool.PreviousMonthKey(r.now()))
}

func (r *Runner) runPayout(ctx context.Context, month string) error {
	res, err := r.payouts.Run(ctx, month)
	if err != nil {
		return fmt.Errorf("payout %s: %w", month, err)
	}
	logctx.FromCtx(ctx, r.log).Infow("payout recomputed", "month", month, "coaches", len(res.Payments))
	return nil
}

// RenewalReminders emails clients whose next billing date falls within the
// reminder window, once per billing date.
func (r *Runner) RenewalReminders(ctx context.Context) (int, error) {
	now := r.now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, r.reminderDays+1)

	subs, err := r.repo.DueForReminder(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("load due subscriptions: %w", err)
	}
	log := logctx.FromCtx(ctx, r.log)
	sent := 0
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		r.notifier.RenewalReminder(ctx, sub)
		if err := r.repo.MarkReminded(ctx, sub.ID, *sub.NextBillingDate); err != nil {
			log.Errorw("mark reminder sent failed", "subscription_id", sub.ID, "err", err)
			continue
		}
		sent++
	}
	log.Infow("renewal reminders queued", "count", sent, "due", len(subs))
	return sent, nil
}

// CleanupCancelled removes cancelled subscriptions past their grace period.
func (r *Runner) CleanupCancelled(ctx context.Context) (int, error) {
	ids, err := r.repo.DeleteExpiredCancelled(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired subscriptions: %w", err)
	}
	if len(ids) > 0 {
		logctx.FromCtx(ctx, r.log).Infow("cancelled subscriptions removed", "count", len(ids), "ids", ids)
	}
	return len(ids), nil
}

// SnapshotSubscriptions copies every subscription into today's snapshot.
// Rerunning on the same day overwrites that day's rows.
func (r *Runner) SnapshotSubscriptions(ctx context.Context) (int, error) {
	now := r.now()
	total, after := 0, ""
	for {
		page, err := r.repo.ListSubscriptions(ctx, after, snapshotPageSize)
		if err != nil {
			return total, fmt.Errorf("list subscriptions: %w", err)
		}
		if len(page) == 0 {
			break
		}
		rows := make([]*models.SubscriptionDailySnapshot, 0, len(page))
		for _, sub := range page {
			rows = append(rows, models.NewSubscriptionDailySnapshot(tool.GenerateUUIDV7(), sub, now.UTC(), now))
		}
		if err := r.repo.SaveSnapshots(ctx, rows); err != nil {
			return total, fmt.Errorf("save snapshots: %w", err)
		}
		total += len(rows)
		after = page[len(page)-1].ID
		if len(page) < snapshotPageSize {
			break
		}
	}
	logctx.FromCtx(ctx, r.log).Infow("subscription snapshot saved", "count", total)
	return total, nil
}
