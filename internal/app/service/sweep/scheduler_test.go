package sweep

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/coachpay/pkg/config"
)

func schedulerConfig() *config.Config {
	return &config.Config{Sweep: config.SweepConfig{
		PayoutSpec:     "0 0 1 * * *",
		CloseMonthSpec: "0 0 2 1 * *",
		ReminderSpec:   "0 0 10 * * *",
		CleanupSpec:    "0 0 3 * * *",
		SnapshotSpec:   "",
	}}
}

func TestNewSchedulerRegistersJobs(t *testing.T) {
	r, _, _ := newTestRunner(newMemRepository(), noopLocker{})
	s, err := NewScheduler(schedulerConfig(), r, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.Len(t, s.cron.Entries(), 4)

	s.Start()
	require.NoError(t, s.Stop(context.Background()))
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	cfg := schedulerConfig()
	cfg.Sweep.CleanupSpec = "every day"
	r, _, _ := newTestRunner(newMemRepository(), noopLocker{})
	_, err := NewScheduler(cfg, r, zap.NewNop().Sugar())
	require.ErrorContains(t, err, JobCleanup)
}

func TestJobsCoverEveryTask(t *testing.T) {
	r, _, _ := newTestRunner(newMemRepository(), noopLocker{})
	names := make([]string, 0)
	for _, j := range Jobs(schedulerConfig(), r) {
		names = append(names, j.Name)
	}
	require.Equal(t, []string{JobPayoutCurrent, JobPayoutPrevious, JobReminders, JobCleanup, JobSnapshot}, names)
}

type brokenLocker struct{}

func (brokenLocker) Lock(context.Context, string) (func(context.Context) error, error) {
	return nil, errors.New("redis unavailable")
}

func TestScheduledJobFailuresAreLogged(t *testing.T) {
	cases := []struct {
		name   string
		locker Locker
		run    func(context.Context) error
		msg    string
	}{
		{"job error", noopLocker{}, func(context.Context) error { return errors.New("boom") }, "job failed"},
		{"lock error", brokenLocker{}, func(context.Context) error { return nil }, "acquire job lock failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			r, _, _ := newTestRunner(newMemRepository(), tc.locker)
			r.log = zap.New(core).Sugar()
			s, err := NewScheduler(schedulerConfig(), r, zap.NewNop().Sugar())
			require.NoError(t, err)

			s.wrap(Job{Name: JobCleanup, Run: tc.run})()

			entries := logs.FilterMessage(tc.msg).All()
			require.Len(t, entries, 1)
			require.Equal(t, JobCleanup, entries[0].ContextMap()["job"])
			require.NoError(t, s.Stop(context.Background()))
		})
	}
}
