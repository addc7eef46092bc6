package sweep

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"

	"github.com/fatflowers/coachpay/pkg/config"
)

// ErrLocked means another scheduler instance holds the job.
var ErrLocked = errors.New("job is running elsewhere")

const lockPrefix = "coachpay:job:"

// Locker grants exclusive runs of a named job across instances.
type Locker interface {
	Lock(ctx context.Context, name string) (unlock func(context.Context) error, err error)
}

type redsyncLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

func NewLocker(cfg *config.Config, rs *redsync.Redsync) Locker {
	return NewRedsyncLocker(rs, cfg.Sweep.LockExpiry)
}

func NewRedsyncLocker(rs *redsync.Redsync, expiry time.Duration) Locker {
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}
	return &redsyncLocker{rs: rs, expiry: expiry}
}

// Lock tries once. A held lock yields ErrLocked.
func (l *redsyncLocker) Lock(ctx context.Context, name string) (func(context.Context) error, error) {
	m := l.rs.NewMutex(lockPrefix+name, redsync.WithExpiry(l.expiry), redsync.WithTries(1))
	if err := m.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, ErrLocked
		}
		return nil, err
	}
	return func(ctx context.Context) error {
		_, err := m.UnlockContext(ctx)
		return err
	}, nil
}
