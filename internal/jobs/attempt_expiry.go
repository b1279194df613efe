package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type attemptExpirer interface {
	ExpireAttempts(ctx context.Context, cutoff time.Time) (int64, error)
}

// AttemptExpiryJob marks payment attempts that stayed unresolved longer
// than ttl as EXPIRED, so StartPayment opens a fresh order instead of
// reusing them. A late verified payment on an expired order is still credited.
type AttemptExpiryJob struct {
	store    attemptExpirer
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	log      *logrus.Logger
}

func NewAttemptExpiryJob(store attemptExpirer, ttl, interval time.Duration, log *logrus.Logger) *AttemptExpiryJob {
	return &AttemptExpiryJob{
		store:    store,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
		log:      log,
	}
}

// Run sweeps once per interval until ctx is done.
func (j *AttemptExpiryJob) Run(ctx context.Context) {
	j.log.WithField("ttl", j.ttl).Info("attempt expiry job started")
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep(ctx)
		case <-ctx.Done():
			j.log.Info("attempt expiry job stopped")
			return
		}
	}
}

// Sweep expires stale attempts and returns how many it touched.
func (j *AttemptExpiryJob) Sweep(ctx context.Context) int64 {
	n, err := j.store.ExpireAttempts(ctx, j.now().Add(-j.ttl))
	if err != nil {
		j.log.WithError(err).Error("expire payment attempts")
		return 0
	}
	if n > 0 {
		j.log.WithField("count", n).Info("expired payment attempts")
	}
	return n
}
