package app

import (
	"context"
	"go-auth-api/logger"
	"time"

	"github.com/sirupsen/logrus"
)

type purger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// runJanitor purges refresh tokens that expired more than retention ago,
// every interval until ctx is done. A zero interval disables it.
func runJanitor(ctx context.Context, p purger, interval, retention time.Duration, now func() time.Time) {
	if interval <= 0 {
		logger.Log.Info("Expired token purge disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx, purgeCutoff(now(), retention))
			if err != nil {
				logger.Log.WithError(err).Error("Failed to purge expired refresh tokens")
				continue
			}
			if n > 0 {
				logger.Log.WithFields(logrus.Fields{"purged": n}).Info("Purged expired refresh tokens")
			}
		}
	}
}

func purgeCutoff(now time.Time, retention time.Duration) time.Time {
	return now.Add(-retention)
}
