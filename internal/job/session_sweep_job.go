package job

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiredSessionDeleter removes sessions whose expiry is before "now"
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// SessionSweepJob purges expired sessions from stores that have no native TTL.
// It implements cron.Job.
type SessionSweepJob struct {
	sessions ExpiredSessionDeleter
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewSessionSweepJob creates a new session sweep job
func NewSessionSweepJob(sessions ExpiredSessionDeleter, logger *zap.Logger) *SessionSweepJob {
	return &SessionSweepJob{
		sessions: sessions,
		logger:   logger,
		timeout:  30 * time.Second,
		now:      time.Now,
	}
}

// Run deletes expired sessions
func (j *SessionSweepJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	removed, err := j.sessions.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Warn("failed to sweep expired sessions", zap.Error(err))
		return
	}

	if removed > 0 {
		j.logger.Info("expired sessions removed", zap.Int("count", removed))
	} else {
		j.logger.Debug("session sweep found nothing to remove")
	}
}
