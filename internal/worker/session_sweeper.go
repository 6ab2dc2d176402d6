package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/thiagocrux/simcasi/pkg/metrics"
)

// ExpiredDeleter hard-deletes rows whose expiry is before the cutoff.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SweepResult reports how many rows one sweep removed.
type SweepResult struct {
	Sessions    int64
	ResetTokens int64
}

// SessionSweeper removes sessions and reset tokens that expired longer than
// retention ago. Retired sessions are kept until then so a replayed refresh
// token is still recognised as reuse.
type SessionSweeper struct {
	sessions    ExpiredDeleter
	resetTokens ExpiredDeleter
	retention   time.Duration
	timeout     time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
	cron        *cron.Cron
}

func NewSessionSweeper(sessions, resetTokens ExpiredDeleter, retention time.Duration, m *metrics.Metrics, logger *slog.Logger) *SessionSweeper {
	return &SessionSweeper{
		sessions:    sessions,
		resetTokens: resetTokens,
		retention:   retention,
		timeout:     time.Minute,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
		cron:        cron.New(cron.WithLocation(time.UTC)),
	}
}

// Sweep runs one pass.
func (s *SessionSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	cutoff := s.now().UTC().Add(-s.retention)

	var result SweepResult
	n, err := s.sessions.DeleteExpired(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("delete expired sessions: %w", err)
	}
	result.Sessions = n
	s.metrics.ObserveSwept(n)

	if s.resetTokens != nil {
		n, err = s.resetTokens.DeleteExpired(ctx, cutoff)
		if err != nil {
			return result, fmt.Errorf("delete expired reset tokens: %w", err)
		}
		result.ResetTokens = n
	}
	return result, nil
}

// Start schedules Sweep on the cron spec. Call Stop to end it.
func (s *SessionSweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, s.run)
	if err != nil {
		return fmt.Errorf("schedule session sweep %q: %w", schedule, err)
	}
	s.cron.Start()
	s.logger.Info("session sweeper started", "schedule", schedule, "retention", s.retention)
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *SessionSweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("session sweeper stopped")
	case <-ctx.Done():
		s.logger.Warn("session sweeper stop timed out")
	}
}

func (s *SessionSweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("session sweep failed", "error", err)
		return
	}
	s.logger.Info("session sweep completed",
		"sessions_deleted", result.Sessions,
		"reset_tokens_deleted", result.ResetTokens,
		"duration_ms", time.Since(start).Milliseconds())
}
