package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/social-scheduler/internal/service"
)

// SweepJob runs the due-post sweep from the in-process cron.
type SweepJob struct {
	s       service.SweepService
	timeout time.Duration
}

// NewSweepJob bounds each run by timeout so a stuck sweep cannot hold the
// sweep lock past the next tick.
func NewSweepJob(s service.SweepService, timeout time.Duration) *SweepJob {
	return &SweepJob{s: s, timeout: timeout}
}

func (j *SweepJob) Run() {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	res, err := j.s.Sweep(ctx)
	if errors.Is(err, service.ErrSweepInProgress) {
		slog.Debug("sweep skipped, another sweep is running")
		return
	}
	if err != nil {
		slog.Error("sweep failed", "error", err)
		return
	}
	if res.Processed > 0 {
		slog.Info(res.Message, "failed", res.Failed, "skipped", res.Skipped)
	}
}

// Schedule is the robfig/cron expression that fires every interval.
func Schedule(interval time.Duration) string {
	return "@every " + interval.String()
}
