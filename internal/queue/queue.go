package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/social-scheduler/internal/models"
)

const maxDispatchRetries = 3

// NewDispatchTask builds the task for postID; the task id makes enqueueing
// the same post twice a no-op.
func NewDispatchTask(postID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DispatchPostPayload{PostID: postID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDispatchPost, payload,
		asynq.TaskID("dispatch:"+postID),
		asynq.MaxRetry(maxDispatchRetries),
	), nil
}

func EnqueuePost(ctx context.Context, asynqClient *asynq.Client, postID string, delay time.Duration) error {
	task, err := NewDispatchTask(postID)
	if err != nil {
		return err
	}

	info, err := asynqClient.EnqueueContext(ctx, task, asynq.ProcessIn(delay))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		slog.Info("dispatch task already scheduled", "post_id", postID)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("dispatch task scheduled", "post_id", postID, "task_id", info.ID, "process_at", info.NextProcessAt)
	return nil
}

// Scheduler enqueues a delayed dispatch task for every new post.
type Scheduler struct {
	client *asynq.Client
	now    func() time.Time
}

func NewScheduler(client *asynq.Client) *Scheduler {
	return &Scheduler{client: client, now: time.Now}
}

func (s *Scheduler) SchedulePost(ctx context.Context, post *models.Post) error {
	return EnqueuePost(ctx, s.client, post.ID, dispatchDelay(post.ScheduledAt, s.now()))
}

func dispatchDelay(scheduledAt, now time.Time) time.Duration {
	delay := scheduledAt.Sub(now)
	if delay < 0 {
		return 0
	}
	return delay
}
