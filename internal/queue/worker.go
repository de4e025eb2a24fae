package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

func (j *Queue) HandleDispatchPostTask(ctx context.Context, task *asynq.Task) error {
	var payload DispatchPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode dispatch task: %v: %w", err, asynq.SkipRetry)
	}
	if payload.PostID == "" {
		return fmt.Errorf("dispatch task without post id: %w", asynq.SkipRetry)
	}

	outcome, err := j.sweeper.DispatchPost(ctx, payload.PostID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	slog.Debug("dispatch task handled", "post_id", payload.PostID, "outcome", outcome)
	return nil
}

// Register mounts the task handlers on mux.
func (j *Queue) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeDispatchPost, j.HandleDispatchPostTask)
}
