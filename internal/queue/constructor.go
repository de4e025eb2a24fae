package queue

import (
	"github.com/maheshrc27/social-scheduler/internal/service"
)

// Queue handles delayed dispatch tasks by handing each post to the sweeper's
// single-post path, so the claim guards against the periodic sweep.
type Queue struct {
	sweeper service.SweepService
}

func NewQueue(sweeper service.SweepService) *Queue {
	return &Queue{sweeper: sweeper}
}

const TaskTypeDispatchPost = "post:dispatch"

type DispatchPostPayload struct {
	PostID string `json:"post_id"`
}
