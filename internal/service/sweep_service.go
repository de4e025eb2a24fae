package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/social-scheduler/internal/metrics"
	"github.com/maheshrc27/social-scheduler/internal/models"
	"github.com/maheshrc27/social-scheduler/internal/repository"
	"github.com/maheshrc27/social-scheduler/internal/transfer"
)

type DispatchOutcome string

const (
	DispatchTriggered DispatchOutcome = "triggered"
	DispatchFailed    DispatchOutcome = "failed"
	DispatchSkipped   DispatchOutcome = "skipped"
)

const (
	defaultSweepConcurrency = 10
	defaultDispatchTimeout  = 30 * time.Second
)

type SweepService interface {
	// Sweep dispatches every due post once. Persistence errors are returned
	// together with the counts after all posts have settled.
	Sweep(ctx context.Context) (*transfer.SweepResult, error)
	// DispatchPost dispatches a single post if it is still pending and due.
	DispatchPost(ctx context.Context, postID string) (DispatchOutcome, error)
}

type sweepService struct {
	pr          repository.PostRepository
	dispatcher  Dispatcher
	concurrency int
	timeout     time.Duration
	now         func() time.Time
}

func NewSweepService(pr repository.PostRepository, dispatcher Dispatcher, concurrency int, timeout time.Duration) SweepService {
	if concurrency <= 0 {
		concurrency = defaultSweepConcurrency
	}
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &sweepService{
		pr:          pr,
		dispatcher:  dispatcher,
		concurrency: concurrency,
		timeout:     timeout,
		now:         time.Now,
	}
}

func (s *sweepService) Sweep(ctx context.Context) (*transfer.SweepResult, error) {
	release, acquired, err := s.pr.AcquireSweepLock(ctx)
	if err != nil {
		metrics.Sweeps.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("error acquiring sweep lock: %w", err)
	}
	if !acquired {
		metrics.Sweeps.WithLabelValues("busy").Inc()
		return nil, ErrSweepInProgress
	}
	defer release()

	started := time.Now()
	due, err := s.pr.ListDue(ctx, s.now())
	if err != nil {
		metrics.Sweeps.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("error fetching due posts: %w", err)
	}
	if len(due) == 0 {
		metrics.Sweeps.WithLabelValues("completed").Inc()
		return &transfer.SweepResult{Message: "No posts to publish"}, nil
	}

	slog.Info("sweep started", "due", len(due))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   []error
		result = &transfer.SweepResult{Processed: len(due)}
	)
	semaphore := make(chan struct{}, s.concurrency)

	for _, post := range due {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(post *models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcome, err := s.dispatchPost(ctx, post)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case DispatchTriggered:
				result.Successful++
			case DispatchSkipped:
				result.Skipped++
			default:
				result.Failed++
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("post %s: %w", post.ID, err))
			}
		}(post)
	}
	wg.Wait()

	result.Message = fmt.Sprintf("Processed %d posts, triggered %d successfully", result.Processed, result.Successful)
	metrics.SweepDuration.Observe(time.Since(started).Seconds())

	slog.Info("sweep finished",
		"processed", result.Processed,
		"successful", result.Successful,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)

	if err := errors.Join(errs...); err != nil {
		metrics.Sweeps.WithLabelValues("error").Inc()
		return result, err
	}
	metrics.Sweeps.WithLabelValues("completed").Inc()
	return result, nil
}

func (s *sweepService) DispatchPost(ctx context.Context, postID string) (DispatchOutcome, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return DispatchFailed, fmt.Errorf("error getting post: %w", err)
	}
	if post == nil || !post.IsDue(s.now()) {
		metrics.Dispatches.WithLabelValues(string(DispatchSkipped)).Inc()
		return DispatchSkipped, nil
	}
	return s.dispatchPost(ctx, post)
}

// dispatchPost claims the post and hands it to the dispatcher. A post that
// fails to dispatch is marked failed; one that succeeds stays publishing until
// its outcome callback arrives.
func (s *sweepService) dispatchPost(ctx context.Context, post *models.Post) (DispatchOutcome, error) {
	claimed, err := s.pr.ClaimForDispatch(ctx, post.ID)
	if err != nil {
		metrics.Dispatches.WithLabelValues("error").Inc()
		return DispatchFailed, fmt.Errorf("error claiming post: %w", err)
	}
	if !claimed {
		metrics.Dispatches.WithLabelValues(string(DispatchSkipped)).Inc()
		return DispatchSkipped, nil
	}
	post.Status = models.PostStatusPublishing

	if err := s.dispatch(ctx, post); err != nil {
		slog.Warn("dispatch failed", "post_id", post.ID, "error", err)
		metrics.Dispatches.WithLabelValues(string(DispatchFailed)).Inc()

		if uerr := s.pr.UpdateStatus(ctx, post.ID, models.PostStatusFailed, nil, err.Error()); uerr != nil {
			return DispatchFailed, fmt.Errorf("error marking post failed: %w", uerr)
		}
		post.Status = models.PostStatusFailed
		post.ErrorMessage = err.Error()
		return DispatchFailed, nil
	}

	slog.Info("post dispatched", "post_id", post.ID, "platforms", post.PlatformNames())
	metrics.Dispatches.WithLabelValues(string(DispatchTriggered)).Inc()
	return DispatchTriggered, nil
}

func (s *sweepService) dispatch(ctx context.Context, post *models.Post) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panicked: %v", r)
		}
	}()

	if s.dispatcher == nil {
		return errors.New("no dispatcher configured")
	}
	return s.dispatcher.Dispatch(ctx, post)
}
