package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maheshrc27/social-scheduler/internal/metrics"
	"github.com/maheshrc27/social-scheduler/internal/models"
	"github.com/maheshrc27/social-scheduler/internal/repository"
	"github.com/maheshrc27/social-scheduler/internal/transfer"
)

const defaultFailureMessage = "publishing failed"

type ReconcileService interface {
	Reconcile(ctx context.Context, cb *transfer.OutcomeCallback) error
}

type reconcileService struct {
	pr                repository.PostRepository
	requirePublishing bool
}

// NewReconcileService applies outcome callbacks. With requirePublishing set,
// only posts currently publishing are updated, so a late or repeated callback
// cannot overwrite a terminal status.
func NewReconcileService(pr repository.PostRepository, requirePublishing bool) ReconcileService {
	return &reconcileService{pr: pr, requirePublishing: requirePublishing}
}

func (s *reconcileService) Reconcile(ctx context.Context, cb *transfer.OutcomeCallback) error {
	if cb == nil || strings.TrimSpace(cb.PostID) == "" {
		return invalid("postId", "postId is required")
	}
	postID := strings.TrimSpace(cb.PostID)

	status := models.PostStatusFailed
	var (
		results      models.PlatformResults
		errorMessage string
	)
	if cb.Succeeded() {
		status = models.PostStatusPublished
		results = cb.PlatformResults
	} else {
		errorMessage = strings.TrimSpace(cb.ErrorMessage)
		if errorMessage == "" {
			errorMessage = defaultFailureMessage
		}
	}

	if s.requirePublishing {
		if err := s.complete(ctx, postID, status, results, errorMessage); err != nil {
			return err
		}
	} else {
		if err := s.overwrite(ctx, postID, status, results, errorMessage); err != nil {
			return err
		}
	}

	metrics.Reconciliations.WithLabelValues(string(status)).Inc()
	slog.Info("post outcome recorded", "post_id", postID, "status", status)
	return nil
}

func (s *reconcileService) complete(ctx context.Context, postID string, status models.PostStatus, results models.PlatformResults, errorMessage string) error {
	applied, err := s.pr.CompletePublishing(ctx, postID, status, results, errorMessage)
	if err != nil {
		return fmt.Errorf("error updating post status: %w", err)
	}
	if applied {
		return nil
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("error getting post: %w", err)
	}
	if post == nil {
		return ErrPostNotFound
	}
	slog.Warn("outcome callback ignored", "post_id", postID, "current_status", post.Status, "reported_status", status)
	return ErrPostNotPublishing
}

// overwrite applies the outcome whatever the current status is. Transitions the
// lifecycle does not allow are still applied, but logged and counted.
func (s *reconcileService) overwrite(ctx context.Context, postID string, status models.PostStatus, results models.PlatformResults, errorMessage string) error {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("error getting post: %w", err)
	}
	if post == nil {
		return ErrPostNotFound
	}
	if !post.Status.CanTransitionTo(status) {
		metrics.StatusOverwrites.WithLabelValues(string(post.Status), string(status)).Inc()
		slog.Warn("overwriting post status outside its lifecycle",
			"post_id", postID,
			"current_status", post.Status,
			"reported_status", status,
			"terminal", post.Status.IsTerminal(),
		)
	}

	err = s.pr.UpdateStatus(ctx, postID, status, results, errorMessage)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("error updating post status: %w", err)
	}
	return nil
}
