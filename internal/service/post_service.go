package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maheshrc27/social-scheduler/internal/metrics"
	"github.com/maheshrc27/social-scheduler/internal/models"
	"github.com/maheshrc27/social-scheduler/internal/repository"
	"github.com/maheshrc27/social-scheduler/internal/transfer"
)

// PostScheduler arranges for a post to be dispatched at its scheduled time.
type PostScheduler interface {
	SchedulePost(ctx context.Context, post *models.Post) error
}

type PostService interface {
	CreatePost(ctx context.Context, pc *transfer.PostCreation) (*models.Post, error)
	List(ctx context.Context) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID string) (*models.Post, error)
	Remove(ctx context.Context, postID string) error
}

type postService struct {
	pr        repository.PostRepository
	media     MediaService
	scheduler PostScheduler
	now       func() time.Time
}

// NewPostService wires the post store with optional media cleanup and delayed
// dispatch; media and scheduler may be nil.
func NewPostService(pr repository.PostRepository, media MediaService, scheduler PostScheduler) PostService {
	return &postService{
		pr:        pr,
		media:     media,
		scheduler: scheduler,
		now:       time.Now,
	}
}

var (
	zonedLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04Z07:00",
	}
	// Form inputs carry no zone and are read as server local time.
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
)

func parseScheduledAt(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid scheduled time format %q", value)
}

func (s *postService) validate(pc *transfer.PostCreation) (*models.Post, error) {
	if pc == nil {
		return nil, invalid("body", "post creation data is empty")
	}

	title := strings.TrimSpace(pc.Title)
	if title == "" {
		return nil, invalid("title", "title cannot be empty")
	}

	mediaURL := strings.TrimSpace(pc.MediaURL)
	if mediaURL == "" {
		return nil, invalid("mediaUrl", "mediaUrl is required")
	}

	if len(pc.Platforms) == 0 {
		return nil, invalid("platforms", "at least one platform must be selected")
	}
	seen := make(map[models.Platform]struct{}, len(pc.Platforms))
	platforms := make([]models.Platform, 0, len(pc.Platforms))
	for _, name := range pc.Platforms {
		platform := models.Platform(strings.ToLower(strings.TrimSpace(name)))
		if !platform.Valid() {
			return nil, invalid("platforms", fmt.Sprintf("unsupported platform %q", name))
		}
		if _, dup := seen[platform]; dup {
			continue
		}
		seen[platform] = struct{}{}
		platforms = append(platforms, platform)
	}

	if strings.TrimSpace(pc.ScheduledAt) == "" {
		return nil, invalid("scheduledAt", "scheduledAt is required")
	}
	scheduledAt, err := parseScheduledAt(pc.ScheduledAt)
	if err != nil {
		return nil, invalid("scheduledAt", err.Error())
	}
	if !scheduledAt.After(s.now()) {
		return nil, invalid("scheduledAt", "scheduled time must be in the future")
	}

	hashtags := make([]string, 0, len(pc.Hashtags))
	for _, tag := range pc.Hashtags {
		if tag = strings.TrimSpace(tag); tag != "" {
			hashtags = append(hashtags, tag)
		}
	}

	return &models.Post{
		Title:         title,
		Description:   pc.Description,
		Hashtags:      hashtags,
		MediaURL:      mediaURL,
		MediaPublicID: strings.TrimSpace(pc.MediaPublicID),
		Platforms:     platforms,
		ScheduledAt:   scheduledAt,
	}, nil
}

func (s *postService) CreatePost(ctx context.Context, pc *transfer.PostCreation) (*models.Post, error) {
	post, err := s.validate(pc)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if err := s.pr.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}
	metrics.PostsCreated.Inc()

	if s.scheduler != nil {
		if err := s.scheduler.SchedulePost(ctx, post); err != nil {
			// The periodic sweep still picks the post up once it is due.
			slog.Warn("unable to schedule delayed dispatch", "post_id", post.ID, "error", err)
		}
	}

	return post, nil
}

func (s *postService) List(ctx context.Context) ([]*models.Post, error) {
	posts, err := s.pr.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) PostInfo(ctx context.Context, postID string) (*models.Post, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, invalid("id", "post id is not valid")
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post: %w", err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *postService) Remove(ctx context.Context, postID string) error {
	post, err := s.PostInfo(ctx, postID)
	if err != nil {
		return err
	}
	if post.Status != models.PostStatusPending {
		return ErrPostNotPending
	}

	removed, err := s.pr.RemovePending(ctx, postID)
	if err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}
	if !removed {
		// Claimed by a sweep, or deleted, between the read and the delete.
		current, err := s.pr.GetByID(ctx, postID)
		if err != nil {
			return fmt.Errorf("error removing post: %w", err)
		}
		if current == nil {
			return ErrPostNotFound
		}
		return ErrPostNotPending
	}

	if s.media != nil && post.MediaPublicID != "" {
		if err := s.media.Delete(ctx, post.MediaPublicID); err != nil {
			slog.Warn("unable to delete media for removed post", "post_id", postID, "public_id", post.MediaPublicID, "error", err)
		}
	}
	return nil
}

// IsClientError reports whether err should be surfaced to the caller as a 4xx.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrPostNotFound) ||
		errors.Is(err, ErrPostNotPending) ||
		errors.Is(err, ErrPostNotPublishing) ||
		errors.Is(err, ErrSweepInProgress)
}
