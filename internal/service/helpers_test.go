package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/social-scheduler/internal/models"
	"github.com/maheshrc27/social-scheduler/internal/repository"
)

func newTestRepository(t *testing.T) repository.PostRepository {
	t.Helper()

	ctx := context.Background()
	db, err := repository.Open(ctx, repository.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := repository.Migrate(ctx, db, repository.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.NewPostRepository(db, repository.DriverSQLite)
}

// seedPost stores a pending post directly, bypassing the future-time check.
func seedPost(t *testing.T, repo repository.PostRepository, title string, at time.Time) *models.Post {
	t.Helper()

	post := &models.Post{
		Title:       title,
		Description: "Watch this",
		Hashtags:    []string{"launch", "#ai"},
		MediaURL:    "https://media.example.com/" + title + ".mp4",
		Platforms:   []models.Platform{models.PlatformInstagram, models.PlatformTiktok},
		ScheduledAt: at,
	}
	if err := repo.Create(context.Background(), post); err != nil {
		t.Fatalf("seed %s: %v", title, err)
	}
	return post
}

func mustGet(t *testing.T, repo repository.PostRepository, id string) *models.Post {
	t.Helper()

	post, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	if post == nil {
		t.Fatalf("post %s not found", id)
	}
	return post
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

type fakeDispatcher struct {
	mu      sync.Mutex
	calls   []*models.Post
	failFor map[string]error
	hook    func(ctx context.Context, post *models.Post) error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, post *models.Post) error {
	d.mu.Lock()
	d.calls = append(d.calls, post)
	err := d.failFor[post.Title]
	hook := d.hook
	d.mu.Unlock()

	if hook != nil {
		return hook(ctx, post)
	}
	return err
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	deleted []string
	putErr  error
	delErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *fakeStorage) PutObject(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = data
	s.types[key] = contentType
	return nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}

type fakeScheduler struct {
	scheduled []string
	err       error
}

func (s *fakeScheduler) SchedulePost(_ context.Context, post *models.Post) error {
	if s.err != nil {
		return s.err
	}
	s.scheduled = append(s.scheduled, post.ID)
	return nil
}

var errBoom = errors.New("boom")

// failingRepository fails selected writes for individual posts.
type failingRepository struct {
	repository.PostRepository
	claimErr  map[string]error
	updateErr map[string]error
}

func (r *failingRepository) ClaimForDispatch(ctx context.Context, id string) (bool, error) {
	if err := r.claimErr[id]; err != nil {
		return false, err
	}
	return r.PostRepository.ClaimForDispatch(ctx, id)
}

func (r *failingRepository) UpdateStatus(ctx context.Context, id string, status models.PostStatus, results models.PlatformResults, errorMessage string) error {
	if err := r.updateErr[id]; err != nil {
		return err
	}
	return r.PostRepository.UpdateStatus(ctx, id, status, results, errorMessage)
}
