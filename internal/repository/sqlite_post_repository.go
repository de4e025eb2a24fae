package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/social-scheduler/internal/models"
)

// sqlitePostRepository backs local development and tests. Arrays and results
// are stored as JSON text, timestamps as unix microseconds.
type sqlitePostRepository struct {
	db        *sql.DB
	sweepLock sync.Mutex
}

func NewSQLitePostRepository(db *sql.DB) PostRepository {
	return &sqlitePostRepository{db: db}
}

func (r *sqlitePostRepository) Create(ctx context.Context, post *models.Post) error {
	if err := prepareForInsert(post); err != nil {
		slog.Info(err.Error())
		return err
	}

	hashtags, err := json.Marshal(post.Hashtags)
	if err != nil {
		return err
	}
	platforms, err := json.Marshal(post.PlatformNames())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scheduled_posts (id, title, description, hashtags, media_url, media_public_id,
			platforms, scheduled_at, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		post.ID, post.Title, post.Description, string(hashtags), post.MediaURL, post.MediaPublicID,
		string(platforms), post.ScheduledAt.UnixMicro(), string(post.Status),
		post.CreatedAt.UnixMicro(), post.UpdatedAt.UnixMicro())
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *sqlitePostRepository) scanPost(row rowScanner) (*models.Post, error) {
	var (
		post                             models.Post
		status                           string
		hashtags, platforms              string
		errorMessage, results            sql.NullString
		scheduledAt, createdAt, updateAt int64
	)
	err := row.Scan(&post.ID, &post.Title, &post.Description, &hashtags, &post.MediaURL, &post.MediaPublicID,
		&platforms, &scheduledAt, &status, &errorMessage, &results, &createdAt, &updateAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(hashtags), &post.Hashtags); err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal([]byte(platforms), &names); err != nil {
		return nil, err
	}
	if results.Valid && results.String != "" {
		if err := json.Unmarshal([]byte(results.String), &post.PlatformResults); err != nil {
			return nil, err
		}
	}

	post.Status = models.PostStatus(status)
	if err := checkStatus(post.Status); err != nil {
		return nil, err
	}
	post.Platforms = toPlatforms(names)
	post.ErrorMessage = errorMessage.String
	post.ScheduledAt = time.UnixMicro(scheduledAt).UTC()
	post.CreatedAt = time.UnixMicro(createdAt).UTC()
	post.UpdatedAt = time.UnixMicro(updateAt).UTC()
	return &post, nil
}

func (r *sqlitePostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = ?`

	post, err := r.scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *sqlitePostRepository) List(ctx context.Context) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts ORDER BY scheduled_at ASC, created_at ASC`
	return r.query(ctx, query)
}

func (r *sqlitePostRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts
		WHERE status = ? AND scheduled_at <= ?
		ORDER BY scheduled_at ASC, created_at ASC`
	return r.query(ctx, query, string(models.PostStatusPending), now.UnixMicro())
}

func (r *sqlitePostRepository) query(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		post, err := r.scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *sqlitePostRepository) UpdateStatus(ctx context.Context, id string, status models.PostStatus, results models.PlatformResults, errorMessage string) error {
	if err := checkStatus(status); err != nil {
		return err
	}
	resultsJSON, err := marshalResults(results)
	if err != nil {
		return err
	}

	query := `
		UPDATE scheduled_posts
		SET status = ?, platform_results = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query, string(status), resultsJSON, nullString(errorMessage), time.Now().UnixMicro(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlitePostRepository) ClaimForDispatch(ctx context.Context, id string) (bool, error) {
	query := `UPDATE scheduled_posts SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, string(models.PostStatusPublishing), time.Now().UnixMicro(), id, string(models.PostStatusPending))
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affectedOne(res)
}

func (r *sqlitePostRepository) CompletePublishing(ctx context.Context, id string, status models.PostStatus, results models.PlatformResults, errorMessage string) (bool, error) {
	if err := checkStatus(status); err != nil {
		return false, err
	}
	resultsJSON, err := marshalResults(results)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE scheduled_posts
		SET status = ?, platform_results = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	res, err := r.db.ExecContext(ctx, query, string(status), resultsJSON, nullString(errorMessage), time.Now().UnixMicro(), id, string(models.PostStatusPublishing))
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affectedOne(res)
}

func (r *sqlitePostRepository) RemovePending(ctx context.Context, id string) (bool, error) {
	query := `DELETE FROM scheduled_posts WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, id, string(models.PostStatusPending))
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affectedOne(res)
}

// AcquireSweepLock is process-local: a sqlite file is only ever driven by one server.
func (r *sqlitePostRepository) AcquireSweepLock(ctx context.Context) (func(), bool, error) {
	if !r.sweepLock.TryLock() {
		return nil, false, nil
	}
	return r.sweepLock.Unlock, true, nil
}
