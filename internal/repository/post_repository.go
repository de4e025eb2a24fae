package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/social-scheduler/internal/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context) ([]*models.Post, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Post, error)
	UpdateStatus(ctx context.Context, id string, status models.PostStatus, results models.PlatformResults, errorMessage string) error
	ClaimForDispatch(ctx context.Context, id string) (bool, error)
	CompletePublishing(ctx context.Context, id string, status models.PostStatus, results models.PlatformResults, errorMessage string) (bool, error)
	RemovePending(ctx context.Context, id string) (bool, error)
	AcquireSweepLock(ctx context.Context) (release func(), acquired bool, err error)
}

// NewPostRepository returns the store for the given driver over an already opened handle.
func NewPostRepository(db *sql.DB, driver string) PostRepository {
	if driver == DriverSQLite {
		return NewSQLitePostRepository(db)
	}
	return &postRepository{db: db}
}

// sweepLockKey identifies the postgres advisory lock held while a sweep runs.
const sweepLockKey int64 = 7_301_245

const postColumns = `id, title, description, hashtags, media_url, media_public_id, platforms,
	scheduled_at, status, error_message, platform_results, created_at, updated_at`

type postRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

// prepareForInsert fills the fields the store owns on creation.
func prepareForInsert(post *models.Post) error {
	if post.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		post.ID = id
	}
	if post.Hashtags == nil {
		post.Hashtags = []string{}
	}
	if post.Platforms == nil {
		post.Platforms = []models.Platform{}
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	post.Status = models.PostStatusPending
	post.ScheduledAt = post.ScheduledAt.UTC().Truncate(time.Microsecond)
	post.ErrorMessage = ""
	post.PlatformResults = nil
	post.CreatedAt = now
	post.UpdatedAt = now
	return nil
}

// marshalResults encodes results as text; lib/pq would send a []byte as bytea.
func marshalResults(results models.PlatformResults) (sql.NullString, error) {
	if results == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(results)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := prepareForInsert(post); err != nil {
		slog.Info(err.Error())
		return err
	}

	query := `
		INSERT INTO scheduled_posts (id, title, description, hashtags, media_url, media_public_id,
			platforms, scheduled_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		post.ID, post.Title, post.Description, pq.Array(post.Hashtags), post.MediaURL, post.MediaPublicID,
		pq.Array(post.PlatformNames()), post.ScheduledAt, string(post.Status), post.CreatedAt, post.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) scanPost(row rowScanner) (*models.Post, error) {
	var (
		post         models.Post
		platforms    []string
		errorMessage sql.NullString
		results      []byte
	)
	err := row.Scan(&post.ID, &post.Title, &post.Description, pq.Array(&post.Hashtags), &post.MediaURL,
		&post.MediaPublicID, pq.Array(&platforms), &post.ScheduledAt, &post.Status, &errorMessage, &results,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := checkStatus(post.Status); err != nil {
		return nil, err
	}
	post.Platforms = toPlatforms(platforms)
	post.ErrorMessage = errorMessage.String
	if len(results) > 0 {
		if err := json.Unmarshal(results, &post.PlatformResults); err != nil {
			return nil, err
		}
	}
	post.ScheduledAt = post.ScheduledAt.UTC().Truncate(time.Microsecond)
	post.CreatedAt = post.CreatedAt.UTC()
	post.UpdatedAt = post.UpdatedAt.UTC()
	return &post, nil
}

func toPlatforms(names []string) []models.Platform {
	platforms := make([]models.Platform, len(names))
	for i, name := range names {
		platforms[i] = models.Platform(name)
	}
	return platforms
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = $1`

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

func (r *postRepository) List(ctx context.Context) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts ORDER BY scheduled_at ASC, created_at ASC`
	return r.query(ctx, query)
}

func (r *postRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC, created_at ASC`
	return r.query(ctx, query, string(models.PostStatusPending), now.UTC())
}

func (r *postRepository) query(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
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

func (r *postRepository) UpdateStatus(ctx context.Context, id string, status models.PostStatus, results models.PlatformResults, errorMessage string) error {
	if err := checkStatus(status); err != nil {
		return err
	}
	resultsJSON, err := marshalResults(results)
	if err != nil {
		return err
	}

	query := `
		UPDATE scheduled_posts
		SET status = $1,
			platform_results = $2,
			error_message = $3,
			updated_at = $4
		WHERE id = $5
	`
	res, err := r.db.ExecContext(ctx, query, string(status), resultsJSON, nullString(errorMessage), time.Now().UTC(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postRepository) ClaimForDispatch(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, string(models.PostStatusPublishing), time.Now().UTC(), id, string(models.PostStatusPending))
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affectedOne(res)
}

func (r *postRepository) CompletePublishing(ctx context.Context, id string, status models.PostStatus, results models.PlatformResults, errorMessage string) (bool, error) {
	if err := checkStatus(status); err != nil {
		return false, err
	}
	resultsJSON, err := marshalResults(results)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE scheduled_posts
		SET status = $1,
			platform_results = $2,
			error_message = $3,
			updated_at = $4
		WHERE id = $5 AND status = $6
	`
	res, err := r.db.ExecContext(ctx, query, string(status), resultsJSON, nullString(errorMessage), time.Now().UTC(), id, string(models.PostStatusPublishing))
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affectedOne(res)
}

func (r *postRepository) RemovePending(ctx context.Context, id string) (bool, error) {
	query := `DELETE FROM scheduled_posts WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, string(models.PostStatusPending))
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affectedOne(res)
}

// AcquireSweepLock takes a session-level advisory lock on a dedicated connection,
// so overlapping sweeps across processes skip instead of racing.
func (r *postRepository) AcquireSweepLock(ctx context.Context) (func(), bool, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		slog.Info(err.Error())
		return nil, false, err
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, sweepLockKey).Scan(&ok); err != nil {
		conn.Close()
		slog.Info(err.Error())
		return nil, false, err
	}
	if !ok {
		conn.Close()
		return nil, false, nil
	}

	release := func() {
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, sweepLockKey); err != nil {
			slog.Info(err.Error())
		}
		conn.Close()
	}
	return release, true, nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
