package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/social-scheduler/configs"
	"github.com/maheshrc27/social-scheduler/internal/models"
	"github.com/maheshrc27/social-scheduler/internal/repository"
	"github.com/maheshrc27/social-scheduler/internal/service"
	"github.com/maheshrc27/social-scheduler/internal/transfer"
	"github.com/maheshrc27/social-scheduler/pkg/utils"
)

type stubDispatcher struct {
	mu    sync.Mutex
	posts []string
}

func (d *stubDispatcher) Dispatch(_ context.Context, post *models.Post) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.posts = append(d.posts, post.ID)
	return nil
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string]string
}

func (s *memoryStorage) PutObject(_ context.Context, key string, _ []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = contentType
	return nil
}

func (s *memoryStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type testServer struct {
	app        *fiber.App
	repo       repository.PostRepository
	dispatcher *stubDispatcher
	storage    *memoryStorage
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:            config.EnvDevelopment,
		FrontendURL:       "http://localhost:5173",
		CronSecret:        "cron-secret",
		WebhookSecret:     "hook-secret",
		RequirePublishing: true,
	}
}

func newTestServer(t *testing.T, cfg *config.Config, withMedia bool) *testServer {
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
	repo := repository.NewPostRepository(db, repository.DriverSQLite)

	ts := &testServer{
		repo:       repo,
		dispatcher: &stubDispatcher{},
		storage:    &memoryStorage{objects: map[string]string{}},
	}

	var media service.MediaService
	if withMedia {
		media = service.NewMediaService(ts.storage, "social-scheduler", "https://cdn.example.com")
	}

	ts.app = NewApp(cfg, Services{
		Posts:      service.NewPostService(repo, media, nil),
		Media:      media,
		Sweeper:    service.NewSweepService(repo, ts.dispatcher, 2, time.Second),
		Reconciler: service.NewReconcileService(repo, cfg.RequirePublishing),
	}, Options{})
	return ts
}

func (ts *testServer) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()

	resp, err := ts.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(body) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("decode %s: %v", body, err)
		}
	}
	return resp.StatusCode, out
}

func jsonRequest(method, path string, body any) *http.Request {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func validPostBody() map[string]any {
	return map[string]any{
		"title":       "Demo",
		"description": "Watch this",
		"hashtags":    []string{"launch", "#ai"},
		"mediaUrl":    "https://media.example.com/demo.mp4",
		"platforms":   []string{"instagram", "tiktok"},
		"scheduledAt": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	}
}

func (ts *testServer) seedDuePost(t *testing.T) *models.Post {
	t.Helper()

	post := &models.Post{
		Title:       "due",
		MediaURL:    "https://media.example.com/due.mp4",
		Platforms:   []models.Platform{models.PlatformYoutube},
		ScheduledAt: time.Now().Add(-time.Minute),
	}
	if err := ts.repo.Create(context.Background(), post); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return post
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, testConfig(), false)

	resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestPostsAPI(t *testing.T) {
	ts := newTestServer(t, testConfig(), false)

	status, body := ts.do(t, jsonRequest(http.MethodPost, "/api/posts", validPostBody()))
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, body %v", status, body)
	}
	created := body["post"].(map[string]any)
	id := created["id"].(string)
	if created["status"] != "pending" {
		t.Errorf("status = %v", created["status"])
	}

	status, body = ts.do(t, jsonRequest(http.MethodGet, "/api/posts", nil))
	if status != http.StatusOK || len(body["posts"].([]any)) != 1 {
		t.Fatalf("list status = %d, body %v", status, body)
	}

	status, body = ts.do(t, jsonRequest(http.MethodGet, "/api/posts/"+id, nil))
	if status != http.StatusOK || body["post"].(map[string]any)["title"] != "Demo" {
		t.Fatalf("get status = %d, body %v", status, body)
	}

	status, body = ts.do(t, jsonRequest(http.MethodDelete, "/api/posts/"+id, nil))
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("delete status = %d, body %v", status, body)
	}

	status, body = ts.do(t, jsonRequest(http.MethodGet, "/api/posts/"+id, nil))
	if status != http.StatusNotFound || body["error"] != "Post not found" {
		t.Fatalf("get deleted status = %d, body %v", status, body)
	}
}

func TestCreatePost_ValidationErrors(t *testing.T) {
	ts := newTestServer(t, testConfig(), false)

	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{"missing title", func(b map[string]any) { delete(b, "title") }, "title"},
		{"no platforms", func(b map[string]any) { b["platforms"] = []string{} }, "platforms"},
		{"past schedule", func(b map[string]any) {
			b["scheduledAt"] = time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
		}, "scheduledAt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validPostBody()
			tt.mutate(b)

			status, body := ts.do(t, jsonRequest(http.MethodPost, "/api/posts", b))
			if status != http.StatusBadRequest || body["field"] != tt.field {
				t.Fatalf("status = %d, body %v", status, body)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	if status, _ := ts.do(t, req); status != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", status)
	}
}

func TestDeletePost_NonPending(t *testing.T) {
	ts := newTestServer(t, testConfig(), false)
	post := ts.seedDuePost(t)
	ts.repo.ClaimForDispatch(context.Background(), post.ID)

	status, body := ts.do(t, jsonRequest(http.MethodDelete, "/api/posts/"+post.ID, nil))
	if status != http.StatusBadRequest || body["error"] != "cannot delete a non-pending post" {
		t.Fatalf("status = %d, body %v", status, body)
	}
}

func TestPostsAPI_TokenAuth(t *testing.T) {
	cfg := testConfig()
	cfg.SecretKey = "jwt-secret"
	ts := newTestServer(t, cfg, false)

	status, _ := ts.do(t, jsonRequest(http.MethodGet, "/api/posts", nil))
	if status != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", status)
	}

	req := jsonRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	if status, _ := ts.do(t, req); status != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", status)
	}

	token, err := utils.GenerateToken("jwt-secret", "dashboard", time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	req = jsonRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if status, _ := ts.do(t, req); status != http.StatusOK {
		t.Fatalf("valid token status = %d", status)
	}
}

// failingSweeper settles every post but reports a store error.
type failingSweeper struct {
	err error
}

func (s failingSweeper) Sweep(context.Context) (*transfer.SweepResult, error) {
	return &transfer.SweepResult{Processed: 2, Successful: 1, Failed: 1}, s.err
}

func (s failingSweeper) DispatchPost(context.Context, string) (service.DispatchOutcome, error) {
	return service.DispatchFailed, s.err
}

func TestCronPublish(t *testing.T) {
	t.Run("development needs no secret", func(t *testing.T) {
		ts := newTestServer(t, testConfig(), false)
		post := ts.seedDuePost(t)

		status, body := ts.do(t, jsonRequest(http.MethodGet, "/api/cron/publish", nil))
		if status != http.StatusOK {
			t.Fatalf("status = %d, body %v", status, body)
		}
		if body["processed"] != float64(1) || body["successful"] != float64(1) {
			t.Errorf("body = %v", body)
		}

		got, _ := ts.repo.GetByID(context.Background(), post.ID)
		if got.Status != models.PostStatusPublishing {
			t.Errorf("status = %s, want publishing", got.Status)
		}

		status, body = ts.do(t, jsonRequest(http.MethodPost, "/api/cron/publish", nil))
		if status != http.StatusOK || body["processed"] != float64(0) || body["message"] != "No posts to publish" {
			t.Errorf("second sweep status = %d, body %v", status, body)
		}
	})

	t.Run("persistence error reports sweep failure", func(t *testing.T) {
		cfg := testConfig()
		ts := newTestServer(t, cfg, false)
		ts.app = NewApp(cfg, Services{
			Posts:      service.NewPostService(ts.repo, nil, nil),
			Sweeper:    failingSweeper{err: errors.New("post abc: error claiming post: db down")},
			Reconciler: service.NewReconcileService(ts.repo, cfg.RequirePublishing),
		}, Options{})

		status, body := ts.do(t, jsonRequest(http.MethodGet, "/api/cron/publish", nil))
		if status != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", status)
		}
		if body["error"] != "Sweep failed" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("production requires the bearer secret", func(t *testing.T) {
		cfg := testConfig()
		cfg.AppEnv = config.EnvProduction
		ts := newTestServer(t, cfg, false)

		for _, header := range []string{"", "Bearer wrong", "cron-secret"} {
			req := jsonRequest(http.MethodGet, "/api/cron/publish", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			if status, _ := ts.do(t, req); status != http.StatusUnauthorized {
				t.Errorf("header %q: status = %d, want 401", header, status)
			}
		}

		req := jsonRequest(http.MethodGet, "/api/cron/publish", nil)
		req.Header.Set("Authorization", "Bearer cron-secret")
		if status, _ := ts.do(t, req); status != http.StatusOK {
			t.Errorf("valid secret status = %d", status)
		}
	})

	t.Run("production without a configured secret fails closed", func(t *testing.T) {
		cfg := testConfig()
		cfg.AppEnv = config.EnvProduction
		cfg.CronSecret = ""
		ts := newTestServer(t, cfg, false)

		req := jsonRequest(http.MethodGet, "/api/cron/publish", nil)
		req.Header.Set("Authorization", "Bearer ")
		if status, _ := ts.do(t, req); status != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", status)
		}
	})
}

func TestWebhookOutcome(t *testing.T) {
	ts := newTestServer(t, testConfig(), false)
	post := ts.seedDuePost(t)

	callback := func(secret string, body any) (int, map[string]any) {
		req := jsonRequest(http.MethodPost, "/api/webhook/n8n", body)
		if secret != "" {
			req.Header.Set("X-Webhook-Secret", secret)
		}
		return ts.do(t, req)
	}

	if status, _ := callback("wrong", map[string]any{"postId": post.ID, "success": true}); status != http.StatusUnauthorized {
		t.Fatalf("wrong secret status = %d", status)
	}
	if status, _ := callback("", map[string]any{"postId": post.ID, "success": true}); status != http.StatusUnauthorized {
		t.Fatalf("missing secret status = %d", status)
	}

	status, body := callback("hook-secret", map[string]any{"success": true})
	if status != http.StatusBadRequest || body["error"] != "postId is required" {
		t.Fatalf("missing postId status = %d, body %v", status, body)
	}

	status, _ = callback("hook-secret", map[string]any{"postId": post.ID, "success": true})
	if status != http.StatusConflict {
		t.Fatalf("pending post status = %d, want 409", status)
	}

	ts.repo.ClaimForDispatch(context.Background(), post.ID)
	status, body = callback("hook-secret", map[string]any{
		"postId":  post.ID,
		"success": true,
		"platformResults": map[string]any{
			"youtube": map[string]any{"success": true, "url": "https://youtube.com/watch?v=1"},
		},
	})
	if status != http.StatusOK || body["ok"] != true {
		t.Fatalf("status = %d, body %v", status, body)
	}

	got, _ := ts.repo.GetByID(context.Background(), post.ID)
	if got.Status != models.PostStatusPublished || got.PlatformResults["youtube"].URL != "https://youtube.com/watch?v=1" {
		t.Errorf("unexpected post %+v", got)
	}

	status, _ = callback("hook-secret", map[string]any{"postId": "missing", "success": false})
	if status != http.StatusNotFound {
		t.Errorf("unknown post status = %d, want 404", status)
	}
}

func multipartUpload(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	part.Write(data)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	mp4 := []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2avc1mp41")

	t.Run("stores videos", func(t *testing.T) {
		ts := newTestServer(t, testConfig(), true)

		status, body := ts.do(t, multipartUpload(t, "launch.mp4", mp4))
		if status != http.StatusOK {
			t.Fatalf("status = %d, body %v", status, body)
		}
		publicID, _ := body["publicId"].(string)
		if !strings.HasPrefix(publicID, "social-scheduler/") {
			t.Errorf("publicId = %v", body["publicId"])
		}
		if body["url"] != "https://cdn.example.com/"+publicID {
			t.Errorf("url = %v", body["url"])
		}
		if ts.storage.objects[publicID] != "video/mp4" {
			t.Errorf("stored objects = %v", ts.storage.objects)
		}
	})

	t.Run("rejects non-video", func(t *testing.T) {
		ts := newTestServer(t, testConfig(), true)

		status, body := ts.do(t, multipartUpload(t, "notes.txt", []byte("plain text, not a video")))
		if status != http.StatusBadRequest || body["field"] != "file" {
			t.Fatalf("status = %d, body %v", status, body)
		}
	})

	t.Run("requires a file", func(t *testing.T) {
		ts := newTestServer(t, testConfig(), true)

		req := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
		status, body := ts.do(t, req)
		if status != http.StatusBadRequest || body["error"] != "No file provided" {
			t.Fatalf("status = %d, body %v", status, body)
		}
	})

	t.Run("unconfigured storage", func(t *testing.T) {
		ts := newTestServer(t, testConfig(), false)

		if status, _ := ts.do(t, multipartUpload(t, "launch.mp4", mp4)); status != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", status)
		}
	})
}
