package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/social-scheduler/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// MaxVideoSize is the largest upload the binary store accepts.
const MaxVideoSize = 500 << 20

const keyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

var allowedVideoTypes = map[string]struct{}{
	"mp4": {}, "mov": {}, "webm": {}, "m4v": {},
}

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9_-]+`)

type MediaService interface {
	Store(ctx context.Context, data []byte, filename string) (*transfer.UploadResult, error)
	Delete(ctx context.Context, publicID string) error
}

type mediaService struct {
	storage   ObjectStorage
	folder    string
	publicURL string
	maxSize   int
	now       func() time.Time
}

func NewMediaService(storage ObjectStorage, folder, publicURL string) MediaService {
	return &mediaService{
		storage:   storage,
		folder:    strings.Trim(folder, "/"),
		publicURL: strings.TrimRight(publicURL, "/"),
		maxSize:   MaxVideoSize,
		now:       time.Now,
	}
}

func (s *mediaService) Store(ctx context.Context, data []byte, filename string) (*transfer.UploadResult, error) {
	if len(data) == 0 {
		return nil, invalid("file", "no file provided")
	}
	if len(data) > s.maxSize {
		return nil, invalid("file", "file size exceeds 500MB limit")
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == types.Unknown {
		return nil, invalid("file", "invalid file type, only video files are allowed")
	}
	if _, ok := allowedVideoTypes[kind.Extension]; !ok {
		return nil, invalid("file", fmt.Sprintf("file type %s is not allowed, only video files are allowed", kind.Extension))
	}

	key, err := s.objectKey(filename, kind.Extension)
	if err != nil {
		return nil, err
	}

	if err := s.storage.PutObject(ctx, key, data, kind.MIME.Value); err != nil {
		return nil, fmt.Errorf("error uploading file: %w", err)
	}

	slog.Info("media stored", "public_id", key, "content_type", kind.MIME.Value, "size", len(data))
	return &transfer.UploadResult{
		URL:      s.publicURL + "/" + key,
		PublicID: key,
	}, nil
}

func (s *mediaService) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return errors.New("public id is empty")
	}
	if err := s.storage.DeleteObject(ctx, publicID); err != nil {
		return fmt.Errorf("error deleting file: %w", err)
	}
	return nil
}

func (s *mediaService) objectKey(filename, ext string) (string, error) {
	suffix, err := gonanoid.Generate(keyAlphabet, 8)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	name := fmt.Sprintf("%d-%s-%s.%s", s.now().UnixMilli(), sanitizeBaseName(filename), suffix, ext)
	if s.folder == "" {
		return name, nil
	}
	return s.folder + "/" + name, nil
}

func sanitizeBaseName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = unsafeKeyChars.ReplaceAllString(strings.ToLower(base), "-")
	base = strings.Trim(base, "-")
	if len(base) > 64 {
		base = strings.Trim(base[:64], "-")
	}
	if base == "" || base == "." {
		return "video"
	}
	return base
}
