package transfer

import (
	"time"

	"github.com/maheshrc27/social-scheduler/internal/models"
)

type PostCreation struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Hashtags      []string `json:"hashtags"`
	MediaURL      string   `json:"mediaUrl"`
	MediaPublicID string   `json:"mediaPublicId"`
	Platforms     []string `json:"platforms"`
	ScheduledAt   string   `json:"scheduledAt"`
}

// OutcomeCallback is what the publishing workflow posts back once it is done.
type OutcomeCallback struct {
	PostID          string                 `json:"postId"`
	Success         *bool                  `json:"success"`
	PlatformResults models.PlatformResults `json:"platformResults,omitempty"`
	ErrorMessage    string                 `json:"errorMessage,omitempty"`
}

func (c *OutcomeCallback) Succeeded() bool {
	return c.Success != nil && *c.Success
}

type SweepResult struct {
	Message    string `json:"message"`
	Processed  int    `json:"processed"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
}

type UploadResult struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// DispatchPayload is the body handed to the external publishing workflow.
type DispatchPayload struct {
	PostID      string    `json:"postId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Hashtags    []string  `json:"hashtags"`
	MediaURL    string    `json:"mediaUrl"`
	Platforms   []string  `json:"platforms"`
	Caption     string    `json:"caption"`
	ScheduledAt time.Time `json:"scheduledAt"`
}

func NewDispatchPayload(post *models.Post) DispatchPayload {
	hashtags := post.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	return DispatchPayload{
		PostID:      post.ID,
		Title:       post.Title,
		Description: post.Description,
		Hashtags:    hashtags,
		MediaURL:    post.MediaURL,
		Platforms:   post.PlatformNames(),
		Caption:     post.Caption(),
		ScheduledAt: post.ScheduledAt,
	}
}
