package models

import (
	"strings"
	"time"
)

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTiktok    Platform = "tiktok"
	PlatformYoutube   Platform = "youtube"
	PlatformTwitter   Platform = "twitter"
)

var Platforms = []Platform{PlatformInstagram, PlatformTiktok, PlatformYoutube, PlatformTwitter}

func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformTiktok, PlatformYoutube, PlatformTwitter:
		return true
	default:
		return false
	}
}

type PlatformResult struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PlatformResults is keyed by platform name.
type PlatformResults map[string]PlatformResult

type Post struct {
	ID              string          `db:"id" json:"id"`
	Title           string          `db:"title" json:"title"`
	Description     string          `db:"description" json:"description"`
	Hashtags        []string        `db:"hashtags" json:"hashtags"`
	MediaURL        string          `db:"media_url" json:"media_url"`
	MediaPublicID   string          `db:"media_public_id" json:"media_public_id"`
	Platforms       []Platform      `db:"platforms" json:"platforms"`
	ScheduledAt     time.Time       `db:"scheduled_at" json:"scheduled_at"`
	Status          PostStatus      `db:"status" json:"status"`
	ErrorMessage    string          `db:"error_message" json:"error_message,omitempty"`
	PlatformResults PlatformResults `db:"platform_results" json:"platform_results,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// IsDue reports whether the post is pending and its scheduled time has passed.
func (p *Post) IsDue(now time.Time) bool {
	return p.Status == PostStatusPending && !p.ScheduledAt.After(now)
}

// PlatformNames returns the platforms as plain strings, in order.
func (p *Post) PlatformNames() []string {
	names := make([]string, len(p.Platforms))
	for i, platform := range p.Platforms {
		names[i] = string(platform)
	}
	return names
}

// Caption is the description followed by a blank line and the hashtags,
// each rendered with exactly one leading '#', in input order.
func (p *Post) Caption() string {
	tags := make([]string, 0, len(p.Hashtags))
	for _, tag := range p.Hashtags {
		if normalized := NormalizeHashtag(tag); normalized != "" {
			tags = append(tags, normalized)
		}
	}
	return strings.TrimSpace(p.Description + "\n\n" + strings.Join(tags, " "))
}

func NormalizeHashtag(tag string) string {
	tag = strings.TrimLeft(strings.TrimSpace(tag), "#")
	if tag == "" {
		return ""
	}
	return "#" + tag
}
