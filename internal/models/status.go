package models

// PostStatus is the lifecycle state of a scheduled post.
//
//	pending → publishing → published
//	                     ↘ failed
//
// Nothing ever returns to pending.
type PostStatus string

const (
	PostStatusPending    PostStatus = "pending"
	PostStatusPublishing PostStatus = "publishing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
)

func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusPending, PostStatusPublishing, PostStatusPublished, PostStatusFailed:
		return true
	default:
		return false
	}
}

func (s PostStatus) IsTerminal() bool {
	return s == PostStatusPublished || s == PostStatusFailed
}

// CanTransitionTo reports whether moving from s to next follows the lifecycle.
func (s PostStatus) CanTransitionTo(next PostStatus) bool {
	switch s {
	case PostStatusPending:
		return next == PostStatusPublishing
	case PostStatusPublishing:
		return next == PostStatusPublished || next == PostStatusFailed
	default:
		return false
	}
}
