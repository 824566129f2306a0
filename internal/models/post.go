package models

import "time"

// PlatformID identifies a social network an adapter publishes to
type PlatformID string

const (
	PlatformTwitter   PlatformID = "twitter"
	PlatformThreads   PlatformID = "threads"
	PlatformInstagram PlatformID = "instagram"
	PlatformSlack     PlatformID = "slack"
)

// DisplayName returns the label used in summaries ("Twitter/X", "Threads", ...)
func (p PlatformID) DisplayName() string {
	switch p {
	case PlatformTwitter:
		return "Twitter/X"
	case PlatformThreads:
		return "Threads"
	case PlatformInstagram:
		return "Instagram"
	case PlatformSlack:
		return "Slack"
	default:
		return string(p)
	}
}

// PostRequest is one fan-out invocation: the same text published to every
// platform in Platforms, in order.
type PostRequest struct {
	Text      string       `json:"text"`
	Platforms []PlatformID `json:"platforms"`
	MediaRef  string       `json:"media_ref,omitempty"` // http(s) URL or data: URL
}

// HasMedia reports whether a media reference was supplied
func (r PostRequest) HasMedia() bool {
	return r.MediaRef != ""
}

// PublishInput is what a single adapter receives, text already truncated to
// the adapter's limit.
type PublishInput struct {
	Text     string
	MediaRef string
}

// PublishResult is returned by an adapter on success
type PublishResult struct {
	PostID   string
	URL      string
	HasMedia bool
}

// PlatformOutcome is the settled result of one adapter invocation
type PlatformOutcome struct {
	Platform      PlatformID    `json:"platform"`
	Success       bool          `json:"success"`
	Message       string        `json:"message"`
	PublishedText string        `json:"published_text"`
	PostID        string        `json:"post_id,omitempty"`
	URL           string        `json:"url,omitempty"`
	Duration      time.Duration `json:"-"`
}

// AggregatedReport combines every outcome of one PostRequest. Outcomes are in
// dispatch order. On timeout only the outcomes that settled before the
// deadline are present and the remaining platforms are listed in Pending.
type AggregatedReport struct {
	BatchID      string            `json:"batch_id"`
	Outcomes     []PlatformOutcome `json:"outcomes"`
	Pending      []PlatformID      `json:"pending,omitempty"`
	SuccessCount int               `json:"success_count"`
	FailureCount int               `json:"failure_count"`
	TimedOut     bool              `json:"timed_out"`
	Summary      string            `json:"summary"`
	CompletedAt  time.Time         `json:"completed_at"`
}
