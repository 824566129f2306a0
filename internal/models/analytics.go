package models

import "time"

const (
	AnalyticsTypeMultiPlatformPost = "multi_platform_post"
	AnalyticsTypeThreadsThread     = "threads_thread_creation"
)

// AnalyticsEvent summarizes one fan-out batch for the analytics sink
type AnalyticsEvent struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Platforms    []string          `json:"platforms"`
	SuccessCount int               `json:"success_count"`
	ErrorCount   int               `json:"error_count"`
	TextLength   int               `json:"text_length"`
	HasMedia     bool              `json:"has_media"`
	TimedOut     bool              `json:"timed_out"`
	Outcomes     []PlatformOutcome `json:"outcomes"`
	Timestamp    time.Time         `json:"timestamp"`
}

// NewAnalyticsEvent builds the event recorded after a batch settles or times out
func NewAnalyticsEvent(id string, req PostRequest, report *AggregatedReport) *AnalyticsEvent {
	platforms := make([]string, len(req.Platforms))
	for i, p := range req.Platforms {
		platforms[i] = string(p)
	}

	outcomes := make([]PlatformOutcome, len(report.Outcomes))
	copy(outcomes, report.Outcomes)

	return &AnalyticsEvent{
		ID:           id,
		Type:         AnalyticsTypeMultiPlatformPost,
		Platforms:    platforms,
		SuccessCount: report.SuccessCount,
		ErrorCount:   report.FailureCount,
		TextLength:   len([]rune(req.Text)),
		HasMedia:     req.HasMedia(),
		TimedOut:     report.TimedOut,
		Outcomes:     outcomes,
		Timestamp:    time.Now().UTC(),
	}
}
