package analytics

import (
	"context"

	"github.com/shubh-37/multipost-agent/internal/models"
)

// Sink receives one event per fan-out batch. Failures are reported to the
// caller, which logs them and carries on.
type Sink interface {
	Record(ctx context.Context, event *models.AnalyticsEvent) error
}

// NopSink discards every event
type NopSink struct{}

func (NopSink) Record(context.Context, *models.AnalyticsEvent) error {
	return nil
}
