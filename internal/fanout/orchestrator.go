package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shubh-37/multipost-agent/internal/analytics"
	"github.com/shubh-37/multipost-agent/internal/logging"
	"github.com/shubh-37/multipost-agent/internal/models"
	"github.com/shubh-37/multipost-agent/internal/platforms"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeout          = 25 * time.Second
	defaultAnalyticsTimeout = 5 * time.Second
)

// Options tunes a single Orchestrator
type Options struct {
	// Timeout bounds a whole batch. Zero means DefaultTimeout.
	Timeout time.Duration
	// SkipUnregistered drops platforms with no adapter instead of reporting
	// them as failed outcomes.
	SkipUnregistered bool
	// AnalyticsTimeout bounds the analytics write after a batch
	AnalyticsTimeout time.Duration
}

// Orchestrator publishes one request to every requested platform concurrently
type Orchestrator struct {
	registry *platforms.Registry
	sink     analytics.Sink
	metrics  *Metrics
	logger   logging.Logger
	opts     Options

	background sync.WaitGroup
}

// NewOrchestrator wires the adapters and sink. A nil sink discards analytics
// and a nil metrics records nothing.
func NewOrchestrator(registry *platforms.Registry, sink analytics.Sink, metrics *Metrics, logger logging.Logger, opts Options) *Orchestrator {
	if sink == nil {
		sink = analytics.NopSink{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.AnalyticsTimeout <= 0 {
		opts.AnalyticsTimeout = defaultAnalyticsTimeout
	}

	return &Orchestrator{
		registry: registry,
		sink:     sink,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
	}
}

// Timeout is the deadline applied to every batch
func (o *Orchestrator) Timeout() time.Duration {
	return o.opts.Timeout
}

type slotState int

const (
	slotPending slotState = iota
	slotSettled
	slotSkipped
)

type slot struct {
	state   slotState
	outcome models.PlatformOutcome
}

// PublishToAll dispatches req to every platform and waits until all of them
// settle or the batch timeout fires, whichever comes first. On timeout the
// in-flight publishes are cancelled and the report carries only what settled.
// It never returns an error: failures are reported as outcomes.
func (o *Orchestrator) PublishToAll(ctx context.Context, req models.PostRequest) *models.AggregatedReport {
	startedAt := time.Now()
	report := &models.AggregatedReport{BatchID: uuid.NewString()}

	req, err := NormalizeRequest(req)
	if err != nil {
		o.logger.WithError(err).Warn("⚠️ Rejected multi-platform post")
		report.CompletedAt = time.Now().UTC()
		report.Summary = BuildErrorSummary(err, report.CompletedAt)
		return report
	}

	log := o.logger.WithFields(logging.Fields{
		"batch_id":  report.BatchID,
		"platforms": joinPlatforms(req.Platforms),
		"has_media": req.HasMedia(),
	})
	log.Info("🚀 Starting multi-platform post")

	adapters := make([]platforms.Adapter, len(req.Platforms))
	dispatched := 0
	for i, id := range req.Platforms {
		adapter, ok := o.registry.Get(id)
		if !ok && o.opts.SkipUnregistered {
			log.WithField("platform", id).Warn("⚠️ Skipping platform with no adapter")
			continue
		}
		adapters[i] = adapter
		dispatched++
	}
	if dispatched == 0 {
		log.WithError(ErrNoPlatforms).Warn("⚠️ Rejected multi-platform post")
		report.CompletedAt = time.Now().UTC()
		report.Summary = BuildErrorSummary(ErrNoPlatforms, report.CompletedAt)
		return report
	}

	batchCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		slots = make([]slot, len(req.Platforms))
		g     errgroup.Group
	)

	for i, id := range req.Platforms {
		adapter := adapters[i]
		switch {
		case adapter != nil:
		case o.opts.SkipUnregistered:
			slots[i].state = slotSkipped
			continue
		default:
			slots[i] = slot{state: slotSettled, outcome: unregisteredOutcome(id, req.Text)}
			o.metrics.observePublish(id, false, 0)
			continue
		}

		g.Go(func() error {
			outcome := o.publishOne(batchCtx, id, adapter, req)
			mu.Lock()
			slots[i] = slot{state: slotSettled, outcome: outcome}
			mu.Unlock()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	interrupted := false
	select {
	case <-done:
	case <-batchCtx.Done():
		select {
		case <-done:
		default:
			interrupted = true
		}
	}
	// Only our own deadline is a timeout. A caller that went away settles
	// the unfinished platforms as failures.
	callerErr := ctx.Err()
	timedOut := interrupted && callerErr == nil
	cancel()

	mu.Lock()
	for i, s := range slots {
		if s.state == slotPending && interrupted && !timedOut {
			s = slot{state: slotSettled, outcome: cancelledOutcome(req.Platforms[i], Truncate(req.Text, adapters[i].MaxLength()), callerErr)}
		}
		switch s.state {
		case slotSettled:
			report.Outcomes = append(report.Outcomes, s.outcome)
			if s.outcome.Success {
				report.SuccessCount++
			} else {
				report.FailureCount++
			}
		case slotPending:
			report.Pending = append(report.Pending, req.Platforms[i])
		}
	}
	mu.Unlock()

	report.TimedOut = timedOut
	report.CompletedAt = time.Now().UTC()

	if timedOut {
		log.WithFields(logging.Fields{
			"pending":  joinPlatforms(report.Pending),
			"duration": time.Since(startedAt).String(),
			"reason":   context.Cause(batchCtx).Error(),
		}).Warn("⏱️ Multi-platform post timed out")
		report.Summary = BuildTimeoutSummary(req, report, o.opts.Timeout, startedAt)
	} else {
		if interrupted {
			log.WithError(callerErr).Warn("⚠️ Multi-platform post cancelled by caller")
		}
		report.Summary = BuildSummary(report, report.CompletedAt)
	}

	o.recordAnalytics(ctx, req, report)
	o.metrics.observeBatch(batchStatus(report))

	log.WithFields(logging.Fields{
		"success_count": report.SuccessCount,
		"failure_count": report.FailureCount,
		"timed_out":     report.TimedOut,
		"duration":      time.Since(startedAt).String(),
	}).Info("✅ Multi-platform post finished")

	return report
}

// publishOne runs a single adapter and converts whatever happens, panics
// included, into an outcome
func (o *Orchestrator) publishOne(ctx context.Context, id models.PlatformID, adapter platforms.Adapter, req models.PostRequest) (outcome models.PlatformOutcome) {
	text := Truncate(req.Text, adapter.MaxLength())
	outcome = models.PlatformOutcome{Platform: id, PublishedText: text}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			outcome.Success = false
			outcome.Message = fmt.Sprintf("adapter panicked: %v", r)
		}
		outcome.Duration = time.Since(start)
		o.metrics.observePublish(id, outcome.Success, outcome.Duration)

		entry := o.logger.WithFields(logging.Fields{
			"platform": id,
			"duration": outcome.Duration.String(),
		})
		if outcome.Success {
			entry.Info("✅ Posted")
		} else {
			entry.WithField("error", outcome.Message).Error("❌ Post failed")
		}
	}()

	result, err := adapter.Publish(ctx, models.PublishInput{Text: text, MediaRef: req.MediaRef})
	if err != nil {
		outcome.Message = err.Error()
		if outcome.Message == "" {
			outcome.Message = "unknown error"
		}
		return outcome
	}
	if result == nil {
		result = &models.PublishResult{}
	}

	outcome.Success = true
	outcome.PostID = result.PostID
	outcome.URL = result.URL
	outcome.Message = successMessage(id, result)
	return outcome
}

func (o *Orchestrator) recordAnalytics(ctx context.Context, req models.PostRequest, report *models.AggregatedReport) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.AnalyticsTimeout)
	defer cancel()

	event := models.NewAnalyticsEvent(uuid.NewString(), req, report)
	if err := o.sink.Record(writeCtx, event); err != nil {
		o.logger.WithError(err).WithField("batch_id", report.BatchID).Error("❌ Failed to record analytics")
	}
}

// PublishInBackground validates req, starts the batch on a detached context
// and returns the acknowledgement text immediately. The final summary is
// only logged.
func (o *Orchestrator) PublishInBackground(req models.PostRequest) (string, error) {
	req, err := NormalizeRequest(req)
	if err != nil {
		return "", err
	}

	o.background.Add(1)
	go func() {
		defer o.background.Done()
		report := o.PublishToAll(context.Background(), req)
		o.logger.WithFields(logging.Fields{
			"batch_id":      report.BatchID,
			"success_count": report.SuccessCount,
			"failure_count": report.FailureCount,
			"timed_out":     report.TimedOut,
		}).Info("📬 Background multi-platform post completed")
	}()

	return BuildAcknowledgement(req, o.Timeout(), time.Now()), nil
}

// Wait blocks until every background batch has finished
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

func unregisteredOutcome(id models.PlatformID, text string) models.PlatformOutcome {
	return models.PlatformOutcome{
		Platform:      id,
		Message:       fmt.Sprintf("no adapter registered for platform %q", string(id)),
		PublishedText: text,
	}
}

func cancelledOutcome(id models.PlatformID, text string, err error) models.PlatformOutcome {
	return models.PlatformOutcome{
		Platform:      id,
		Message:       fmt.Sprintf("request cancelled before %s answered: %v", id.DisplayName(), err),
		PublishedText: text,
	}
}

func successMessage(id models.PlatformID, result *models.PublishResult) string {
	msg := fmt.Sprintf("Posted to %s", id.DisplayName())
	if result.HasMedia {
		msg += " with media"
	}
	if result.URL != "" {
		msg += ": " + result.URL
	}
	return msg
}
