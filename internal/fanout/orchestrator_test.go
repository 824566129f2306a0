package fanout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shubh-37/multipost-agent/internal/logging"
	"github.com/shubh-37/multipost-agent/internal/models"
	"github.com/shubh-37/multipost-agent/internal/platforms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAdapter struct {
	platform models.PlatformID
	limit    int
	publish  func(ctx context.Context, in models.PublishInput) (*models.PublishResult, error)

	mu    sync.Mutex
	calls []models.PublishInput
}

func (f *fakeAdapter) Platform() models.PlatformID { return f.platform }
func (f *fakeAdapter) MaxLength() int               { return f.limit }

func (f *fakeAdapter) Publish(ctx context.Context, in models.PublishInput) (*models.PublishResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	f.mu.Unlock()
	if f.publish == nil {
		return &models.PublishResult{PostID: string(f.platform) + "-1"}, nil
	}
	return f.publish(ctx, in)
}

func (f *fakeAdapter) Calls() []models.PublishInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PublishInput(nil), f.calls...)
}

func succeeding(id models.PlatformID, limit int) *fakeAdapter {
	return &fakeAdapter{platform: id, limit: limit}
}

func failing(id models.PlatformID, err error) *fakeAdapter {
	return &fakeAdapter{platform: id, publish: func(context.Context, models.PublishInput) (*models.PublishResult, error) {
		return nil, err
	}}
}

// blocking adapters only return once the batch context is cancelled
func blocking(id models.PlatformID) *fakeAdapter {
	return &fakeAdapter{platform: id, publish: func(ctx context.Context, _ models.PublishInput) (*models.PublishResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
}

type recordingSink struct {
	mu     sync.Mutex
	events []*models.AnalyticsEvent
	err    error
}

func (s *recordingSink) Record(_ context.Context, event *models.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Events() []*models.AnalyticsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.AnalyticsEvent(nil), s.events...)
}

func newTestOrchestrator(sink *recordingSink, opts Options, adapters ...platforms.Adapter) *Orchestrator {
	if sink == nil {
		sink = &recordingSink{}
	}
	return NewOrchestrator(platforms.NewRegistry(adapters...), sink, nil, logging.NewDiscardLogger(), opts)
}

func platformIDs(outcomes []models.PlatformOutcome) []models.PlatformID {
	ids := make([]models.PlatformID, len(outcomes))
	for i, o := range outcomes {
		ids[i] = o.Platform
	}
	return ids
}

func TestPublishToAll_AllSucceed(t *testing.T) {
	sink := &recordingSink{}
	o := newTestOrchestrator(sink, Options{},
		succeeding(models.PlatformTwitter, 280),
		succeeding(models.PlatformThreads, 500),
	)

	report := o.PublishToAll(context.Background(), models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"twitter", "threads"},
	})

	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 0, report.FailureCount)
	assert.False(t, report.TimedOut)
	assert.Empty(t, report.Pending)
	assert.NotEmpty(t, report.BatchID)
	assert.Contains(t, report.Summary, "All platforms posted successfully.")
	assert.Equal(t, []models.PlatformID{models.PlatformTwitter, models.PlatformThreads}, platformIDs(report.Outcomes))

	for _, outcome := range report.Outcomes {
		assert.True(t, outcome.Success)
		assert.Equal(t, "Hello world", outcome.PublishedText)
		assert.NotEmpty(t, outcome.Message)
	}

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.AnalyticsTypeMultiPlatformPost, events[0].Type)
	assert.Equal(t, []string{"twitter", "threads"}, events[0].Platforms)
	assert.Equal(t, 2, events[0].SuccessCount)
	assert.Equal(t, 0, events[0].ErrorCount)
	assert.Equal(t, 11, events[0].TextLength)
	assert.False(t, events[0].HasMedia)
	assert.False(t, events[0].TimedOut)
}

func TestPublishToAll_PartialFailure(t *testing.T) {
	o := newTestOrchestrator(nil, Options{},
		succeeding(models.PlatformTwitter, 280),
		failing(models.PlatformThreads, errors.New("Threads API rate limit exceeded")),
	)

	report := o.PublishToAll(context.Background(), models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"threads", "twitter"},
	})

	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 1, report.FailureCount)
	require.Len(t, report.Outcomes, 2)

	threads := report.Outcomes[0]
	assert.Equal(t, models.PlatformThreads, threads.Platform)
	assert.False(t, threads.Success)
	assert.Equal(t, "Threads API rate limit exceeded", threads.Message)
	assert.True(t, report.Outcomes[1].Success)
	assert.Contains(t, report.Summary, "Partial success: 1/2 platforms.")
}

func TestPublishToAll_AdapterPanic(t *testing.T) {
	panicky := &fakeAdapter{platform: models.PlatformThreads, publish: func(context.Context, models.PublishInput) (*models.PublishResult, error) {
		panic("boom")
	}}
	o := newTestOrchestrator(nil, Options{}, succeeding(models.PlatformTwitter, 280), panicky)

	report := o.PublishToAll(context.Background(), models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"twitter", "threads"},
	})

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 1, report.FailureCount)
	assert.False(t, report.Outcomes[1].Success)
	assert.Contains(t, report.Outcomes[1].Message, "boom")
}

func TestPublishToAll_AllFail(t *testing.T) {
	o := newTestOrchestrator(nil, Options{},
		failing(models.PlatformTwitter, errors.New("unauthorized")),
		failing(models.PlatformThreads, errors.New("forbidden")),
	)

	report := o.PublishToAll(context.Background(), models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"twitter", "threads"},
	})

	assert.Equal(t, 0, report.SuccessCount)
	assert.Equal(t, 2, report.FailureCount)
	assert.Contains(t, report.Summary, AllFailedLine)
}

func TestPublishToAll_TruncatesPerPlatform(t *testing.T) {
	twitter := succeeding(models.PlatformTwitter, 280)
	threads := succeeding(models.PlatformThreads, 500)
	o := newTestOrchestrator(nil, Options{}, twitter, threads)

	text := strings.Repeat("a", 150) + strings.Repeat("b", 150)
	report := o.PublishToAll(context.Background(), models.PostRequest{
		Text:      text,
		Platforms: []models.PlatformID{"x", "threads"},
	})
	require.Len(t, report.Outcomes, 2)

	calls := twitter.Calls()
	require.Len(t, calls, 1)
	assert.Len(t, []rune(calls[0].Text), 280)
	assert.True(t, strings.HasSuffix(calls[0].Text, "..."))
	assert.Equal(t, text[:277], calls[0].Text[:277])
	assert.Equal(t, calls[0].Text, report.Outcomes[0].PublishedText)

	calls = threads.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, text, calls[0].Text)
}

func TestPublishToAll_PassesMedia(t *testing.T) {
	twitter := succeeding(models.PlatformTwitter, 280)
	o := newTestOrchestrator(nil, Options{}, twitter)

	o.PublishToAll(context.Background(), models.PostRequest{
		Text:      "look",
		Platforms: []models.PlatformID{"twitter"},
		MediaRef:  "https://example.com/cat.png",
	})

	calls := twitter.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "https://example.com/cat.png", calls[0].MediaRef)
}

func TestPublishToAll_DedupesPlatforms(t *testing.T) {
	twitter := succeeding(models.PlatformTwitter, 280)
	o := newTestOrchestrator(nil, Options{}, twitter, succeeding(models.PlatformThreads, 500))

	report := o.PublishToAll(context.Background(), models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"X", "twitter", "THREADS"},
	})

	assert.Equal(t, []models.PlatformID{models.PlatformTwitter, models.PlatformThreads}, platformIDs(report.Outcomes))
	assert.Len(t, twitter.Calls(), 1)
}

func TestPublishToAll_UnregisteredPlatform(t *testing.T) {
	req := models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"twitter", "instagram"},
	}

	t.Run("reported as failed outcome", func(t *testing.T) {
		o := newTestOrchestrator(nil, Options{}, succeeding(models.PlatformTwitter, 280))

		report := o.PublishToAll(context.Background(), req)

		require.Len(t, report.Outcomes, 2)
		assert.Equal(t, 1, report.SuccessCount)
		assert.Equal(t, 1, report.FailureCount)
		assert.Equal(t, models.PlatformInstagram, report.Outcomes[1].Platform)
		assert.False(t, report.Outcomes[1].Success)
		assert.Equal(t, `no adapter registered for platform "instagram"`, report.Outcomes[1].Message)
	})

	t.Run("skipped", func(t *testing.T) {
		o := newTestOrchestrator(nil, Options{SkipUnregistered: true}, succeeding(models.PlatformTwitter, 280))

		report := o.PublishToAll(context.Background(), req)

		require.Len(t, report.Outcomes, 1)
		assert.Equal(t, models.PlatformTwitter, report.Outcomes[0].Platform)
		assert.Equal(t, 1, report.SuccessCount)
		assert.Equal(t, 0, report.FailureCount)
		assert.Empty(t, report.Pending)
	})
}

func TestPublishToAll_Timeout(t *testing.T) {
	sink := &recordingSink{}
	twitter := blocking(models.PlatformTwitter)
	threads := blocking(models.PlatformThreads)
	o := newTestOrchestrator(sink, Options{Timeout: 50 * time.Millisecond}, twitter, threads)

	start := time.Now()
	report := o.PublishToAll(context.Background(), models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"twitter", "threads"},
	})
	elapsed := time.Since(start)

	assert.True(t, report.TimedOut)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, []models.PlatformID{models.PlatformTwitter, models.PlatformThreads}, report.Pending)
	assert.Equal(t, 0, report.SuccessCount+report.FailureCount)
	assert.Contains(t, report.Summary, "may still be processing")

	events := sink.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].TimedOut)
}

func TestPublishToAll_TimeoutKeepsSettledOutcomes(t *testing.T) {
	o := newTestOrchestrator(nil, Options{Timeout: 50 * time.Millisecond},
		succeeding(models.PlatformTwitter, 280),
		blocking(models.PlatformThreads),
	)

	report := o.PublishToAll(context.Background(), models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"twitter", "threads"},
	})

	assert.True(t, report.TimedOut)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, models.PlatformTwitter, report.Outcomes[0].Platform)
	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, []models.PlatformID{models.PlatformThreads}, report.Pending)
}

func TestPublishToAll_CancelsAdaptersOnTimeout(t *testing.T) {
	cancelled := make(chan struct{})
	adapter := &fakeAdapter{platform: models.PlatformTwitter, publish: func(ctx context.Context, _ models.PublishInput) (*models.PublishResult, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	}}
	o := newTestOrchestrator(nil, Options{Timeout: 20 * time.Millisecond}, adapter)

	report := o.PublishToAll(context.Background(), models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"twitter"},
	})
	require.True(t, report.TimedOut)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("adapter context was not cancelled after timeout")
	}
}

func TestPublishToAll_CallerCancelIsNotTimeout(t *testing.T) {
	sink := &recordingSink{}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	o := NewOrchestrator(
		platforms.NewRegistry(succeeding(models.PlatformThreads, 500), blocking(models.PlatformTwitter)),
		sink, metrics, logging.NewDiscardLogger(), Options{Timeout: 10 * time.Second},
	)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	report := o.PublishToAll(ctx, models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"twitter", "threads"},
	})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, report.TimedOut)
	assert.Empty(t, report.Pending)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, models.PlatformTwitter, report.Outcomes[0].Platform)
	assert.False(t, report.Outcomes[0].Success)
	assert.Contains(t, report.Outcomes[0].Message, context.Canceled.Error())
	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 1, report.FailureCount)
	assert.True(t, strings.HasPrefix(report.Summary, "🚀 Multi-Platform Posting Results"))

	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.batchesTotal.WithLabelValues(BatchTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.batchesTotal.WithLabelValues(BatchPartial)))

	events := sink.Events()
	require.Len(t, events, 1)
	assert.False(t, events[0].TimedOut)
	assert.Equal(t, 1, events[0].ErrorCount)
}

func TestPublishToAll_EveryPlatformSkipped(t *testing.T) {
	sink := &recordingSink{}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	o := NewOrchestrator(
		platforms.NewRegistry(succeeding(models.PlatformTwitter, 280)),
		sink, metrics, logging.NewDiscardLogger(), Options{SkipUnregistered: true},
	)

	report := o.PublishToAll(context.Background(), models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"instagram", "mastodon"},
	})

	assert.Empty(t, report.Outcomes)
	assert.Contains(t, report.Summary, ErrNoPlatforms.Error())
	assert.NotContains(t, report.Summary, AllFailedLine)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.batchesTotal.WithLabelValues(BatchAllFailed)))
	assert.Empty(t, sink.Events())
}

func TestPublishToAll_AnalyticsFailureIsNotSurfaced(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	o := newTestOrchestrator(sink, Options{}, succeeding(models.PlatformTwitter, 280))

	report := o.PublishToAll(context.Background(), models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"twitter"},
	})

	assert.Equal(t, 1, report.SuccessCount)
	assert.Len(t, sink.Events(), 1)
	assert.Contains(t, report.Summary, AllSucceededLine)
}

func TestPublishToAll_InvalidRequest(t *testing.T) {
	sink := &recordingSink{}
	twitter := succeeding(models.PlatformTwitter, 280)
	o := newTestOrchestrator(sink, Options{}, twitter)

	tests := []struct {
		name string
		req  models.PostRequest
		want error
	}{
		{"empty text", models.PostRequest{Text: "  ", Platforms: []models.PlatformID{"twitter"}}, ErrEmptyText},
		{"no platforms", models.PostRequest{Text: "hi", Platforms: []models.PlatformID{" "}}, ErrNoPlatforms},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := o.PublishToAll(context.Background(), tt.req)

			assert.Empty(t, report.Outcomes)
			assert.Equal(t, 0, report.SuccessCount+report.FailureCount)
			assert.Contains(t, report.Summary, tt.want.Error())
		})
	}

	assert.Empty(t, twitter.Calls())
	assert.Empty(t, sink.Events())
}

func TestPublishToAll_OutcomesFollowDispatchOrder(t *testing.T) {
	slow := &fakeAdapter{platform: models.PlatformTwitter, publish: func(ctx context.Context, _ models.PublishInput) (*models.PublishResult, error) {
		select {
		case <-time.After(30 * time.Millisecond):
			return &models.PublishResult{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	o := newTestOrchestrator(nil, Options{}, slow, succeeding(models.PlatformThreads, 500), succeeding(models.PlatformSlack, 4000))

	report := o.PublishToAll(context.Background(), models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"twitter", "slack", "threads"},
	})

	assert.Equal(t, []models.PlatformID{models.PlatformTwitter, models.PlatformSlack, models.PlatformThreads}, platformIDs(report.Outcomes))
}

func TestPublishToAll_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	o := NewOrchestrator(
		platforms.NewRegistry(succeeding(models.PlatformTwitter, 280), failing(models.PlatformThreads, errors.New("nope"))),
		nil, metrics, logging.NewDiscardLogger(), Options{},
	)

	o.PublishToAll(context.Background(), models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"twitter", "threads"},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.publishTotal.WithLabelValues("twitter", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.publishTotal.WithLabelValues("threads", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.batchesTotal.WithLabelValues(BatchPartial)))
}

func TestPublishInBackground(t *testing.T) {
	sink := &recordingSink{}
	twitter := succeeding(models.PlatformTwitter, 280)
	o := newTestOrchestrator(sink, Options{}, twitter)

	ack, err := o.PublishInBackground(models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{"X"},
	})
	require.NoError(t, err)
	assert.Contains(t, ack, "Multi-Platform Post Initiated")
	assert.Contains(t, ack, "twitter")
	assert.Contains(t, ack, "• Timeout: "+o.Timeout().String())

	o.Wait()
	assert.Len(t, twitter.Calls(), 1)
	assert.Len(t, sink.Events(), 1)

	_, err = o.PublishInBackground(models.PostRequest{Platforms: []models.PlatformID{"twitter"}})
	assert.ErrorIs(t, err, ErrEmptyText)
}
