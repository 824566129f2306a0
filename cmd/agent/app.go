package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shubh-37/multipost-agent/config"
	"github.com/shubh-37/multipost-agent/internal/agents"
	"github.com/shubh-37/multipost-agent/internal/analytics"
	"github.com/shubh-37/multipost-agent/internal/database"
	"github.com/shubh-37/multipost-agent/internal/fanout"
	"github.com/shubh-37/multipost-agent/internal/httpapi"
	"github.com/shubh-37/multipost-agent/internal/logging"
	"github.com/shubh-37/multipost-agent/internal/models"
	"github.com/shubh-37/multipost-agent/internal/platforms"
	slackpkg "github.com/shubh-37/multipost-agent/internal/slack"
	"github.com/slack-go/slack"
)

// app is the composition root shared by serve and post
type app struct {
	cfg          *config.Config
	logger       logging.Logger
	registry     *platforms.Registry
	orchestrator *fanout.Orchestrator
	parser       *agents.PromptParser
	metrics      *prometheus.Registry
	healthChecks map[string]httpapi.HealthCheck
	slackClient  *slackpkg.Client
	sink         analytics.Sink
	// threads is nil when Threads is not configured
	threads *platforms.ThreadsAdapter

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app, error) {
	a := &app{
		cfg:          cfg,
		logger:       logger,
		metrics:      prometheus.NewRegistry(),
		healthChecks: map[string]httpapi.HealthCheck{},
	}

	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sink, err := a.newAnalyticsSink(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sink = sink

	if cfg.SlackToken != "" {
		client, err := slackpkg.NewClient(ctx, cfg.SlackToken)
		if err != nil {
			logger.WithError(err).Warn("⚠️ Slack unavailable, continuing without it")
		} else {
			a.slackClient = client
		}
	}

	var slackAPI *slack.Client
	if a.slackClient != nil {
		slackAPI = a.slackClient.GetAPI()
	}
	a.registry = buildRegistry(cfg, slackAPI, logger)
	if adapter, ok := a.registry.Get(models.PlatformThreads); ok {
		a.threads, _ = adapter.(*platforms.ThreadsAdapter)
	}

	var generator agents.Generator
	if cfg.GeminiKey != "" {
		gemini, err := agents.NewGeminiGenerator(ctx, cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			logger.WithError(err).Warn("⚠️ Gemini unavailable, prompts use keyword parsing")
		} else {
			generator = gemini
		}
	}
	a.parser = agents.NewPromptParser(generator, logger)

	a.orchestrator = fanout.NewOrchestrator(
		a.registry,
		sink,
		fanout.NewMetrics(a.metrics),
		logger,
		fanout.Options{Timeout: cfg.PostTimeout},
	)

	return a, nil
}

func (a *app) newAnalyticsSink(ctx context.Context) (analytics.Sink, error) {
	switch a.cfg.AnalyticsBackend {
	case config.AnalyticsPostgres:
		db, err := database.NewDB(ctx, a.cfg.DatabaseURL, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		if err := db.CreateTables(ctx); err != nil {
			return nil, err
		}
		a.healthChecks["postgres"] = db.Health
		return database.NewAnalyticsRepository(db), nil

	case config.AnalyticsRedis:
		sink, err := analytics.NewRedisSink(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = sink.Close() })
		a.healthChecks["redis"] = sink.Health
		return sink, nil

	case config.AnalyticsNone:
		return analytics.NopSink{}, nil

	default:
		return analytics.NewFileSink(a.cfg.AnalyticsFile), nil
	}
}

// buildRegistry registers an adapter for every known platform. Platforms
// without credentials get an UnavailableAdapter carrying the reason.
func buildRegistry(cfg *config.Config, slackAPI *slack.Client, logger logging.Logger) *platforms.Registry {
	registry := platforms.NewRegistry()

	twitter, err := platforms.NewTwitterAdapter(platforms.TwitterConfig{
		APIKey:       cfg.TwitterAPIKey,
		APISecret:    cfg.TwitterAPISecret,
		AccessToken:  cfg.TwitterAccessToken,
		AccessSecret: cfg.TwitterAccessSecret,
	}, logger)
	register(registry, models.PlatformTwitter, twitter, err, logger)

	threads, err := platforms.NewThreadsAdapter(platforms.ThreadsConfig{
		AccessToken: cfg.ThreadsAccessToken,
		UserID:      cfg.ThreadsUserID,
	}, logger)
	register(registry, models.PlatformThreads, threads, err, logger)

	slackAdapter, err := platforms.NewSlackAdapter(slackAPI, cfg.SlackPostChannel)
	register(registry, models.PlatformSlack, slackAdapter, err, logger)

	return registry
}

func register[A platforms.Adapter](registry *platforms.Registry, id models.PlatformID, adapter A, err error, logger logging.Logger) {
	if err != nil {
		logger.WithField("platform", id).WithError(err).Warn("⚠️ Platform not configured")
		registry.Register(platforms.NewUnavailableAdapter(id, err))
		return
	}
	logger.WithField("platform", id).Info("✅ Platform ready")
	registry.Register(adapter)
}

// Close waits for background batches, then releases connections
func (a *app) Close() {
	if a.orchestrator != nil {
		a.orchestrator.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
