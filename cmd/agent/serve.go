package main

import (
	"os/signal"
	"syscall"

	"github.com/shubh-37/multipost-agent/internal/httpapi"
	"github.com/shubh-37/multipost-agent/internal/mcptools"
	slackpkg "github.com/shubh-37/multipost-agent/internal/slack"
	"github.com/spf13/cobra"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, MCP tool server and Slack bot",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "port to listen on, overrides PORT")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("🚀 Multipost Agent starting...")

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	mcpCfg := mcptools.Config{
		Publisher:      a.orchestrator,
		Parser:         a.parser,
		PlatformReport: cfg.PlatformReport,
		Analytics:      a.sink,
		Version:        version,
		Logger:         logger,
	}
	if a.threads != nil {
		mcpCfg.Threads = a.threads
	}
	mcpServer := mcptools.NewServer(mcpCfg)

	routerCfg := httpapi.Config{
		Publisher:      a.orchestrator,
		PlatformStatus: cfg.PlatformStatus,
		Gatherer:       a.metrics,
		HealthChecks:   a.healthChecks,
		MCP:            mcptools.Handler(mcpServer),
		Logger:         logger,
	}

	if cfg.SlackEventsConfigured() && a.slackClient != nil {
		handler := slackpkg.NewMessageHandler(
			a.slackClient,
			a.parser,
			a.orchestrator,
			cfg.PlatformReport,
			a.slackClient.GetBotID(),
			logger,
		)
		slackServer := slackpkg.NewServer(handler, cfg.SlackSigningSecret, logger)
		defer slackServer.Wait()
		routerCfg.SlackEvents = slackServer.HandleEvents
		logger.Info("💬 Slack: Connected and listening on /slack/events")
	}

	port := cfg.HTTPPort
	if servePort != "" {
		port = servePort
	}

	logger.WithField("platforms", a.registry.Platforms()).Info("✅ System initialized successfully")

	return httpapi.Run(ctx, port, httpapi.NewRouter(routerCfg), logger)
}
