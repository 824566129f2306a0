package mcptools

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shubh-37/multipost-agent/internal/analytics"
	"github.com/shubh-37/multipost-agent/internal/fanout"
	"github.com/shubh-37/multipost-agent/internal/logging"
	"github.com/shubh-37/multipost-agent/internal/models"
)

// Publisher runs fan-out batches
type Publisher interface {
	PublishToAll(ctx context.Context, req models.PostRequest) *models.AggregatedReport
	PublishInBackground(req models.PostRequest) (string, error)
}

// PromptParser turns a natural-language request into a PostRequest
type PromptParser interface {
	Parse(ctx context.Context, prompt string) (*models.PostRequest, error)
}

type Config struct {
	Publisher      Publisher
	Parser         PromptParser
	PlatformReport func(time.Time) string
	// Threads backs the Threads-only tools; nil means Threads is not configured
	Threads   ThreadsService
	Analytics analytics.Sink
	Version   string
	Logger    logging.Logger
}

// NewServer creates an MCP server exposing the posting tools
func NewServer(cfg Config) *mcp.Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Analytics == nil {
		cfg.Analytics = analytics.NopSink{}
	}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "multipost-agent",
		Version: cfg.Version,
	}, nil)

	registerCreatePost(srv, cfg)
	registerCreatePostAdvanced(srv, cfg)
	registerCreateQuickPost(srv, cfg)
	registerCheckConfigurations(srv, cfg)
	registerCreateTwitterPost(srv, cfg)
	registerThreadsTools(srv, cfg)

	return srv
}

// Handler serves the server over streamable HTTP
func Handler(srv *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return srv },
		&mcp.StreamableHTTPOptions{Stateless: true},
	)
}

// --- create_multi_platform_post ---

type createPostInput struct {
	Prompt string `json:"prompt" jsonschema:"required" jsonschema_description:"Natural-language request, e.g. 'post Shipping v2 today on twitter and threads #launch'"`
}

func registerCreatePost(srv *mcp.Server, cfg Config) {
	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        "create_multi_platform_post",
			Description: "Create a post on several social media platforms from a natural-language request. Platforms, media URLs, hashtags and mentions are extracted from the prompt.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args createPostInput) (*mcp.CallToolResult, any, error) {
			return handleCreatePost(ctx, args, cfg)
		},
	)
}

func handleCreatePost(ctx context.Context, args createPostInput, cfg Config) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Prompt) == "" {
		return toolError("prompt is required")
	}

	req, err := cfg.Parser.Parse(ctx, args.Prompt)
	if err != nil {
		return toolError(fmt.Sprintf("failed to parse prompt: %v", err))
	}

	return publish(ctx, *req, cfg)
}

// --- create_multi_platform_post_advanced ---

type postInput struct {
	Text      string   `json:"text" jsonschema:"required" jsonschema_description:"Text content of the post"`
	Platforms []string `json:"platforms,omitempty" jsonschema_description:"Target platforms: twitter (or x), threads, slack. Defaults to twitter and threads"`
	MediaURL  string   `json:"media_url,omitempty" jsonschema_description:"Optional image URL or data: URL to attach"`
}

func (in postInput) request() models.PostRequest {
	platforms := fanout.NormalizePlatforms(in.Platforms)
	if len(platforms) == 0 {
		platforms = append(platforms, fanout.DefaultPlatforms...)
	}
	return models.PostRequest{Text: in.Text, Platforms: platforms, MediaRef: in.MediaURL}
}

func registerCreatePostAdvanced(srv *mcp.Server, cfg Config) {
	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        "create_multi_platform_post_advanced",
			Description: "Create a post with explicit text, platforms and optional media. Waits for every platform and returns the per-platform results.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args postInput) (*mcp.CallToolResult, any, error) {
			return publish(ctx, args.request(), cfg)
		},
	)
}

// --- create_quick_multi_platform_post ---

func registerCreateQuickPost(srv *mcp.Server, cfg Config) {
	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        "create_quick_multi_platform_post",
			Description: "Start a multi-platform post and return immediately. Results are not reported back; check the platforms a few moments later.",
		},
		func(_ context.Context, _ *mcp.CallToolRequest, args postInput) (*mcp.CallToolResult, any, error) {
			ack, err := cfg.Publisher.PublishInBackground(args.request())
			if err != nil {
				return toolError(err.Error())
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: ack}},
			}, nil, nil
		},
	)
}

// --- check_platform_configurations ---

type checkConfigurationsInput struct{}

func registerCheckConfigurations(srv *mcp.Server, cfg Config) {
	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        "check_platform_configurations",
			Description: "Report which social media platforms have credentials configured and what is missing.",
		},
		func(_ context.Context, _ *mcp.CallToolRequest, _ checkConfigurationsInput) (*mcp.CallToolResult, any, error) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: cfg.PlatformReport(time.Now())}},
			}, nil, nil
		},
	)
}

// --- create_twitter_post ---

type twitterPostInput struct {
	Status    string `json:"status" jsonschema:"required" jsonschema_description:"Tweet text, truncated to 280 characters"`
	ImageData string `json:"image_data,omitempty" jsonschema_description:"Optional image URL or base64 data: URL"`
}

func registerCreateTwitterPost(srv *mcp.Server, cfg Config) {
	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        "create_twitter_post",
			Description: "Create a post on X, formerly known as Twitter, with optional image.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args twitterPostInput) (*mcp.CallToolResult, any, error) {
			return publish(ctx, models.PostRequest{
				Text:      args.Status,
				Platforms: []models.PlatformID{models.PlatformTwitter},
				MediaRef:  args.ImageData,
			}, cfg)
		},
	)
}

// --- helpers ---

func publish(ctx context.Context, req models.PostRequest, cfg Config) (*mcp.CallToolResult, any, error) {
	if _, err := fanout.NormalizeRequest(req); err != nil {
		return toolError(err.Error())
	}

	report := cfg.Publisher.PublishToAll(ctx, req)
	if cfg.Logger != nil {
		cfg.Logger.WithFields(logging.Fields{
			"batch_id":      report.BatchID,
			"success_count": report.SuccessCount,
			"failure_count": report.FailureCount,
		}).Info("🧰 MCP post finished")
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: report.Summary}},
	}, report, nil
}

func toolError(message string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}, nil, nil
}
