package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shubh-37/multipost-agent/internal/fanout"
	"github.com/shubh-37/multipost-agent/internal/models"
	"github.com/shubh-37/multipost-agent/internal/platforms"
)

const (
	threadsNotConfigured = "Threads API not configured. Please set THREADS_ACCESS_TOKEN and THREADS_USER_ID."
	threadsDivider       = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
	threadsTimeLayout    = "Jan 02, 2006 at 3:04:05 PM MST"
)

// ThreadsService is the Threads API surface beyond plain publishing
type ThreadsService interface {
	Create(ctx context.Context, p platforms.ThreadsPost) (*models.PublishResult, error)
	PublishThread(ctx context.Context, posts []platforms.ThreadsPost) ([]platforms.ThreadResult, error)
	Profile(ctx context.Context) (*platforms.ThreadsProfile, error)
	RecentPosts(ctx context.Context, limit int) ([]platforms.ThreadsMedia, error)
	Validate(ctx context.Context) (*platforms.ThreadsProfile, error)
	UserID() string
	MaskedToken() string
}

func registerThreadsTools(srv *mcp.Server, cfg Config) {
	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        "create_threads_post",
			Description: "Create a Threads post from a natural-language description, e.g. 'Post about my new project #coding'.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args createPostInput) (*mcp.CallToolResult, any, error) {
			if strings.TrimSpace(args.Prompt) == "" {
				return toolError("prompt is required")
			}
			req, err := cfg.Parser.Parse(ctx, args.Prompt)
			if err != nil {
				return toolError(fmt.Sprintf("failed to parse prompt: %v", err))
			}
			return createThreadsPost(ctx, cfg, platforms.ThreadsPost{Text: req.Text, MediaRef: req.MediaRef})
		},
	)

	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        "create_threads_post_advanced",
			Description: "Create a Threads post with explicit text, optional media and an optional post id to reply to.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args threadsPostInput) (*mcp.CallToolResult, any, error) {
			return createThreadsPost(ctx, cfg, platforms.ThreadsPost{
				Text:      args.Text,
				MediaRef:  args.MediaURL,
				ReplyToID: args.ReplyToPostID,
			})
		},
	)

	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        "create_threads_thread",
			Description: "Create a thread on Threads: a series of posts where each one replies to the previous.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args threadInput) (*mcp.CallToolResult, any, error) {
			return createThreadsThread(ctx, cfg, args.Posts)
		},
	)

	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        "get_threads_profile",
			Description: "Get information about the connected Threads account.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
			if cfg.Threads == nil {
				return toolError(threadsNotConfigured)
			}
			profile, err := cfg.Threads.Profile(ctx)
			if err != nil {
				return toolError(fmt.Sprintf("Error fetching Threads profile: %v", err))
			}
			return textResult(renderThreadsProfile(profile, cfg.Threads.UserID(), time.Now())), profile, nil
		},
	)

	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        "get_threads_posts",
			Description: "Get recent posts from the connected Threads account.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args threadsPostsInput) (*mcp.CallToolResult, any, error) {
			if cfg.Threads == nil {
				return toolError(threadsNotConfigured)
			}
			posts, err := cfg.Threads.RecentPosts(ctx, args.Limit)
			if err != nil {
				return toolError(fmt.Sprintf("Error fetching Threads posts: %v", err))
			}
			return textResult(renderThreadsPosts(posts, time.Now())), nil, nil
		},
	)

	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        "validate_threads_config",
			Description: "Validate the Threads access token and user id against the API.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
			if cfg.Threads == nil {
				return toolError(renderThreadsInvalid(threadsNotConfigured, time.Now()))
			}
			profile, err := cfg.Threads.Validate(ctx)
			if err != nil {
				return toolError(renderThreadsInvalid(err.Error(), time.Now()))
			}
			return textResult(renderThreadsValid(profile, cfg.Threads.MaskedToken(), time.Now())), nil, nil
		},
	)
}

type threadsPostInput struct {
	Text          string `json:"text" jsonschema:"required" jsonschema_description:"Post text, truncated to 500 characters"`
	MediaURL      string `json:"media_url,omitempty" jsonschema_description:"Optional public image URL"`
	ReplyToPostID string `json:"reply_to_post_id,omitempty" jsonschema_description:"ID of the post to reply to"`
}

type threadPostInput struct {
	Text     string `json:"text" jsonschema:"required" jsonschema_description:"Text content for this post"`
	MediaURL string `json:"media_url,omitempty" jsonschema_description:"Optional public image URL for this post"`
}

type threadInput struct {
	Posts []threadPostInput `json:"posts" jsonschema:"required" jsonschema_description:"Posts of the thread, in order"`
}

type threadOutput struct {
	Outcomes []models.PlatformOutcome `json:"outcomes"`
}

type threadsPostsInput struct {
	Limit int `json:"limit,omitempty" jsonschema_description:"Number of posts to fetch, default 10, max 25"`
}

func createThreadsPost(ctx context.Context, cfg Config, p platforms.ThreadsPost) (*mcp.CallToolResult, any, error) {
	if cfg.Threads == nil {
		return toolError(threadsNotConfigured)
	}
	p.Text = strings.TrimSpace(p.Text)
	if p.Text == "" {
		return toolError(fanout.ErrEmptyText.Error())
	}
	p.Text = fanout.Truncate(p.Text, platforms.ThreadsMaxLength)

	result, err := cfg.Threads.Create(ctx, p)
	if err != nil {
		return toolError(fmt.Sprintf("Error creating Threads post: %v", err))
	}

	var b strings.Builder
	b.WriteString("🧵 Threads post created!\n")
	b.WriteString(threadsDivider + "\n")
	fmt.Fprintf(&b, "• Post ID: %s\n", result.PostID)
	fmt.Fprintf(&b, "• URL: %s\n", result.URL)
	if p.ReplyToID != "" {
		fmt.Fprintf(&b, "• Reply to: %s\n", p.ReplyToID)
	}
	if result.HasMedia {
		b.WriteString("• Media: ✅ Included\n")
	}
	fmt.Fprintf(&b, "\n⏰ Posted at: %s", time.Now().Format(threadsTimeLayout))
	return textResult(b.String()), result, nil
}

func createThreadsThread(ctx context.Context, cfg Config, in []threadPostInput) (*mcp.CallToolResult, any, error) {
	if cfg.Threads == nil {
		return toolError(threadsNotConfigured)
	}

	posts := make([]platforms.ThreadsPost, 0, len(in))
	for i, p := range in {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			return toolError(fmt.Sprintf("post %d: %v", i+1, fanout.ErrEmptyText))
		}
		posts = append(posts, platforms.ThreadsPost{
			Text:     fanout.Truncate(text, platforms.ThreadsMaxLength),
			MediaRef: p.MediaURL,
		})
	}

	results, err := cfg.Threads.PublishThread(ctx, posts)
	if err != nil {
		return toolError(fmt.Sprintf("Error creating thread: %v", err))
	}

	outcomes := make([]models.PlatformOutcome, len(results))
	success := 0
	for i, r := range results {
		outcome := models.PlatformOutcome{Platform: models.PlatformThreads, PublishedText: posts[r.Index].Text}
		if r.Err != nil {
			outcome.Message = r.Err.Error()
		} else {
			success++
			outcome.Success = true
			outcome.PostID = r.Result.PostID
			outcome.URL = r.Result.URL
			outcome.Message = "Posted to Threads"
		}
		outcomes[i] = outcome
	}

	recordThreadAnalytics(ctx, cfg, posts, outcomes, success)

	var b strings.Builder
	b.WriteString("🧵 Thread Creation Results:\n")
	b.WriteString(threadsDivider + "\n")
	fmt.Fprintf(&b, "• Total Posts: %d\n", len(posts))
	fmt.Fprintf(&b, "• Successful: %d\n", success)
	fmt.Fprintf(&b, "• Failed: %d\n\n", len(posts)-success)
	for i, o := range outcomes {
		if o.Success {
			fmt.Fprintf(&b, "✅ Post %d: Created successfully\n", i+1)
		} else {
			fmt.Fprintf(&b, "❌ Post %d: Error - %s\n", i+1, o.Message)
		}
	}
	fmt.Fprintf(&b, "\n⏰ Completed at: %s", time.Now().Format(threadsTimeLayout))

	result := textResult(b.String())
	result.IsError = success == 0
	return result, threadOutput{Outcomes: outcomes}, nil
}

func recordThreadAnalytics(ctx context.Context, cfg Config, posts []platforms.ThreadsPost, outcomes []models.PlatformOutcome, success int) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	length := 0
	hasMedia := false
	for _, p := range posts {
		length += len([]rune(p.Text))
		hasMedia = hasMedia || p.MediaRef != ""
	}

	event := &models.AnalyticsEvent{
		ID:           uuid.NewString(),
		Type:         models.AnalyticsTypeThreadsThread,
		Platforms:    []string{string(models.PlatformThreads)},
		SuccessCount: success,
		ErrorCount:   len(posts) - success,
		TextLength:   length,
		HasMedia:     hasMedia,
		Outcomes:     outcomes,
		Timestamp:    time.Now().UTC(),
	}
	if err := cfg.Analytics.Record(writeCtx, event); err != nil && cfg.Logger != nil {
		cfg.Logger.WithError(err).Error("❌ Failed to record thread analytics")
	}
}

func renderThreadsProfile(p *platforms.ThreadsProfile, userID string, at time.Time) string {
	handle := p.Username
	if handle == "" {
		handle = userID
	}

	var b strings.Builder
	b.WriteString("🧵 Threads Profile Information:\n")
	b.WriteString(threadsDivider + "\n")
	fmt.Fprintf(&b, "• User ID: %s\n", p.ID)
	fmt.Fprintf(&b, "• Username: @%s\n", orDefault(p.Username, "Not available"))
	fmt.Fprintf(&b, "• Display Name: %s\n", orDefault(p.Name, "Not available"))
	fmt.Fprintf(&b, "• Biography: %s\n", orDefault(p.Biography, "No bio available"))
	if p.ProfilePictureURL != "" {
		b.WriteString("• Profile Picture: ✅ Available\n")
	} else {
		b.WriteString("• Profile Picture: ❌ Not available\n")
	}
	fmt.Fprintf(&b, "• Profile URL: https://threads.net/@%s\n\n", handle)
	fmt.Fprintf(&b, "⏰ Retrieved at: %s", at.Format(threadsTimeLayout))
	return b.String()
}

func renderThreadsPosts(posts []platforms.ThreadsMedia, at time.Time) string {
	if len(posts) == 0 {
		return "🧵 No posts found in your Threads account."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🧵 Your Recent Threads Posts (%d posts):\n", len(posts))
	b.WriteString(threadsDivider + "\n\n")
	for i, p := range posts {
		text := "No text content"
		if p.Text != "" {
			text = fanout.Truncate(p.Text, 83)
		}
		fmt.Fprintf(&b, "%d. **%s Post**\n", i+1, orDefault(p.MediaType, "TEXT"))
		fmt.Fprintf(&b, "   %q\n", text)
		fmt.Fprintf(&b, "   🔗 %s\n", orDefault(p.Permalink, "URL not available"))
		if ts, err := time.Parse("2006-01-02T15:04:05-0700", p.Timestamp); err == nil {
			fmt.Fprintf(&b, "   📅 %s\n", ts.Format("Jan 02, 2006"))
		}
		fmt.Fprintf(&b, "   🆔 %s\n\n", p.ID)
	}
	fmt.Fprintf(&b, "⏰ Retrieved at: %s", at.Format(threadsTimeLayout))
	return b.String()
}

func renderThreadsValid(p *platforms.ThreadsProfile, maskedToken string, at time.Time) string {
	var b strings.Builder
	b.WriteString("✅ Threads Configuration Valid!\n\n")
	b.WriteString("🧵 Configuration Details:\n")
	b.WriteString(threadsDivider + "\n")
	fmt.Fprintf(&b, "• User ID: %s\n", p.ID)
	fmt.Fprintf(&b, "• Username: @%s\n", orDefault(p.Username, "Not available"))
	fmt.Fprintf(&b, "• Display Name: %s\n", orDefault(p.Name, "Not available"))
	fmt.Fprintf(&b, "• Access Token: %s\n\n", maskedToken)
	b.WriteString("🚀 Ready to create Threads posts!\n\n")
	fmt.Fprintf(&b, "⏰ Validated at: %s", at.Format(threadsTimeLayout))
	return b.String()
}

func renderThreadsInvalid(reason string, at time.Time) string {
	var b strings.Builder
	b.WriteString("❌ Threads Configuration Invalid!\n\n")
	b.WriteString("🔧 Configuration Issues:\n")
	b.WriteString(threadsDivider + "\n")
	fmt.Fprintf(&b, "• Error: %s\n\n", reason)
	b.WriteString("🔧 How to Fix:\n")
	b.WriteString("1. Get your numeric User ID (not username)\n")
	b.WriteString("2. Ensure access token has 'threads_basic' and 'threads_content_publish' permissions\n")
	b.WriteString("3. Update your .env file with correct values\n\n")
	fmt.Fprintf(&b, "⏰ Checked at: %s", at.Format(threadsTimeLayout))
	return b.String()
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
