package slack

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/shubh-37/multipost-agent/internal/logging"
	"github.com/shubh-37/multipost-agent/internal/models"
	"github.com/slack-go/slack/slackevents"
)

// Messenger sends replies back to Slack
type Messenger interface {
	SendMessage(ctx context.Context, channelID, threadTS, message string) error
}

// PromptParser turns a free-form request into a PostRequest
type PromptParser interface {
	Parse(ctx context.Context, prompt string) (*models.PostRequest, error)
}

// Publisher fans a request out to every platform
type Publisher interface {
	PublishToAll(ctx context.Context, req models.PostRequest) *models.AggregatedReport
}

type MessageHandler struct {
	messenger      Messenger
	parser         PromptParser
	publisher      Publisher
	platformReport func(time.Time) string
	botID          string
	logger         logging.Logger
}

func NewMessageHandler(
	messenger Messenger,
	parser PromptParser,
	publisher Publisher,
	platformReport func(time.Time) string,
	botID string,
	logger logging.Logger,
) *MessageHandler {
	return &MessageHandler{
		messenger:      messenger,
		parser:         parser,
		publisher:      publisher,
		platformReport: platformReport,
		botID:          botID,
		logger:         logger,
	}
}

var mentionTag = regexp.MustCompile(`<@[A-Z0-9]+>`)

// HandleMessage answers commands sent in a direct message with the bot
func (h *MessageHandler) HandleMessage(ctx context.Context, event *slackevents.MessageEvent) error {
	if event.BotID != "" || event.User == h.botID || event.SubType != "" {
		return nil
	}

	if event.ChannelType != "im" {
		return nil
	}

	if strings.TrimSpace(event.Text) == "" {
		return nil
	}

	return h.handleCommand(ctx, event.Channel, threadFor(event.ThreadTimeStamp, event.TimeStamp), event.Text)
}

func (h *MessageHandler) HandleAppMention(ctx context.Context, event *slackevents.AppMentionEvent) error {
	if event.BotID != "" {
		return nil
	}

	return h.handleCommand(ctx, event.Channel, threadFor(event.ThreadTimeStamp, event.TimeStamp), event.Text)
}

func (h *MessageHandler) handleCommand(ctx context.Context, channelID, threadTS, raw string) error {
	text := strings.TrimSpace(mentionTag.ReplaceAllString(raw, ""))
	lower := strings.ToLower(text)

	switch {
	case lower == "" || strings.HasPrefix(lower, "help"):
		return h.messenger.SendMessage(ctx, channelID, threadTS, helpText)

	case strings.HasPrefix(lower, "platforms"):
		return h.messenger.SendMessage(ctx, channelID, threadTS, h.platformReport(time.Now()))

	case lower == "post" || strings.HasPrefix(lower, "post "):
		prompt := strings.TrimSpace(text[len("post"):])
		if prompt == "" {
			return h.messenger.SendMessage(ctx, channelID, threadTS, "Please tell me what to post: `@Multipost post [your message] on twitter and threads`")
		}
		return h.handlePost(ctx, channelID, threadTS, text)

	default:
		return h.messenger.SendMessage(ctx, channelID, threadTS, "🤔 I didn't understand that. Try `help` to see what I can do.")
	}
}

// handlePost hands the whole command to the parser so "post" can count as a verb
func (h *MessageHandler) handlePost(ctx context.Context, channelID, threadTS, prompt string) error {
	req, err := h.parser.Parse(ctx, prompt)
	if err != nil {
		h.logger.WithError(err).Error("❌ Failed to parse post prompt")
		return h.messenger.SendMessage(ctx, channelID, threadTS, "❌ I couldn't work out what to post. Please try again.")
	}

	h.logger.WithFields(logging.Fields{
		"channel":   channelID,
		"platforms": req.Platforms,
	}).Info("📣 Posting from Slack")

	if err := h.messenger.SendMessage(ctx, channelID, threadTS, "⚡ Posting now..."); err != nil {
		h.logger.WithError(err).Warn("⚠️ Failed to send progress message")
	}

	report := h.publisher.PublishToAll(ctx, *req)
	return h.messenger.SendMessage(ctx, channelID, threadTS, report.Summary)
}

func threadFor(threadTS, ts string) string {
	if threadTS != "" {
		return threadTS
	}
	return ts
}

const helpText = `*Multipost Agent*

I publish the same post to several social networks at once.

*Commands:*
- \@Multipost post [message] on twitter and threads - Publish a post
- \@Multipost post [message] https://example.com/photo.png - Publish with media
- \@Multipost platforms - Show which platforms are configured
- \@Multipost help - Show this help

*Platforms:*
twitter (or x), threads, slack

Hashtags and @mentions in your message are kept when they fit.`
