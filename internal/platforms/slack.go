package platforms

import (
	"context"
	"fmt"

	"github.com/shubh-37/multipost-agent/internal/models"
	"github.com/slack-go/slack"
)

const SlackMaxLength = 4000

// SlackAdapter publishes a post as a message in a fixed Slack channel
type SlackAdapter struct {
	api       *slack.Client
	channelID string
}

func NewSlackAdapter(api *slack.Client, channelID string) (*SlackAdapter, error) {
	if api == nil || channelID == "" {
		return nil, fmt.Errorf("Slack posting needs SLACK_BOT_TOKEN and SLACK_POST_CHANNEL: %w", ErrNotConfigured)
	}

	return &SlackAdapter{
		api:       api,
		channelID: channelID,
	}, nil
}

func (a *SlackAdapter) Platform() models.PlatformID {
	return models.PlatformSlack
}

func (a *SlackAdapter) MaxLength() int {
	return SlackMaxLength
}

func (a *SlackAdapter) Publish(ctx context.Context, in models.PublishInput) (*models.PublishResult, error) {
	text := in.Text
	if isRemoteURL(in.MediaRef) {
		text += "\n" + in.MediaRef
	}

	channel, timestamp, err := a.api.PostMessageContext(ctx, a.channelID,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to post Slack message: %w", err)
	}

	return &models.PublishResult{
		PostID:   channel + ":" + timestamp,
		HasMedia: isRemoteURL(in.MediaRef),
	}, nil
}
