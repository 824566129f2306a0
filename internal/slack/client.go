package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

type Client struct {
	api   *slack.Client
	botID string
}

// NewClient authenticates the bot token and remembers the bot's user id so
// mentions can be stripped from incoming text
func NewClient(ctx context.Context, token string, options ...slack.Option) (*Client, error) {
	api := slack.New(token, options...)

	authTest, err := api.AuthTestContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate with Slack: %w", err)
	}

	return &Client{
		api:   api,
		botID: authTest.UserID,
	}, nil
}

func (c *Client) GetAPI() *slack.Client {
	return c.api
}

func (c *Client) GetBotID() string {
	return c.botID
}

// SendMessage posts text to a channel, inside a thread when threadTS is set
func (c *Client) SendMessage(ctx context.Context, channelID, threadTS, message string) error {
	options := []slack.MsgOption{slack.MsgOptionText(message, false)}
	if threadTS != "" {
		options = append(options, slack.MsgOptionTS(threadTS))
	}

	_, _, err := c.api.PostMessageContext(ctx, channelID, options...)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
