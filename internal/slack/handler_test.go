package slack

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shubh-37/multipost-agent/internal/logging"
	"github.com/shubh-37/multipost-agent/internal/models"
	"github.com/slack-go/slack/slackevents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	channel, thread, text string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeMessenger) SendMessage(_ context.Context, channelID, threadTS, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{channelID, threadTS, message})
	return nil
}

func (f *fakeMessenger) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeParser struct {
	req    *models.PostRequest
	err    error
	prompt string
}

func (f *fakeParser) Parse(_ context.Context, prompt string) (*models.PostRequest, error) {
	f.prompt = prompt
	return f.req, f.err
}

type fakePublisher struct {
	mu   sync.Mutex
	reqs []models.PostRequest
}

func (f *fakePublisher) PublishToAll(_ context.Context, req models.PostRequest) *models.AggregatedReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return &models.AggregatedReport{SuccessCount: len(req.Platforms), Summary: "summary for " + req.Text}
}

func (f *fakePublisher) Requests() []models.PostRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PostRequest(nil), f.reqs...)
}

func newTestHandler(parser *fakeParser) (*MessageHandler, *fakeMessenger, *fakePublisher) {
	messenger := &fakeMessenger{}
	publisher := &fakePublisher{}
	report := func(time.Time) string { return "platform report" }
	return NewMessageHandler(messenger, parser, publisher, report, "UBOT", logging.NewDiscardLogger()), messenger, publisher
}

func TestHandleAppMention_Post(t *testing.T) {
	parser := &fakeParser{req: &models.PostRequest{
		Text:      "Hello world",
		Platforms: []models.PlatformID{models.PlatformTwitter, models.PlatformThreads},
	}}
	h, messenger, publisher := newTestHandler(parser)

	err := h.HandleAppMention(context.Background(), &slackevents.AppMentionEvent{
		Channel:   "C1",
		TimeStamp: "100.1",
		Text:      "<@UBOT> post Hello world on twitter and threads",
	})
	require.NoError(t, err)

	assert.Equal(t, "post Hello world on twitter and threads", parser.prompt)
	require.Len(t, publisher.Requests(), 1)
	assert.Equal(t, "Hello world", publisher.Requests()[0].Text)

	sent := messenger.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "⚡ Posting now...", sent[0].text)
	assert.Equal(t, sentMessage{"C1", "100.1", "summary for Hello world"}, sent[1])
}

func TestHandleAppMention_Commands(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"help", "<@UBOT> help", "*Multipost Agent*"},
		{"empty mention", "<@UBOT>", "*Multipost Agent*"},
		{"platforms", "<@UBOT> Platforms", "platform report"},
		{"post without text", "<@UBOT> post", "Please tell me what to post"},
		{"unknown", "<@UBOT> dance", "I didn't understand"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, messenger, publisher := newTestHandler(&fakeParser{})

			err := h.HandleAppMention(context.Background(), &slackevents.AppMentionEvent{
				Channel:         "C1",
				TimeStamp:       "200.2",
				ThreadTimeStamp: "100.1",
				Text:            tt.text,
			})
			require.NoError(t, err)

			sent := messenger.Sent()
			require.Len(t, sent, 1)
			assert.Contains(t, sent[0].text, tt.want)
			assert.Equal(t, "100.1", sent[0].thread)
			assert.Empty(t, publisher.Requests())
		})
	}
}

func TestHandleAppMention_ParseError(t *testing.T) {
	h, messenger, publisher := newTestHandler(&fakeParser{err: errors.New("bad prompt")})

	err := h.HandleAppMention(context.Background(), &slackevents.AppMentionEvent{
		Channel: "C1",
		Text:    "<@UBOT> post something",
	})
	require.NoError(t, err)

	assert.Empty(t, publisher.Requests())
	require.Len(t, messenger.Sent(), 1)
	assert.Contains(t, messenger.Sent()[0].text, "couldn't work out what to post")
}

func TestHandleMessage_Filters(t *testing.T) {
	tests := []struct {
		name  string
		event *slackevents.MessageEvent
		want  int
	}{
		{"direct message", &slackevents.MessageEvent{ChannelType: "im", Channel: "D1", User: "U1", Text: "help"}, 1},
		{"channel message", &slackevents.MessageEvent{ChannelType: "channel", Channel: "C1", User: "U1", Text: "help"}, 0},
		{"from bot", &slackevents.MessageEvent{ChannelType: "im", BotID: "B1", Text: "help"}, 0},
		{"from self", &slackevents.MessageEvent{ChannelType: "im", User: "UBOT", Text: "help"}, 0},
		{"edited", &slackevents.MessageEvent{ChannelType: "im", User: "U1", SubType: "message_changed", Text: "help"}, 0},
		{"blank", &slackevents.MessageEvent{ChannelType: "im", User: "U1", Text: "  "}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, messenger, _ := newTestHandler(&fakeParser{})

			require.NoError(t, h.HandleMessage(context.Background(), tt.event))
			assert.Len(t, messenger.Sent(), tt.want)
		})
	}
}

const testSigningSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func signedRequest(t *testing.T, body string) *http.Request {
	t.Helper()

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	_, err := mac.Write([]byte(fmt.Sprintf("v0:%s:%s", ts, body)))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func TestServer_URLVerification(t *testing.T) {
	h, _, _ := newTestHandler(&fakeParser{})
	server := NewServer(h, testSigningSecret, logging.NewDiscardLogger())

	rec := httptest.NewRecorder()
	server.HandleEvents(rec, signedRequest(t, `{"token":"t","challenge":"abc123","type":"url_verification"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", rec.Body.String())
}

func TestServer_RejectsBadSignature(t *testing.T) {
	h, _, _ := newTestHandler(&fakeParser{})
	server := NewServer(h, testSigningSecret, logging.NewDiscardLogger())

	req := signedRequest(t, `{"type":"url_verification","challenge":"abc"}`)
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")

	rec := httptest.NewRecorder()
	server.HandleEvents(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

const mentionEvent = `{
	"token": "t",
	"team_id": "T1",
	"api_app_id": "A1",
	"type": "event_callback",
	"event_id": "Ev1",
	"event_time": 1700000000,
	"event": {
		"type": "app_mention",
		"user": "U1",
		"text": "<@UBOT> platforms",
		"ts": "1700000000.000100",
		"channel": "C1",
		"event_ts": "1700000000.000100"
	}
}`

func TestServer_DispatchesAppMention(t *testing.T) {
	h, messenger, _ := newTestHandler(&fakeParser{})
	server := NewServer(h, testSigningSecret, logging.NewDiscardLogger())

	rec := httptest.NewRecorder()
	server.HandleEvents(rec, signedRequest(t, mentionEvent))
	server.Wait()

	assert.Equal(t, http.StatusOK, rec.Code)
	sent := messenger.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "C1", sent[0].channel)
	assert.Equal(t, "platform report", sent[0].text)
}

func TestServer_IgnoresRetries(t *testing.T) {
	h, messenger, _ := newTestHandler(&fakeParser{})
	server := NewServer(h, testSigningSecret, logging.NewDiscardLogger())

	req := signedRequest(t, mentionEvent)
	req.Header.Set("X-Slack-Retry-Num", "1")

	rec := httptest.NewRecorder()
	server.HandleEvents(rec, req)
	server.Wait()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, messenger.Sent())
}
