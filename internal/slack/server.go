package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/shubh-37/multipost-agent/internal/logging"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// Server verifies and dispatches Slack Events API callbacks. Events are
// acknowledged at once and handled in the background, since a batch can
// outlast Slack's three second delivery deadline.
type Server struct {
	messageHandler *MessageHandler
	signingSecret  string
	logger         logging.Logger

	inflight sync.WaitGroup
}

func NewServer(messageHandler *MessageHandler, signingSecret string, logger logging.Logger) *Server {
	logger.Infof("🔐 Slack signing secret configured (length: %d)", len(signingSecret))
	return &Server{
		messageHandler: messageHandler,
		signingSecret:  signingSecret,
		logger:         logger,
	}
}

// HandleEvents is the /slack/events endpoint
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.WithError(err).Error("❌ Error reading body")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	sv, err := slack.NewSecretsVerifier(r.Header, s.signingSecret)
	if err != nil {
		s.logger.WithError(err).Error("❌ Error creating secrets verifier")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if _, err := sv.Write(body); err != nil {
		s.logger.WithError(err).Error("❌ Error writing to verifier")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if err := sv.Ensure(); err != nil {
		s.logger.WithError(err).Warn("❌ Error verifying signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		s.logger.WithError(err).Error("❌ Error parsing event")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if eventsAPIEvent.Type == slackevents.URLVerification {
		var challenge *slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			s.logger.WithError(err).Error("❌ Error unmarshaling challenge")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.logger.Info("✅ Responding to URL verification challenge")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge.Challenge))
		return
	}

	// Slack redelivers when we were slow; the first delivery is already running
	if r.Header.Get("X-Slack-Retry-Num") != "" {
		s.logger.WithField("retry", r.Header.Get("X-Slack-Retry-Num")).Debug("Ignoring Slack retry")
		w.WriteHeader(http.StatusOK)
		return
	}

	if eventsAPIEvent.Type == slackevents.CallbackEvent {
		s.dispatch(context.WithoutCancel(r.Context()), eventsAPIEvent.InnerEvent)
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) dispatch(ctx context.Context, innerEvent slackevents.EventsAPIInnerEvent) {
	s.logger.WithField("type", innerEvent.Type).Debug("📬 Inner event received")

	var handle func() error
	switch ev := innerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		handle = func() error { return s.messageHandler.HandleMessage(ctx, ev) }
	case *slackevents.AppMentionEvent:
		handle = func() error { return s.messageHandler.HandleAppMention(ctx, ev) }
	default:
		s.logger.WithField("type", innerEvent.Type).Warn("⚠️ Unsupported event type")
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := handle(); err != nil {
			s.logger.WithError(err).WithField("type", innerEvent.Type).Error("❌ Error handling event")
		}
	}()
}

// Wait blocks until every dispatched event has been handled
func (s *Server) Wait() {
	s.inflight.Wait()
}
