package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/shubh-37/multipost-agent/internal/logging"
	"github.com/shubh-37/multipost-agent/internal/models"
)

const (
	TwitterMaxLength = 280

	defaultTwitterAPIURL    = "https://api.twitter.com"
	defaultTwitterUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
)

type TwitterConfig struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string

	// Overridable for tests
	APIURL    string
	UploadURL string
}

// TwitterAdapter posts tweets through the v2 API with OAuth 1.0a user context
type TwitterAdapter struct {
	httpClient  *http.Client
	mediaClient *http.Client
	apiURL      string
	uploadURL   string
	logger      logging.Logger
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type twitterErrorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type mediaUploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

func NewTwitterAdapter(cfg TwitterConfig, logger logging.Logger) (*TwitterAdapter, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" || cfg.AccessToken == "" || cfg.AccessSecret == "" {
		return nil, fmt.Errorf("Twitter API credentials not properly configured: %w", ErrNotConfigured)
	}

	if cfg.APIURL == "" {
		cfg.APIURL = defaultTwitterAPIURL
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = defaultTwitterUploadURL
	}

	oauthConfig := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret)
	httpClient := oauthConfig.Client(oauth1.NoContext, token)
	httpClient.Timeout = 30 * time.Second

	return &TwitterAdapter{
		httpClient:  httpClient,
		mediaClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:      cfg.APIURL,
		uploadURL:   cfg.UploadURL,
		logger:      logger,
	}, nil
}

func (a *TwitterAdapter) Platform() models.PlatformID {
	return models.PlatformTwitter
}

func (a *TwitterAdapter) MaxLength() int {
	return TwitterMaxLength
}

// Publish creates a tweet. A media failure does not fail the tweet: it is
// logged and the tweet is posted text-only.
func (a *TwitterAdapter) Publish(ctx context.Context, in models.PublishInput) (*models.PublishResult, error) {
	var mediaIDs []string
	if in.MediaRef != "" {
		mediaID, err := a.uploadMedia(ctx, in.MediaRef)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.WithError(err).Warn("Twitter media processing failed, proceeding without image")
		} else {
			mediaIDs = append(mediaIDs, mediaID)
		}
	}

	reqBody := tweetRequest{Text: in.Text}
	if len(mediaIDs) > 0 {
		reqBody.Media = &tweetMedia{MediaIDs: mediaIDs}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL+"/2/tweets", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Twitter API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, newAPIError(models.PlatformTwitter, resp.StatusCode, twitterErrorMessage(resp.StatusCode, body))
	}

	var tweet tweetResponse
	if err := json.Unmarshal(body, &tweet); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if tweet.Data.ID == "" {
		return nil, fmt.Errorf("unexpected response format: missing tweet id")
	}

	return &models.PublishResult{
		PostID:   tweet.Data.ID,
		URL:      "https://twitter.com/i/web/status/" + tweet.Data.ID,
		HasMedia: len(mediaIDs) > 0,
	}, nil
}

func (a *TwitterAdapter) uploadMedia(ctx context.Context, ref string) (string, error) {
	data, mimeType, err := loadMedia(ctx, a.mediaClient, ref)
	if err != nil {
		return "", err
	}

	a.logger.WithFields(logging.Fields{"bytes": len(data), "mime_type": mimeType}).Debug("Uploading media to Twitter")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", "upload")
	if err != nil {
		return "", fmt.Errorf("failed to create multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write media: %w", err)
	}
	if err := writer.WriteField("media_category", "tweet_image"); err != nil {
		return "", fmt.Errorf("failed to write media category: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.uploadURL, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", newAPIError(models.PlatformTwitter, resp.StatusCode, "media upload error: "+string(body))
	}

	var upload mediaUploadResponse
	if err := json.Unmarshal(body, &upload); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	if upload.MediaIDString == "" {
		return "", fmt.Errorf("media upload returned no media id")
	}

	return upload.MediaIDString, nil
}

func twitterErrorMessage(status int, body []byte) string {
	switch status {
	case http.StatusForbidden:
		return "your API keys may be invalid or your app lacks write permissions"
	case http.StatusTooManyRequests:
		return "please try again later"
	}

	var apiErr twitterErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		if len(apiErr.Errors) > 0 {
			return apiErr.Errors[0].Message
		}
		if apiErr.Title != "" {
			return apiErr.Title
		}
	}

	return string(body)
}
