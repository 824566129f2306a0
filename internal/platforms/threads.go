package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/shubh-37/multipost-agent/internal/logging"
	"github.com/shubh-37/multipost-agent/internal/models"
)

const (
	ThreadsMaxLength = 500
	// ThreadsMaxRecentPosts caps RecentPosts
	ThreadsMaxRecentPosts = 25

	defaultThreadsAPIURL         = "https://graph.threads.net/v1.0"
	defaultThreadsThreadInterval = 3 * time.Second
	defaultThreadsRecentPosts    = 10
)

var numericUserID = regexp.MustCompile(`^\d+$`)

type ThreadsConfig struct {
	AccessToken string
	UserID      string

	// ThreadInterval is the pause between posts of a thread. Zero means 3s.
	ThreadInterval time.Duration
	APIURL         string
}

// ThreadsAdapter publishes through the Threads Graph API: a media container is
// created first, then published.
type ThreadsAdapter struct {
	accessToken    string
	userID         string
	baseURL        string
	threadInterval time.Duration
	httpClient     *http.Client
	logger         logging.Logger
}

// ThreadsPost is a single Threads post, optionally a reply to another post
type ThreadsPost struct {
	Text      string
	MediaRef  string
	ReplyToID string
}

// ThreadResult is the outcome of one post of a thread
type ThreadResult struct {
	Index  int
	Result *models.PublishResult
	Err    error
}

type ThreadsProfile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	Biography         string `json:"threads_biography"`
	ProfilePictureURL string `json:"threads_profile_picture_url"`
}

type ThreadsMedia struct {
	ID        string `json:"id"`
	MediaType string `json:"media_type"`
	MediaURL  string `json:"media_url"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Permalink string `json:"permalink"`
}

type threadsContainerRequest struct {
	MediaType string `json:"media_type"`
	Text      string `json:"text"`
	ImageURL  string `json:"image_url,omitempty"`
	ReplyToID string `json:"reply_to_id,omitempty"`
}

type threadsPublishRequest struct {
	CreationID string `json:"creation_id"`
}

type threadsIDResponse struct {
	ID string `json:"id"`
}

type threadsMediaResponse struct {
	Data []ThreadsMedia `json:"data"`
}

type threadsErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func NewThreadsAdapter(cfg ThreadsConfig, logger logging.Logger) (*ThreadsAdapter, error) {
	if cfg.AccessToken == "" || cfg.UserID == "" {
		return nil, fmt.Errorf("Threads API not configured, set THREADS_ACCESS_TOKEN and THREADS_USER_ID: %w", ErrNotConfigured)
	}
	if !numericUserID.MatchString(cfg.UserID) {
		return nil, fmt.Errorf("THREADS_USER_ID must be a numeric ID, not a username (got %q): %w", cfg.UserID, ErrNotConfigured)
	}

	if cfg.APIURL == "" {
		cfg.APIURL = defaultThreadsAPIURL
	}
	if cfg.ThreadInterval <= 0 {
		cfg.ThreadInterval = defaultThreadsThreadInterval
	}

	return &ThreadsAdapter{
		accessToken:    cfg.AccessToken,
		userID:         cfg.UserID,
		baseURL:        cfg.APIURL,
		threadInterval: cfg.ThreadInterval,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		logger:         logger,
	}, nil
}

func (a *ThreadsAdapter) Platform() models.PlatformID {
	return models.PlatformThreads
}

func (a *ThreadsAdapter) MaxLength() int {
	return ThreadsMaxLength
}

func (a *ThreadsAdapter) UserID() string {
	return a.userID
}

// MaskedToken shows only the last 8 characters of the access token
func (a *ThreadsAdapter) MaskedToken() string {
	if len(a.accessToken) <= 8 {
		return "****"
	}
	return "****" + a.accessToken[len(a.accessToken)-8:]
}

func (a *ThreadsAdapter) Publish(ctx context.Context, in models.PublishInput) (*models.PublishResult, error) {
	return a.Create(ctx, ThreadsPost{Text: in.Text, MediaRef: in.MediaRef})
}

// Create publishes one post. With ReplyToID set the post is a reply.
func (a *ThreadsAdapter) Create(ctx context.Context, p ThreadsPost) (*models.PublishResult, error) {
	container := threadsContainerRequest{
		MediaType: "TEXT",
		Text:      p.Text,
		ReplyToID: p.ReplyToID,
	}

	// The Graph API fetches images itself, so only public URLs can be attached
	if p.MediaRef != "" {
		if isRemoteURL(p.MediaRef) {
			container.MediaType = "IMAGE"
			container.ImageURL = p.MediaRef
		} else {
			a.logger.Warn("Threads only accepts public media URLs, proceeding without image")
		}
	}

	var created threadsIDResponse
	if err := a.do(ctx, http.MethodPost, "/"+a.userID+"/threads", nil, container, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, fmt.Errorf("Threads returned no container id")
	}

	a.logger.WithField("container_id", created.ID).Debug("Threads media container created")

	var published threadsIDResponse
	if err := a.do(ctx, http.MethodPost, "/"+a.userID+"/threads_publish", nil, threadsPublishRequest{CreationID: created.ID}, &published); err != nil {
		return nil, err
	}
	if published.ID == "" {
		return nil, fmt.Errorf("Threads returned no post id")
	}

	return &models.PublishResult{
		PostID:   published.ID,
		URL:      fmt.Sprintf("https://threads.net/@%s/post/%s", a.userID, published.ID),
		HasMedia: container.ImageURL != "",
	}, nil
}

// PublishThread posts each entry as a reply to the previous one, pausing
// between posts. It stops at the first failure; the failed post is the last
// result returned.
func (a *ThreadsAdapter) PublishThread(ctx context.Context, posts []ThreadsPost) ([]ThreadResult, error) {
	if len(posts) == 0 {
		return nil, fmt.Errorf("posts are required and must not be empty")
	}

	results := make([]ThreadResult, 0, len(posts))
	parentID := ""
	for i, p := range posts {
		if i > 0 {
			p.ReplyToID = parentID
			if err := sleepContext(ctx, a.threadInterval); err != nil {
				results = append(results, ThreadResult{Index: i, Err: err})
				break
			}
		}

		result, err := a.Create(ctx, p)
		if err != nil {
			a.logger.WithError(err).WithField("post", i+1).Error("❌ Thread post failed")
			results = append(results, ThreadResult{Index: i, Err: err})
			break
		}
		results = append(results, ThreadResult{Index: i, Result: result})
		parentID = result.PostID
	}

	return results, nil
}

func (a *ThreadsAdapter) Profile(ctx context.Context) (*ThreadsProfile, error) {
	return a.profile(ctx, "id,username,name,threads_profile_picture_url,threads_biography")
}

// Validate checks the token and user id against the API
func (a *ThreadsAdapter) Validate(ctx context.Context) (*ThreadsProfile, error) {
	return a.profile(ctx, "id,username,name")
}

func (a *ThreadsAdapter) profile(ctx context.Context, fields string) (*ThreadsProfile, error) {
	var profile ThreadsProfile
	if err := a.do(ctx, http.MethodGet, "/"+a.userID, url.Values{"fields": {fields}}, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// RecentPosts lists the account's latest posts. limit is clamped to
// 1..ThreadsMaxRecentPosts, zero meaning 10.
func (a *ThreadsAdapter) RecentPosts(ctx context.Context, limit int) ([]ThreadsMedia, error) {
	switch {
	case limit <= 0:
		limit = defaultThreadsRecentPosts
	case limit > ThreadsMaxRecentPosts:
		limit = ThreadsMaxRecentPosts
	}

	query := url.Values{
		"fields": {"id,media_type,media_url,text,timestamp,permalink"},
		"limit":  {strconv.Itoa(limit)},
	}

	var resp threadsMediaResponse
	if err := a.do(ctx, http.MethodGet, "/"+a.userID+"/threads", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (a *ThreadsAdapter) do(ctx context.Context, method, endpoint string, query url.Values, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("access_token", a.accessToken)

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+endpoint+"?"+query.Encode(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call Threads API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return newAPIError(models.PlatformThreads, resp.StatusCode, threadsErrorMessage(resp.StatusCode, respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func threadsErrorMessage(status int, body []byte) string {
	switch status {
	case http.StatusUnauthorized:
		return "invalid or expired access token"
	case http.StatusForbidden:
		return "insufficient permissions or invalid user ID, the token needs threads_basic and threads_content_publish"
	case http.StatusNotFound:
		return "user ID does not exist or endpoint not found"
	}

	var apiErr threadsErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}

	if status == http.StatusBadRequest {
		return "invalid request parameters"
	}
	return string(body)
}
