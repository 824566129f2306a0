package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shubh-37/multipost-agent/config"
	"github.com/shubh-37/multipost-agent/internal/fanout"
	"github.com/shubh-37/multipost-agent/internal/logging"
	"github.com/shubh-37/multipost-agent/internal/models"
)

type handlers struct {
	publisher      Publisher
	platformStatus func() []config.PlatformStatus
	logger         logging.Logger
}

type postRequest struct {
	Text      string   `json:"text"`
	Platforms []string `json:"platforms"`
	MediaRef  string   `json:"mediaRef"`
}

type platformResult struct {
	Platform      models.PlatformID `json:"platform"`
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	PublishedText string            `json:"publishedText"`
	PostID        string            `json:"postId,omitempty"`
	URL           string            `json:"url,omitempty"`
}

type postResponse struct {
	BatchID      string              `json:"batchId"`
	SuccessCount int                 `json:"successCount"`
	FailureCount int                 `json:"failureCount"`
	PerPlatform  []platformResult    `json:"perPlatform"`
	Pending      []models.PlatformID `json:"pending,omitempty"`
	TimedOut     bool                `json:"timedOut"`
	SummaryText  string              `json:"summaryText"`
	CompletedAt  time.Time           `json:"completedAt"`
}

func (p postRequest) normalized() (models.PostRequest, error) {
	return fanout.NormalizeRequest(models.PostRequest{
		Text:      p.Text,
		Platforms: fanout.NormalizePlatforms(p.Platforms),
		MediaRef:  p.MediaRef,
	})
}

func newPostResponse(report *models.AggregatedReport) postResponse {
	results := make([]platformResult, len(report.Outcomes))
	for i, o := range report.Outcomes {
		results[i] = platformResult{
			Platform:      o.Platform,
			Success:       o.Success,
			Message:       o.Message,
			PublishedText: o.PublishedText,
			PostID:        o.PostID,
			URL:           o.URL,
		}
	}

	return postResponse{
		BatchID:      report.BatchID,
		SuccessCount: report.SuccessCount,
		FailureCount: report.FailureCount,
		PerPlatform:  results,
		Pending:      report.Pending,
		TimedOut:     report.TimedOut,
		SummaryText:  report.Summary,
		CompletedAt:  report.CompletedAt,
	}
}

// createPost publishes synchronously and returns the aggregated report.
// Platform failures and timeouts are still 200: they are part of the report.
func (h *handlers) createPost(c *gin.Context) {
	var body postRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req, err := body.normalized()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := h.publisher.PublishToAll(c.Request.Context(), req)
	c.JSON(http.StatusOK, newPostResponse(report))
}

func (h *handlers) createQuickPost(c *gin.Context) {
	var body postRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req, err := body.normalized()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ack, err := h.publisher.PublishInBackground(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": ack})
}

func (h *handlers) listPlatforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"platforms": h.platformStatus()})
}
