package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shubh-37/multipost-agent/internal/logging"
	"github.com/shubh-37/multipost-agent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Postgres when TEST_DATABASE_URL is set
func TestAnalyticsRepository_RecordAndRecent(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := NewDB(ctx, url, logging.NewDiscardLogger())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.CreateTables(ctx))

	repo := NewAnalyticsRepository(db)
	event := &models.AnalyticsEvent{
		ID:           uuid.New().String(),
		Type:         models.AnalyticsTypeMultiPlatformPost,
		Platforms:    []string{"twitter", "threads"},
		SuccessCount: 2,
		TextLength:   11,
		Outcomes: []models.PlatformOutcome{
			{Platform: models.PlatformTwitter, Success: true, Message: "Posted to Twitter/X"},
			{Platform: models.PlatformThreads, Success: true, Message: "Posted to Threads"},
		},
		Timestamp: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, repo.Record(ctx, event))

	events, err := repo.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
	assert.Equal(t, event.Platforms, events[0].Platforms)
	assert.Len(t, events[0].Outcomes, 2)
}
