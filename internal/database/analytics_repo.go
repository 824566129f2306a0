package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shubh-37/multipost-agent/internal/models"
)

// AnalyticsRepository stores one row per fan-out batch in post_analytics.
// It satisfies analytics.Sink.
type AnalyticsRepository struct {
	db *DB
}

func NewAnalyticsRepository(db *DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Record inserts an analytics event
func (r *AnalyticsRepository) Record(ctx context.Context, event *models.AnalyticsEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	outcomesJSON, err := json.Marshal(event.Outcomes)
	if err != nil {
		return fmt.Errorf("failed to marshal outcomes: %w", err)
	}

	query := `
		INSERT INTO post_analytics (id, type, platforms, success_count, error_count,
		                            text_length, has_media, timed_out, outcomes, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		event.ID,
		event.Type,
		event.Platforms,
		event.SuccessCount,
		event.ErrorCount,
		event.TextLength,
		event.HasMedia,
		event.TimedOut,
		outcomesJSON,
		event.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to record analytics event: %w", err)
	}

	return nil
}

// Recent retrieves the latest events, newest first
func (r *AnalyticsRepository) Recent(ctx context.Context, limit int) ([]*models.AnalyticsEvent, error) {
	query := `
		SELECT id, type, platforms, success_count, error_count,
		       text_length, has_media, timed_out, outcomes, timestamp
		FROM post_analytics
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics: %w", err)
	}
	defer rows.Close()

	var events []*models.AnalyticsEvent
	for rows.Next() {
		event := &models.AnalyticsEvent{}
		var outcomesJSON []byte

		err := rows.Scan(
			&event.ID,
			&event.Type,
			&event.Platforms,
			&event.SuccessCount,
			&event.ErrorCount,
			&event.TextLength,
			&event.HasMedia,
			&event.TimedOut,
			&outcomesJSON,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analytics event: %w", err)
		}

		if err := json.Unmarshal(outcomesJSON, &event.Outcomes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outcomes: %w", err)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read analytics: %w", err)
	}

	return events, nil
}
