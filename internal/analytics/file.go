package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shubh-37/multipost-agent/internal/models"
)

// FileSink appends events to a JSON document of the form
// {"analytics": {"queries": [...]}}. Unknown top-level keys are preserved.
type FileSink struct {
	path string
	mu   sync.Mutex
}

type fileDocument struct {
	Analytics struct {
		Queries []json.RawMessage `json:"queries"`
	} `json:"analytics"`
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Record(ctx context.Context, event *models.AnalyticsEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}

	entry, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics event: %w", err)
	}

	var analytics fileDocument
	if raw, ok := doc["analytics"]; ok {
		if err := json.Unmarshal(raw, &analytics.Analytics); err != nil {
			return fmt.Errorf("failed to parse analytics section: %w", err)
		}
	}
	analytics.Analytics.Queries = append(analytics.Analytics.Queries, entry)

	section, err := json.Marshal(analytics.Analytics)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics section: %w", err)
	}
	doc["analytics"] = section

	return s.write(doc)
}

// Events returns every recorded event, oldest first
func (s *FileSink) Events() ([]*models.AnalyticsEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	raw, ok := doc["analytics"]
	if !ok {
		return nil, nil
	}

	var analytics fileDocument
	if err := json.Unmarshal(raw, &analytics.Analytics); err != nil {
		return nil, fmt.Errorf("failed to parse analytics section: %w", err)
	}

	events := make([]*models.AnalyticsEvent, 0, len(analytics.Analytics.Queries))
	for _, q := range analytics.Analytics.Queries {
		event := &models.AnalyticsEvent{}
		if err := json.Unmarshal(q, event); err != nil {
			return nil, fmt.Errorf("failed to parse analytics event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *FileSink) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read analytics file: %w", err)
	}

	doc := map[string]json.RawMessage{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse analytics file: %w", err)
	}
	return doc, nil
}

// write replaces the file atomically through a temp file in the same directory
func (s *FileSink) write(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal analytics file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".analytics-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write analytics file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close analytics file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace analytics file: %w", err)
	}
	return nil
}
