package fanout

import (
	"errors"
	"strings"

	"github.com/shubh-37/multipost-agent/internal/models"
)

const ellipsis = "..."

var platformAliases = map[string]models.PlatformID{
	"x":       models.PlatformTwitter,
	"twitter": models.PlatformTwitter,
}

var (
	ErrEmptyText     = errors.New("text is required")
	ErrNoPlatforms   = errors.New("at least one platform is required")
	DefaultPlatforms = []models.PlatformID{models.PlatformTwitter, models.PlatformThreads}
)

// NormalizePlatforms lowercases and trims platform names, collapses aliases
// ("x" -> "twitter"), drops empty names and keeps the first occurrence of each
// id. Unknown names pass through unchanged.
func NormalizePlatforms(names []string) []models.PlatformID {
	seen := make(map[models.PlatformID]bool, len(names))
	out := make([]models.PlatformID, 0, len(names))

	for _, name := range names {
		id, ok := ParsePlatform(name)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}

	return out
}

// ParsePlatform normalizes a single platform name
func ParsePlatform(name string) (models.PlatformID, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", false
	}
	if alias, ok := platformAliases[name]; ok {
		return alias, true
	}
	return models.PlatformID(name), true
}

// NormalizeRequest returns a copy of req with normalized platforms and
// trimmed text, or an error when the request is unusable.
func NormalizeRequest(req models.PostRequest) (models.PostRequest, error) {
	names := make([]string, len(req.Platforms))
	for i, p := range req.Platforms {
		names[i] = string(p)
	}

	out := models.PostRequest{
		Text:      strings.TrimSpace(req.Text),
		Platforms: NormalizePlatforms(names),
		MediaRef:  strings.TrimSpace(req.MediaRef),
	}

	if out.Text == "" {
		return out, ErrEmptyText
	}
	if len(out.Platforms) == 0 {
		return out, ErrNoPlatforms
	}
	return out, nil
}

// Truncate shortens text to at most limit characters, replacing the tail with
// "..." when it had to cut. A limit of 0 or less means no limit.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	if limit <= len(ellipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(ellipsis)]) + ellipsis
}
