package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shubh-37/multipost-agent/internal/fanout"
	"github.com/shubh-37/multipost-agent/internal/logging"
	"github.com/shubh-37/multipost-agent/internal/models"
	"google.golang.org/genai"
)

const (
	DefaultPostText = "New post created via AI Agent"
	promptTextLimit = 280
)

// Generator turns a prompt into model output
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator calls the Gemini API through the genai SDK
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return text, nil
}

// PromptParser extracts a PostRequest from a natural-language instruction such
// as "post 'shipping v2 today' on twitter and threads #launch"
type PromptParser struct {
	generator Generator
	logger    logging.Logger
}

// NewPromptParser creates a parser. With a nil generator every prompt goes
// through ParseFallback.
func NewPromptParser(generator Generator, logger logging.Logger) *PromptParser {
	return &PromptParser{generator: generator, logger: logger}
}

type parsedPrompt struct {
	Text      string   `json:"text"`
	Platforms []string `json:"platforms"`
	MediaURL  *string  `json:"mediaUrl"`
	Hashtags  []string `json:"hashtags"`
	Mentions  []string `json:"mentions"`
}

// Parse never fails on model errors: it falls back to keyword extraction
func (p *PromptParser) Parse(ctx context.Context, prompt string) (*models.PostRequest, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	if p.generator == nil {
		return ParseFallback(prompt), nil
	}

	response, err := p.generator.Generate(ctx, buildParsePrompt(prompt))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.WithError(err).Warn("⚠️ Gemini prompt parsing failed, using fallback")
		return ParseFallback(prompt), nil
	}

	req, err := decodeParsedPrompt(response)
	if err != nil {
		p.logger.WithError(err).Warn("⚠️ Could not decode Gemini response, using fallback")
		return ParseFallback(prompt), nil
	}

	p.logger.WithFields(logging.Fields{
		"platforms": req.Platforms,
		"has_media": req.HasMedia(),
	}).Debug("Parsed multi-platform prompt")

	return req, nil
}

func buildParsePrompt(prompt string) string {
	return fmt.Sprintf(`Parse the following user request for creating posts across multiple social media platforms and extract the information in JSON format:

{
  "text": "The text content for the post",
  "platforms": ["twitter", "threads"],
  "mediaUrl": "URL of media to include (null if no media)",
  "hashtags": ["hashtag1", "hashtag2"],
  "mentions": ["@username1", "@username2"]
}

Rules:
1. Extract or generate engaging text content suitable for social media
2. Identify which platforms to post to (twitter/x, threads, instagram, slack)
3. If no platforms specified, default to ["twitter", "threads"]
4. Extract hashtags and mentions
5. Identify any media URLs
6. Optimize text for social media engagement
7. Consider character limits for different platforms

User request: %q

Return only the JSON object, no additional text.`, prompt)
}

var codeFence = regexp.MustCompile("```(?:json)?")

func decodeParsedPrompt(response string) (*models.PostRequest, error) {
	cleaned := strings.TrimSpace(codeFence.ReplaceAllString(response, ""))

	var parsed parsedPrompt
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parsed prompt: %w", err)
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		text = DefaultPostText
	}
	text = appendTags(text, parsed.Mentions, "@")
	text = appendTags(text, parsed.Hashtags, "#")

	platforms := fanout.NormalizePlatforms(parsed.Platforms)
	if len(platforms) == 0 {
		platforms = append(platforms, fanout.DefaultPlatforms...)
	}

	req := &models.PostRequest{Text: text, Platforms: platforms}
	if parsed.MediaURL != nil && !strings.EqualFold(*parsed.MediaURL, "null") {
		req.MediaRef = strings.TrimSpace(*parsed.MediaURL)
	}
	return req, nil
}

var (
	platformWords = []struct {
		pattern  *regexp.Regexp
		platform models.PlatformID
	}{
		{regexp.MustCompile(`(?i)\b(twitter|x)\b`), models.PlatformTwitter},
		{regexp.MustCompile(`(?i)\bthreads\b`), models.PlatformThreads},
		{regexp.MustCompile(`(?i)\binstagram\b`), models.PlatformInstagram},
		{regexp.MustCompile(`(?i)\bslack\b`), models.PlatformSlack},
	}

	mediaURLPattern = regexp.MustCompile(`(?i)https?://\S+\.(?:jpg|jpeg|png|gif|webp|mp4|mov)\b`)
	hashtagPattern  = regexp.MustCompile(`#(\w+)`)
	mentionPattern  = regexp.MustCompile(`(?:^|\s)@(\w+)`)
	commandWords    = regexp.MustCompile(`(?i)\b(post|create|share|twitter|x|threads|instagram|slack|on|to|and)\b`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// ParseFallback extracts platforms, media, hashtags and mentions with plain
// pattern matching. Platforms default to twitter and threads.
func ParseFallback(prompt string) *models.PostRequest {
	var platforms []models.PlatformID
	for _, w := range platformWords {
		if w.pattern.MatchString(prompt) {
			platforms = append(platforms, w.platform)
		}
	}
	if len(platforms) == 0 {
		platforms = append(platforms, fanout.DefaultPlatforms...)
	}

	mediaRef := mediaURLPattern.FindString(prompt)

	var hashtags, mentions []string
	for _, m := range hashtagPattern.FindAllStringSubmatch(prompt, -1) {
		hashtags = append(hashtags, m[1])
	}
	for _, m := range mentionPattern.FindAllStringSubmatch(prompt, -1) {
		mentions = append(mentions, m[1])
	}

	text := prompt
	if mediaRef != "" {
		text = strings.ReplaceAll(text, mediaRef, "")
	}
	text = hashtagPattern.ReplaceAllString(text, "")
	text = mentionPattern.ReplaceAllString(text, " ")
	text = commandWords.ReplaceAllString(text, "")
	text = strings.Trim(whitespace.ReplaceAllString(text, " "), " \"'")
	if text == "" {
		text = DefaultPostText
	}

	text = appendTags(text, mentions, "@")
	text = appendTags(text, hashtags, "#")

	return &models.PostRequest{
		Text:      fanout.Truncate(text, promptTextLimit),
		Platforms: platforms,
		MediaRef:  mediaRef,
	}
}

// appendTags adds a blank line and the prefixed tags when they still fit in a tweet
func appendTags(text string, tags []string, prefix string) string {
	if len(tags) == 0 {
		return text
	}

	prefixed := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, prefix) {
			tag = prefix + tag
		}
		prefixed = append(prefixed, tag)
	}
	if len(prefixed) == 0 {
		return text
	}

	joined := strings.Join(prefixed, " ")
	if len([]rune(text))+len([]rune(joined))+2 > promptTextLimit {
		return text
	}
	return text + "\n\n" + joined
}
