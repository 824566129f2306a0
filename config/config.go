package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AnalyticsFile     = "file"
	AnalyticsPostgres = "postgres"
	AnalyticsRedis    = "redis"
	AnalyticsNone     = "none"
)

type Config struct {
	HTTPPort    string
	LogLevel    string
	PostTimeout time.Duration

	AnalyticsBackend string
	AnalyticsFile    string
	DatabaseURL      string
	RedisURL         string

	TwitterAPIKey       string
	TwitterAPISecret    string
	TwitterAccessToken  string
	TwitterAccessSecret string

	ThreadsAccessToken string
	ThreadsUserID      string

	SlackToken         string
	SlackSigningSecret string
	SlackPostChannel   string

	GeminiKey   string
	GeminiModel string
}

// PlatformStatus describes whether a platform has every credential it needs
type PlatformStatus struct {
	Platform   string   `json:"platform"`
	Configured bool     `json:"configured"`
	Missing    []string `json:"missing,omitempty"`
}

// LoadConfig loads configuration from environment variables
// It first tries to load from .env file, then falls back to system environment variables.
// The Config is always usable; envErr only reports a .env file that could not be read.
func LoadConfig() (cfg *Config, envErr error) {
	if err := godotenv.Load(); err != nil {
		envErr = fmt.Errorf(".env file not found or couldn't be loaded: %w", err)
	}

	return FromEnv(), envErr
}

// FromEnv reads the configuration from the process environment only
func FromEnv() *Config {
	return &Config{
		HTTPPort:    getEnv("PORT", "3000"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		PostTimeout: getEnvDuration("POST_TIMEOUT", 25*time.Second),

		AnalyticsBackend: strings.ToLower(getEnv("ANALYTICS_BACKEND", AnalyticsFile)),
		AnalyticsFile:    getEnv("ANALYTICS_FILE", "db.json"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", ""),

		TwitterAPIKey:       getEnv("TWITTER_API_KEY", ""),
		TwitterAPISecret:    getEnv("TWITTER_API_SECRET", ""),
		TwitterAccessToken:  getEnv("TWITTER_ACCESS_TOKEN", ""),
		TwitterAccessSecret: getEnv("TWITTER_ACCESS_SECRET", ""),

		ThreadsAccessToken: getEnv("THREADS_ACCESS_TOKEN", ""),
		ThreadsUserID:      getEnv("THREADS_USER_ID", ""),

		SlackToken:         getEnv("SLACK_BOT_TOKEN", ""),
		SlackSigningSecret: getEnv("SLACK_SIGNING_SECRET", ""),
		SlackPostChannel:   getEnv("SLACK_POST_CHANNEL", ""),

		GeminiKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel: getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.PostTimeout <= 0 {
		return fmt.Errorf("POST_TIMEOUT must be positive")
	}

	switch c.AnalyticsBackend {
	case AnalyticsFile:
		if c.AnalyticsFile == "" {
			return fmt.Errorf("ANALYTICS_FILE is required for the file analytics backend")
		}
	case AnalyticsPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres analytics backend")
		}
	case AnalyticsRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis analytics backend")
		}
	case AnalyticsNone:
	default:
		return fmt.Errorf("unknown ANALYTICS_BACKEND %q", c.AnalyticsBackend)
	}

	return nil
}

var numericID = regexp.MustCompile(`^\d+$`)

// TwitterConfigured reports whether all four OAuth1 credentials are set
func (c *Config) TwitterConfigured() bool {
	return len(c.twitterMissing()) == 0
}

// ThreadsConfigured reports whether Threads credentials are set and the user id is numeric
func (c *Config) ThreadsConfigured() bool {
	return len(c.threadsMissing()) == 0 && numericID.MatchString(c.ThreadsUserID)
}

// SlackPostingConfigured reports whether Slack can be used as a publishing platform
func (c *Config) SlackPostingConfigured() bool {
	return len(c.slackMissing()) == 0
}

// SlackEventsConfigured reports whether the Slack chat surface can be served
func (c *Config) SlackEventsConfigured() bool {
	return c.SlackToken != "" && c.SlackSigningSecret != ""
}

// PlatformStatus lists every known platform with its missing variables
func (c *Config) PlatformStatus() []PlatformStatus {
	return []PlatformStatus{
		{Platform: "twitter", Configured: c.TwitterConfigured(), Missing: c.twitterMissing()},
		{Platform: "threads", Configured: c.ThreadsConfigured(), Missing: c.threadsMissing()},
		{Platform: "slack", Configured: c.SlackPostingConfigured(), Missing: c.slackMissing()},
	}
}

func (c *Config) twitterMissing() []string {
	return missing(map[string]string{
		"TWITTER_API_KEY":       c.TwitterAPIKey,
		"TWITTER_API_SECRET":    c.TwitterAPISecret,
		"TWITTER_ACCESS_TOKEN":  c.TwitterAccessToken,
		"TWITTER_ACCESS_SECRET": c.TwitterAccessSecret,
	}, "TWITTER_API_KEY", "TWITTER_API_SECRET", "TWITTER_ACCESS_TOKEN", "TWITTER_ACCESS_SECRET")
}

func (c *Config) threadsMissing() []string {
	return missing(map[string]string{
		"THREADS_ACCESS_TOKEN": c.ThreadsAccessToken,
		"THREADS_USER_ID":      c.ThreadsUserID,
	}, "THREADS_ACCESS_TOKEN", "THREADS_USER_ID")
}

func (c *Config) slackMissing() []string {
	return missing(map[string]string{
		"SLACK_BOT_TOKEN":    c.SlackToken,
		"SLACK_POST_CHANNEL": c.SlackPostChannel,
	}, "SLACK_BOT_TOKEN", "SLACK_POST_CHANNEL")
}

func missing(values map[string]string, order ...string) []string {
	var out []string
	for _, key := range order {
		if values[key] == "" {
			out = append(out, key)
		}
	}
	return out
}

// PlatformReport renders PlatformStatus for chat and tool replies
func (c *Config) PlatformReport(at time.Time) string {
	var b strings.Builder
	b.WriteString("🔧 Platform Configuration Status\n")
	b.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	var available, unavailable []string
	for _, s := range c.PlatformStatus() {
		name := strings.ToUpper(s.Platform[:1]) + s.Platform[1:]
		if s.Configured {
			fmt.Fprintf(&b, "📱 %s: ✅ Configured\n\n", name)
			available = append(available, s.Platform)
			continue
		}
		fmt.Fprintf(&b, "📱 %s: ❌ Not Configured\n", name)
		if len(s.Missing) > 0 {
			fmt.Fprintf(&b, "   Missing: %s\n", strings.Join(s.Missing, ", "))
		} else {
			b.WriteString("   Invalid: THREADS_USER_ID must be numeric\n")
		}
		b.WriteString("\n")
		unavailable = append(unavailable, s.Platform)
	}

	fmt.Fprintf(&b, "🚀 Available Platforms: %s\n", joinOrNone(available))
	fmt.Fprintf(&b, "⚠️ Unavailable Platforms: %s\n\n", joinOrNone(unavailable))
	fmt.Fprintf(&b, "⏰ Checked at: %s", at.Format("Jan 02, 2006 at 3:04:05 PM MST"))
	return b.String()
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
