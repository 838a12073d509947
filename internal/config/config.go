package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the leadscout server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Reddit   RedditConfig
	Gemini   GeminiConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type RedditConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Free-tier budget: at most WindowCap calls per Window and at most
	// MaxConcurrent calls in flight, shared by every run in the process.
	MaxConcurrent int
	WindowCap     int
	Window        time.Duration
}

type PipelineConfig struct {
	ScrapeTimeout  time.Duration
	MaxKeywords    int
	MaxCommunities int
	MaxPosts       int
	ReplyPosts     int
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LEADSCOUT_PORT", 8080),
			Env:  envString("LEADSCOUT_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Reddit: RedditConfig{
			BaseURL:   envString("REDDIT_BASE_URL", "https://www.reddit.com"),
			UserAgent: envString("REDDIT_USER_AGENT", "LeadScoutBot/1.0 (by /u/leadscout)"),
			Timeout:   envDuration("REDDIT_TIMEOUT", 8*time.Second),
		},
		Gemini: GeminiConfig{
			APIKey:        os.Getenv("GEMINI_API_KEY"),
			BaseURL:       envString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			Model:         envString("GEMINI_MODEL", "gemini-2.0-flash"),
			MaxConcurrent: envInt("GEMINI_MAX_CONCURRENT", 5),
			WindowCap:     envInt("GEMINI_WINDOW_CAP", 55),
			Window:        envDuration("GEMINI_WINDOW", time.Minute),
		},
		Pipeline: PipelineConfig{
			ScrapeTimeout:  envDuration("SCRAPE_TIMEOUT", 8*time.Second),
			MaxKeywords:    envInt("PIPELINE_MAX_KEYWORDS", 20),
			MaxCommunities: envInt("PIPELINE_MAX_COMMUNITIES", 15),
			MaxPosts:       envInt("PIPELINE_MAX_POSTS", 25),
			ReplyPosts:     envInt("PIPELINE_REPLY_POSTS", 5),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}

	if !strings.HasPrefix(c.Reddit.BaseURL, "http://") && !strings.HasPrefix(c.Reddit.BaseURL, "https://") {
		return fmt.Errorf("REDDIT_BASE_URL must start with http:// or https://, got %q", c.Reddit.BaseURL)
	}

	if c.Gemini.MaxConcurrent < 1 {
		return fmt.Errorf("GEMINI_MAX_CONCURRENT must be at least 1, got %d", c.Gemini.MaxConcurrent)
	}
	if c.Gemini.WindowCap < 1 {
		return fmt.Errorf("GEMINI_WINDOW_CAP must be at least 1, got %d", c.Gemini.WindowCap)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
