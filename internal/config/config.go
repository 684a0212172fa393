// Package config provides YAML-based configuration loading for the Hippo site backend.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded from hippo.yaml.
type Config struct {
	Site      SiteConfig       `yaml:"site"`
	Database  DatabaseConfig   `yaml:"database"`
	Server    ServerConfig     `yaml:"server"`
	Chat      ChatConfig       `yaml:"chat"`
	AI        AIConfig         `yaml:"ai"`
	Presence  PresenceConfig   `yaml:"presence"`
	Admin     AdminConfig      `yaml:"admin"`
	Notify    NotifyConfig     `yaml:"notify"`
	Digest    DigestConfig     `yaml:"digest"`
	Redirects []RedirectConfig `yaml:"redirects"`
}

// SiteConfig describes the public site.
type SiteConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig holds connection settings for the relational store.
// Driver is one of "mysql", "postgres" or "sqlite". For sqlite only Path is used.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	StaticDir      string   `yaml:"static_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ChatConfig controls the live chat widget.
type ChatConfig struct {
	AgentNames   []string      `yaml:"agent_names"`
	TypingWindow time.Duration `yaml:"typing_window"`
}

// AIConfig controls the AI auto-reply trigger and the completion API client.
type AIConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Endpoint     string        `yaml:"endpoint"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	MaxTokens    int           `yaml:"max_tokens"`
	Temperature  float64       `yaml:"temperature"`
	ReplyDelay   time.Duration `yaml:"reply_delay"`
	Cooldown     time.Duration `yaml:"cooldown"`
	HistoryLimit int           `yaml:"history_limit"`
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// PresenceConfig selects where typing heartbeats are kept.
// Backend is "db" (default, stored on the conversation row) or "redis".
type PresenceConfig struct {
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// AdminConfig holds the signing secret for admin API bearer tokens.
type AdminConfig struct {
	TokenSecret string        `yaml:"token_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
}

// NotifyConfig configures where sales-team notifications go.
type NotifyConfig struct {
	Slack   ChannelConfig `yaml:"slack"`
	Discord ChannelConfig `yaml:"discord"`
}

// ChannelConfig is a bot token plus the channel to post into.
type ChannelConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Enabled reports whether both a token and a channel are configured.
func (c ChannelConfig) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

// DigestConfig controls the periodic chat activity digest.
type DigestConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// RedirectConfig is a redirect rule seeded by `hippo db migrate`.
type RedirectConfig struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Type   int    `yaml:"type"`
}

// Default values.
const (
	DefaultPort         = 8080
	DefaultTypingWindow = 4 * time.Second
	DefaultModel        = "gpt-4o-mini"
	DefaultEndpoint     = "https://api.openai.com/v1/chat/completions"
	DefaultMaxTokens    = 300
	DefaultTemperature  = 0.7
	DefaultReplyDelay   = 5 * time.Second
	DefaultCooldown     = 10 * time.Second
	DefaultHistoryLimit = 30
	DefaultWorkers      = 2
	DefaultPollInterval = 2 * time.Second
	DefaultTokenTTL     = 12 * time.Hour
	DefaultDigestCron   = "0 8 * * *"
)

// DefaultAgentNames is the display roster used when none is configured.
var DefaultAgentNames = []string{"Sarah", "Emily", "Jessica", "Olivia", "Sophia"}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Site.Name == "" {
		c.Site.Name = "Packaging Hippo"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "hippo.db"
		}
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	case "postgres":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.User == "" {
			c.Database.User = "postgres"
		}
	}
	if c.Database.Name == "" {
		c.Database.Name = "hippo"
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if len(c.Chat.AgentNames) == 0 {
		c.Chat.AgentNames = append([]string(nil), DefaultAgentNames...)
	}
	if c.Chat.TypingWindow == 0 {
		c.Chat.TypingWindow = DefaultTypingWindow
	}
	if c.AI.Endpoint == "" {
		c.AI.Endpoint = DefaultEndpoint
	}
	if c.AI.Model == "" {
		c.AI.Model = DefaultModel
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = DefaultMaxTokens
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = DefaultTemperature
	}
	if c.AI.ReplyDelay == 0 {
		c.AI.ReplyDelay = DefaultReplyDelay
	}
	if c.AI.Cooldown == 0 {
		c.AI.Cooldown = DefaultCooldown
	}
	if c.AI.HistoryLimit == 0 {
		c.AI.HistoryLimit = DefaultHistoryLimit
	}
	if c.AI.Workers == 0 {
		c.AI.Workers = DefaultWorkers
	}
	if c.AI.PollInterval == 0 {
		c.AI.PollInterval = DefaultPollInterval
	}
	if c.Presence.Backend == "" {
		c.Presence.Backend = "db"
	}
	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = DefaultTokenTTL
	}
	if c.Digest.Schedule == "" {
		c.Digest.Schedule = DefaultDigestCron
	}
	for i := range c.Redirects {
		if c.Redirects[i].Type == 0 {
			c.Redirects[i].Type = 301
		}
	}
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	envOverride(&c.AI.APIKey, "HIPPO_AI_API_KEY")
	envOverride(&c.Admin.TokenSecret, "HIPPO_ADMIN_SECRET")
	envOverride(&c.Database.Password, "HIPPO_DB_PASSWORD")
	envOverride(&c.Notify.Slack.BotToken, "HIPPO_SLACK_BOT_TOKEN")
	envOverride(&c.Notify.Discord.BotToken, "HIPPO_DISCORD_BOT_TOKEN")
	envOverride(&c.Presence.RedisPassword, "HIPPO_REDIS_PASSWORD")
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if c.Chat.TypingWindow < 0 {
		errs = append(errs, "chat.typing_window must not be negative")
	}
	for i, name := range c.Chat.AgentNames {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Sprintf("chat.agent_names[%d] is empty", i))
		}
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		errs = append(errs, "ai.api_key is required when ai.enabled is true")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		errs = append(errs, "ai.temperature must be between 0 and 2")
	}
	if c.AI.HistoryLimit < 0 {
		errs = append(errs, "ai.history_limit must not be negative")
	}
	switch c.Presence.Backend {
	case "db":
	case "redis":
		if c.Presence.RedisAddr == "" {
			errs = append(errs, "presence.redis_addr is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("presence.backend %q is not supported", c.Presence.Backend))
	}
	for i, r := range c.Redirects {
		if r.Source == "" {
			errs = append(errs, fmt.Sprintf("redirects[%d].source is required", i))
		}
		if r.Target == "" {
			errs = append(errs, fmt.Sprintf("redirects[%d].target is required", i))
		}
		if r.Type != 301 && r.Type != 302 {
			errs = append(errs, fmt.Sprintf("redirects[%d].type must be 301 or 302", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
