package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
site:
  name: Packaging Hippo
  base_url: https://packaginghippo.com

database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  name: hippo_prod
  user: hippo
  password: s3cret

server:
  port: 9090
  static_dir: ./public
  allowed_origins: ["https://packaginghippo.com"]

chat:
  agent_names: ["Ava", "Mia"]
  typing_window: 3s

ai:
  enabled: true
  api_key: sk-test
  model: gpt-4o
  max_tokens: 200
  temperature: 0.5
  reply_delay: 7s
  cooldown: 20s
  history_limit: 10
  workers: 4

presence:
  backend: redis
  redis_addr: 127.0.0.1:6379

admin:
  token_secret: admin-secret

notify:
  slack:
    bot_token: xoxb-1
    channel_id: C123
  discord:
    bot_token: discord-token

digest:
  enabled: true
  schedule: "30 7 * * 1-5"

redirects:
  - source: /old-page
    target: /new-page
  - source: /promo
    target: /sale
    type: 302
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Site.BaseURL != "https://packaginghippo.com" {
		t.Errorf("Site.BaseURL = %q", cfg.Site.BaseURL)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != 3307 {
		t.Errorf("Database host/port = %s:%d, want 10.0.0.5:3307", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.Name != "hippo_prod" {
		t.Errorf("Database.Name = %q, want hippo_prod", cfg.Database.Name)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://packaginghippo.com" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if len(cfg.Chat.AgentNames) != 2 || cfg.Chat.AgentNames[0] != "Ava" {
		t.Errorf("Chat.AgentNames = %v, want [Ava Mia]", cfg.Chat.AgentNames)
	}
	if cfg.Chat.TypingWindow != 3*time.Second {
		t.Errorf("Chat.TypingWindow = %s, want 3s", cfg.Chat.TypingWindow)
	}
	if !cfg.AI.Enabled || cfg.AI.Model != "gpt-4o" || cfg.AI.MaxTokens != 200 {
		t.Errorf("AI = %+v", cfg.AI)
	}
	if cfg.AI.ReplyDelay != 7*time.Second || cfg.AI.Cooldown != 20*time.Second {
		t.Errorf("AI delay/cooldown = %s/%s, want 7s/20s", cfg.AI.ReplyDelay, cfg.AI.Cooldown)
	}
	if cfg.AI.Workers != 4 {
		t.Errorf("AI.Workers = %d, want 4", cfg.AI.Workers)
	}
	if cfg.Presence.Backend != "redis" {
		t.Errorf("Presence.Backend = %q, want redis", cfg.Presence.Backend)
	}
	if !cfg.Notify.Slack.Enabled() {
		t.Error("Notify.Slack should be enabled")
	}
	if cfg.Notify.Discord.Enabled() {
		t.Error("Notify.Discord without channel_id should not be enabled")
	}
	if cfg.Digest.Schedule != "30 7 * * 1-5" {
		t.Errorf("Digest.Schedule = %q", cfg.Digest.Schedule)
	}
	if len(cfg.Redirects) != 2 {
		t.Fatalf("len(Redirects) = %d, want 2", len(cfg.Redirects))
	}
	if cfg.Redirects[0].Type != 301 {
		t.Errorf("Redirects[0].Type = %d, want 301 (default)", cfg.Redirects[0].Type)
	}
	if cfg.Redirects[1].Type != 302 {
		t.Errorf("Redirects[1].Type = %d, want 302", cfg.Redirects[1].Type)
	}
}

func TestParse_EmptyConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite (default)", cfg.Database.Driver)
	}
	if cfg.Database.Path != "hippo.db" {
		t.Errorf("Database.Path = %q, want hippo.db", cfg.Database.Path)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Chat.TypingWindow != DefaultTypingWindow {
		t.Errorf("Chat.TypingWindow = %s, want %s", cfg.Chat.TypingWindow, DefaultTypingWindow)
	}
	if len(cfg.Chat.AgentNames) != len(DefaultAgentNames) {
		t.Errorf("Chat.AgentNames = %v, want default roster", cfg.Chat.AgentNames)
	}
	if cfg.AI.ReplyDelay != 5*time.Second {
		t.Errorf("AI.ReplyDelay = %s, want 5s", cfg.AI.ReplyDelay)
	}
	if cfg.AI.Cooldown != 10*time.Second {
		t.Errorf("AI.Cooldown = %s, want 10s", cfg.AI.Cooldown)
	}
	if cfg.AI.HistoryLimit != 30 {
		t.Errorf("AI.HistoryLimit = %d, want 30", cfg.AI.HistoryLimit)
	}
	if cfg.AI.Endpoint != DefaultEndpoint {
		t.Errorf("AI.Endpoint = %q", cfg.AI.Endpoint)
	}
	if cfg.Presence.Backend != "db" {
		t.Errorf("Presence.Backend = %q, want db", cfg.Presence.Backend)
	}
	if cfg.Digest.Schedule != DefaultDigestCron {
		t.Errorf("Digest.Schedule = %q, want %q", cfg.Digest.Schedule, DefaultDigestCron)
	}
}

func TestParse_DriverDefaults(t *testing.T) {
	tests := []struct {
		driver   string
		wantPort int
		wantUser string
	}{
		{"mysql", 3306, "root"},
		{"postgres", 5432, "postgres"},
		{"MySQL", 3306, "root"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			cfg, err := Parse([]byte("database:\n  driver: " + tt.driver + "\n"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Database.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", cfg.Database.Port, tt.wantPort)
			}
			if cfg.Database.User != tt.wantUser {
				t.Errorf("User = %q, want %q", cfg.Database.User, tt.wantUser)
			}
			if cfg.Database.Host != "127.0.0.1" {
				t.Errorf("Host = %q, want 127.0.0.1", cfg.Database.Host)
			}
		})
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown driver",
			yaml: "database:\n  driver: oracle\n",
			want: `database.driver "oracle" is not supported`,
		},
		{
			name: "ai enabled without key",
			yaml: "ai:\n  enabled: true\n",
			want: "ai.api_key is required",
		},
		{
			name: "redis without addr",
			yaml: "presence:\n  backend: redis\n",
			want: "presence.redis_addr is required",
		},
		{
			name: "unknown presence backend",
			yaml: "presence:\n  backend: memcached\n",
			want: `presence.backend "memcached" is not supported`,
		},
		{
			name: "redirect missing target",
			yaml: "redirects:\n  - source: /a\n",
			want: "redirects[0].target is required",
		},
		{
			name: "redirect bad type",
			yaml: "redirects:\n  - source: /a\n    target: /b\n    type: 307\n",
			want: "redirects[0].type must be 301 or 302",
		},
		{
			name: "blank agent name",
			yaml: "chat:\n  agent_names: [\"Ava\", \" \"]\n",
			want: "chat.agent_names[1] is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), "config: validation failed") {
				t.Errorf("error = %q, want validation prefix", err.Error())
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_MultipleErrorsJoined(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: oracle\nai:\n  enabled: true\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("expected multiple errors joined with '; ', got %q", err.Error())
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("server: [unterminated"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse")
	}
}

func TestParse_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("HIPPO_AI_API_KEY", "sk-from-env")
	t.Setenv("HIPPO_ADMIN_SECRET", "env-admin")
	t.Setenv("HIPPO_SLACK_BOT_TOKEN", "xoxb-env")

	cfg, err := Parse([]byte("ai:\n  enabled: true\nnotify:\n  slack:\n    channel_id: C1\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AI.APIKey != "sk-from-env" {
		t.Errorf("AI.APIKey = %q, want sk-from-env", cfg.AI.APIKey)
	}
	if cfg.Admin.TokenSecret != "env-admin" {
		t.Errorf("Admin.TokenSecret = %q, want env-admin", cfg.Admin.TokenSecret)
	}
	if !cfg.Notify.Slack.Enabled() {
		t.Error("Slack should be enabled with token from env")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hippo.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}
