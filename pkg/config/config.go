// Package config loads rule-mirror configuration from an optional YAML file
// overlaid with RULEMIRROR_* environment variables. Environment always wins,
// so deployments can keep secrets out of the config file entirely.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for both the web and bot processes.
type Config struct {
	Log    LogConfig    `yaml:"log" envPrefix:"LOG_"`
	Redis  RedisConfig  `yaml:"redis" envPrefix:"REDIS_"`
	GitHub GitHubConfig `yaml:"github" envPrefix:"GITHUB_"`
	Chat   ChatConfig   `yaml:"chat" envPrefix:"CHAT_"`
	Web    WebConfig    `yaml:"web" envPrefix:"WEB_"`
	Resync ResyncConfig `yaml:"resync" envPrefix:"RESYNC_"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	JSON  bool   `yaml:"json" env:"JSON"`
}

type RedisConfig struct {
	// URL in redis://[user:pass@]host:port/db form, as accepted by
	// redis.ParseURL.
	URL string `yaml:"url" env:"URL"`
}

type GitHubConfig struct {
	// WebhookSecret is the shared secret configured on the GitHub App;
	// incoming deliveries are rejected unless their HMAC matches.
	WebhookSecret string `yaml:"webhook_secret" env:"WEBHOOK_SECRET"`
	// AppURL is the public install page of the GitHub App, quoted to users
	// when they mirror a file from a repo the app has never heard from.
	AppURL string `yaml:"app_url" env:"APP_URL"`
}

// ChatConfig selects the chat platform a bot process serves. One process
// drives exactly one platform; run several processes against the same redis
// to serve several platforms.
type ChatConfig struct {
	Platform string         `yaml:"platform" env:"PLATFORM"`
	Discord  DiscordConfig  `yaml:"discord" envPrefix:"DISCORD_"`
	Telegram TelegramConfig `yaml:"telegram" envPrefix:"TELEGRAM_"`
	Slack    SlackConfig    `yaml:"slack" envPrefix:"SLACK_"`
}

type DiscordConfig struct {
	Token    string `yaml:"token" env:"TOKEN"`
	ClientID string `yaml:"client_id" env:"CLIENT_ID"`
}

type TelegramConfig struct {
	Token string `yaml:"token" env:"TOKEN"`
}

type SlackConfig struct {
	Token string `yaml:"token" env:"TOKEN"`
}

type WebConfig struct {
	Listen string `yaml:"listen" env:"LISTEN"`
}

type ResyncConfig struct {
	// Cron is a standard five-field cron expression; empty disables the
	// periodic full resync.
	Cron string `yaml:"cron" env:"CRON"`
}

// defaultConfig is the baseline before any overlay. Defaults live here in
// code, not in envDefault tags: env/v11 applies tag defaults whenever the
// variable is absent, which would clobber values read from the file.
func defaultConfig() *Config {
	return &Config{
		Log:    LogConfig{Level: "info"},
		Redis:  RedisConfig{URL: "redis://localhost:6379/0"},
		GitHub: GitHubConfig{AppURL: "https://github.com/apps/rule-mirror"},
		Chat:   ChatConfig{Platform: "discord"},
		Web:    WebConfig{Listen: ":8000"},
	}
}

// Load starts from the defaults, overlays the YAML file at path (skipped
// when path is empty or the file does not exist), and finally applies
// environment overrides. Precedence: defaults < file < environment.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env-only config
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "RULEMIRROR_"}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
