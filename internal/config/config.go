// Package config loads the bot configuration from config.yaml, BOTD_*
// environment variables, and an optional .env file. Every numeric limit the
// cycle depends on is overridable without code changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	HTTPAddr    string `koanf:"http_addr"`
	DataDir     string `koanf:"data_dir"`
	JournalPath string `koanf:"journal_path"`

	Bot     BotConfig     `koanf:"bot"`
	AI      AIConfig      `koanf:"ai"`
	Cycle   CycleConfig   `koanf:"cycle"`
	Payload PayloadConfig `koanf:"payload"`
}

// BotConfig identifies the bot on the platforms and optionally pins the
// primary channel driving attention.
type BotConfig struct {
	SenderID       string `koanf:"sender_id"`
	PrimaryChannel string `koanf:"primary_channel"`
}

type AIConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

type CycleConfig struct {
	ObservationInterval time.Duration `koanf:"observation_interval"`
	MaxCyclesPerHour    int           `koanf:"max_cycles_per_hour"`
	DecideTimeout       time.Duration `koanf:"decide_timeout"`
	CollectTimeout      time.Duration `koanf:"collect_timeout"`
	// InviteTTL drops pending invites the bot never acted on; zero disables
	// expiry.
	InviteTTL time.Duration `koanf:"invite_ttl"`
}

type PayloadConfig struct {
	MaxMessagesPerChannel int  `koanf:"max_messages_per_channel"`
	MaxActionHistory      int  `koanf:"max_action_history"`
	MaxOtherChannels      int  `koanf:"max_other_channels"`
	SnippetLength         int  `koanf:"message_snippet_length"`
	IncludeProfiles       bool `koanf:"include_profiles"`
	MaxBytes              int  `koanf:"max_bytes"`
}

func Default() Config {
	return Config{
		HTTPAddr:    ":8080",
		DataDir:     "data",
		JournalPath: "", // derived from DataDir when empty
		Cycle: CycleConfig{
			ObservationInterval: 2 * time.Minute,
			MaxCyclesPerHour:    30,
			DecideTimeout:       90 * time.Second,
			CollectTimeout:      30 * time.Second,
			InviteTTL:           72 * time.Hour,
		},
		Payload: PayloadConfig{
			MaxMessagesPerChannel: 10,
			MaxActionHistory:      5,
			MaxOtherChannels:      3,
			SnippetLength:         70,
			IncludeProfiles:       true,
			MaxBytes:              16384,
		},
	}
}

const envPrefix = "BOTD_"

// Load merges, in order: defaults, the yaml file at path (skipped when
// absent), then BOTD_* environment variables. Nesting in env keys uses a
// double underscore: BOTD_CYCLE__MAX_CYCLES_PER_HOUR.
func Load(path string) (Config, error) {
	loadDotEnv(".env")

	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			key = strings.ReplaceAll(key, "__", ".")
			return key, value
		},
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.JournalPath == "" {
		cfg.JournalPath = filepath.Join(cfg.DataDir, "botd.db")
	}
	return cfg, nil
}

// Validate is the single startup gate: configuration problems abort the
// process here, before the cycle starts. Nothing later is fatal.
func (c Config) Validate() error {
	if c.Cycle.ObservationInterval <= 0 {
		return fmt.Errorf("cycle.observation_interval must be positive")
	}
	if c.Cycle.MaxCyclesPerHour <= 0 {
		return fmt.Errorf("cycle.max_cycles_per_hour must be positive")
	}
	if c.Cycle.InviteTTL < 0 {
		return fmt.Errorf("cycle.invite_ttl must not be negative")
	}
	if c.Payload.MaxMessagesPerChannel <= 0 {
		return fmt.Errorf("payload.max_messages_per_channel must be positive")
	}
	if c.Payload.MaxActionHistory <= 0 {
		return fmt.Errorf("payload.max_action_history must be positive")
	}
	if c.Payload.MaxOtherChannels < 0 {
		return fmt.Errorf("payload.max_other_channels must not be negative")
	}
	if c.Payload.SnippetLength <= 0 {
		return fmt.Errorf("payload.message_snippet_length must be positive")
	}
	if c.AI.Model != "" && c.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required when ai.model is set")
	}
	return nil
}

// loadDotEnv exports KEY=VALUE lines from a local .env file without
// overriding variables already set in the environment.
func loadDotEnv(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		_ = os.Setenv(key, value)
	}
}
