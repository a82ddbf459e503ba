package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Agent    AgentConfig    `json:"agent"`
	Channels ChannelsConfig `json:"channels"`
	Provider ProviderConfig `json:"provider"`
	Store    StoreConfig    `json:"store"`
	Defaults CheckDefaults  `json:"defaults"`
	mu       sync.RWMutex
}

type AgentConfig struct {
	DataDir     string  `json:"data_dir" env:"ARJUN_AGENT_DATA_DIR"`
	Model       string  `json:"model" env:"ARJUN_AGENT_MODEL"`
	MaxTokens   int     `json:"max_tokens" env:"ARJUN_AGENT_MAX_TOKENS"`
	Temperature float64 `json:"temperature" env:"ARJUN_AGENT_TEMPERATURE"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Token     string              `json:"token" env:"ARJUN_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"ARJUN_CHANNELS_DISCORD_ALLOW_FROM"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" env:"ARJUN_PROVIDER_API_KEY"`
	APIBase string `json:"api_base" env:"ARJUN_PROVIDER_API_BASE"`
}

// StoreConfig selects the document store backend. "file" keeps one JSON
// document per (user, kind); "sqlite" keeps all documents in one database.
type StoreConfig struct {
	Backend string `json:"backend" env:"ARJUN_STORE_BACKEND"`
}

// CheckDefaults seeds the per-user configuration on first contact.
type CheckDefaults struct {
	MorningCheckHour         int     `json:"morning_check_hour" env:"ARJUN_DEFAULTS_MORNING_CHECK_HOUR"`
	EveningReviewHour        int     `json:"evening_review_hour" env:"ARJUN_DEFAULTS_EVENING_REVIEW_HOUR"`
	WeeklyReviewDay          string  `json:"weekly_review_day" env:"ARJUN_DEFAULTS_WEEKLY_REVIEW_DAY"`
	WeeklyReviewHour         int     `json:"weekly_review_hour" env:"ARJUN_DEFAULTS_WEEKLY_REVIEW_HOUR"`
	ActivityCheckProbability float64 `json:"activity_check_probability" env:"ARJUN_DEFAULTS_ACTIVITY_CHECK_PROBABILITY"`
	Timezone                 string  `json:"timezone" env:"ARJUN_DEFAULTS_TIMEZONE"`
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			DataDir:     "~/.arjun/data",
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   1000,
			Temperature: 0.7,
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Token:     "",
				AllowFrom: FlexibleStringSlice{},
			},
		},
		Provider: ProviderConfig{},
		Store: StoreConfig{
			Backend: "file",
		},
		Defaults: CheckDefaults{
			MorningCheckHour:         9,
			EveningReviewHour:        21,
			WeeklyReviewDay:          "SUN",
			WeeklyReviewHour:         18,
			ActivityCheckProbability: 0.3,
			Timezone:                 "UTC",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureConfigFile writes the defaults to path when no file exists yet,
// so a first run leaves something to edit. Environment-sourced values are
// never written to disk. Reports whether the file was created.
func EnsureConfigFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	return true, SaveConfig(path, DefaultConfig())
}

func (c *Config) DataDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Agent.DataDir)
}

func (c *Config) GetAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Provider.APIKey
}

func (c *Config) GetAPIBase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Provider.APIBase
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
