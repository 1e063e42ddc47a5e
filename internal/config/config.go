package config

import (
	"errors"
	"fmt"
	"strings"

	"fairytales/internal/story/generation"
	"fairytales/internal/story/tts"
	"fairytales/internal/usage"

	"github.com/spf13/viper"
)

type TTS struct {
	Type         string  `mapstructure:"type"`
	Voice        string  `mapstructure:"voice"`
	Speed        float64 `mapstructure:"speed"`
	Volume       float64 `mapstructure:"volume"`
	LanguageCode string  `mapstructure:"language_code"`
	APIKey       string  `mapstructure:"api_key"`
	Model        string  `mapstructure:"model"`
	BaseURL      string  `mapstructure:"base_url"`
	CachePath    string  `mapstructure:"cache_path"`
}

type Generation struct {
	Provider     string  `mapstructure:"provider"`
	APIKey       string  `mapstructure:"api_key"`
	ChatModel    string  `mapstructure:"chat_model"`
	OneShotModel string  `mapstructure:"oneshot_model"`
	BaseURL      string  `mapstructure:"base_url"`
	Temperature  float64 `mapstructure:"temperature"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Usage struct {
	Store            string         `mapstructure:"store"`
	File             string         `mapstructure:"file"`
	Redis            Redis          `mapstructure:"redis"`
	GuestSimple      int            `mapstructure:"guest_simple"`
	RegisteredSimple int            `mapstructure:"registered_simple"`
	Daily            map[string]int `mapstructure:"daily"`
}

type Account struct {
	ID     string `mapstructure:"id"`
	Status string `mapstructure:"status"`
	Tier   string `mapstructure:"tier"`
}

type Config struct {
	TTS        TTS        `mapstructure:"tts"`
	Generation Generation `mapstructure:"generation"`
	Usage      Usage      `mapstructure:"usage"`
	Account    Account    `mapstructure:"account"`
	Archive    struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"archive"`
	Share struct {
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"share"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Metrics struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"metrics"`
}

func SetDefaults() {
	viper.SetDefault("tts.type", "auto") // Auto-select best engine
	viper.SetDefault("tts.voice", "Kore")
	viper.SetDefault("tts.speed", 1.0)
	viper.SetDefault("tts.volume", 0.8)
	viper.SetDefault("tts.language_code", "ru-RU")
	viper.SetDefault("tts.model", "gemini-2.5-flash-preview-tts")
	viper.SetDefault("tts.api_key", "")
	viper.SetDefault("tts.base_url", "")
	viper.SetDefault("tts.cache_path", "./cache/narration")

	viper.SetDefault("generation.provider", "gemini")
	viper.SetDefault("generation.api_key", "")
	viper.SetDefault("generation.chat_model", "gemini-2.5-pro")
	viper.SetDefault("generation.oneshot_model", "gemini-2.5-flash")
	viper.SetDefault("generation.base_url", "")
	viper.SetDefault("generation.temperature", 0.9)

	limits := usage.DefaultLimits()
	viper.SetDefault("usage.store", "file")
	viper.SetDefault("usage.file", "./cache/usage.json")
	viper.SetDefault("usage.redis.addr", "localhost:6379")
	viper.SetDefault("usage.redis.password", "")
	viper.SetDefault("usage.redis.db", 0)
	viper.SetDefault("usage.guest_simple", limits.GuestSimple)
	viper.SetDefault("usage.registered_simple", limits.RegisteredSimple)
	viper.SetDefault("usage.daily", map[string]int{
		string(usage.Tier1): limits.Daily[usage.Tier1],
		string(usage.Tier2): limits.Daily[usage.Tier2],
	})

	viper.SetDefault("account.id", "local")
	viper.SetDefault("account.status", string(usage.StatusGuest))
	viper.SetDefault("account.tier", "")

	viper.SetDefault("archive.dir", "./cache/stories")
	viper.SetDefault("share.base_url", "http://localhost:8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("metrics.addr", "")
}

// Load reads fairytales.yaml (if any) and the FAIRYTALES_* environment on
// top of the defaults.
func Load() (Config, error) {
	viper.SetConfigName("fairytales")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.fairytales")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("FAIRYTALES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func (c Config) TTSConfig() tts.Config {
	return tts.Config{
		Type:         c.TTS.Type,
		Speed:        c.TTS.Speed,
		Volume:       c.TTS.Volume,
		Voice:        c.TTS.Voice,
		LanguageCode: c.TTS.LanguageCode,
		APIKey:       c.TTS.APIKey,
		Model:        c.TTS.Model,
		BaseURL:      c.TTS.BaseURL,
		CachePath:    c.TTS.CachePath,
	}
}

func (c Config) GenerationConfig() generation.Config {
	return generation.Config{
		Type:         c.Generation.Provider,
		APIKey:       c.Generation.APIKey,
		ChatModel:    c.Generation.ChatModel,
		OneShotModel: c.Generation.OneShotModel,
		BaseURL:      c.Generation.BaseURL,
		Temperature:  c.Generation.Temperature,
	}
}

// Limits converts the usage caps; tiers missing from the file keep their
// default cap.
func (c Config) Limits() usage.Limits {
	limits := usage.DefaultLimits()
	if c.Usage.GuestSimple > 0 {
		limits.GuestSimple = c.Usage.GuestSimple
	}
	if c.Usage.RegisteredSimple > 0 {
		limits.RegisteredSimple = c.Usage.RegisteredSimple
	}
	for tier, n := range c.Usage.Daily {
		if n > 0 {
			limits.Daily[usage.Tier(strings.ToLower(tier))] = n
		}
	}
	return limits
}

func (c Config) UsageAccount() (usage.Account, error) {
	status := usage.Status(strings.ToLower(strings.TrimSpace(c.Account.Status)))
	switch status {
	case usage.StatusGuest, usage.StatusRegistered, usage.StatusSubscribed, usage.StatusOwner:
	default:
		return usage.Account{}, fmt.Errorf("unknown account status: %q", c.Account.Status)
	}
	return usage.Account{
		ID:     c.Account.ID,
		Status: status,
		Tier:   usage.Tier(strings.ToLower(strings.TrimSpace(c.Account.Tier))),
	}, nil
}
