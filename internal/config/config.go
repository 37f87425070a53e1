// Package config loads palchat configuration.
//
// Values are resolved in this order, later wins:
//   - built-in defaults
//   - the TOML file passed to Load, if any
//   - environment variables (a .env file is read by the command first)
//
// Command line flags are applied by the caller on top of the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/RichardoC/palchat/internal/models"
)

// Duration is a time.Duration written as "1.5s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Server ServerConfig `toml:"server"`
	LLM    LLMConfig    `toml:"llm"`
	Chat   ChatConfig   `toml:"chat"`
	Store  StoreConfig  `toml:"store"`
	Log    LogConfig    `toml:"log"`
}

type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type LLMConfig struct {
	// Provider is "openai" (any OpenAI compatible endpoint), "googleai" or "ollama".
	Provider string   `toml:"provider"`
	BaseURL  string   `toml:"base_url"`
	Model    string   `toml:"model"`
	APIKey   string   `toml:"api_key"`
	Timeout  Duration `toml:"timeout"`
}

type ChatConfig struct {
	// SelfID is the sender id of the current user.
	SelfID string `toml:"self_id"`
	// Language is the default language for replies, suggestions and translations.
	Language   string   `toml:"language"`
	ReplyDelay Duration `toml:"reply_delay"`
}

type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8100",
			ShutdownTimeout: Duration{10 * time.Second},
		},
		LLM: LLMConfig{
			Provider: "openai",
			Timeout:  Duration{30 * time.Second},
		},
		Chat: ChatConfig{
			SelfID:     "user_123",
			Language:   "en",
			ReplyDelay: Duration{1500 * time.Millisecond},
		},
		Store: StoreConfig{
			Driver: "memory",
			DSN:    ":memory:",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyProviderDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := os.LookupEnv(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	setString(&c.Server.Addr, "PALCHAT_ADDR")
	setString(&c.LLM.Provider, "PALCHAT_LLM_PROVIDER")
	setString(&c.LLM.BaseURL, "PALCHAT_LLM_BASE_URL")
	setString(&c.LLM.Model, "PALCHAT_LLM_MODEL")
	setString(&c.Chat.Language, "PALCHAT_LANGUAGE")
	setString(&c.Chat.SelfID, "PALCHAT_SELF_ID")
	setString(&c.Store.Driver, "PALCHAT_STORE_DRIVER")
	setString(&c.Store.DSN, "PALCHAT_STORE_DSN")
	setString(&c.Log.Level, "PALCHAT_LOG_LEVEL")

	switch c.LLM.Provider {
	case "googleai":
		setString(&c.LLM.APIKey, "PALCHAT_LLM_API_KEY", "GOOGLE_API_KEY", "API_KEY")
	default:
		setString(&c.LLM.APIKey, "PALCHAT_LLM_API_KEY", "OPENAI_API_KEY")
	}

	if v := os.Getenv("PALCHAT_REPLY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PALCHAT_REPLY_DELAY: %w", err)
		}
		c.Chat.ReplyDelay = Duration{d}
	}
	return nil
}

func (c *Config) applyProviderDefaults() {
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = "http://localhost:11434/v1/"
		}
		if c.LLM.Model == "" {
			c.LLM.Model = "llama3.1:8b"
		}
		// local OpenAI compatible servers ignore the key but the client wants one
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = "ollama"
		}
	case "ollama":
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = "http://localhost:11434"
		}
		if c.LLM.Model == "" {
			c.LLM.Model = "llama3.1:8b"
		}
	case "googleai":
		if c.LLM.Model == "" {
			c.LLM.Model = "gemini-1.5-flash"
		}
	}
}

// Language returns the configured default language.
func (c *Config) Language() models.Language {
	l, err := models.ParseLanguage(c.Chat.Language)
	if err != nil {
		return models.English
	}
	return l
}

func (c *Config) Validate() error {
	var errs []error
	switch c.LLM.Provider {
	case "openai", "ollama":
	case "googleai":
		if c.LLM.APIKey == "" {
			errs = append(errs, errors.New("llm.api_key is required for googleai"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", c.LLM.Provider))
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	if _, err := models.ParseLanguage(c.Chat.Language); err != nil {
		errs = append(errs, fmt.Errorf("chat.language: %w", err))
	}
	if strings.TrimSpace(c.Chat.SelfID) == "" {
		errs = append(errs, errors.New("chat.self_id is required"))
	}
	if c.Chat.ReplyDelay.Duration <= 0 {
		errs = append(errs, errors.New("chat.reply_delay must be positive"))
	}
	if c.LLM.Timeout.Duration <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	return errors.Join(errs...)
}
