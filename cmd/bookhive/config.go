package main

import (
	"errors"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/goliatone/go-bookhive"
)

const envPrefix = "BOOKHIVE_"

// Config holds the CLI settings
type Config struct {
	BaseURL        string        `koanf:"base_url" json:"base_url"`
	Timeout        time.Duration `koanf:"timeout" json:"timeout"`
	DBPath         string        `koanf:"db_path" json:"db_path"`
	TokenKey       string        `koanf:"token_key" json:"token_key"`
	Compensate     bool          `koanf:"compensate" json:"compensate"`
	Debug          bool          `koanf:"debug" json:"debug"`
	StubAddr       string        `koanf:"stub_addr" json:"stub_addr"`
	StubSigningKey string        `koanf:"stub_signing_key" json:"-"`
}

func defaultConfig() map[string]any {
	return map[string]any{
		"base_url":         "http://localhost:8080",
		"timeout":          "10s",
		"db_path":          "bookhive.db",
		"token_key":        bookhive.DefaultTokenKey,
		"compensate":       false,
		"debug":            false,
		"stub_addr":        ":8080",
		"stub_signing_key": "bookhive-stub-secret",
	}
}

// LoadConfig layers defaults, the optional JSON file at path and
// BOOKHIVE_* environment variables, in that order
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultConfig(), "."), nil); err != nil {
		return nil, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.DBPath, validation.Required),
		validation.Field(&c.TokenKey, validation.Required),
	)
}

func httpURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return errors.New("must start with http:// or https://")
	}
	return nil
}
