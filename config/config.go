// Package config decodes and validates the signing engine configuration.
//
// Configuration arrives as a generic map (from a YAML or JSON file, flags,
// or the environment) and is decoded onto [Default]:
//
//	cfg, err := config.Decode(map[string]any{
//		"threshold":     3,
//		"participants":  5,
//		"round_timeout": "5s",
//		"selection":     "round-robin",
//	})
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/f3rmion/xmrsig/party"
)

// Subset selection policies.
const (
	SelectPriority   = "priority"
	SelectRoundRobin = "round-robin"
)

// Config holds the engine settings.
type Config struct {
	// Threshold is t; any t of Participants can sign.
	Threshold    int `mapstructure:"threshold" validate:"required,min=1,ltefield=Participants"`
	Participants int `mapstructure:"participants" validate:"required,min=1,max=65535"`

	// RoundTimeout bounds every protocol round.
	RoundTimeout time.Duration `mapstructure:"round_timeout" validate:"gt=0"`
	// MaxAttempts bounds the attempts per input and round.
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=1,max=16"`
	// NonceTTL is how long a participant keeps an unanswered commitment.
	NonceTTL time.Duration `mapstructure:"nonce_ttl" validate:"gtefield=RoundTimeout"`

	Selection string `mapstructure:"selection" validate:"oneof=priority round-robin"`
	// Priority is the preferred signer order for the priority policy.
	Priority []party.ID `mapstructure:"priority" validate:"unique,dive,min=1"`

	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=text json"`

	// KeystorePath is the flatfs directory holding key shares.
	KeystorePath string `mapstructure:"keystore_path"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns a 2-of-3 configuration with conservative timeouts.
func Default() Config {
	return Config{
		Threshold:    2,
		Participants: 3,
		RoundTimeout: 5 * time.Second,
		MaxAttempts:  3,
		NonceTTL:     time.Minute,
		Selection:    SelectPriority,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Decode applies raw on top of Default and validates the result. Durations
// may be given as strings ("750ms") and lists as comma separated strings.
// Unknown keys are rejected.
func Decode(raw map[string]any) (*Config, error) {
	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToWeakSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	for _, id := range c.Priority {
		if int(id) > c.Participants {
			return fmt.Errorf("config: invalid: priority names participant %d of %d", id, c.Participants)
		}
	}
	return nil
}

// Level returns the slog level for LogLevel.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Logger returns a logger writing to w in the configured format and level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
