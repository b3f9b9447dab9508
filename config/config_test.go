package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f3rmion/xmrsig/party"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestDecode(t *testing.T) {
	cfg, err := Decode(map[string]any{
		"threshold":     3,
		"participants":  "5",
		"round_timeout": "750ms",
		"nonce_ttl":     "2m",
		"selection":     "round-robin",
		"priority":      "4,1,2",
		"log_level":     "debug",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Threshold)
	assert.Equal(t, 5, cfg.Participants)
	assert.Equal(t, 750*time.Millisecond, cfg.RoundTimeout)
	assert.Equal(t, 2*time.Minute, cfg.NonceTTL)
	assert.Equal(t, SelectRoundRobin, cfg.Selection)
	assert.Equal(t, []party.ID{4, 1, 2}, cfg.Priority)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	// Untouched fields keep their defaults.
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"threshold above participants", map[string]any{"threshold": 4, "participants": 3}},
		{"zero threshold", map[string]any{"threshold": 0}},
		{"zero timeout", map[string]any{"round_timeout": "0s"}},
		{"nonce ttl below timeout", map[string]any{"round_timeout": "10s", "nonce_ttl": "1s"}},
		{"unknown policy", map[string]any{"selection": "random"}},
		{"duplicate priority", map[string]any{"priority": []int{1, 1}}},
		{"zero priority", map[string]any{"priority": []int{0}}},
		{"log level", map[string]any{"log_level": "trace"}},
		{"max attempts", map[string]any{"max_attempts": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			require.Error(t, err)
			var verrs validator.ValidationErrors
			assert.True(t, errors.As(err, &verrs), "got %v", err)
		})
	}

	t.Run("priority outside group", func(t *testing.T) {
		_, err := Decode(map[string]any{"priority": []int{2, 7}})
		require.ErrorContains(t, err, "priority names participant 7")
	})
	t.Run("unknown key", func(t *testing.T) {
		_, err := Decode(map[string]any{"treshold": 2})
		require.ErrorContains(t, err, "treshold")
	})
	t.Run("bad duration", func(t *testing.T) {
		_, err := Decode(map[string]any{"round_timeout": "soon"})
		require.Error(t, err)
	})
}

func TestLogger(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "session", "tx/0/1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "tx/0/1", line["session"])
}
