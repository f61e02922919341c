package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeAutomated, cfg.Pipeline.Mode)
	assert.Equal(t, 0.85, cfg.Pipeline.ConfidenceThreshold)
	assert.Equal(t, 2, cfg.Extraction.MaxRetries)
}

func TestLoadBytes_OverridesDefaults(t *testing.T) {
	yaml := []byte(`
pipeline:
  mode: manual
  confidence_threshold: 0.7
  workers: 2
extraction:
  max_retries: 5
  base_backoff: 250ms
  cloud:
    model: gpt-4o
    api_key: sk-test-123
`)
	cfg, err := LoadBytes(yaml)
	require.NoError(t, err)

	assert.Equal(t, ModeManual, cfg.Pipeline.Mode)
	assert.Equal(t, 0.7, cfg.Pipeline.ConfidenceThreshold)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, 5, cfg.Extraction.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Extraction.BaseBackoff.Duration())
	assert.Equal(t, "gpt-4o", cfg.Extraction.Cloud.Model)
	assert.Equal(t, "sk-test-123", cfg.Extraction.Cloud.APIKey.Value())

	// Untouched sections keep defaults.
	assert.Equal(t, "INBOX", cfg.Mailbox.Folder)
	assert.Equal(t, "warn", cfg.Pipeline.FlagCeiling)
}

func TestLoadBytes_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad mode", "pipeline:\n  mode: turbo\n"},
		{"threshold above one", "pipeline:\n  confidence_threshold: 1.5\n"},
		{"zero workers", "pipeline:\n  workers: 0\n"},
		{"bad flag ceiling", "pipeline:\n  flag_ceiling: extreme\n"},
		{"mailbox without address", "mailbox:\n  enabled: true\n  username: bob\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestSecret_NeverSerializesValue(t *testing.T) {
	s := Secret("super-secret-token")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "super-secret-token", s.Value())
	assert.True(t, s.IsSet())

	out, err := json.Marshal(struct {
		Token Secret `json:"token"`
	}{Token: s})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "super-secret-token")
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("nonsense")))
}
