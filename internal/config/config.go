// Package config provides configuration loading for intaked.
package config

import (
	"fmt"
	"time"
)

// Operating modes for the pipeline.
const (
	ModeAutomated = "automated"
	ModeManual    = "manual"
)

// Config is the root configuration for intaked.
type Config struct {
	Pipeline    PipelineConfig    `koanf:"pipeline"`
	Extraction  ExtractionConfig  `koanf:"extraction"`
	Sensitivity SensitivityConfig `koanf:"sensitivity"`
	Mailbox     MailboxConfig     `koanf:"mailbox"`
	Quickbase   QuickbaseConfig   `koanf:"quickbase"`
	Review      ReviewConfig      `koanf:"review"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// PipelineConfig controls adjudication and orchestration behavior.
type PipelineConfig struct {
	// Mode is "automated" or "manual".
	Mode string `koanf:"mode"`

	// ConfidenceThreshold is the minimum extraction confidence for
	// automated acceptance of a flagged record. Range [0,1].
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`

	// FlagCeiling is the highest flag severity that automated mode may
	// still accept: "info", "warn", or "high".
	FlagCeiling string `koanf:"flag_ceiling"`

	// Workers is the number of concurrent pipeline workers.
	Workers int `koanf:"workers"`

	// OutcomeDB is the path of the sqlite outcome store. Empty lets
	// serve derive its default path under the user data directory; the
	// literal ":memory:" selects the in-memory store.
	OutcomeDB string `koanf:"outcome_db"`
}

// ExtractionConfig holds per-strategy extraction settings.
type ExtractionConfig struct {
	Cloud ProviderConfig `koanf:"cloud"`
	Local ProviderConfig `koanf:"local"`

	// MaxRetries bounds retry attempts per strategy before demotion.
	MaxRetries int `koanf:"max_retries"`

	// BaseBackoff is the initial backoff between retries; it doubles
	// per attempt.
	BaseBackoff Duration `koanf:"base_backoff"`
}

// ProviderConfig holds settings for one model provider.
type ProviderConfig struct {
	Model   string   `koanf:"model"`
	APIKey  Secret   `koanf:"api_key"`
	BaseURL string   `koanf:"base_url"`
	Timeout Duration `koanf:"timeout"`
}

// SensitivityConfig drives the regulated-data classifier.
type SensitivityConfig struct {
	// Keywords are case-insensitive substrings that mark a message as
	// containing regulated personal data.
	Keywords []string `koanf:"keywords"`

	// Patterns are additional regular expressions checked against the
	// message body.
	Patterns []string `koanf:"patterns"`
}

// MailboxConfig configures the IMAP retrieval collaborator.
type MailboxConfig struct {
	Enabled      bool     `koanf:"enabled"`
	Address      string   `koanf:"address"`
	Username     string   `koanf:"username"`
	Password     Secret   `koanf:"password"`
	Folder       string   `koanf:"folder"`
	PollInterval Duration `koanf:"poll_interval"`
}

// QuickbaseConfig configures the downstream record store.
type QuickbaseConfig struct {
	BaseURL       string   `koanf:"base_url"`
	RealmHostname string   `koanf:"realm_hostname"`
	UserToken     Secret   `koanf:"user_token"`
	TableID       string   `koanf:"table_id"`
	Timeout       Duration `koanf:"timeout"`
	MaxRetries    int      `koanf:"max_retries"`
}

// ReviewConfig configures the quarantine review bridge.
type ReviewConfig struct {
	// NATSURL is the NATS server for review events. Empty disables the
	// NATS bridge; decisions then arrive only via the HTTP API.
	NATSURL string `koanf:"nats_url"`

	// SubjectPrefix prefixes the review subjects, e.g. "intake" yields
	// "intake.review.pending" and "intake.review.decision".
	SubjectPrefix string `koanf:"subject_prefix"`
}

// ServerConfig configures the ops/review HTTP server.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Mode:                ModeAutomated,
			ConfidenceThreshold: 0.85,
			FlagCeiling:         "warn",
			Workers:             4,
		},
		Extraction: ExtractionConfig{
			Cloud: ProviderConfig{
				Model:   "gpt-4o-mini",
				Timeout: Duration(60 * time.Second),
			},
			Local: ProviderConfig{
				Model:   "llama3.1",
				BaseURL: "http://localhost:11434",
				Timeout: Duration(120 * time.Second),
			},
			MaxRetries:  2,
			BaseBackoff: Duration(500 * time.Millisecond),
		},
		Sensitivity: SensitivityConfig{
			Keywords: []string{
				"social security",
				"ssn",
				"date of birth",
				"medical record",
				"health record",
				"patient",
				"diagnosis",
			},
		},
		Mailbox: MailboxConfig{
			Folder:       "INBOX",
			PollInterval: Duration(time.Minute),
		},
		Quickbase: QuickbaseConfig{
			BaseURL:    "https://api.quickbase.com/v1",
			Timeout:    Duration(30 * time.Second),
			MaxRetries: 3,
		},
		Review: ReviewConfig{
			SubjectPrefix: "intake",
		},
		Server: ServerConfig{
			Addr: ":8087",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Pipeline.Mode {
	case ModeAutomated, ModeManual:
	default:
		return fmt.Errorf("pipeline.mode must be %q or %q, got %q",
			ModeAutomated, ModeManual, c.Pipeline.Mode)
	}

	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		return fmt.Errorf("pipeline.confidence_threshold must be in [0,1], got %v",
			c.Pipeline.ConfidenceThreshold)
	}

	switch c.Pipeline.FlagCeiling {
	case "info", "warn", "high":
	default:
		return fmt.Errorf("pipeline.flag_ceiling must be one of info, warn, high; got %q",
			c.Pipeline.FlagCeiling)
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}

	if c.Extraction.MaxRetries < 0 {
		return fmt.Errorf("extraction.max_retries cannot be negative, got %d",
			c.Extraction.MaxRetries)
	}

	if c.Mailbox.Enabled {
		if c.Mailbox.Address == "" {
			return fmt.Errorf("mailbox.address required when mailbox is enabled")
		}
		if c.Mailbox.Username == "" {
			return fmt.Errorf("mailbox.username required when mailbox is enabled")
		}
	}

	return nil
}
