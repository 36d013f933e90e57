package configuration

import (
	"drivescore/internal/score"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix of environment variables overriding file values,
// e.g. DRIVESCORE_SERVER_ADDRESS.
const EnvPrefix = "DRIVESCORE"

// AppConfig represents the complete application configuration.
type AppConfig struct {
	// Logger — logger component configuration
	Logger LoggerConfig `mapstructure:"logger"`
	// Server — HTTP server configuration
	Server ServerConfig `mapstructure:"server"`
	// Scoring — score profile, weights and verdict rules
	Scoring ScoringConfig `mapstructure:"scoring"`
	// Sessions — lifetime of evaluation sessions
	Sessions SessionsConfig `mapstructure:"sessions"`
	// Journal — rotating journal of logged events
	Journal JournalConfig `mapstructure:"journal"`
	// Archive — storage of exported run summaries
	Archive ArchiveConfig `mapstructure:"archive"`
}

// LoggerConfig defines logging settings.
type LoggerConfig struct {
	// Level — log level: debug, info, warn, warning, error.
	// Value is case-insensitive but checked in lowercase.
	Level string `mapstructure:"level"`
}

// ServerConfig contains HTTP server parameters.
type ServerConfig struct {
	// Address — address and port where the server will listen (e.g., ":8080").
	Address string `mapstructure:"address"`
	// Static — path to directory with the scoring page served under /static/.
	// Can be empty if static serving is not required.
	Static string `mapstructure:"static"`
}

// ScoringConfig selects the score profile and the weights every session uses.
type ScoringConfig struct {
	// Profile — built-in profile name: A or B.
	Profile string `mapstructure:"profile"`
	// Logging — overrides whether the profile keeps an export log.
	Logging *bool `mapstructure:"logging"`
	// MicroDeduction — overrides points lost per micro-behavior occurrence (0 keeps the profile value).
	MicroDeduction int `mapstructure:"micro_deduction"`
	// BonusPoints — overrides points per praise or penalty (0 keeps the profile value).
	BonusPoints int `mapstructure:"bonus_points"`
	// Weights — positive weight of each scenario bucket in the weighted scenario score.
	Weights map[string]float64 `mapstructure:"weights"`
	// Verdicts — optional path to a YAML file with CEL verdict rules.
	Verdicts string `mapstructure:"verdicts"`
}

// SessionsConfig controls session bookkeeping.
type SessionsConfig struct {
	// TTL — idle time after which a session is dropped; 0 keeps sessions forever.
	TTL time.Duration `mapstructure:"ttl"`
	// History — number of recent snapshots kept per session.
	History int `mapstructure:"history"`
}

// JournalConfig defines the rotating event journal.
type JournalConfig struct {
	// File — journal file path (optional, empty disables the journal)
	File string `mapstructure:"file"`
	// Size — maximal journal file size in MB before rotation
	Size int `mapstructure:"size"`
	// Amount — number of rotated journal files to keep
	Amount int `mapstructure:"amount"`
}

// ArchiveConfig defines where exported runs are archived.
type ArchiveConfig struct {
	// Path — SQLite database file (optional, empty disables the archive)
	Path string `mapstructure:"path"`
}

// Validate checks the correctness of the entire application configuration.
// Calls validation for each nested structure and returns the first detected error.
func (c *AppConfig) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return err
	}

	if err := c.Server.Validate(); err != nil {
		return err
	}

	if err := c.Scoring.Validate(); err != nil {
		return err
	}

	if err := c.Sessions.Validate(); err != nil {
		return err
	}

	return c.Journal.Validate()
}

// Validate checks the correctness of the logger configuration.
func (l *LoggerConfig) Validate() error {
	if l.Level == "" {
		return errors.New("logger.level: must be specified")
	}

	valid := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !valid[strings.ToLower(l.Level)] {
		return fmt.Errorf("logger.level: unsupported level '%s'", l.Level)
	}

	return nil
}

// Validate checks the correctness of the server configuration.
func (n *ServerConfig) Validate() error {
	if n.Address == "" {
		return errors.New("server.address: must be specified")
	}

	return nil
}

// Validate checks that the profile exists and that every weight names one of
// its buckets with a positive value.
func (s *ScoringConfig) Validate() error {
	profile, err := s.BuildProfile()
	if err != nil {
		return fmt.Errorf("scoring.profile: %w", err)
	}

	if len(s.Weights) == 0 {
		return errors.New("scoring.weights: must be specified")
	}

	known := make(map[string]bool, len(profile.Buckets))
	for _, b := range profile.Buckets {
		known[b] = true
	}
	for name, w := range s.Weights {
		if !known[name] {
			return fmt.Errorf("scoring.weights: unknown bucket '%s'", name)
		}
		if w <= 0 {
			return fmt.Errorf("scoring.weights: weight of '%s' must be positive", name)
		}
	}

	return nil
}

// BuildProfile returns the built-in profile with the configured overrides applied.
func (s *ScoringConfig) BuildProfile() (score.Profile, error) {
	profile, err := score.LookupProfile(s.Profile)
	if err != nil {
		return score.Profile{}, err
	}

	if s.Logging != nil {
		profile.LoggingEnabled = *s.Logging
	}
	if s.MicroDeduction != 0 {
		profile.MicroDeduction = s.MicroDeduction
	}
	if s.BonusPoints != 0 {
		profile.BonusPoints = s.BonusPoints
	}

	if err := profile.Validate(); err != nil {
		return score.Profile{}, err
	}

	return profile, nil
}

// Validate checks session parameters.
func (s *SessionsConfig) Validate() error {
	if s.TTL < 0 {
		return errors.New("sessions.ttl: must not be negative")
	}

	if s.History <= 0 {
		return errors.New("sessions.history: must be positive")
	}

	return nil
}

// Validate journal parameters, filling rotation defaults.
func (j *JournalConfig) Validate() error {
	if j.Amount == 0 {
		j.Amount = 20
	}

	if j.Size == 0 {
		j.Size = 100
	}

	if j.Amount < 0 || j.Size < 0 {
		return errors.New("journal: size and amount must not be negative")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("scoring.profile", score.ProfileA)
	v.SetDefault("sessions.ttl", "12h")
	v.SetDefault("sessions.history", 20)
	v.SetDefault("journal.size", 100)
	v.SetDefault("journal.amount", 20)
}

// LoadConfig loads configuration from the specified YAML file using Viper.
// Environment variables prefixed with DRIVESCORE_ override file values.
//
// Returns a pointer to AppConfig or an error if:
// - the file is not found or inaccessible
// - the configuration has invalid format
// - one of the sections fails validation
func LoadConfig(configPath string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
