// Package config loads, validates and exposes the application configuration.
// Values come from defaults, an optional YAML file, a .env file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrConfigurationMissing reports a setting the selected mode cannot run without.
var ErrConfigurationMissing = errors.New("configuration missing")

// Config is the root configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"log"       yaml:"log"`
	Database  DatabaseConfig  `mapstructure:"database"  yaml:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"  yaml:"telegram"`
	Messages  MessagesConfig  `mapstructure:"messages"  yaml:"messages"`
	Digest    DigestConfig    `mapstructure:"digest"    yaml:"digest"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`

	// Mode selects what the root command runs when no subcommand is given.
	Mode string `mapstructure:"mode" yaml:"mode" validate:"omitempty,oneof=ingest digest schedule"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"  yaml:"json"`
}

type DatabaseConfig struct {
	Path         string        `mapstructure:"path"          yaml:"path"          validate:"required"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=1ms"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token" yaml:"token"`
	// TargetChat is a numeric chat id or an @channel username.
	TargetChat  string        `mapstructure:"target_chat"   yaml:"target_chat"`
	AdminUserID int64         `mapstructure:"admin_user_id" yaml:"admin_user_id" validate:"gte=0"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"  yaml:"poll_timeout"  validate:"min=1s,max=1m"`
}

// MessagesConfig holds the bot's canned replies.
type MessagesConfig struct {
	Welcome      string `mapstructure:"welcome"       yaml:"welcome"       validate:"required"`
	Unauthorized string `mapstructure:"unauthorized"  yaml:"unauthorized"  validate:"required"`
	GeneralError string `mapstructure:"general_error" yaml:"general_error" validate:"required"`
	Stats        string `mapstructure:"stats"         yaml:"stats"         validate:"required"`
}

type DigestConfig struct {
	Hour           int           `mapstructure:"hour"            yaml:"hour"            validate:"min=0,max=23"`
	Minute         int           `mapstructure:"minute"          yaml:"minute"          validate:"min=0,max=59"`
	TopN           int           `mapstructure:"top_n"           yaml:"top_n"           validate:"min=1"`
	MaxSamples     int           `mapstructure:"max_samples"     yaml:"max_samples"     validate:"min=0"`
	PreviewLength  int           `mapstructure:"preview_length"  yaml:"preview_length"  validate:"min=1"`
	Timeout        time.Duration `mapstructure:"timeout"         yaml:"timeout"         validate:"min=1s,max=1h"`
	ExtraStopwords []string      `mapstructure:"extra_stopwords" yaml:"extra_stopwords"`
}

type SchedulerConfig struct {
	MaintenanceEnabled  bool   `mapstructure:"maintenance_enabled"  yaml:"maintenance_enabled"`
	MaintenanceSchedule string `mapstructure:"maintenance_schedule" yaml:"maintenance_schedule" validate:"required_if=MaintenanceEnabled true"`
}

type MetricsConfig struct {
	// Listen is the address of the /metrics endpoint. Empty disables it.
	Listen string `mapstructure:"listen" yaml:"listen" validate:"omitempty,hostname_port"`
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RequireTelegram checks the settings needed to talk to Telegram. needTarget
// is set by modes that deliver a digest.
func (c *Config) RequireTelegram(needTarget bool) error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram.token (TELEGRAM_TOKEN)", ErrConfigurationMissing)
	}
	if needTarget && c.Telegram.TargetChat == "" {
		return fmt.Errorf("%w: telegram.target_chat (TARGET_CHAT)", ErrConfigurationMissing)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Telegram.Token != "" {
		c.Telegram.Token = "<redacted>"
	}
	return c
}
