package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/roster-notify/pkg/core/model"
	"github.com/jakechorley/roster-notify/pkg/core/roster"
)

const (
	configFileBase     = "roster_config"
	DefaultTimezone    = "Australia/Melbourne"
	DefaultSQLitePath  = "roster_notify.db"
	DriverPostgres     = "postgres"
	DriverSQLite       = "sqlite"
	DriverNone         = "none"
	defaultPersistWait = 2 * time.Second
)

// PortalConfig describes how to reach the roster portal
type PortalConfig struct {
	URL               string        `yaml:"url,omitempty" validate:"omitempty,url"`
	PersonnelIDs      []string      `yaml:"personnelIDs" validate:"required,min=1,dive,required"`
	Headless          *bool         `yaml:"headless,omitempty"`
	NavigationTimeout time.Duration `yaml:"navigationTimeout,omitempty"`
	MonthOffsets      map[int]int   `yaml:"monthOffsets,omitempty" validate:"omitempty,dive,keys,min=1,max=12,endkeys"`
	ChromeBin         string        `yaml:"chromeBin,omitempty"`
}

// IsHeadless defaults to true when unset
func (p PortalConfig) IsHeadless() bool {
	return p.Headless == nil || *p.Headless
}

// RetryConfig controls how long to wait for the roster to be finalised
type RetryConfig struct {
	MaxAttempts       int           `yaml:"maxAttempts,omitempty" validate:"omitempty,min=1"`
	Backoff           time.Duration `yaml:"backoff,omitempty"`
	BackoffMultiplier float64       `yaml:"backoffMultiplier,omitempty" validate:"omitempty,min=1"`
	MaxBackoff        time.Duration `yaml:"maxBackoff,omitempty"`
	MaxFetchErrors    int           `yaml:"maxFetchErrors,omitempty" validate:"omitempty,min=1"`
}

// SMSConfig holds the sender id and message signature
type SMSConfig struct {
	Sender    string `yaml:"sender,omitempty" validate:"omitempty,max=11"`
	Signature string `yaml:"signature,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty" validate:"omitempty,url"`
}

// Recipient is a phone number that receives roster messages.
// When RRule is set the recipient only receives messages on matching days.
type Recipient struct {
	Name           string `yaml:"name" validate:"required"`
	Phone          string `yaml:"phone" validate:"required,e164"`
	RRule          string `yaml:"rrule,omitempty"`
	AlertOnFailure bool   `yaml:"alertOnFailure,omitempty"`
}

// NotifyConfig limits which categories trigger an SMS. Empty means all.
type NotifyConfig struct {
	Categories []string `yaml:"categories,omitempty"`
}

type DatabaseConfig struct {
	Driver            string        `yaml:"driver,omitempty" validate:"omitempty,oneof=postgres sqlite none"`
	SQLitePath        string        `yaml:"sqlitePath,omitempty"`
	PersistAttempts   int           `yaml:"persistAttempts,omitempty" validate:"omitempty,min=1"`
	PersistRetryDelay time.Duration `yaml:"persistRetryDelay,omitempty"`
}

// AlertsConfig enables operator email on failures
type AlertsConfig struct {
	Email       string `yaml:"email,omitempty" validate:"omitempty,email"`
	GmailUserID string `yaml:"gmailUserID,omitempty" validate:"required_with=Email"`
}

// Config represents the application configuration
type Config struct {
	Timezone   string         `yaml:"timezone,omitempty"`
	Portal     PortalConfig   `yaml:"portal"`
	Retry      RetryConfig    `yaml:"retry,omitempty"`
	SMS        SMSConfig      `yaml:"sms,omitempty"`
	Recipients []Recipient    `yaml:"recipients" validate:"required,min=1,dive"`
	Notify     NotifyConfig   `yaml:"notify,omitempty"`
	Database   DatabaseConfig `yaml:"database,omitempty"`
	Alerts     AlertsConfig   `yaml:"alerts,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from roster_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads the configuration for an environment.
// For example, env="prod" will look for "roster_config.prod.yaml"
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}

	defaults := roster.DefaultRetryConfig()
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaults.MaxAttempts
	}
	if c.Retry.Backoff == 0 {
		c.Retry.Backoff = defaults.Backoff
	}
	if c.Retry.BackoffMultiplier == 0 {
		c.Retry.BackoffMultiplier = defaults.BackoffMultiplier
	}
	if c.Retry.MaxFetchErrors == 0 {
		c.Retry.MaxFetchErrors = defaults.MaxFetchErrors
	}

	if c.SMS.Signature == "" {
		c.SMS.Signature = roster.DefaultSignature
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.SQLitePath == "" {
		c.Database.SQLitePath = DefaultSQLitePath
	}
	if c.Database.PersistAttempts == 0 {
		c.Database.PersistAttempts = 3
	}
	if c.Database.PersistRetryDelay == 0 {
		c.Database.PersistRetryDelay = defaultPersistWait
	}
}

// Validate validates the configuration struct and checks rrule syntax, categories and time zone
func Validate(cfg *Config) error {
	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	if cfg.Retry.Backoff < 0 || cfg.Retry.MaxBackoff < 0 || cfg.Portal.NavigationTimeout < 0 {
		return fmt.Errorf("config validation failed: durations must not be negative")
	}

	// Validate rrule syntax for each recipient
	for i, recipient := range cfg.Recipients {
		if recipient.RRule == "" {
			continue
		}
		if err := validateRecipientRule(recipient.RRule); err != nil {
			return fmt.Errorf("invalid rrule in recipients[%d]: %w", i, err)
		}
	}

	for _, c := range cfg.Notify.Categories {
		if _, err := model.ParseCategory(c); err != nil {
			return fmt.Errorf("invalid notify category: %w", err)
		}
	}

	return nil
}

// validateRecipientRule accepts rules that select days on their own, like
// FREQ=WEEKLY;BYDAY=WE,TH. Rules are evaluated against the send day without a fixed
// start, so INTERVAL, COUNT and UNTIL have nothing to count from and are rejected.
func validateRecipientRule(raw string) error {
	opts, err := rrule.StrToROption(raw)
	if err != nil {
		return err
	}
	if _, err := rrule.NewRRule(*opts); err != nil {
		return err
	}

	switch {
	case opts.Interval > 1:
		return fmt.Errorf("INTERVAL is not supported, list the days with BYDAY or BYMONTHDAY instead")
	case opts.Count > 0:
		return fmt.Errorf("COUNT is not supported")
	case !opts.Until.IsZero():
		return fmt.Errorf("UNTIL is not supported")
	}

	return nil
}

// Location returns the configured time zone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// RosterRetryConfig converts the retry settings for the roster controller
func (c *Config) RosterRetryConfig() roster.RetryConfig {
	return roster.RetryConfig{
		MaxAttempts:       c.Retry.MaxAttempts,
		Backoff:           c.Retry.Backoff,
		BackoffMultiplier: c.Retry.BackoffMultiplier,
		MaxBackoff:        c.Retry.MaxBackoff,
		MaxFetchErrors:    c.Retry.MaxFetchErrors,
	}
}

// NotifyCategories returns the parsed notify filter; nil means every category
func (c *Config) NotifyCategories() []model.Category {
	if len(c.Notify.Categories) == 0 {
		return nil
	}
	categories := make([]model.Category, 0, len(c.Notify.Categories))
	for _, raw := range c.Notify.Categories {
		// Already validated
		category, _ := model.ParseCategory(raw)
		categories = append(categories, category)
	}
	return categories
}

// findConfigFile searches for roster_config[.<env>].yaml
func findConfigFile(env string) (string, error) {
	configFileName := configFileBase + ".yaml"
	if env != "" {
		configFileName = configFileBase + "." + env + ".yaml"
	}

	return findInSearchPath(configFileName)
}

// findInSearchPath looks for fileName in the current directory, then the user's home directory
func findInSearchPath(fileName string) (string, error) {
	// Check current directory
	if _, err := os.Stat(fileName); err == nil {
		return fileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homePath := filepath.Join(homeDir, fileName)
	if _, err := os.Stat(homePath); err == nil {
		return homePath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", fileName)
}
