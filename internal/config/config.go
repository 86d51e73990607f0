/*
Package config loads the monitor configuration from an optional YAML file,
environment secrets and defaults.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shanehull/classmonitor/internal/ai"
	"github.com/shanehull/classmonitor/internal/decision"
	"github.com/shanehull/classmonitor/internal/eventbrite"
	"github.com/shanehull/classmonitor/internal/history"
	"github.com/shanehull/classmonitor/internal/notify"

	"gopkg.in/yaml.v3"
)

const (
	EnvGeminiAPIKey     = "GEMINI_API_KEY"
	EnvPushoverUserKey  = "PUSHOVER_USER_KEY"
	EnvPushoverAPIToken = "PUSHOVER_API_TOKEN"
	EnvSMTPPass         = "SMTP_PASS"

	DefaultTimezone      = "Australia/Sydney"
	DefaultDeadline      = "2025-07-23"
	DefaultFlagshipTitle = "July 5 + 12"
	DefaultJobsDir       = "jobs"
	DefaultLockFile      = "classmonitor.lock"

	deadlineLayout = "2006-01-02"
)

// DefaultDenylist excludes class variants that are not of interest.
var DefaultDenylist = []string{"vietnam", "chinese", "lgbt", "online"}

type Rules struct {
	FlagshipTitle string   `yaml:"flagship_title"`
	Denylist      []string `yaml:"denylist"`
	Deadline      string   `yaml:"deadline"`
	DefaultCount  int      `yaml:"default_count"`
	Title         string   `yaml:"title"`
	Priority      int      `yaml:"priority"`
}

type Extractor struct {
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
	Workers int           `yaml:"workers"`
	APIKey  string        `yaml:"-"`
}

type Scraper struct {
	MaxLoadMore int           `yaml:"max_load_more"`
	PageTimeout time.Duration `yaml:"page_timeout"`
	ClickPause  time.Duration `yaml:"click_pause"`
	RemoteURL   string        `yaml:"remote_url"`
	Headful     bool          `yaml:"headful"`
}

type Pushover struct {
	URL      string `yaml:"url"`
	UserKey  string `yaml:"-"`
	APIToken string `yaml:"-"`
}

type Email struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	SMTPUser   string `yaml:"smtp_user"`
	FromEmail  string `yaml:"from_email"`
	ToEmail    string `yaml:"to_email"`
	SMTPPass   string `yaml:"-"`
}

type Config struct {
	SourceURL string    `yaml:"source_url"`
	StateFile string    `yaml:"state_file"`
	JobsDir   string    `yaml:"jobs_dir"`
	LockFile  string    `yaml:"lock_file"`
	Timezone  string    `yaml:"timezone"`
	DryRun    bool      `yaml:"dry_run"`
	Rules     Rules     `yaml:"rules"`
	Extractor Extractor `yaml:"extractor"`
	Scraper   Scraper   `yaml:"scraper"`
	Pushover  Pushover  `yaml:"pushover"`
	Email     Email     `yaml:"email"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		SourceURL: eventbrite.DefaultOrganizerURL,
		StateFile: history.DefaultStateFileName,
		JobsDir:   DefaultJobsDir,
		LockFile:  DefaultLockFile,
		Timezone:  DefaultTimezone,
		Rules: Rules{
			FlagshipTitle: DefaultFlagshipTitle,
			Denylist:      append([]string(nil), DefaultDenylist...),
			Deadline:      DefaultDeadline,
			DefaultCount:  history.DefaultClassCount,
			Title:         decision.DefaultTitle,
			Priority:      decision.DefaultPriority,
		},
		Extractor: Extractor{
			Model:   ai.DefaultModel,
			Timeout: ai.DefaultTimeout,
			Workers: 1,
		},
		Scraper: Scraper{
			MaxLoadMore: eventbrite.DefaultMaxLoadMore,
			PageTimeout: eventbrite.DefaultPageTimeout,
			ClickPause:  eventbrite.DefaultClickPause,
		},
		Pushover: Pushover{URL: notify.DefaultPushoverURL},
		Email:    Email{SMTPServer: "smtp.gmail.com", SMTPPort: 587},
	}
}

// Load reads path over the defaults and applies environment secrets. An empty
// path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyEnv fills secrets from the environment. Secrets are never read from
// the YAML file.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvGeminiAPIKey); v != "" {
		c.Extractor.APIKey = v
	}
	if v := getenv(EnvPushoverUserKey); v != "" {
		c.Pushover.UserKey = v
	}
	if v := getenv(EnvPushoverAPIToken); v != "" {
		c.Pushover.APIToken = v
	}
	if v := getenv(EnvSMTPPass); v != "" {
		c.Email.SMTPPass = v
	}
}

func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.SourceURL) == "" {
		errs = append(errs, errors.New("source_url is required"))
	}
	if strings.TrimSpace(c.StateFile) == "" {
		errs = append(errs, errors.New("state_file is required"))
	}
	if strings.TrimSpace(c.JobsDir) == "" {
		errs = append(errs, errors.New("jobs_dir is required"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
	}
	if _, err := time.Parse(deadlineLayout, c.Rules.Deadline); err != nil {
		errs = append(errs, fmt.Errorf("invalid rules.deadline %q: want YYYY-MM-DD", c.Rules.Deadline))
	}
	if strings.TrimSpace(c.Rules.FlagshipTitle) == "" {
		errs = append(errs, errors.New("rules.flagship_title is required"))
	}
	if c.Rules.DefaultCount < 0 {
		errs = append(errs, fmt.Errorf("rules.default_count must not be negative, got %d", c.Rules.DefaultCount))
	}
	if c.Extractor.Workers < 1 {
		errs = append(errs, fmt.Errorf("extractor.workers must be at least 1, got %d", c.Extractor.Workers))
	}
	if c.Scraper.MaxLoadMore < 0 {
		errs = append(errs, fmt.Errorf("scraper.max_load_more must not be negative, got %d", c.Scraper.MaxLoadMore))
	}

	return errors.Join(errs...)
}

func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// DecisionRules converts the rule settings for the decision engine.
func (c *Config) DecisionRules() (decision.Rules, error) {
	deadline, err := time.Parse(deadlineLayout, c.Rules.Deadline)
	if err != nil {
		return decision.Rules{}, fmt.Errorf("failed to parse deadline: %w", err)
	}
	return decision.Rules{
		FlagshipTitle: c.Rules.FlagshipTitle,
		Denylist:      append([]string(nil), c.Rules.Denylist...),
		Deadline:      deadline,
		Title:         c.Rules.Title,
		Priority:      c.Rules.Priority,
	}, nil
}

func (c *Config) PushoverConfig() notify.PushoverConfig {
	return notify.PushoverConfig{
		UserKey:  c.Pushover.UserKey,
		APIToken: c.Pushover.APIToken,
		URL:      c.Pushover.URL,
	}
}

func (c *Config) EmailConfig() notify.EmailConfig {
	return notify.EmailConfig{
		SMTPServer: c.Email.SMTPServer,
		SMTPPort:   c.Email.SMTPPort,
		SMTPUser:   c.Email.SMTPUser,
		SMTPPass:   c.Email.SMTPPass,
		FromEmail:  c.Email.FromEmail,
		ToEmail:    c.Email.ToEmail,
		SourceURL:  c.SourceURL,
	}
}
