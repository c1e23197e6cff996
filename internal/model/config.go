package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override
// (e.g., NEWSDIGEST_IMAP_USERNAME overrides imap.username).
const EnvPrefix = "NEWSDIGEST"

// Supported LLM providers.
const (
	ProviderAzureOpenAI = "azure-openai"
	ProviderAnthropic   = "anthropic"
)

// Supported SMTP security modes.
const (
	SecurityTLS      = "tls"
	SecurityStartTLS = "starttls"
	SecurityNone     = "none"
)

// IMAPConfig holds the mailbox connection settings.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`
}

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// Security is one of "tls", "starttls" or "none".
	Security string `mapstructure:"security" yaml:"security"`

	// From defaults to Username when empty.
	From string `mapstructure:"from" yaml:"from"`
}

// NewsletterConfig selects which messages are digested and how articles
// are pulled out of them.
type NewsletterConfig struct {
	Senders     []string `mapstructure:"senders" yaml:"senders"`
	WindowHours int      `mapstructure:"window_hours" yaml:"window_hours"`
	MarkSeen    bool     `mapstructure:"mark_seen" yaml:"mark_seen"`

	MinTitleLength   int      `mapstructure:"min_title_length" yaml:"min_title_length"`
	SummaryMaxLength int      `mapstructure:"summary_max_length" yaml:"summary_max_length"`
	SummarySiblings  int      `mapstructure:"summary_siblings" yaml:"summary_siblings"`
	MaxArticles      int      `mapstructure:"max_articles" yaml:"max_articles"`
	ExcludePatterns  []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns"`
}

// LLMConfig selects the hosted model used for rewriting.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	Model       string  `mapstructure:"model" yaml:"model"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	TimeoutSec  int     `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	Language    string  `mapstructure:"language" yaml:"language"`

	// Azure OpenAI only.
	Endpoint   string `mapstructure:"endpoint" yaml:"endpoint"`
	Deployment string `mapstructure:"deployment" yaml:"deployment"`
	APIVersion string `mapstructure:"api_version" yaml:"api_version"`

	// BaseURL overrides the Anthropic API endpoint.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// DigestConfig controls the outgoing digest email.
type DigestConfig struct {
	Recipients    []string `mapstructure:"recipients" yaml:"recipients"`
	SubjectPrefix string   `mapstructure:"subject_prefix" yaml:"subject_prefix"`
	Title         string   `mapstructure:"title" yaml:"title"`
	Heading       string   `mapstructure:"heading" yaml:"heading"`
	Footer        string   `mapstructure:"footer" yaml:"footer"`
}

// StoreConfig locates the run history database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls where and how verbosely the application logs.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" yaml:"format"`

	// Dir and File locate the log file; an empty Dir disables file logging.
	Dir  string `mapstructure:"dir" yaml:"dir"`
	File string `mapstructure:"file" yaml:"file"`
}

// ScheduleConfig drives the watch command.
type ScheduleConfig struct {
	IntervalMin int  `mapstructure:"interval_min" yaml:"interval_min"`
	RunOnStart  bool `mapstructure:"run_on_start" yaml:"run_on_start"`

	// RunTimeoutMin bounds one scheduled run; 0 disables the limit.
	RunTimeoutMin int `mapstructure:"run_timeout_min" yaml:"run_timeout_min"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	IMAP       IMAPConfig       `mapstructure:"imap" yaml:"imap"`
	SMTP       SMTPConfig       `mapstructure:"smtp" yaml:"smtp"`
	Newsletter NewsletterConfig `mapstructure:"newsletter" yaml:"newsletter"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	Digest     DigestConfig     `mapstructure:"digest" yaml:"digest"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Schedule   ScheduleConfig   `mapstructure:"schedule" yaml:"schedule"`
}

// Window returns the newsletter search window as a duration.
func (c NewsletterConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// Interval returns the scheduler period as a duration.
func (c ScheduleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMin) * time.Minute
}

// RunTimeout returns the per-run limit as a duration.
func (c ScheduleConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutMin) * time.Minute
}

// Timeout returns the LLM request timeout as a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Sender returns the envelope sender for outgoing mail.
func (c SMTPConfig) Sender() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/newsdigest/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "newsdigest", "config.yaml")
}

// DefaultDataDir returns the directory holding the database and logs.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "newsdigest")
}

// defaults maps config keys to their fallback values. Viper needs every key
// registered for AutomaticEnv to see it during Unmarshal.
func defaults() map[string]any {
	dataDir := DefaultDataDir()
	return map[string]any{
		"imap.host":     "imap.gmail.com",
		"imap.port":     "993",
		"imap.username": "",
		"imap.password": "",
		"imap.tls":      true,
		"imap.mailbox":  "INBOX",

		"smtp.host":     "smtp.gmail.com",
		"smtp.port":     "587",
		"smtp.username": "",
		"smtp.password": "",
		"smtp.security": SecurityStartTLS,
		"smtp.from":     "",

		"newsletter.senders":            []string{"dan@tldrnewsletter.com"},
		"newsletter.window_hours":       72,
		"newsletter.mark_seen":          false,
		"newsletter.min_title_length":   10,
		"newsletter.summary_max_length": 200,
		"newsletter.summary_siblings":   3,
		"newsletter.max_articles":       20,
		"newsletter.exclude_patterns":   []string{"unsubscribe", "manage your subscription", "advertise"},

		"llm.provider":    ProviderAzureOpenAI,
		"llm.api_key":     "",
		"llm.model":       "",
		"llm.temperature": 0.7,
		"llm.max_tokens":  4000,
		"llm.timeout_sec": 120,
		"llm.language":    "Korean",
		"llm.endpoint":    "",
		"llm.deployment":  "",
		"llm.api_version": "2024-02-15-preview",
		"llm.base_url":    "",

		"digest.recipients":     []string{},
		"digest.subject_prefix": "TLDR AI 뉴스레터 요약",
		"digest.title":          "📰 AI 뉴스레터",
		"digest.heading":        "🎯 오늘 챙겨볼 AI 소식 (2-3선)",
		"digest.footer":         "오늘도 행복한 하루 보내세요 *^_^*",

		"store.path": filepath.Join(dataDir, "newsdigest.db"),

		"log.level":  "info",
		"log.format": "text",
		"log.dir":    filepath.Join(dataDir, "logs"),
		"log.file":   "newsdigest.log",

		"schedule.interval_min":    24 * 60,
		"schedule.run_on_start":    true,
		"schedule.run_timeout_min": 30,
	}
}

// newViper returns a viper instance with defaults and env overrides wired.
func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Variables from a .env file in the working directory are loaded first so
// they can take part in the NEWSDIGEST_* overrides. A missing config file
// yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Newsletter.Senders = splitList(cfg.Newsletter.Senders)
	cfg.Digest.Recipients = splitList(cfg.Digest.Recipients)

	if cfg.SMTP.Username == "" {
		cfg.SMTP.Username = cfg.IMAP.Username
	}

	return cfg, nil
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *AppConfig {
	v := newViper()
	cfg := &AppConfig{}
	// Defaults are static; Unmarshal cannot fail on them.
	_ = v.Unmarshal(cfg)
	return cfg
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. Secrets are never written.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	redacted := *cfg
	redacted.IMAP.Password = ""
	redacted.SMTP.Password = ""
	redacted.LLM.APIKey = ""

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("imap", redacted.IMAP)
	v.Set("smtp", redacted.SMTP)
	v.Set("newsletter", redacted.Newsletter)
	v.Set("llm", redacted.LLM)
	v.Set("digest", redacted.Digest)
	v.Set("store", redacted.Store)
	v.Set("log", redacted.Log)
	v.Set("schedule", redacted.Schedule)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Validate reports every configuration problem at once.
func (c *AppConfig) Validate() error {
	var problems []string

	if strings.TrimSpace(c.IMAP.Host) == "" {
		problems = append(problems, "imap.host is required")
	}
	if strings.TrimSpace(c.IMAP.Username) == "" {
		problems = append(problems, "imap.username is required")
	}
	if len(c.Newsletter.Senders) == 0 {
		problems = append(problems, "newsletter.senders must list at least one address")
	}
	if c.Newsletter.WindowHours <= 0 {
		problems = append(problems, "newsletter.window_hours must be > 0")
	}
	if c.Newsletter.MaxArticles <= 0 {
		problems = append(problems, "newsletter.max_articles must be > 0")
	}
	if c.Newsletter.SummaryMaxLength <= 0 {
		problems = append(problems, "newsletter.summary_max_length must be > 0")
	}
	if c.Newsletter.SummarySiblings <= 0 {
		problems = append(problems, "newsletter.summary_siblings must be > 0")
	}

	switch c.LLM.Provider {
	case ProviderAzureOpenAI:
		if c.LLM.Endpoint == "" {
			problems = append(problems, "llm.endpoint is required for azure-openai")
		}
		if c.LLM.Deployment == "" {
			problems = append(problems, "llm.deployment is required for azure-openai")
		}
	case ProviderAnthropic:
	default:
		problems = append(problems, fmt.Sprintf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if c.LLM.MaxTokens <= 0 {
		problems = append(problems, "llm.max_tokens must be > 0")
	}

	if c.Schedule.IntervalMin <= 0 {
		problems = append(problems, "schedule.interval_min must be > 0")
	}
	if c.Schedule.RunTimeoutMin < 0 {
		problems = append(problems, "schedule.run_timeout_min must be >= 0")
	}

	if len(c.Digest.Recipients) == 0 {
		problems = append(problems, "digest.recipients must list at least one address")
	}
	switch c.SMTP.Security {
	case SecurityTLS, SecurityStartTLS, SecurityNone:
	default:
		problems = append(problems, fmt.Sprintf("smtp.security %q must be tls, starttls or none", c.SMTP.Security))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration:\n- " + strings.Join(problems, "\n- "))
	}
	return nil
}

// splitList trims entries and expands comma-separated values, which is how
// list overrides arrive from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
