package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // scoring.timezone must resolve in minimal images

	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/assetrisk/internal/compute"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort       = 8080
	DefaultMaxUploadBytes = 32 << 20
	DefaultDatasetTTL     = time.Hour
	DefaultNATSSubject    = "assetrisk.dataset.processed"
	DefaultSourceTimeout  = 30 * time.Second
	DefaultAuthHeader     = "x-api-key"
)

// Base risk modes.
const (
	BaseRiskFixed  = "fixed"
	BaseRiskRandom = "random"
)

// Config is the top-level configuration shared by the CLI and the server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Scoring ScoringConfig `yaml:"scoring"`
	Source  SourceConfig  `yaml:"source"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// MaxUploadBytes caps the size of one uploaded CSV body.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// DatasetTTL is how long a processed dataset stays in memory after upload.
	DatasetTTL time.Duration `yaml:"dataset_ttl"`

	// Auth configures how the server authenticates REST clients.
	Auth ServerAuthConfig `yaml:"auth"`

	// NATS configures the optional event publisher. Empty URL disables it.
	NATS NATSConfig `yaml:"nats"`
}

// ServerAuthConfig configures REST API authentication.
type ServerAuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable holding the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header carrying the key. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the server API key resolved from the environment.
func (a ServerAuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or DefaultAuthHeader.
func (a ServerAuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAuthHeader
}

// NATSConfig configures the dataset event publisher.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ScoringConfig controls how the pipeline scores rows.
type ScoringConfig struct {
	BaseRisk BaseRiskConfig `yaml:"base_risk"`

	// Workers is the number of goroutines scoring rows; 0 or 1 scores serially.
	Workers int `yaml:"workers"`

	// Timezone is the IANA zone used for timestamps that carry no offset.
	// Empty means UTC.
	Timezone string `yaml:"timezone"`
}

// BaseRiskConfig selects the base term added to every score.
type BaseRiskConfig struct {
	// Mode is one of: fixed | random.
	Mode string `yaml:"mode"`

	// Value is the base used in fixed mode.
	Value float64 `yaml:"value"`

	// Seed seeds random mode; every batch replays it. Zero seeds each batch
	// from the clock, so runs differ.
	Seed uint64 `yaml:"seed"`
}

// BaseFactory builds the base risk strategy described by the config.
// With a zero seed in random mode every batch is seeded from the clock.
func (s ScoringConfig) BaseFactory() compute.BaseFactory {
	if s.BaseRisk.Mode != BaseRiskRandom {
		return compute.Fixed(s.BaseRisk.Value)
	}
	if s.BaseRisk.Seed != 0 {
		return compute.Seeded(s.BaseRisk.Seed)
	}
	return func() compute.BaseRiskSource {
		return compute.RandomBase(uint64(time.Now().UnixNano()))
	}
}

// Location returns the zone for offset-less timestamps.
func (s ScoringConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: load timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// SourceConfig describes where the CLI reads its CSV from when no flag
// overrides it, and how it authenticates to a remote URL.
type SourceConfig struct {
	// Path is a local file; "-" means stdin.
	Path string `yaml:"path"`

	// URL is an http(s) location. Path wins when both are set.
	URL string `yaml:"url"`

	Timeout time.Duration `yaml:"timeout"`
	Auth    AuthConfig    `yaml:"auth"`
	TLS     TLSConfig     `yaml:"tls"`
}

// AuthConfig specifies how to authenticate to a remote source.
type AuthConfig struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// API key fields, used when Mode == "apikey".
	Header string `yaml:"header"`
	KeyEnv string `yaml:"key_env"`

	// TokenEnv holds the bearer token variable name, used when Mode == "bearer".
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields, used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds TLS dial options for the source fetch.
type TLSConfig struct {
	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// CAFile is an optional PEM bundle that replaces the system roots.
	CAFile string `yaml:"ca_file"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold condition over a dataset's KPIs.
type AlertRule struct {
	// Name identifies the alert and is part of its deduplication key.
	Name string `yaml:"name"`

	// Condition is an expression such as "critical_count > 0" or "healthy_pct < 50".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration. Defaults to 15 minutes.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`
}

// SlogLevel maps Level onto a slog.Level. Unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config pre-populated with default values. It is what
// the binaries run with when no config file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:       DefaultHTTPPort,
			MaxUploadBytes: DefaultMaxUploadBytes,
			DatasetTTL:     DefaultDatasetTTL,
			NATS:           NATSConfig{Subject: DefaultNATSSubject},
		},
		Scoring: ScoringConfig{
			BaseRisk: BaseRiskConfig{Mode: BaseRiskFixed, Value: compute.DefaultBaseRisk},
			Workers:  1,
		},
		Source: SourceConfig{Timeout: DefaultSourceTimeout},
		Log:    LogConfig{Level: "info"},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if cfg.Server.DatasetTTL <= 0 {
		return fmt.Errorf("server.dataset_ttl must be positive")
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Auth.Mode == "apikey" && cfg.Server.Auth.KeyEnv == "" {
		return fmt.Errorf("server.auth.key_env is required when mode is apikey")
	}
	if cfg.Server.NATS.URL != "" && cfg.Server.NATS.Subject == "" {
		return fmt.Errorf("server.nats.subject is required when url is set")
	}

	switch cfg.Scoring.BaseRisk.Mode {
	case BaseRiskFixed, BaseRiskRandom:
	default:
		return fmt.Errorf("scoring.base_risk.mode %q unknown: want fixed|random", cfg.Scoring.BaseRisk.Mode)
	}
	if v := cfg.Scoring.BaseRisk.Value; v < 0 || v > compute.MaxBaseRisk {
		return fmt.Errorf("scoring.base_risk.value %v is out of range [0, %v]", v, compute.MaxBaseRisk)
	}
	if cfg.Scoring.Workers < 0 {
		return fmt.Errorf("scoring.workers must not be negative")
	}
	if _, err := cfg.Scoring.Location(); err != nil {
		return err
	}

	switch cfg.Source.Auth.Mode {
	case "apikey", "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("source.auth.mode %q unknown: want apikey|bearer|basic|none", cfg.Source.Auth.Mode)
	}
	if cfg.Source.Timeout < 0 {
		return fmt.Errorf("source.timeout must not be negative")
	}

	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("alerts.rules[%d] %q: condition is required", i, r.Name)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("alerts.rules[%d] %q: unknown severity %q", i, r.Name, r.Severity)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	return nil
}
