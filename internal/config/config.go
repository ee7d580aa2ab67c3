// Package config loads hunter settings from a YAML file, .env and HUNTER_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/david/issue-hunter/internal/apperrors"
	"github.com/david/issue-hunter/internal/ingest"
	"github.com/david/issue-hunter/internal/logger"
	"github.com/david/issue-hunter/internal/pacing"
)

const EnvPrefix = "HUNTER"

// Rate state backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// ErrMissingWallet is wrapped by the error Load returns when no payment
// wallet address is configured.
var (
	ErrMissingWallet = errors.New("payment wallet address is required")
	ErrMissingToken  = errors.New("github token is required unless agent.dry_run is set")
)

type Config struct {
	Log      logger.Config  `mapstructure:"log"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Search   SearchConfig   `mapstructure:"search"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Urgency  UrgencyConfig  `mapstructure:"urgency"`
	Pacing   PacingConfig   `mapstructure:"pacing"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
}

type GitHubConfig struct {
	APIURL            string        `mapstructure:"api_url"`
	Token             string        `mapstructure:"token"`
	PerPage           int           `mapstructure:"per_page"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	ProxyURL          string        `mapstructure:"proxy_url"`
}

type SearchConfig struct {
	Queries     []string `mapstructure:"queries"`
	Concurrency int      `mapstructure:"concurrency"`
}

type FilterConfig struct {
	FreshnessHours   int      `mapstructure:"freshness_hours"`
	NegativeKeywords []string `mapstructure:"negative_keywords"`
}

type UrgencyConfig struct {
	Title []string `mapstructure:"title"`
	Body  []string `mapstructure:"body"`
}

type PacingConfig struct {
	DailyLimit int           `mapstructure:"daily_limit"`
	MinDelay   time.Duration `mapstructure:"min_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	Store      string        `mapstructure:"store"` // memory, redis or postgres
	RedisKey   string        `mapstructure:"redis_key"`
}

type PaymentConfig struct {
	WalletAddress string `mapstructure:"wallet_address"`
	Network       string `mapstructure:"network"`
}

type AgentConfig struct {
	DryRun     bool          `mapstructure:"dry_run"`
	MaxPerRun  int           `mapstructure:"max_per_run"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	ProfileTTL time.Duration `mapstructure:"profile_ttl"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type ServerConfig struct {
	Port        string `mapstructure:"port"`
	AdminSecret string `mapstructure:"admin_secret"`
	JWTSecret   string `mapstructure:"jwt_secret"`
	Schedule    string `mapstructure:"schedule"` // cron spec, empty disables
}

// DefaultPort is used when neither server.port nor PORT is set.
const DefaultPort = "8080"

// Option adjusts the viper instance before the config is decoded.
type Option func(v *viper.Viper)

// WithOverride sets key above every other source, the way a command line
// flag does.
func WithOverride(key string, value any) Option {
	return func(v *viper.Viper) {
		v.Set(key, value)
	}
}

// Load reads configuration. path may name an explicit YAML file; otherwise
// config.yaml is looked up in ./configs and the working directory. A missing
// file is not an error.
func Load(path string, opts ...Option) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := setDefaults(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	for _, opt := range opts {
		opt(v)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) error {
	reg, err := ingest.LoadRegistry("")
	if err != nil {
		return fmt.Errorf("loading query registry: %w", err)
	}

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})

	v.SetDefault("github.api_url", reg.GitHub.APIURL)
	v.SetDefault("github.token", "")
	v.SetDefault("github.per_page", reg.GitHub.PerPage)
	v.SetDefault("github.timeout", time.Duration(reg.GitHub.Fetch.TimeoutSeconds)*time.Second)
	v.SetDefault("github.max_retries", reg.GitHub.Fetch.MaxRetries)
	v.SetDefault("github.requests_per_second", reg.GitHub.Fetch.RateLimitRPS)
	v.SetDefault("github.proxy_url", "")

	v.SetDefault("search.queries", reg.Queries())
	v.SetDefault("search.concurrency", 4)

	v.SetDefault("filter.freshness_hours", int(ingest.DefaultFreshnessWindow/time.Hour))
	v.SetDefault("filter.negative_keywords", reg.NegativeKeywords)

	v.SetDefault("urgency.title", reg.Urgency.Title)
	v.SetDefault("urgency.body", reg.Urgency.Body)

	v.SetDefault("pacing.daily_limit", pacing.DefaultDailyLimit)
	v.SetDefault("pacing.min_delay", pacing.DefaultMinDelay)
	v.SetDefault("pacing.max_delay", pacing.DefaultMaxDelay)
	v.SetDefault("pacing.store", StoreMemory)
	v.SetDefault("pacing.redis_key", pacing.DefaultRedisKey)

	v.SetDefault("payment.wallet_address", "")
	v.SetDefault("payment.network", "TRC20")

	v.SetDefault("agent.dry_run", false)
	v.SetDefault("agent.max_per_run", 3)
	v.SetDefault("agent.run_timeout", 10*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.profile_ttl", 24*time.Hour)

	v.SetDefault("database.url", "")

	v.SetDefault("server.port", "")
	v.SetDefault("server.admin_secret", "")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.schedule", "")
	return nil
}

// applyDefaults fills values that come from unprefixed, conventional
// environment variables.
func applyDefaults(cfg *Config) {
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = os.Getenv("PORT")
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.AdminSecret == "" {
		cfg.Server.AdminSecret = os.Getenv("ADMIN_SECRET")
	}
	cfg.Pacing.Store = strings.ToLower(strings.TrimSpace(cfg.Pacing.Store))
	cfg.Payment.Network = strings.ToUpper(strings.TrimSpace(cfg.Payment.Network))
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Payment.WalletAddress) == "" {
		err := apperrors.NewConfigurationError("payment.wallet_address", ErrMissingWallet.Error())
		err.Err = ErrMissingWallet
		return err
	}
	if c.Payment.Network == "" {
		return apperrors.NewConfigurationError("payment.network", "must not be empty")
	}
	if len(c.Search.Queries) == 0 {
		return apperrors.NewConfigurationError("search.queries", "at least one query is required")
	}
	if c.Filter.FreshnessHours <= 0 {
		return apperrors.NewConfigurationError("filter.freshness_hours", "must be positive")
	}
	if c.Pacing.DailyLimit <= 0 {
		return apperrors.NewConfigurationError("pacing.daily_limit", "must be positive")
	}
	if c.Pacing.MinDelay < 0 || c.Pacing.MinDelay > c.Pacing.MaxDelay {
		return apperrors.NewConfigurationError("pacing.min_delay", fmt.Sprintf("must be between 0 and max_delay (%s)", c.Pacing.MaxDelay))
	}
	switch c.Pacing.Store {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if c.Database.URL == "" {
			return apperrors.NewConfigurationError("database.url", "required when pacing.store is postgres")
		}
	default:
		return apperrors.NewConfigurationError("pacing.store", fmt.Sprintf("unknown store %q", c.Pacing.Store))
	}
	if c.GitHub.RequestsPerSecond <= 0 {
		return apperrors.NewConfigurationError("github.requests_per_second", "must be positive")
	}
	if !c.Agent.DryRun && strings.TrimSpace(c.GitHub.Token) == "" {
		err := apperrors.NewConfigurationError("github.token", ErrMissingToken.Error())
		err.Err = ErrMissingToken
		return err
	}
	return nil
}

// FreshnessWindow is the filter window as a duration.
func (c *Config) FreshnessWindow() time.Duration {
	return time.Duration(c.Filter.FreshnessHours) * time.Hour
}

// SourceConfig converts the github section for the search collaborator.
func (c *Config) SourceConfig() ingest.GitHubSourceConfig {
	return ingest.GitHubSourceConfig{
		APIURL:  c.GitHub.APIURL,
		PerPage: c.GitHub.PerPage,
		Fetch: ingest.FetchConfig{
			TimeoutSeconds: int(c.GitHub.Timeout / time.Second),
			MaxRetries:     c.GitHub.MaxRetries,
			RateLimitRPS:   c.GitHub.RequestsPerSecond,
			ProxyURL:       c.GitHub.ProxyURL,
			Token:          c.GitHub.Token,
		},
	}
}
