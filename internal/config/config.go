package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the collector reads.
const EnvPrefix = "SIMSUBS"

// Config holds the application configuration
type Config struct {
	Reddit  RedditConfig  `mapstructure:"reddit"`
	Storage StorageConfig `mapstructure:"storage"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
}

// RedditConfig holds content API credentials and endpoints
type RedditConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	TokenURL     string        `mapstructure:"token_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	Type     string `mapstructure:"type"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds the PostgreSQL connection string.
func (s StorageConfig) DSN() string {
	sslMode := s.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		s.Host, s.Port, s.User, s.Password, s.Name, sslMode,
	)
}

// IngestConfig holds the ingestion tunables
type IngestConfig struct {
	SubsFile              string `mapstructure:"subs_file"`
	PostLimit             int    `mapstructure:"post_limit"`
	CommentLimit          int    `mapstructure:"comment_limit"`
	MoreCommentsLimit     int    `mapstructure:"more_comments_limit"`
	MoreCommentsThreshold int    `mapstructure:"more_comments_threshold"`
	CaptureKarma          bool   `mapstructure:"capture_karma"`
	Verbose               bool   `mapstructure:"verbose"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("reddit.base_url", "https://oauth.reddit.com")
	v.SetDefault("reddit.token_url", "https://www.reddit.com/api/v1/access_token")
	v.SetDefault("reddit.client_id", "")
	v.SetDefault("reddit.client_secret", "")
	v.SetDefault("reddit.user_agent", "go:sim-subs:v0.3 (collector)")
	v.SetDefault("reddit.timeout", "30s")
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.path", "./data/subs.db")
	v.SetDefault("storage.host", "localhost")
	v.SetDefault("storage.port", "5432")
	v.SetDefault("storage.user", "")
	v.SetDefault("storage.password", "")
	v.SetDefault("storage.name", "reddit")
	v.SetDefault("storage.sslmode", "disable")
	v.SetDefault("ingest.subs_file", "subs.txt")
	v.SetDefault("ingest.post_limit", 15)
	v.SetDefault("ingest.comment_limit", 40)
	v.SetDefault("ingest.more_comments_limit", 0)
	v.SetDefault("ingest.more_comments_threshold", 0)
	v.SetDefault("ingest.capture_karma", false)
	v.SetDefault("ingest.verbose", false)
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig loads configuration from the optional file at path (or
// config.yaml in the working directory), a .env file and environment
// variables, in increasing priority.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf("No .env file loaded: %v", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		logrus.Debug("No config file found, using defaults and environment variables")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks the values LoadConfig cannot default sensibly.
func (c *Config) Validate() error {
	if c.Reddit.BaseURL == "" {
		return errors.New("reddit.base_url is required")
	}
	if c.Reddit.ClientID != "" && c.Reddit.ClientSecret == "" {
		return errors.New("reddit.client_secret is required when reddit.client_id is set")
	}
	switch strings.ToLower(c.Storage.Type) {
	case "sqlite":
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for sqlite")
		}
	case "postgres":
		if c.Storage.Host == "" || c.Storage.Name == "" {
			return errors.New("storage.host and storage.name are required for postgres")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Ingest.PostLimit <= 0 {
		return errors.New("ingest.post_limit must be positive")
	}
	if c.Ingest.CommentLimit < 0 {
		return errors.New("ingest.comment_limit must not be negative")
	}
	if c.Ingest.MoreCommentsThreshold < 0 {
		return errors.New("ingest.more_comments_threshold must not be negative")
	}
	return nil
}

// NewLogger builds the root logger described by c.
func (c LogConfig) NewLogger() (*logrus.Logger, error) {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	log.SetLevel(level)

	switch c.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("log.format: unknown format %q", c.Format)
	}
	return log, nil
}
