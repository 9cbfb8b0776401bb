package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "subs.txt", cfg.Ingest.SubsFile)
	assert.Equal(t, 15, cfg.Ingest.PostLimit)
	assert.Equal(t, 40, cfg.Ingest.CommentLimit)
	assert.Equal(t, 0, cfg.Ingest.MoreCommentsLimit)
	assert.Equal(t, 0, cfg.Ingest.MoreCommentsThreshold)
	assert.False(t, cfg.Ingest.CaptureKarma)
	assert.Equal(t, 30*time.Second, cfg.Reddit.Timeout)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collector.yaml")
	content := `
storage:
  type: postgres
  host: db.internal
  name: reddit
ingest:
  post_limit: 5
  more_comments_limit: -1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SIMSUBS_INGEST_COMMENT_LIMIT", "7")
	t.Setenv("SIMSUBS_REDDIT_CLIENT_ID", "id")
	t.Setenv("SIMSUBS_REDDIT_CLIENT_SECRET", "secret")

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "db.internal", cfg.Storage.Host)
	assert.Equal(t, 5, cfg.Ingest.PostLimit)
	assert.Equal(t, -1, cfg.Ingest.MoreCommentsLimit)
	assert.Equal(t, 7, cfg.Ingest.CommentLimit)
	assert.Equal(t, "id", cfg.Reddit.ClientID)
	assert.Equal(t, "secret", cfg.Reddit.ClientSecret)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Reddit:  RedditConfig{BaseURL: "https://oauth.reddit.com"},
			Storage: StorageConfig{Type: "sqlite", Path: "subs.db"},
			Ingest:  IngestConfig{PostLimit: 15, CommentLimit: 40},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"Valid", func(c *Config) {}, false},
		{"Unlimited expansion", func(c *Config) { c.Ingest.MoreCommentsLimit = -1 }, false},
		{"Missing base URL", func(c *Config) { c.Reddit.BaseURL = "" }, true},
		{"Client id without secret", func(c *Config) { c.Reddit.ClientID = "id" }, true},
		{"Unknown storage", func(c *Config) { c.Storage.Type = "mongodb" }, true},
		{"Postgres without host", func(c *Config) { c.Storage = StorageConfig{Type: "postgres", Name: "reddit"} }, true},
		{"Zero post limit", func(c *Config) { c.Ingest.PostLimit = 0 }, true},
		{"Negative comment limit", func(c *Config) { c.Ingest.CommentLimit = -1 }, true},
		{"Negative threshold", func(c *Config) { c.Ingest.MoreCommentsThreshold = -2 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLogConfig_NewLogger(t *testing.T) {
	log, err := LogConfig{Level: "debug", Format: "json"}.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	_, err = LogConfig{Level: "loud"}.NewLogger()
	assert.Error(t, err)

	_, err = LogConfig{Level: "info", Format: "xml"}.NewLogger()
	assert.Error(t, err)
}
