package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jvheeswijck/sim-subs/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	rc := newRootCommand()
	var names []string
	for _, c := range rc.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"run", "serve"}, names)
}

func TestIngestFlagsOverrideConfig(t *testing.T) {
	v := viper.New()
	cmd := newRunCommand(v, new(string))
	require.NoError(t, cmd.Flags().Parse([]string{"--post-limit", "3", "--more-comments-limit", "-1", "--capture-karma"}))
	bindFlags(v, cmd.Flags(), ingestFlagKeys)

	cfg, err := config.LoadConfig(v, "")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Ingest.PostLimit)
	assert.Equal(t, 40, cfg.Ingest.CommentLimit)
	assert.Equal(t, -1, cfg.Ingest.MoreCommentsLimit)
	assert.True(t, cfg.Ingest.CaptureKarma)
}

func TestSetup(t *testing.T) {
	t.Setenv("SIMSUBS_STORAGE_PATH", filepath.Join(t.TempDir(), "data", "subs.db"))
	v := viper.New()

	a, err := setup(context.Background(), v, "")
	require.NoError(t, err)
	defer a.store.Close()

	assert.Equal(t, "sqlite", a.cfg.Storage.Type)
	assert.NotNil(t, a.writer)
}
