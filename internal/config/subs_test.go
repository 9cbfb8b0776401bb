package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCommunities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs.txt")
	content := "golang\n\n# databases\n  r/PostgreSQL  \nrust\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	names, err := ReadCommunities(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"golang", "PostgreSQL", "rust"}, names)
}

func TestReadCommunities_Missing(t *testing.T) {
	_, err := ReadCommunities(filepath.Join(t.TempDir(), "subs.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no subreddits to collect")
}
