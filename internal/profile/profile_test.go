package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "dev", p.Mode)
	assert.Equal(t, "free", p.Tier)
	assert.Equal(t, "nomic-embed-text", p.EmbeddingModel)
	assert.Equal(t, 768, p.EmbeddingDimensions)
	assert.Equal(t, 1000, p.CacheCapacity)
	assert.Equal(t, 50, p.RemoteTopK)
	assert.Equal(t, 5*time.Second, p.RemoteTimeout)
	assert.Equal(t, 10, p.IndexBatchSize)
	assert.False(t, p.IsRemoteEnabled())
	assert.False(t, p.HasUserCredential())
	assert.True(t, p.Flags.IsEnabled("multimodal_search"))
	assert.False(t, p.Flags.IsEnabled("byok"))
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SYNAPSE_TIER", "PRO")
	t.Setenv("SYNAPSE_REMOTE_DSN", "postgres://localhost/synapse")
	t.Setenv("SYNAPSE_USER_API_KEY", "sk-user")
	t.Setenv("SYNAPSE_FLAG_BYOK", "true")
	t.Setenv("SYNAPSE_REMOTE_TIMEOUT", "250ms")
	t.Setenv("SYNAPSE_CACHE_CAPACITY", "42")

	p, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pro", p.Tier)
	assert.True(t, p.IsRemoteEnabled())
	assert.True(t, p.HasUserCredential())
	assert.True(t, p.Flags.IsEnabled("byok"))
	assert.Equal(t, 250*time.Millisecond, p.RemoteTimeout)
	assert.Equal(t, 42, p.CacheCapacity)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "synapse.yaml")
	require.NoError(t, os.WriteFile(file, []byte("tier: plus\nremote_top_k: 20\n"), 0o600))

	p, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "plus", p.Tier)
	assert.Equal(t, 20, p.RemoteTopK)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	t.Run("fills DSN and clamps limits", func(t *testing.T) {
		p := &Profile{Mode: "prod", Data: dir, Tier: "free", EmbeddingModel: "m", RemoteTopK: 500, EmbedConcurrency: 64}
		require.NoError(t, p.Validate())
		assert.Equal(t, filepath.Join(dir, "synapse_prod.db"), p.DSN)
		assert.Equal(t, 50, p.RemoteTopK)
		assert.Equal(t, 10, p.EmbedConcurrency)
		assert.Equal(t, 1000, p.CacheCapacity)
	})

	t.Run("unknown tier", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: dir, Tier: "gold", EmbeddingModel: "m"}
		assert.Error(t, p.Validate())
	})

	t.Run("missing data dir", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: filepath.Join(dir, "nope"), Tier: "free", EmbeddingModel: "m"}
		assert.Error(t, p.Validate())
	})
}
