package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper gives each test a clean viper instance, since viper's config
// registration is process-global.
func resetViper(t *testing.T) {
	t.Helper()
	v := viper.New()
	viper.Reset()
	_ = v
}

func TestLoad_DefaultsAppliedWithoutConfigFile(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.Fetch.TimeoutSeconds)
	assert.Equal(t, "strict", cfg.Validation.Mode)
	assert.Equal(t, 8, cfg.Validation.TCPTimeoutSeconds)
	assert.Equal(t, 20, cfg.Validation.BatchSize)
	assert.Equal(t, 0.5, cfg.Validation.BatchDelaySeconds)
	assert.Equal(t, 2000, cfg.Validation.MaxLatencyMs)
	assert.Equal(t, 100, cfg.Validation.MaxOutputNodes)
	assert.Equal(t, "file", cfg.GeoCache.Backend)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestLoad_EnvironmentVariableOverridesDefault(t *testing.T) {
	resetViper(t)
	require.NoError(t, os.Setenv("PROXYPULSE_VALIDATION_MODE", "lenient"))
	defer os.Unsetenv("PROXYPULSE_VALIDATION_MODE")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "lenient", cfg.Validation.Mode)
}

func TestLoad_YAMLFileOverridesDefault(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("validation:\n  batch_size: 5\nstore:\n  dir: /tmp/custom\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Validation.BatchSize)
	assert.Equal(t, "/tmp/custom", cfg.Store.Dir)
}

func TestGet_ReturnsLastLoadedConfig(t *testing.T) {
	resetViper(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Same(t, cfg, Get())
}

func TestDurationHelpers(t *testing.T) {
	f := FetchConfig{TimeoutSeconds: 45}
	assert.Equal(t, 45e9, float64(f.Timeout()))

	v := ValidationConfig{BatchDelaySeconds: 0.5}
	assert.Equal(t, 500e6, float64(v.BatchDelay()))
}

func TestLoadSubscriptionURLs_SkipsBlankAndCommentLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subs.txt")
	content := "# a comment\n\nhttps://sub.example/a\n  https://sub.example/b  \n# another\nhttps://sub.example/c\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := LoadSubscriptionURLs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://sub.example/a", "https://sub.example/b", "https://sub.example/c"}, urls)
}

func TestLoadSubscriptionURLs_MissingFileIsError(t *testing.T) {
	_, err := LoadSubscriptionURLs(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
