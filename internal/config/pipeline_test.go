package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipelineConfig_DefaultValues(t *testing.T) {
	cfg := NewPipelineConfig()

	assert.Equal(t, 4, cfg.Extract.Workers)
	assert.Equal(t, 2, cfg.Embed.Workers)
	assert.Equal(t, 16, cfg.Embed.BatchDocs)
	assert.Equal(t, 200*time.Millisecond, cfg.Embed.BatchWindow)
	assert.Equal(t, 256, cfg.Embed.GPUBatchChunks)
	assert.Equal(t, 100, cfg.Index.BatchItems)
	assert.Equal(t, 200*time.Millisecond, cfg.Index.BatchWindow)
	assert.Equal(t, 450, cfg.Chunk.MaxTokens)
	assert.Equal(t, 50, cfg.Chunk.OverlapTokens)
	require.NoError(t, cfg.Validate())
}

func TestLoadPipelineConfig_NoFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadPipelineConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, NewPipelineConfig(), cfg)
}

func TestLoadPipelineConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
embed:
  workers: 4
  batch_docs: 8
chunk:
  max_tokens: 300
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.yaml"), []byte(yamlContent), 0644))

	cfg, err := LoadPipelineConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Embed.Workers)
	assert.Equal(t, 8, cfg.Embed.BatchDocs)
	assert.Equal(t, 300, cfg.Chunk.MaxTokens)
	// Unset fields keep their defaults.
	assert.Equal(t, 256, cfg.Embed.GPUBatchChunks)
	assert.Equal(t, 4, cfg.Extract.Workers)
}

func TestLoadPipelineConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.yaml"), []byte("embed:\n  workers: 4\n"), 0644))
	t.Setenv("INSIGHTD_EMBED_WORKERS", "6")

	cfg, err := LoadPipelineConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Embed.Workers)
}

func TestValidate_RejectsOverlapGreaterThanMaxTokens(t *testing.T) {
	cfg := NewPipelineConfig()
	cfg.Chunk.OverlapTokens = cfg.Chunk.MaxTokens

	err := cfg.Validate()

	assert.Error(t, err)
}

func TestValidate_RejectsOutOfRangeSemanticRatio(t *testing.T) {
	cfg := NewPipelineConfig()
	cfg.Search.DefaultSemanticRatio = 1.5

	err := cfg.Validate()

	assert.Error(t, err)
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	cfg := NewPipelineConfig()
	cfg.Embed.Workers = 3

	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := LoadPipelineConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Embed.Workers)
}
