package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// PipelineConfig holds the pipeline's performance-only numerical knobs —
// batch sizes, coalescing windows, and chunk token limits. They live
// outside settings.json because, unlike the active model selection, they
// are safe to override per deployment without touching durable state.
type PipelineConfig struct {
	Extract ExtractConfig `yaml:"extract"`
	Embed   EmbedConfig   `yaml:"embed"`
	Index   IndexConfig   `yaml:"index"`
	Chunk   ChunkConfig   `yaml:"chunk"`
	Search  SearchConfig  `yaml:"search"`
}

// ExtractConfig configures the extract worker pool. Extraction is
// unbatched — PDF extraction is CPU-bound and already parallel across
// workers.
type ExtractConfig struct {
	Workers int `yaml:"workers"`
}

// EmbedConfig configures the embed worker pool's batcher.
type EmbedConfig struct {
	Workers        int           `yaml:"workers"`
	BatchDocs      int           `yaml:"batch_docs"`
	BatchWindow    time.Duration `yaml:"batch_window"`
	GPUBatchChunks int           `yaml:"gpu_batch_chunks"`
}

// IndexConfig configures the single-writer index pool's batcher.
type IndexConfig struct {
	BatchItems  int           `yaml:"batch_items"`
	BatchWindow time.Duration `yaml:"batch_window"`
}

// ChunkConfig configures the tokenizer-aware chunker.
type ChunkConfig struct {
	MaxTokens     int `yaml:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

// SearchConfig configures hybrid search defaults.
type SearchConfig struct {
	DefaultSemanticRatio float64 `yaml:"default_semantic_ratio"`
	DefaultLimit         int     `yaml:"default_limit"`
	MinScore             float64 `yaml:"min_score"`
}

// pipelineFileName is the fixed project-level tunables file name.
const pipelineFileName = "pipeline.yaml"

// NewPipelineConfig returns the default batching and chunking knobs.
func NewPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Extract: ExtractConfig{
			Workers: 4,
		},
		Embed: EmbedConfig{
			Workers:        2,
			BatchDocs:      16,
			BatchWindow:    200 * time.Millisecond,
			GPUBatchChunks: 256,
		},
		Index: IndexConfig{
			BatchItems:  100,
			BatchWindow: 200 * time.Millisecond,
		},
		Chunk: ChunkConfig{
			MaxTokens:     450,
			OverlapTokens: 50,
		},
		Search: SearchConfig{
			DefaultSemanticRatio: 0.5,
			DefaultLimit:         20,
			MinScore:             0,
		},
	}
}

// LoadPipelineConfig loads pipeline.yaml from dir, applying defaults first,
// then the file's overrides, then INSIGHTD_* environment overrides, then
// validation.
func LoadPipelineConfig(dir string) (*PipelineConfig, error) {
	cfg := NewPipelineConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	return cfg, nil
}

func (c *PipelineConfig) loadFromFile(dir string) error {
	path := filepath.Join(dir, pipelineFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read pipeline config %s: %w", path, err)
	}

	var parsed PipelineConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse pipeline config %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c: a zero value in
// other means "not set in the file," not "set to zero."
func (c *PipelineConfig) mergeWith(other *PipelineConfig) {
	if other.Extract.Workers != 0 {
		c.Extract.Workers = other.Extract.Workers
	}
	if other.Embed.Workers != 0 {
		c.Embed.Workers = other.Embed.Workers
	}
	if other.Embed.BatchDocs != 0 {
		c.Embed.BatchDocs = other.Embed.BatchDocs
	}
	if other.Embed.BatchWindow != 0 {
		c.Embed.BatchWindow = other.Embed.BatchWindow
	}
	if other.Embed.GPUBatchChunks != 0 {
		c.Embed.GPUBatchChunks = other.Embed.GPUBatchChunks
	}
	if other.Index.BatchItems != 0 {
		c.Index.BatchItems = other.Index.BatchItems
	}
	if other.Index.BatchWindow != 0 {
		c.Index.BatchWindow = other.Index.BatchWindow
	}
	if other.Chunk.MaxTokens != 0 {
		c.Chunk.MaxTokens = other.Chunk.MaxTokens
	}
	if other.Chunk.OverlapTokens != 0 {
		c.Chunk.OverlapTokens = other.Chunk.OverlapTokens
	}
	if other.Search.DefaultSemanticRatio != 0 {
		c.Search.DefaultSemanticRatio = other.Search.DefaultSemanticRatio
	}
	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.MinScore != 0 {
		c.Search.MinScore = other.Search.MinScore
	}
}

// applyEnvOverrides applies INSIGHTD_* environment variable overrides,
// which take the highest precedence.
func (c *PipelineConfig) applyEnvOverrides() {
	if v := os.Getenv("INSIGHTD_EXTRACT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Extract.Workers = n
		}
	}
	if v := os.Getenv("INSIGHTD_EMBED_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embed.Workers = n
		}
	}
	if v := os.Getenv("INSIGHTD_EMBED_BATCH_DOCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embed.BatchDocs = n
		}
	}
	if v := os.Getenv("INSIGHTD_SEARCH_SEMANTIC_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			c.Search.DefaultSemanticRatio = f
		}
	}
}

// Validate rejects out-of-range tunables before the coordinator starts any
// worker pool against them.
func (c *PipelineConfig) Validate() error {
	if c.Extract.Workers <= 0 {
		return fmt.Errorf("extract.workers must be positive, got %d", c.Extract.Workers)
	}
	if c.Embed.Workers <= 0 {
		return fmt.Errorf("embed.workers must be positive, got %d", c.Embed.Workers)
	}
	if c.Embed.BatchDocs <= 0 {
		return fmt.Errorf("embed.batch_docs must be positive, got %d", c.Embed.BatchDocs)
	}
	if c.Embed.GPUBatchChunks <= 0 {
		return fmt.Errorf("embed.gpu_batch_chunks must be positive, got %d", c.Embed.GPUBatchChunks)
	}
	if c.Index.BatchItems <= 0 {
		return fmt.Errorf("index.batch_items must be positive, got %d", c.Index.BatchItems)
	}
	if c.Chunk.MaxTokens <= 0 {
		return fmt.Errorf("chunk.max_tokens must be positive, got %d", c.Chunk.MaxTokens)
	}
	if c.Chunk.OverlapTokens < 0 || c.Chunk.OverlapTokens >= c.Chunk.MaxTokens {
		return fmt.Errorf("chunk.overlap_tokens must be in [0, max_tokens), got %d", c.Chunk.OverlapTokens)
	}
	if c.Search.DefaultSemanticRatio < 0 || c.Search.DefaultSemanticRatio > 1 {
		return fmt.Errorf("search.default_semantic_ratio must be in [0, 1], got %f", c.Search.DefaultSemanticRatio)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file, for example to
// materialize a starting pipeline.yaml. No CLI command calls it.
func (c *PipelineConfig) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal pipeline config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write pipeline config: %w", err)
	}
	return nil
}
