package embedclient

import "time"

// Ollama API defaults.
const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the recommended embedding model for prose
	// documents.
	DefaultOllamaModel = "nomic-embed-text"

	// OllamaConnectTimeout bounds the initial health check.
	OllamaConnectTimeout = 5 * time.Second

	// OllamaPoolSize sizes the HTTP connection pool.
	OllamaPoolSize = 4

	// DefaultBatchSize is the default per-request batch size.
	DefaultBatchSize = 32

	// DefaultTimeout bounds a single embed request.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries bounds transient-failure retries.
	DefaultMaxRetries = 3
)

// FallbackOllamaModels are tried in order if the primary model isn't
// installed on the target Ollama instance.
var FallbackOllamaModels = []string{
	"mxbai-embed-large",
	"all-minilm",
}

// OllamaConfig configures OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string
	// Model is the embedding model to request.
	Model string
	// FallbackModels are tried in order if Model isn't installed.
	FallbackModels []string
	// Dimensions overrides auto-detection when non-zero.
	Dimensions int
	// BatchSize bounds how many texts go into one HTTP request.
	BatchSize int
	// Timeout bounds a single HTTP request.
	Timeout time.Duration
	// ConnectTimeout bounds the startup health check.
	ConnectTimeout time.Duration
	// MaxRetries bounds transient-failure retries.
	MaxRetries int
	// PoolSize sizes the HTTP connection pool.
	PoolSize int
	// SkipHealthCheck skips startup model discovery, for tests.
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns sensible defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:           DefaultOllamaHost,
		Model:          DefaultOllamaModel,
		FallbackModels: FallbackOllamaModels,
		BatchSize:      DefaultBatchSize,
		Timeout:        DefaultTimeout,
		ConnectTimeout: OllamaConnectTimeout,
		MaxRetries:     DefaultMaxRetries,
		PoolSize:       OllamaPoolSize,
	}
}

// ollamaEmbedRequest is the Ollama /api/embed request body.
type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string for batch
}

// ollamaEmbedResponse is the Ollama /api/embed response body.
type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// ollamaModelListResponse is the Ollama /api/tags response body.
type ollamaModelListResponse struct {
	Models []ollamaModelInfo `json:"models"`
}

// ollamaModelInfo describes one installed model.
type ollamaModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}
