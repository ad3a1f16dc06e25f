// Package storage implements the storage façade: the thin domain layer
// over the blob store and the keyspace that the rest of the pipeline
// uses instead of touching either directly. It owns typed
// reads/writes for collection metadata, document metadata, source bytes,
// extracted text, and per-model embeddings, plus O(1) duplicate
// detection via the `_hash_index` keyspace entries.
package storage

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/insightd/internal/apperrors"
	"github.com/Aman-CERP/insightd/internal/blobstore"
	"github.com/Aman-CERP/insightd/internal/keyspace"
)

// CollectionMeta is the value stored at the `_collection` key.
type CollectionMeta struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentMetadata is the value stored at `files/{doc_id}/meta`.
type DocumentMetadata struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	SourceHash     string    `json:"source_hash"`
	TextHash       string    `json:"text_hash"`
	PageCount      int       `json:"page_count"`
	Tags           []string  `json:"tags,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	PageBoundaries []int     `json:"page_boundaries"`
}

// EmbeddingChunk is one chunk within an EmbeddingData entry.
type EmbeddingChunk struct {
	Index     int       `json:"index"`
	Content   string    `json:"content"`
	Vector    []float32 `json:"vector"`
	StartPage int       `json:"start_page"`
	EndPage   int       `json:"end_page"`
}

// EmbeddingData is the value stored at `files/{doc_id}/embeddings/{model_id}`.
type EmbeddingData struct {
	ModelID    string           `json:"model_id"`
	Dimensions int              `json:"dimensions"`
	CreatedAt  time.Time        `json:"created_at"`
	Chunks     []EmbeddingChunk `json:"chunks"`
}

// Extractor is the PDF text extractor, treated as a pure function from
// bytes to (text, page_count, page_boundaries) explicit
// non-goal boundary — its implementation lives outside this package.
type Extractor interface {
	Extract(pdf []byte) (text string, pageCount int, pageBoundaries []int, err error)
}

type docCacheKey struct {
	ns    keyspace.NamespaceID
	docID string
}

// Facade is the storage façade: every pipeline component and the agent
// tool dispatch read and write collections through it rather than
// touching the keyspace or blob store directly.
type Facade struct {
	keyspaces *keyspace.Manager
	blobs     *blobstore.Store
	extractor Extractor
	author    string

	docCache *lru.Cache[docCacheKey, DocumentMetadata]

	// pendingNames bridges StoreSource's caller-supplied display name to
	// the meta entry ExtractAndStoreText writes later, since the two
	// calls are separate pipeline stages and only
	// StoreSource sees the original file path.
	pendingNamesMu sync.Mutex
	pendingNames   map[docCacheKey]string
}

// New builds a Facade over a keyspace manager and blob store, with an LRU
// cache of size docCacheSize backing GetDocument. author identifies this node as the writer of every local entry.
func New(keyspaces *keyspace.Manager, blobs *blobstore.Store, extractor Extractor, author string, docCacheSize int) (*Facade, error) {
	cache, err := lru.New[docCacheKey, DocumentMetadata](docCacheSize)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInternal, "create document metadata cache", err)
	}
	return &Facade{
		keyspaces:    keyspaces,
		blobs:        blobs,
		extractor:    extractor,
		author:       author,
		docCache:     cache,
		pendingNames: make(map[docCacheKey]string),
	}, nil
}
