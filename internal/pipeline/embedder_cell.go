package pipeline

import (
	"sync"

	"github.com/Aman-CERP/insightd/internal/embedclient"
)

// EmbedderCell is the shared, read-mostly handle to the currently
// configured embedder: the embed pool's workers read it on every batch,
// and a model switch replaces it under the exclusive lock. Mirrors
// ActiveModelCell's shape, one level down the stack — the active model id
// names which embedder this cell should hold, the embedder itself is the
// thing that can actually compute vectors.
type EmbedderCell struct {
	mu       sync.RWMutex
	embedder embedclient.Embedder
}

// NewEmbedderCell creates a cell, possibly starting with a nil embedder
// when no model is configured yet.
func NewEmbedderCell(embedder embedclient.Embedder) *EmbedderCell {
	return &EmbedderCell{embedder: embedder}
}

// Get returns the current embedder, or nil if unconfigured.
func (c *EmbedderCell) Get() embedclient.Embedder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embedder
}

// Set replaces the current embedder.
func (c *EmbedderCell) Set(embedder embedclient.Embedder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embedder = embedder
}
