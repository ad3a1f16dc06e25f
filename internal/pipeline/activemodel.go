package pipeline

import "sync"

// ActiveModelCell is the shared, read-mostly handle to the currently
// configured embedding model id, consulted by every collection watcher on
// every embeddings event. Reads (the common case) take the read lock; a
// model switch is the rare exclusive write.
//
// Watchers hold only a pointer to this cell, never back to the
// Coordinator that owns them — there is nothing for the cell itself to
// hold that would close the cycle, since it has no reference back to its
// watchers.
type ActiveModelCell struct {
	mu      sync.RWMutex
	modelID string
}

// NewActiveModelCell creates a cell initialized to modelID (possibly
// empty, meaning no embedder is configured yet).
func NewActiveModelCell(modelID string) *ActiveModelCell {
	return &ActiveModelCell{modelID: modelID}
}

// Get returns the currently active model id.
func (c *ActiveModelCell) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modelID
}

// Set switches the active model id.
func (c *ActiveModelCell) Set(modelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modelID = modelID
}
