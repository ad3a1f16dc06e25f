package agent

import (
	"sync"

	"github.com/Aman-CERP/insightd/internal/keyspace"
)

// CollectionSet reports the namespace ids currently in scope for agent
// tool calls. Every tool scopes its work "to the active collection set"
// without specifying how that set is chosen — selection is a GUI
// concern outside this package's boundary — so the tool dispatch is
// written against this capability rather than against a concrete
// selection mechanism, the same "capability, not a backend" pattern used
// for the LLM provider.
type CollectionSet interface {
	ActiveCollections() []keyspace.NamespaceID
}

// AllCollections is the default CollectionSet: every collection this node
// currently stores, unless a caller has narrowed the selection with Set.
// A GUI would normally call Set whenever the user changes which
// collections are checked in its sidebar.
type AllCollections struct {
	list func() ([]keyspace.NamespaceID, error)

	mu       sync.RWMutex
	selected []keyspace.NamespaceID
}

// NewAllCollections builds a CollectionSet backed by list, the storage
// façade's ListCollections.
func NewAllCollections(list func() ([]keyspace.NamespaceID, error)) *AllCollections {
	return &AllCollections{list: list}
}

// Set narrows the active set to exactly ids. Passing an empty slice
// reverts to "every collection".
func (a *AllCollections) Set(ids []keyspace.NamespaceID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selected = append([]keyspace.NamespaceID(nil), ids...)
}

// ActiveCollections implements CollectionSet.
func (a *AllCollections) ActiveCollections() []keyspace.NamespaceID {
	a.mu.RLock()
	selected := append([]keyspace.NamespaceID(nil), a.selected...)
	a.mu.RUnlock()
	if len(selected) > 0 {
		return selected
	}

	ids, err := a.list()
	if err != nil {
		return nil
	}
	return ids
}
