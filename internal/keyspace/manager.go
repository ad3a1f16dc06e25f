package keyspace

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/Aman-CERP/insightd/internal/apperrors"
)

// Manager opens and caches one Keyspace per namespace under a shared
// docs directory (`{data_dir}/docs/`, disk layout).
type Manager struct {
	dir string

	mu        sync.Mutex
	keyspaces map[NamespaceID]*Keyspace
}

// NewManager returns a Manager rooted at dir, creating it if necessary.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCorruptIndex, "create keyspace directory "+dir, err)
	}
	return &Manager{
		dir:       dir,
		keyspaces: make(map[NamespaceID]*Keyspace),
	}, nil
}

// Open returns the Keyspace for ns, opening its bbolt file on first use.
func (m *Manager) Open(ns NamespaceID) (*Keyspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ks, ok := m.keyspaces[ns]; ok {
		return ks, nil
	}

	ks, err := Open(m.path(ns), ns)
	if err != nil {
		return nil, err
	}
	m.keyspaces[ns] = ks
	return ks, nil
}

// Drop closes and permanently deletes the on-disk keyspace for ns,
// implementing the collection-deletion half of "Lifecycles".
func (m *Manager) Drop(ns NamespaceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ks, ok := m.keyspaces[ns]; ok {
		_ = ks.Close()
		delete(m.keyspaces, ns)
	}
	if err := os.Remove(m.path(ns)); err != nil && !os.IsNotExist(err) {
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "remove keyspace file for "+ns.String(), err)
	}
	return nil
}

// List returns every namespace with an on-disk keyspace file, discovered
// by directory listing rather than the in-memory cache (so a freshly
// started process sees collections from a previous run).
func (m *Manager) List() ([]NamespaceID, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCorruptIndex, "list keyspace directory", err)
	}

	var ids []NamespaceID
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		const suffix = ".db"
		if len(name) != 64+len(suffix) || name[64:] != suffix {
			continue
		}
		id, err := ParseNamespaceID(name[:64])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CloseAll closes every cached Keyspace, used at process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ns, ks := range m.keyspaces {
		_ = ks.Close()
		delete(m.keyspaces, ns)
	}
}

func (m *Manager) path(ns NamespaceID) string {
	return filepath.Join(m.dir, ns.String()+".db")
}
