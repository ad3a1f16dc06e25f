package storage

import (
	"encoding/json"
	"time"

	"github.com/Aman-CERP/insightd/internal/apperrors"
	"github.com/Aman-CERP/insightd/internal/keyspace"
)

// CreateCollection creates a fresh namespace and writes its `_collection`
// entry, returning the new namespace id and its metadata.
func (f *Facade) CreateCollection(name string) (keyspace.NamespaceID, CollectionMeta, error) {
	ns, err := keyspace.NewNamespaceID()
	if err != nil {
		return ns, CollectionMeta{}, apperrors.New(apperrors.ErrCodeInternal, "generate namespace id", err)
	}

	ks, err := f.keyspaces.Open(ns)
	if err != nil {
		return ns, CollectionMeta{}, err
	}

	meta := CollectionMeta{Name: name, CreatedAt: time.Now()}
	if err := f.putJSON(ks, keyspace.CollectionKey, meta); err != nil {
		return ns, CollectionMeta{}, err
	}
	return ns, meta, nil
}

// ListCollections returns every namespace known to this node.
func (f *Facade) ListCollections() ([]keyspace.NamespaceID, error) {
	return f.keyspaces.List()
}

// GetCollectionMeta returns the `_collection` entry for ns.
func (f *Facade) GetCollectionMeta(ns keyspace.NamespaceID) (CollectionMeta, error) {
	ks, err := f.keyspaces.Open(ns)
	if err != nil {
		return CollectionMeta{}, err
	}

	var meta CollectionMeta
	found, err := f.getJSON(ks, keyspace.CollectionKey, &meta)
	if err != nil {
		return CollectionMeta{}, err
	}
	if !found {
		return CollectionMeta{}, apperrors.New(apperrors.ErrCodeCollectionNotFound, "collection "+ns.String()+" not found", nil)
	}
	return meta, nil
}

// DeleteCollection drops ns and every entry it contains. Entries become
// unreachable immediately; their blobs are reclaimed by the blob store's
// own GC once untagged. Callers that also need to clear the collection's
// chunks from the search index should go through
// pipeline.Coordinator.DeleteCollection instead of calling this directly.
func (f *Facade) DeleteCollection(ns keyspace.NamespaceID) error {
	return f.keyspaces.Drop(ns)
}

// Subscribe returns a stream of ChangeEvent for ns and an unsubscribe
// function, used by collection watchers.
func (f *Facade) Subscribe(ns keyspace.NamespaceID) (<-chan keyspace.ChangeEvent, func(), error) {
	ks, err := f.keyspaces.Open(ns)
	if err != nil {
		return nil, nil, err
	}
	ch, unsub := ks.Subscribe()
	return ch, unsub, nil
}

func (f *Facade) putJSON(ks *keyspace.Keyspace, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeInternal, "marshal "+key, err)
	}
	hash, err := f.blobs.Put(data)
	if err != nil {
		return err
	}
	if _, err := ks.Put(key, hash, int64(len(data)), f.author); err != nil {
		return err
	}
	return f.blobs.Tag(hash, ks.Namespace.String()+"/"+key)
}

func (f *Facade) getJSON(ks *keyspace.Keyspace, key string, v any) (bool, error) {
	entry, found, err := ks.Get(key)
	if err != nil || !found {
		return false, err
	}
	data, err := f.blobs.Get(entry.Hash)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, apperrors.New(apperrors.ErrCodeCorruptBlob, "parse "+key, err)
	}
	return true, nil
}
