package keyspace

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Aman-CERP/insightd/internal/apperrors"
)

var entriesBucket = []byte("entries")

// Keyspace is one collection's local replica: an ordered key→Entry map
// backed by bbolt, plus a fan-out of change events to subscribers. A real
// P2P transport would additionally propagate writes to peers and deliver
// their writes back in as InsertRemote/ContentReady/SyncFinished events;
// here those three inbound calls are exposed directly so a transport
// adapter (or a test) can drive them.
type Keyspace struct {
	Namespace NamespaceID

	db *bbolt.DB

	mu        sync.Mutex
	subs      map[int]chan ChangeEvent
	nextSubID int
}

// Open opens (creating if necessary) the bbolt file at path as the local
// replica for namespace ns.
func Open(path string, ns NamespaceID) (*Keyspace, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCorruptIndex, "open keyspace database "+path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, apperrors.New(apperrors.ErrCodeCorruptIndex, "initialize keyspace buckets", err)
	}
	return &Keyspace{
		Namespace: ns,
		db:        db,
		subs:      make(map[int]chan ChangeEvent),
	}, nil
}

// Close releases the underlying bbolt handle. Subscriber channels are
// closed so consumers can exit their range loops.
func (k *Keyspace) Close() error {
	k.mu.Lock()
	for id, ch := range k.subs {
		close(ch)
		delete(k.subs, id)
	}
	k.mu.Unlock()
	return k.db.Close()
}

// Subscribe returns a channel of change events and an unsubscribe
// function. The channel is buffered; a slow subscriber misses events
// rather than blocking the writer (matching "event
// processing never blocks on downstream back-pressure").
func (k *Keyspace) Subscribe() (<-chan ChangeEvent, func()) {
	k.mu.Lock()
	defer k.mu.Unlock()

	id := k.nextSubID
	k.nextSubID++
	ch := make(chan ChangeEvent, 256)
	k.subs[id] = ch

	return ch, func() {
		k.mu.Lock()
		defer k.mu.Unlock()
		if existing, ok := k.subs[id]; ok {
			close(existing)
			delete(k.subs, id)
		}
	}
}

func (k *Keyspace) broadcast(ev ChangeEvent) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, ch := range k.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is lagging; drop. The watcher's own job queues
			// are unbounded, so a dropped event here would only matter if
			// no durable record of the write existed — it does, in bbolt.
		}
	}
}

// Put writes an entry authored by this node and broadcasts InsertLocal.
func (k *Keyspace) Put(key string, hash Hash, length int64, author string) (Entry, error) {
	entry := Entry{
		Key:       key,
		Hash:      hash,
		Length:    length,
		Author:    author,
		Timestamp: time.Now(),
	}
	if err := k.write(entry); err != nil {
		return Entry{}, err
	}
	k.broadcast(InsertLocal{Entry: entry})
	return entry, nil
}

// PutRemote applies an entry that arrived from a peer, using
// last-writer-wins by timestamp as the conflict resolution rule, and
// broadcasts InsertRemote.
func (k *Keyspace) PutRemote(entry Entry, status ContentStatus) error {
	existing, ok, err := k.Get(entry.Key)
	if err != nil {
		return err
	}
	if ok && !entry.Timestamp.After(existing.Timestamp) {
		return nil // stale write, existing entry wins
	}
	if err := k.write(entry); err != nil {
		return err
	}
	k.broadcast(InsertRemote{Entry: entry, ContentStatus: status})
	return nil
}

// NotifyContentReady broadcasts that a previously-missing blob has
// finished downloading.
func (k *Keyspace) NotifyContentReady(hash Hash) {
	k.broadcast(ContentReady{Hash: hash})
}

// NotifySyncFinished broadcasts the completion of a sync round.
func (k *Keyspace) NotifySyncFinished(result error) {
	k.broadcast(SyncFinished{Result: result})
}

func (k *Keyspace) write(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCorruptIndex, "marshal keyspace entry", err)
	}
	err = k.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(entriesBucket).Put([]byte(entry.Key), data)
	})
	if err != nil {
		return apperrors.New(apperrors.ErrCodeIndexTxFailed, "write keyspace entry "+entry.Key, err)
	}
	return nil
}

// Get returns the current entry for key, or ok=false if absent.
func (k *Keyspace) Get(key string) (Entry, bool, error) {
	var entry Entry
	var found bool
	err := k.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(entriesBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return Entry{}, false, apperrors.New(apperrors.ErrCodeCorruptIndex, "read keyspace entry "+key, err)
	}
	return entry, found, nil
}

// List returns every entry whose key has the given prefix, in key order.
func (k *Keyspace) List(prefix string) ([]Entry, error) {
	var entries []Entry
	err := k.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(entriesBucket).Cursor()
		p := []byte(prefix)
		for key, data := c.Seek(p); key != nil && bytes.HasPrefix(key, p); key, data = c.Next() {
			var entry Entry
			if err := json.Unmarshal(data, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCorruptIndex, "list keyspace entries with prefix "+prefix, err)
	}
	return entries, nil
}

// Delete removes key from the keyspace.
func (k *Keyspace) Delete(key string) error {
	err := k.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(entriesBucket).Delete([]byte(key))
	})
	if err != nil {
		return apperrors.New(apperrors.ErrCodeIndexTxFailed, "delete keyspace entry "+key, err)
	}
	return nil
}

// Keys returns every key currently present with the given prefix, sorted.
// Used by callers that only need key names, not full entries (e.g.
// walking files/{d}/embeddings/* to find a matching model id).
func (k *Keyspace) Keys(prefix string) ([]string, error) {
	entries, err := k.List(prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	sort.Strings(keys)
	return keys, nil
}

// docIDFromKey extracts the {doc_id} segment from a files/{doc_id}/... key.
func docIDFromKey(key string) (string, bool) {
	const prefix = "files/"
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	rest := key[len(prefix):]
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return "", false
	}
	return rest[:idx], true
}

// modelIDFromEmbeddingsKey extracts {model_id} from files/{d}/embeddings/{m}.
func modelIDFromEmbeddingsKey(key string) (string, bool) {
	const marker = "/embeddings/"
	idx := strings.Index(key, marker)
	if idx < 0 {
		return "", false
	}
	return key[idx+len(marker):], true
}
