package storage

import (
	"context"
	"time"

	"github.com/Aman-CERP/insightd/internal/apperrors"
	"github.com/Aman-CERP/insightd/internal/keyspace"
	"github.com/Aman-CERP/insightd/internal/ticket"
)

// importDeadline is the 30s window import() waits for `_collection` and
// its source hash to replicate before returning a warning instead of
// blocking forever.
const importDeadline = 30 * time.Second

// ImportWarning reports that import() returned before the collection
// finished replicating locally: surfaced to the caller rather than
// silently discarded, since the caller may want to retry the wait or
// warn the user that results could be incomplete for now.
type ImportWarning struct {
	Namespace keyspace.NamespaceID
	Message   string
}

// Share emits a ticket granting capability access to ns, reachable via
// addrs (the local node's listener addresses).
func (f *Facade) Share(ns keyspace.NamespaceID, capability ticket.Capability, addrs []string) (ticket.Ticket, error) {
	if _, err := f.keyspaces.Open(ns); err != nil {
		return ticket.Ticket{}, err
	}
	return ticket.New(ns, addrs, capability)
}

// Import decodes a share ticket and waits up to 30s for the collection's
// `_collection` entry (and, if not yet local, a matching ContentReady
// event) to replicate. If the deadline elapses the namespace id is still
// returned — future sync will eventually fill it — along with a non-nil
// warning rather than an error. Import is idempotent: a
// ticket already imported returns the same namespace id without creating
// duplicate entries, since opening an existing keyspace is a no-op.
func (f *Facade) Import(ctx context.Context, tk ticket.Ticket) (keyspace.NamespaceID, *ImportWarning, error) {
	ks, err := f.keyspaces.Open(tk.Namespace)
	if err != nil {
		return tk.Namespace, nil, err
	}

	deadline := time.Now().Add(importDeadline)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if _, found, err := ks.Get(keyspace.CollectionKey); err != nil {
		return tk.Namespace, nil, err
	} else if found {
		return tk.Namespace, nil, nil
	}

	events, unsub := ks.Subscribe()
	defer unsub()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return tk.Namespace, f.timeoutWarning(tk.Namespace), nil
			}
			if f.isCollectionReady(ks, ev) {
				return tk.Namespace, nil, nil
			}
		case <-ctx.Done():
			return tk.Namespace, f.timeoutWarning(tk.Namespace), nil
		}
	}
}

func (f *Facade) isCollectionReady(ks *keyspace.Keyspace, ev keyspace.ChangeEvent) bool {
	switch e := ev.(type) {
	case keyspace.InsertRemote:
		if e.Entry.Key != keyspace.CollectionKey {
			return false
		}
		return e.ContentStatus == keyspace.ContentComplete
	case keyspace.ContentReady:
		entry, found, err := ks.Get(keyspace.CollectionKey)
		return err == nil && found && entry.Hash == e.Hash
	default:
		return false
	}
}

func (f *Facade) timeoutWarning(ns keyspace.NamespaceID) *ImportWarning {
	return &ImportWarning{
		Namespace: ns,
		Message:   apperrors.New(apperrors.ErrCodeImportTimedOut, "collection did not finish replicating within 30s; it will continue in the background", nil).Message,
	}
}
