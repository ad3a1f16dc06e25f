package pipeline

import (
	"log/slog"
	"sync"
)

// Stage identifies one step of the per-document pipeline.
type Stage string

const (
	StageStore   Stage = "store"
	StageExtract Stage = "extract"
	StageEmbed   Stage = "embed"
	StageIndex   Stage = "index"
)

var allStages = [...]Stage{StageStore, StageExtract, StageEmbed, StageIndex}

// StageCounts holds the four saturating counters for one collection/stage
// pair: pending + active + completed + failed always equals the number
// of jobs ever queued at that stage for that collection.
type StageCounts struct {
	Pending   int
	Active    int
	Completed int
	Failed    int
}

// Snapshot is an immutable, per-collection view of every stage's counters,
// cloned on every transition so a consumer reading it never observes a
// tear with an in-flight update.
type Snapshot struct {
	CollectionID string
	Stages       map[Stage]StageCounts
}

// Tracker maintains pipeline progress counters for every collection and
// broadcasts a cloned Snapshot on each transition. It mirrors the
// mutex-guarded counter shape of async.IndexProgress, widened from a
// single global progress value to one entry per collection and per
// stage, and from a single status field to a four-counter state machine.
type Tracker struct {
	mu     sync.Mutex
	byColl map[string]map[Stage]StageCounts

	notify chan Snapshot
}

// NewTracker creates an empty Tracker. The notification channel is
// buffered by one and uses try-send semantics: a slow consumer misses
// intermediate snapshots, never a stale one, since every send carries a
// full clone of a collection's current state.
func NewTracker() *Tracker {
	return &Tracker{
		byColl: make(map[string]map[Stage]StageCounts),
		notify: make(chan Snapshot, 1),
	}
}

// Notifications returns the channel of cloned per-collection snapshots.
func (t *Tracker) Notifications() <-chan Snapshot {
	return t.notify
}

// Queued records n jobs entering stage s for collection for the first
// time, incrementing pending.
func (t *Tracker) Queued(collection string, s Stage, n int) {
	t.mutate(collection, s, func(c *StageCounts) { c.Pending += n })
}

// Started moves one job from pending to active.
func (t *Tracker) Started(collection string, s Stage) {
	t.mutate(collection, s, func(c *StageCounts) {
		if c.Pending > 0 {
			c.Pending--
		}
		c.Active++
	})
}

// Completed moves one job from active to completed.
func (t *Tracker) Completed(collection string, s Stage) {
	t.mutate(collection, s, func(c *StageCounts) {
		if c.Active > 0 {
			c.Active--
		}
		c.Completed++
	})
}

// Failed moves one job from active to failed.
func (t *Tracker) Failed(collection string, s Stage) {
	t.mutate(collection, s, func(c *StageCounts) {
		if c.Active > 0 {
			c.Active--
		}
		c.Failed++
	})
}

func (t *Tracker) mutate(collection string, s Stage, apply func(*StageCounts)) {
	t.mu.Lock()
	stages, ok := t.byColl[collection]
	if !ok {
		stages = make(map[Stage]StageCounts, len(allStages))
		t.byColl[collection] = stages
	}
	counts := stages[s]
	apply(&counts)
	stages[s] = counts
	snap := t.snapshotLocked(collection)
	t.mu.Unlock()

	select {
	case t.notify <- snap:
	default:
		slog.Debug("progress notification dropped, superseded by next transition",
			slog.String("collection", collection))
	}
}

// Snapshot returns a cloned view of collection's current counters.
func (t *Tracker) Snapshot(collection string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(collection)
}

func (t *Tracker) snapshotLocked(collection string) Snapshot {
	stages := make(map[Stage]StageCounts, len(allStages))
	for s, c := range t.byColl[collection] {
		stages[s] = c
	}
	return Snapshot{CollectionID: collection, Stages: stages}
}

// IsActive reports whether collection has any stage with pending or active
// work outstanding.
func (t *Tracker) IsActive(collection string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.byColl[collection] {
		if c.Pending+c.Active > 0 {
			return true
		}
	}
	return false
}
