package world

import "sync/atomic"

// Entity is an opaque handle into a Store. It carries no data of its own;
// all state reachable through an Entity lives in the Store's component
// containers. Entities are value types, safe to copy, and are never reused
// within a process.
type Entity uint64

// entityIDCounter is process-wide, matching the teacher prototype's
// ENTITY_ID_COUNTER: sessions are not meant to share entity ids, so callers
// juggling more than one Store in the same process still get distinct
// handles across all of them.
var entityIDCounter atomic.Uint64

// NewEntity mints a fresh, never-before-returned Entity handle.
func NewEntity() Entity {
	return Entity(entityIDCounter.Add(1))
}

// seedEntityCounter advances the process-wide entity counter past used, so
// entities minted after a persist.go Load never collide with a restored one.
// It only ever moves the counter forward.
func seedEntityCounter(used Entity) {
	for {
		cur := entityIDCounter.Load()
		if uint64(used) <= cur {
			return
		}
		if entityIDCounter.CompareAndSwap(cur, uint64(used)) {
			return
		}
	}
}

// Sentinel is the reserved Entity value meaning "no entity". The zero value
// of Entity is always the sentinel.
func Sentinel() Entity { return 0 }

// IsSentinel reports whether e is the "no entity" value.
func (e Entity) IsSentinel() bool { return e == 0 }

// entityRecord pairs an Entity with the clock at which it was created, used
// to decide whether a View at an earlier clock should see it at all.
type entityRecord struct {
	entity    Entity
	createdAt Clock
}
