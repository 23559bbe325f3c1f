package world

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"
	"sort"

	"github.com/segmentio/fasthash/fnv1a"
)

// secondaryIndex is a K -> Entity mapping, either the store's authoritative
// copy or a view's snapshot of it (module E).
type secondaryIndex[K comparable] struct {
	byKey map[K]Entity
}

func newSecondaryIndex[K comparable]() *secondaryIndex[K] {
	return &secondaryIndex[K]{byKey: make(map[K]Entity)}
}

func (idx *secondaryIndex[K]) set(k K, e Entity) { idx.byKey[k] = e }

func (idx *secondaryIndex[K]) get(k K) (Entity, bool) {
	e, ok := idx.byKey[k]
	return e, ok
}

// copyMissingFrom adopts every key from src that idx doesn't already have.
// Indices only ever grow within a session, so a view never needs to forget
// a key it already learned.
func (idx *secondaryIndex[K]) copyMissingFrom(src *secondaryIndex[K]) {
	if len(src.byKey) <= len(idx.byKey) {
		return
	}
	for k, e := range src.byKey {
		if _, ok := idx.byKey[k]; !ok {
			idx.byKey[k] = e
		}
	}
}

// indexTypeEntry is the type-erased half of a registered secondary index,
// parallel to componentTypeEntry.
type indexTypeEntry interface {
	ensureViewCopy(v *View)
	refresh(v *View)
	snapshotIndex() ([]byte, error)
	restoreIndex(data []byte) error
	digest() uint64
}

type indexType[K comparable] struct {
	store *secondaryIndex[K]
}

func (it *indexType[K]) ensureViewCopy(v *View) {
	t := reflect.TypeFor[K]()
	if _, ok := v.indices[t]; !ok {
		v.indices[t] = newSecondaryIndex[K]()
	}
}

func (it *indexType[K]) refresh(v *View) {
	t := reflect.TypeFor[K]()
	dst := v.indices[t].(*secondaryIndex[K])
	dst.copyMissingFrom(it.store)
}

func (it *indexType[K]) snapshotIndex() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(it.store.byKey); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (it *indexType[K]) restoreIndex(data []byte) error {
	m := make(map[K]Entity)
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return err
	}
	it.store.byKey = m
	return nil
}

// digest returns a cheap, order-independent fingerprint of every key
// currently stored in the index, letting a caller notice the index changed
// without diffing it key by key. Keys are stringified and sorted before
// hashing so the result never depends on map iteration order.
func (it *indexType[K]) digest() uint64 {
	keys := make([]string, 0, len(it.store.byKey))
	for k := range it.store.byKey {
		keys = append(keys, fmt.Sprint(k))
	}
	sort.Strings(keys)
	h := fnv1a.Init64
	for _, k := range keys {
		h = fnv1a.AddString64(h, k)
	}
	return h
}

// RegisterIndex installs an empty K -> Entity index at the store and its
// live view. Like component registration, this is meant to happen once at
// startup per key type.
func RegisterIndex[K comparable](s *Store) {
	t := reflect.TypeFor[K]()
	if _, ok := s.indices[t]; ok {
		return
	}
	entry := &indexType[K]{store: newSecondaryIndex[K]()}
	if blob, ok := s.pendingIndexBlobs[t.String()]; ok {
		if err := entry.restoreIndex(blob); err != nil {
			s.log().Error("failed to restore persisted index data", "type", t, "error", err)
		}
		delete(s.pendingIndexBlobs, t.String())
	}
	s.indices[t] = entry
	entry.ensureViewCopy(s.liveView)
	entry.refresh(s.liveView)
}

// IndexEntity inserts or overwrites the key->entity mapping for K in the
// store, then immediately mirrors it into the live view so a reader does
// not have to wait for the next event to see it.
func IndexEntity[K comparable](s *Store, e Entity, key K) {
	t := reflect.TypeFor[K]()
	entry, ok := s.indices[t]
	if !ok {
		panic(fmt.Sprintf("world: index type %s is not registered", t))
	}
	it := entry.(*indexType[K])
	it.store.set(key, e)
	it.refresh(s.liveView)
}

// IndexDigest returns a cheap fingerprint of every key the store has ever
// indexed under K, for diagnostics (cmd/replay) that want to report whether
// an index changed without serializing it in full. It always reflects the
// store's current index; index entries carry no clock, so there is no digest
// of the index as of an earlier clock.
func IndexDigest[K comparable](s *Store) uint64 {
	t := reflect.TypeFor[K]()
	entry, ok := s.indices[t]
	if !ok {
		panic(fmt.Sprintf("world: index type %s is not registered", t))
	}
	return entry.(*indexType[K]).digest()
}

// EntityByKey looks up the entity indexed under key as seen by v. It panics
// if K was never registered, the same "unregistered type access" fatal the
// spec assigns to component reads.
func EntityByKey[K comparable](v *View, key K) (Entity, bool) {
	t := reflect.TypeFor[K]()
	d, ok := v.indices[t]
	if !ok {
		panic(fmt.Sprintf("world: index type %s is not registered in this view", t))
	}
	return d.(*secondaryIndex[K]).get(key)
}
