package world

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml"
)

// manifestFileName is the small sidecar written next to a LevelDBProvider's
// data directory, holding the bookkeeping a provider can't express as a
// single binary blob (clock, counters, store identity) as plain TOML, the
// same two-piece shape (keyed binary store plus a TOML sidecar) the teacher
// uses for its whitelist.
const manifestFileName = "manifest.toml"

// manifest is the TOML-encoded sidecar for a persisted store.
type manifest struct {
	StoreID          string `toml:"store_id"`
	CurrentClock     uint64 `toml:"current_clock"`
	GlobalConstIndex uint64 `toml:"global_const_index"`
	GlobalDynIndex   uint64 `toml:"global_dyn_index"`
	SelfEntity       uint64 `toml:"self_entity"`
}

// entitySnapshot mirrors entityRecord with exported fields, the shape gob
// needs to round-trip the entity list through a provider.
type entitySnapshot struct {
	Entity    Entity
	CreatedAt Clock
}

// LevelDBProvider persists a Store's base component data, secondary
// indices, event logs, and bookkeeping counters to a LevelDB data directory
// plus a TOML manifest sidecar. Live modifier effects (the Modifier[T]
// closures submitted through AddModifier) are never persisted: Go has no
// generic way to serialize an arbitrary closure, the same limitation the
// spec's own scoping language carves out when it excludes file-format
// serialization details beyond what round-tripping the store requires. A
// restored store has every entity, its base data, its full event history,
// and its secondary indices back, but starts with no live modifiers; the
// caller is expected to resubmit whatever modifiers should still be active.
type LevelDBProvider struct {
	dir string
	db  *leveldb.DB
}

// OpenLevelDBProvider opens (creating if necessary) a LevelDB database
// rooted at dir.
func OpenLevelDBProvider(dir string) (*LevelDBProvider, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("world: create provider directory: %w", err)
	}
	db, err := leveldb.OpenFile(filepath.Join(dir, "data"), &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("world: open leveldb provider: %w", err)
	}
	return &LevelDBProvider{dir: dir, db: db}, nil
}

// Close releases the underlying LevelDB handle.
func (p *LevelDBProvider) Close() error {
	return p.db.Close()
}

// Save writes every piece of s's persisted state to p, overwriting whatever
// was there before. Save is not atomic with respect to a concurrent Load
// from a different provider instance; callers are expected to serialize
// their own access the same way the store itself assumes single-threaded
// use.
func (p *LevelDBProvider) Save(s *Store) error {
	batch := new(leveldb.Batch)

	entities := make([]entitySnapshot, len(s.entities))
	for i, r := range s.entities {
		entities[i] = entitySnapshot{Entity: r.entity, CreatedAt: r.createdAt}
	}
	entitiesBlob, err := encodeGob(entities)
	if err != nil {
		return fmt.Errorf("world: encode entities: %w", err)
	}
	batch.Put([]byte("entities"), entitiesBlob)

	for t, entry := range s.components {
		blob, err := entry.snapshotBase()
		if err != nil {
			return fmt.Errorf("world: snapshot component %s: %w", t, err)
		}
		batch.Put([]byte("component:"+t.String()), blob)
	}
	for t, entry := range s.indices {
		blob, err := entry.snapshotIndex()
		if err != nil {
			return fmt.Errorf("world: snapshot index %s: %w", t, err)
		}
		batch.Put([]byte("index:"+t.String()), blob)
	}
	for t, entry := range s.events.subLogs {
		blob, err := entry.snapshot()
		if err != nil {
			return fmt.Errorf("world: snapshot event log %s: %w", t, err)
		}
		batch.Put([]byte("event:"+t.String()), blob)
	}

	if err := p.db.Write(batch, nil); err != nil {
		return fmt.Errorf("world: write leveldb batch: %w", err)
	}

	m := manifest{
		StoreID:          s.id.String(),
		CurrentClock:     uint64(s.currentClock),
		GlobalConstIndex: s.globalConstIndex,
		GlobalDynIndex:   s.globalDynIndex,
		SelfEntity:       uint64(s.selfEntity),
	}
	encoded, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("world: encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.dir, manifestFileName), encoded, 0o644); err != nil {
		return fmt.Errorf("world: write manifest: %w", err)
	}
	return nil
}

// Load reconstructs a Store from p. The returned store has its clock,
// counters, entity list, and self entity restored, plus every persisted
// component/index/event blob held pending until the caller re-registers the
// matching type with RegisterComponent, RegisterIndex, or RegisterEventType
// — exactly the calls a fresh process makes anyway, which is what lets this
// restore the live view's layers for free instead of needing a parallel
// hydration path.
func (p *LevelDBProvider) Load(conf Config) (*Store, error) {
	raw, err := os.ReadFile(filepath.Join(p.dir, manifestFileName))
	if err != nil {
		return nil, fmt.Errorf("world: read manifest: %w", err)
	}
	var m manifest
	if err := toml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("world: decode manifest: %w", err)
	}
	id, err := uuid.Parse(m.StoreID)
	if err != nil {
		return nil, fmt.Errorf("world: parse store id: %w", err)
	}

	conf.ID = id
	s := New(conf)
	s.currentClock = Clock(m.CurrentClock)
	s.globalConstIndex = m.GlobalConstIndex
	s.globalDynIndex = m.GlobalDynIndex
	s.selfEntity = Entity(m.SelfEntity)
	seedEntityCounter(s.selfEntity)
	// The live view's clock is otherwise only ever set inside
	// updateViewToClock (see store.go), which nothing here calls; without
	// this, a freshly restored store would report View().Clock() == 0 until
	// the next AddEvent/UpdateViewToTime happened to fix it as a side effect,
	// contradicting the clock it just restored from the manifest.
	s.liveView.clock = s.currentClock

	entitiesBlob, err := p.db.Get([]byte("entities"), nil)
	if err != nil && err != leveldb.ErrNotFound {
		return nil, fmt.Errorf("world: read entities: %w", err)
	}
	if err == nil {
		var entities []entitySnapshot
		if err := decodeGob(entitiesBlob, &entities); err != nil {
			return nil, fmt.Errorf("world: decode entities: %w", err)
		}
		s.entities = make([]entityRecord, len(entities))
		for i, e := range entities {
			s.entities[i] = entityRecord{entity: e.Entity, createdAt: e.CreatedAt}
			seedEntityCounter(e.Entity)
		}
	}

	s.pendingComponentBlobs = make(map[string][]byte)
	s.pendingIndexBlobs = make(map[string][]byte)
	s.pendingEventBlobs = make(map[string][]byte)

	iter := p.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		key := string(iter.Key())
		value := append([]byte(nil), iter.Value()...)
		switch {
		case strings.HasPrefix(key, "component:"):
			s.pendingComponentBlobs[strings.TrimPrefix(key, "component:")] = value
		case strings.HasPrefix(key, "index:"):
			s.pendingIndexBlobs[strings.TrimPrefix(key, "index:")] = value
		case strings.HasPrefix(key, "event:"):
			s.pendingEventBlobs[strings.TrimPrefix(key, "event:")] = value
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("world: iterate leveldb: %w", err)
	}

	return s, nil
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
