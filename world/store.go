package world

import (
	"encoding/binary"
	"log/slog"
	"reflect"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Config contains options for starting a Store.
type Config struct {
	// Log is the Logger to use for logging warnings about recoverable
	// misuse (forward-only catch-up violations, recovered callback panics).
	// A modifier whose entity has no data of the modified type is skipped
	// without a log entry. If nil, Log is set to slog.Default().
	Log *slog.Logger
	// ID identifies this store across process restarts, stamped into the
	// persisted-state manifest (see persist.go). If the zero UUID, a fresh
	// random ID is generated.
	ID uuid.UUID
}

// Store is the temporal entity/component/modifier store: the authoritative
// append-only log of typed modifications, plus the live view kept
// continuously synchronised to its current clock. A Store is not safe for
// concurrent use; it is designed for a single-threaded simulation stepped by
// an outer loop (see DESIGN.md).
type Store struct {
	id        uuid.UUID
	logHandle *slog.Logger

	currentClock     Clock
	globalConstIndex uint64
	globalDynIndex   uint64

	entities   []entityRecord
	selfEntity Entity

	components      map[reflect.Type]componentTypeEntry
	indices         map[reflect.Type]indexTypeEntry
	events          *eventLog
	eventRegistrars []func(*eventLog)

	liveView *View

	// pending*Blobs hold raw persisted blobs keyed by reflect.Type.String(),
	// populated by a provider's Load and drained as each type is
	// subsequently re-registered (see persist.go).
	pendingComponentBlobs map[string][]byte
	pendingIndexBlobs     map[string][]byte
	pendingEventBlobs     map[string][]byte
}

// New creates an empty Store from conf. Component types, indices, and event
// types must still be registered with RegisterComponent, RegisterIndex, and
// RegisterEventType before they can be attached, indexed, or emitted.
func New(conf Config) *Store {
	logger := conf.Log
	if logger == nil {
		logger = slog.Default()
	}
	id := conf.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	s := &Store{
		id:         id,
		logHandle:  logger,
		components: make(map[reflect.Type]componentTypeEntry),
		indices:    make(map[reflect.Type]indexTypeEntry),
		events:     newEventLog(),
		liveView:   newView(),
	}
	s.selfEntity = NewEntity()
	return s
}

// ID returns the store's stable identity, used by persist.go to tag its
// manifest sidecar.
func (s *Store) ID() uuid.UUID { return s.id }

func (s *Store) log() *slog.Logger { return s.logHandle }

// CreateEntity mints a fresh Entity and registers it as created at the
// store's current clock, so views before that clock will not list it.
func (s *Store) CreateEntity() Entity {
	e := NewEntity()
	s.AddEntity(e)
	return e
}

// AddEntity registers an externally minted Entity as created at the store's
// current clock. Most callers want CreateEntity; AddEntity exists for
// entities minted by NewEntity ahead of time, or restored by persist.go.
func (s *Store) AddEntity(e Entity) {
	s.entities = append(s.entities, entityRecord{entity: e, createdAt: s.currentClock})
}

// SelfEntity returns the store's designated world entity, the implicit
// target of AttachWorldData and AddWorldModifier for callers that want
// exactly one instance of a component type shared across the whole session
// rather than per game-object data.
func (s *Store) SelfEntity() Entity { return s.selfEntity }

// AttachData inserts or overwrites entity's base value of type T, and
// immediately writes it into the live view's effective layer so a reader
// never has to wait for the next event to see newly attached data.
// Attaching for a type that was never registered with RegisterComponent is
// fatal, since there would be no dispatch triple to recompute it with.
func AttachData[T any](s *Store, e Entity, value T) {
	entry := componentEntry[T](s, "AttachData")
	entry.base.set(e, value, s.currentClock)
	entry.ensureViewLayers(s.liveView)
	entry.resetEntityToBase(s.liveView, e)
}

// AttachWorldData attaches value to the store's self entity, for
// component types meant to exist exactly once per store (global game state,
// ambient world conditions) rather than once per game-object.
func AttachWorldData[T any](s *Store, value T) {
	AttachData(s, s.selfEntity, value)
}

// componentEntry resolves the registered entry for T, panicking with the
// type name (per the spec's unregistered-type-access fatal) if it was never
// registered.
func componentEntry[T any](s *Store, where string) *componentType[T] {
	t := reflect.TypeFor[T]()
	raw, ok := s.components[t]
	if !ok {
		panic("world: component type " + t.String() + " is not registered (" + where + ")")
	}
	ct, ok := raw.(*componentType[T])
	if !ok {
		panic("world: component type " + t.String() + " registered with a mismatched type (" + where + ")")
	}
	return ct
}

// AddModifier submits modifier against entity, assigning it a fresh
// modifier index from the appropriate (constant vs dynamic) global counter,
// and returns a reference sufficient to later DisableModifier it.
// description labels the modifier for field-log extraction (module I); pass
// "" if the modifier's own Description() already supplies one.
func AddModifier[T any](s *Store, e Entity, m Modifier[T], description string) ModifierRef {
	entry := componentEntry[T](s, "AddModifier")
	desc := description
	if desc == "" {
		desc = m.Description()
	}
	return entry.addModifier(e, m, desc, s.currentClock, &s.globalConstIndex, &s.globalDynIndex)
}

// AddWorldModifier submits modifier against the store's self entity.
func AddWorldModifier[T any](s *Store, m Modifier[T], description string) ModifierRef {
	return AddModifier(s, s.selfEntity, m, description)
}

// DisableModifier tombstones the modifier ref names with the store's
// current clock: historical views before this clock keep seeing its effect,
// views at or after it do not. Disabling does not by itself resynchronize
// the live view (only AddEvent/AddEventState/UpdateViewToTime do); call
// ViewAtTime at the store's current clock to observe the effect right away.
// Disabling is the store's only deletion primitive; there is no way to
// un-disable a modifier. A ref naming an unregistered type or an
// out-of-bounds position is fatal.
func DisableModifier(s *Store, ref ModifierRef) {
	raw, ok := s.components[ref.typeTag]
	if !ok {
		panic("world: modifier reference names unregistered component type " + ref.typeTag.String())
	}
	raw.disableModifier(ref.dynamic, ref.position, s.currentClock)
}

// Data returns entity's effective value of type T in the live view, or the
// zero value of T if it has none.
func Data[T any](s *Store, e Entity) T {
	v, _ := DataOpt[T](s.liveView, e)
	return v
}

// HasData reports whether entity has any value of type T attached.
func HasData[T any](v *View, e Entity) bool {
	t := reflect.TypeFor[T]()
	raw, ok := v.effective[t]
	if !ok {
		panic("world: component type " + t.String() + " is not registered in this view")
	}
	return raw.(*componentData[T]).has(e)
}

// DataOpt returns entity's effective value of type T as seen by v, and
// whether it has one at all.
func DataOpt[T any](v *View, e Entity) (T, bool) {
	t := reflect.TypeFor[T]()
	raw, ok := v.effective[t]
	if !ok {
		panic("world: component type " + t.String() + " is not registered in this view")
	}
	return raw.(*componentData[T]).get(e)
}

// View returns the store's live view, always pinned to the store's current
// clock (invariant 5). It is owned by the store; callers must not mutate
// it, and must not retain it across a call that might register a new
// component type or index.
func (s *Store) View() *View { return s.liveView }

// ViewAtTime builds an independent snapshot view reconstructed at clock c,
// starting from the store's base data rather than catching up an existing
// view.
func (s *Store) ViewAtTime(c Clock) *View {
	v := newView()
	for _, entry := range s.components {
		entry.cloneBaseInto(v)
	}
	for _, entry := range s.indices {
		entry.ensureViewCopy(v)
	}
	for _, register := range s.eventRegistrars {
		register(v.events)
	}
	s.updateViewToClock(v, c)
	return v
}

// UpdateViewToTime advances v to clock c, applying every modifier and event
// submitted since v.Clock(). Advancing to a clock earlier than v.Clock() is
// a forward-only-catch-up violation: it is a no-op, logged as a warning
// rather than failing the caller.
func (s *Store) UpdateViewToTime(v *View, c Clock) {
	s.updateViewToClock(v, c)
}

func (s *Store) updateViewToClock(v *View, target Clock) {
	if target < v.clock {
		s.log().Warn("forward-only catch-up violation: ignoring backward view update", "view_clock", v.clock, "target", target)
		return
	}

	for t, entry := range s.components {
		if _, ok := v.effective[t]; !ok {
			entry.ensureViewLayers(v)
		}
	}
	for _, entry := range s.indices {
		entry.ensureViewCopy(v)
		entry.refresh(v)
	}

	for v.entityCursorPos < len(s.entities) && s.entities[v.entityCursorPos].createdAt <= target {
		v.entities = append(v.entities, s.entities[v.entityCursorPos])
		v.entityCursorPos++
	}

	s.runConstantPhase(v, target)
	s.runDynamicPhase(v, target)
	s.runDisabledRecompute(v, target)

	v.events.updateTo(s.events, target)
	v.clock = target
}

func (s *Store) runConstantPhase(v *View, target Clock) {
	cursor := v.globalConstCursor
	for {
		progressed := false
		for t, entry := range s.components {
			i := v.constCursor[t]
			if i >= entry.constantLen() {
				continue
			}
			me := entry.constantEntryAt(i)
			if me.modifierIndex != cursor {
				continue
			}
			if me.submittedAt <= target {
				entry.applyConstantAt(v, i)
				v.constCursor[t] = i + 1
				progressed = true
			}
			break
		}
		if !progressed {
			break
		}
		cursor++
	}
	v.globalConstCursor = cursor
}

// runDynamicPhase is Phase 3: reset every dynamic-bearing entity back to its
// constant-or-base value, then replay the *entire* dynamic history up to
// target in global-index order. Unlike the constant phase, this cannot
// resume from a saved cursor: the reset above discards whatever a previous
// catch-up's walk contributed, so every dynamic modifier submitted so far
// must be re-applied, not just the ones newer than last time — that
// re-evaluation against the current view on every reconstruction is exactly
// what distinguishes a Dynamic modifier from a Permanent one.
func (s *Store) runDynamicPhase(v *View, target Clock) {
	for _, entry := range s.components {
		for _, e := range entry.dynamicEntities() {
			entry.resetDynamicLayer(v, e)
		}
	}
	for t := range s.components {
		v.dynCursor[t] = 0
	}

	cursor := uint64(0)
	for {
		progressed := false
		for t, entry := range s.components {
			i := v.dynCursor[t]
			if i >= entry.dynamicLen() {
				continue
			}
			me := entry.dynamicEntryAt(i)
			if me.modifierIndex != cursor {
				continue
			}
			if me.submittedAt <= target {
				entry.applyDynamicAt(v, i, target)
				v.dynCursor[t] = i + 1
				progressed = true
			}
			break
		}
		if !progressed {
			break
		}
		cursor++
	}
}

// runDisabledRecompute is Phase 4. The window starts at v.clock itself, not
// v.clock+1: DisableModifier always stamps disabledAt with the store's
// current clock, and by invariant 5 that is exactly the live view's clock at
// the moment the disable happens, so the very next catch-up must still
// revisit that clock or it would permanently miss the disable it caused.
// Re-running rebuildEntityEffective for an entity whose disable clock falls
// before v.clock too is harmless: the rebuild is a pure function of the
// modifier log, not of the view's prior state.
func (s *Store) runDisabledRecompute(v *View, target Clock) {
	for c := v.clock; c <= target; c++ {
		for _, entry := range s.components {
			for _, e := range entry.entitiesDisabledAtClock(c) {
				entry.rebuildEntityEffective(v, e, target)
			}
		}
		if c == MaxClock {
			break
		}
	}
}

// RandomSeed deterministically derives 32 bytes of seed material from the
// store's current clock and a caller-supplied byte, letting game logic get
// reproducible randomness without the store depending on an RNG itself
// (random number generation is explicitly out of scope for the store; this
// helper only supplies deterministic input to whatever RNG the caller uses).
// The clock and extra byte are expanded to 32 bytes by hashing four
// distinct counter-salted digests with xxhash rather than just repeating the
// input, so flipping extra or advancing the clock by one changes every byte
// of the seed instead of only the first nine.
func (s *Store) RandomSeed(extra byte) [32]byte {
	var in [9]byte
	binary.LittleEndian.PutUint64(in[:8], uint64(s.currentClock))
	in[8] = extra

	var seed [32]byte
	for i := 0; i < 4; i++ {
		h := xxhash.New()
		h.Write(in[:])
		h.Write([]byte{byte(i)})
		binary.LittleEndian.PutUint64(seed[i*8:i*8+8], h.Sum64())
	}
	return seed
}
