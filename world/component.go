package world

import (
	"bytes"
	"encoding/gob"
	"reflect"

	"github.com/brentp/intintmap"
)

// componentData is the dense base-data container backing a single
// registered component type T (module B). Entities are attached to a row
// via an Entity->row dense index; row data lives in parallel slices so a
// full scan (clone, iteration) never chases a pointer per entry.
//
// The row index is an intintmap.Map, the open-addressing int64->int64 map
// the rest of the pack reaches for whenever a hot path needs an integer key
// without boxing it through map[any]any. Component types are registered at
// startup and never removed for the life of a store (see RegisterComponent),
// so the container only ever grows; rows are never recycled.
type componentData[T any] struct {
	rowOf      *intintmap.Map
	entities   []Entity
	values     []T
	attachedAt []Clock
	zero       T
}

func newComponentData[T any]() *componentData[T] {
	return &componentData[T]{rowOf: intintmap.New(64, 0.6)}
}

func (c *componentData[T]) row(e Entity) (int, bool) {
	v, ok := c.rowOf.Get(int64(e))
	if !ok {
		return 0, false
	}
	return int(v), true
}

// get returns the stored value for e, or the zero value and false if e has
// no data of this type attached.
func (c *componentData[T]) get(e Entity) (T, bool) {
	r, ok := c.row(e)
	if !ok {
		return c.zero, false
	}
	return c.values[r], true
}

func (c *componentData[T]) has(e Entity) bool {
	_, ok := c.row(e)
	return ok
}

func (c *componentData[T]) attachedClock(e Entity) (Clock, bool) {
	r, ok := c.row(e)
	if !ok {
		return 0, false
	}
	return c.attachedAt[r], true
}

// set inserts or overwrites the stored value for e at clock c. Overwriting
// an existing row leaves its original attachedAt clock untouched, matching
// attach's "idempotent on identical values" contract: re-attaching does not
// move the entity's visible attachment time forward.
func (c *componentData[T]) set(e Entity, v T, at Clock) {
	if r, ok := c.row(e); ok {
		c.values[r] = v
		return
	}
	r := len(c.values)
	c.entities = append(c.entities, e)
	c.values = append(c.values, v)
	c.attachedAt = append(c.attachedAt, at)
	c.rowOf.Put(int64(e), int64(r))
}

// clone deep-copies the container, used when a view's layer needs an
// independent copy of the store's base data (snapshot construction) or of
// another layer (constant->effective seeding).
func (c *componentData[T]) clone() *componentData[T] {
	out := newComponentData[T]()
	out.entities = append([]Entity(nil), c.entities...)
	out.values = append([]T(nil), c.values...)
	out.attachedAt = append([]Clock(nil), c.attachedAt...)
	for i, e := range out.entities {
		out.rowOf.Put(int64(e), int64(i))
	}
	return out
}

func (c *componentData[T]) each(fn func(Entity, T)) {
	for i, e := range c.entities {
		fn(e, c.values[i])
	}
}

// componentTypeEntry is the type-erased half of the registration triple
// described in the spec's design notes: a tagged registry keyed by a
// compile-time-unique type token (reflect.Type stands in for Rust's
// TypeId/AnyMap), holding closures specialised to T at registration time so
// the rest of the store never needs a type switch to drive reconstruction.
type componentTypeEntry interface {
	typeName() string

	// ensureViewLayers installs empty constant/effective containers for
	// this type into v if it doesn't have them yet (new views, or a type
	// registered after the view was created — scenario 5 in the spec).
	ensureViewLayers(v *View)

	// resetEntityToBase writes e's base value (or the type's zero value,
	// if e has no data attached) into v's effective layer for this type,
	// and into its constant layer only if e already has an entry there.
	resetEntityToBase(v *View, e Entity)

	constantLen() int
	constantEntryAt(i int) modifierEntryView
	applyConstantAt(v *View, i int)

	dynamicEntities() []Entity
	dynamicLen() int
	dynamicEntryAt(i int) modifierEntryView
	applyDynamicAt(v *View, i int, target Clock)
	resetDynamicLayer(v *View, e Entity)

	entitiesDisabledAtClock(c Clock) []Entity
	rebuildEntityEffective(v *View, e Entity, cTarget Clock)

	disableModifier(dynamic bool, position int, at Clock)
	addModifier(e Entity, m any, desc string, at Clock, constIndex, dynIndex *uint64) ModifierRef

	cloneBaseInto(v *View)

	snapshotBase() ([]byte, error)
	restoreBase(data []byte) error
}

// modifierEntryView is the type-erased summary of a single modifier-log
// entry a component type exposes to the reconstructor, which never needs
// the modifier's concrete payload — only its bookkeeping fields.
type modifierEntryView struct {
	modifierIndex uint64
	submittedAt   Clock
	disabledAt    Clock
	entity        Entity
}

// RegisterComponent installs the base-data and modifier containers for T,
// plus its dispatch closures, at both the store and its live view. Like the
// teacher's entity-state registration, this must happen before any data of
// type T is attached, and it is meant to happen once per type for the life
// of the store — re-registering the same type is a no-op.
func RegisterComponent[T any](s *Store) {
	t := reflect.TypeFor[T]()
	if _, ok := s.components[t]; ok {
		return
	}
	entry := &componentType[T]{
		base:      newComponentData[T](),
		modifiers: newModifierContainer[T](),
	}
	if blob, ok := s.pendingComponentBlobs[t.String()]; ok {
		if err := entry.restoreBase(blob); err != nil {
			s.log().Error("failed to restore persisted component data", "type", t, "error", err)
		}
		delete(s.pendingComponentBlobs, t.String())
	}
	s.components[t] = entry
	entry.cloneBaseInto(s.liveView)
}

// componentType is the generic implementation behind componentTypeEntry;
// exactly one instance exists per registered T, held by the store and
// shared by every view through the type-erased interface.
type componentType[T any] struct {
	base      *componentData[T]
	modifiers *modifierContainer[T]
}

func (c *componentType[T]) typeName() string {
	return reflect.TypeFor[T]().String()
}

func (c *componentType[T]) ensureViewLayers(v *View) {
	t := reflect.TypeFor[T]()
	if _, ok := v.constant[t]; !ok {
		v.constant[t] = newComponentData[T]()
	}
	if _, ok := v.effective[t]; !ok {
		v.effective[t] = newComponentData[T]()
	}
}

func (c *componentType[T]) cloneBaseInto(v *View) {
	t := reflect.TypeFor[T]()
	v.effective[t] = c.base.clone()
	v.constant[t] = newComponentData[T]()
}

func (c *componentType[T]) resetEntityToBase(v *View, e Entity) {
	t := reflect.TypeFor[T]()
	val, _ := c.base.get(e)
	at, _ := c.base.attachedClock(e)
	eff := v.effective[t].(*componentData[T])
	eff.set(e, val, at)
	if con, ok := v.constant[t].(*componentData[T]); ok && con.has(e) {
		con.set(e, val, at)
	}
}

func (c *componentType[T]) constantLen() int { return len(c.modifiers.constant) }

func (c *componentType[T]) constantEntryAt(i int) modifierEntryView {
	e := c.modifiers.constant[i]
	return modifierEntryView{modifierIndex: e.modifierIndex, submittedAt: e.submittedAt, disabledAt: e.disabledAt, entity: e.entity}
}

func (c *componentType[T]) dynamicEntities() []Entity {
	out := make([]Entity, 0, len(c.modifiers.dynamicEntitySet))
	for e := range c.modifiers.dynamicEntitySet {
		out = append(out, e)
	}
	return out
}

func (c *componentType[T]) dynamicLen() int { return len(c.modifiers.dynamic) }

func (c *componentType[T]) dynamicEntryAt(i int) modifierEntryView {
	e := c.modifiers.dynamic[i]
	return modifierEntryView{modifierIndex: e.modifierIndex, submittedAt: e.submittedAt, disabledAt: e.disabledAt, entity: e.entity}
}

func (c *componentType[T]) applyConstantAt(v *View, i int) {
	t := reflect.TypeFor[T]()
	entry := c.modifiers.constant[i]
	if entry.activation != nil && !entry.activation(v) {
		return
	}
	_, hasDynamic := c.modifiers.dynamicEntitySet[entry.entity]
	if hasDynamic {
		con := v.constant[t].(*componentData[T])
		if !con.has(entry.entity) {
			eff := v.effective[t].(*componentData[T])
			cur, _ := eff.get(entry.entity)
			at, _ := eff.attachedClock(entry.entity)
			con.set(entry.entity, cur, at)
		}
		cur, ok := con.get(entry.entity)
		if !ok {
			return
		}
		con.set(entry.entity, entry.modifier.Apply(cur, v), entry.submittedAt)
		return
	}
	eff := v.effective[t].(*componentData[T])
	cur, ok := eff.get(entry.entity)
	if !ok {
		return
	}
	eff.set(entry.entity, entry.modifier.Apply(cur, v), entry.submittedAt)
}

func (c *componentType[T]) resetDynamicLayer(v *View, e Entity) {
	t := reflect.TypeFor[T]()
	eff := v.effective[t].(*componentData[T])
	con := v.constant[t].(*componentData[T])
	if cur, ok := con.get(e); ok {
		at, _ := con.attachedClock(e)
		eff.set(e, cur, at)
		return
	}
	base, _ := c.base.get(e)
	at, _ := c.base.attachedClock(e)
	eff.set(e, base, at)
}

func (c *componentType[T]) applyDynamicAt(v *View, i int, target Clock) {
	t := reflect.TypeFor[T]()
	entry := c.modifiers.dynamic[i]
	if entry.disabledAt != MaxClock && entry.disabledAt <= target {
		return
	}
	eff := v.effective[t].(*componentData[T])
	cur, ok := eff.get(entry.entity)
	if !ok {
		return
	}
	eff.set(entry.entity, entry.modifier.Apply(cur, v), entry.submittedAt)
}

func (c *componentType[T]) entitiesDisabledAtClock(cl Clock) []Entity {
	positions := c.modifiers.disabledAtIndex[cl]
	seen := make(map[Entity]bool, len(positions))
	out := make([]Entity, 0, len(positions))
	for _, p := range positions {
		e := c.modifiers.constant[p].entity
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

func (c *componentType[T]) rebuildEntityEffective(v *View, e Entity, cTarget Clock) {
	t := reflect.TypeFor[T]()
	val, _ := c.base.get(e)
	at, _ := c.base.attachedClock(e)
	_, hasDynamic := c.modifiers.dynamicEntitySet[e]

	cur := val
	for _, m := range c.modifiers.constant {
		if m.entity != e {
			continue
		}
		if m.disabledAt != MaxClock && m.disabledAt <= cTarget {
			continue
		}
		if m.submittedAt > cTarget {
			continue
		}
		if m.activation != nil && !m.activation(v) {
			continue
		}
		cur = m.modifier.Apply(cur, v)
	}

	if hasDynamic {
		con := v.constant[t].(*componentData[T])
		con.set(e, cur, at)
		eff := v.effective[t].(*componentData[T])
		eff.set(e, cur, at)
		for _, m := range c.modifiers.dynamic {
			if m.entity != e || m.submittedAt > cTarget {
				continue
			}
			if m.disabledAt != MaxClock && m.disabledAt <= cTarget {
				continue
			}
			ev, _ := eff.get(e)
			eff.set(e, m.modifier.Apply(ev, v), at)
		}
		return
	}
	eff := v.effective[t].(*componentData[T])
	eff.set(e, cur, at)
}

func (c *componentType[T]) disableModifier(dynamic bool, position int, at Clock) {
	if dynamic {
		c.modifiers.dynamic[position].disabledAt = at
		return
	}
	c.modifiers.constant[position].disabledAt = at
	c.modifiers.disabledAtIndex[at] = append(c.modifiers.disabledAtIndex[at], position)
}

func (c *componentType[T]) addModifier(e Entity, m any, desc string, at Clock, constIndex, dynIndex *uint64) ModifierRef {
	mod := m.(Modifier[T])
	entry := modifierLogEntry[T]{modifier: mod, entity: e, disabledAt: MaxClock, description: desc, submittedAt: at, activation: mod.Activation()}
	switch mod.Classification() {
	case ModifierDynamic:
		entry.modifierIndex = *dynIndex
		*dynIndex++
		position := len(c.modifiers.dynamic)
		c.modifiers.dynamic = append(c.modifiers.dynamic, entry)
		c.modifiers.dynamicEntitySet[e] = struct{}{}
		return ModifierRef{typeTag: reflect.TypeFor[T](), dynamic: true, position: position}
	default:
		entry.modifierIndex = *constIndex
		*constIndex++
		position := len(c.modifiers.constant)
		c.modifiers.constant = append(c.modifiers.constant, entry)
		return ModifierRef{typeTag: reflect.TypeFor[T](), dynamic: false, position: position}
	}
}

// baseSnapshot is the gob-serializable mirror of componentData's base rows.
// Component types are plain data records (see the spec's data model), so T
// itself is assumed gob-encodable without further registration.
type baseSnapshot[T any] struct {
	Entities   []Entity
	Values     []T
	AttachedAt []Clock
}

// snapshotBase encodes the base-data container only. Modifier history is
// deliberately not part of the persisted blob — see DESIGN.md's persistence
// entry for why, and persist.go for the round-trip contract this supports.
func (c *componentType[T]) snapshotBase() ([]byte, error) {
	var buf bytes.Buffer
	snap := baseSnapshot[T]{Entities: c.base.entities, Values: c.base.values, AttachedAt: c.base.attachedAt}
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *componentType[T]) restoreBase(data []byte) error {
	var snap baseSnapshot[T]
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	base := newComponentData[T]()
	for i, e := range snap.Entities {
		base.set(e, snap.Values[i], snap.AttachedAt[i])
	}
	c.base = base
	return nil
}
