package world

import "reflect"

// ModifierKind classifies how a modifier's effect behaves over time (module
// C / data model "Modifier").
type ModifierKind int

const (
	// ModifierPermanent is time-monotone: once applied at clock c it
	// remains in effect at every clock >= c unless explicitly disabled.
	ModifierPermanent ModifierKind = iota
	// ModifierLimited behaves as permanent until its activation predicate
	// evaluates false against the view, at which point later views omit
	// its effect without it ever being formally disabled.
	ModifierLimited
	// ModifierDynamic is recomputed on every reconstruction because its
	// result depends on the live view, not just on the clock.
	ModifierDynamic
)

func (k ModifierKind) String() string {
	switch k {
	case ModifierLimited:
		return "limited"
	case ModifierDynamic:
		return "dynamic"
	default:
		return "permanent"
	}
}

// Modifier is a transformation over a component type T, classified as
// permanent, limited, or dynamic. Concrete modifiers are usually built from
// a Field[T, V] descriptor and a Transform[V] (see transform.go), but
// callers may implement this interface directly for effects the closed
// transformation vocabulary doesn't cover.
type Modifier[T any] interface {
	// Classification reports whether this modifier is permanent, limited,
	// or dynamic.
	Classification() ModifierKind
	// Activation returns the Limited activation predicate, or nil for
	// Permanent and Dynamic modifiers (always active once applied, subject
	// to explicit disable).
	Activation() func(*View) bool
	// Apply produces the next value of T given the current value and the
	// view being reconstructed. Dynamic modifiers may read other component
	// types from v; Permanent and Limited modifiers should not (see the
	// recompute-on-disable note in DESIGN.md).
	Apply(current T, v *View) T
	// Description is the human-readable label surfaced by field-log
	// extraction (module I), or "" if none was supplied.
	Description() string
	// FieldChanges returns the field-level descriptors this modifier
	// contributes to field-log extraction, or nil if it was not built from
	// a field descriptor (a raw Modifier[T] implementation).
	FieldChanges() []FieldChange
}

// ModifierRef is an externally held handle sufficient to later disable the
// exact modifier it names: a component type tag, whether it was submitted
// to the constant or dynamic sequence, and its position within that
// sequence.
type ModifierRef struct {
	typeTag  reflect.Type
	dynamic  bool
	position int
}

// modifierLogEntry is one record in a modifierContainer's constant or
// dynamic sequence.
type modifierLogEntry[T any] struct {
	modifier      Modifier[T]
	entity        Entity
	submittedAt   Clock
	disabledAt    Clock
	modifierIndex uint64
	description   string
	activation    func(*View) bool
}

// modifierContainer holds every modifier ever submitted against a single
// component type, split into the constant sequence (permanent + limited,
// applied in Phase 2) and the dynamic sequence (applied in Phase 3), plus
// the auxiliary indices the reconstructor needs: which entities have at
// least one dynamic modifier, and which constant-sequence positions were
// disabled at a given clock.
type modifierContainer[T any] struct {
	constant         []modifierLogEntry[T]
	dynamic          []modifierLogEntry[T]
	dynamicEntitySet map[Entity]struct{}
	disabledAtIndex  map[Clock][]int
}

func newModifierContainer[T any]() *modifierContainer[T] {
	return &modifierContainer[T]{
		dynamicEntitySet: make(map[Entity]struct{}),
		disabledAtIndex:  make(map[Clock][]int),
	}
}
