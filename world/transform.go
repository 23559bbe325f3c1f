package world

import "golang.org/x/exp/constraints"

// Numeric is the set of field value types the arithmetic and reduceable
// transforms operate over.
type Numeric interface {
	constraints.Integer | constraints.Float
}

// Field ties a name to a pure getter/setter pair over a component type T,
// enabling declarative modifiers built from a (field, transformation) pair
// rather than a hand-written Modifier[T] (module H).
type Field[T any, V any] struct {
	Name string
	Get  func(T) V
	Set  func(T, V) T
}

// TransformKind tags which of the closed transformation variants produced a
// Transform, used both for field-log squashing and for UI display.
type TransformKind int

const (
	TransformSetTo TransformKind = iota
	TransformAdd
	TransformSub
	TransformMul
	TransformDiv
	TransformReduceBy
	TransformReduceTo
	TransformRecoverBy
	TransformIncreaseBy
	TransformAppend
	TransformRemove
	TransformSetKeyTo
	TransformRemoveKey
	TransformAddToKey
	TransformCustom
)

func (k TransformKind) String() string {
	switch k {
	case TransformSetTo:
		return "set_to"
	case TransformAdd:
		return "add"
	case TransformSub:
		return "sub"
	case TransformMul:
		return "mul"
	case TransformDiv:
		return "div"
	case TransformReduceBy:
		return "reduce_by"
	case TransformReduceTo:
		return "reduce_to"
	case TransformRecoverBy:
		return "recover_by"
	case TransformIncreaseBy:
		return "increase_by"
	case TransformAppend:
		return "append"
	case TransformRemove:
		return "remove"
	case TransformSetKeyTo:
		return "set_key_to"
	case TransformRemoveKey:
		return "remove_key"
	case TransformAddToKey:
		return "add_to_key"
	default:
		return "custom"
	}
}

// combinable reports whether two adjacent field-log entries of this kind
// fold into one during squashing (module I). SetTo collapses to the later
// value; Add/Sub fold by summing; everything else is kept distinct because
// folding it would change its meaning (e.g. two Muls are not one Mul of the
// product under every reading order a UI breakdown wants to preserve).
func (k TransformKind) combinable() bool {
	return k == TransformSetTo || k == TransformAdd || k == TransformSub
}

// Transform is a pure value-to-value transformation forming the closed
// vocabulary of module H. Permanent and Limited modifiers are built from a
// Transform; Dynamic modifiers read the view directly (see
// DynamicFieldModifier).
type Transform[V any] interface {
	Kind() TransformKind
	Apply(V) V
	Describe() string
}

type transformFunc[V any] struct {
	kind        TransformKind
	fn          func(V) V
	description string
}

func (t transformFunc[V]) Kind() TransformKind { return t.kind }
func (t transformFunc[V]) Apply(v V) V         { return t.fn(v) }
func (t transformFunc[V]) Describe() string    { return t.description }

// SetTo overwrites the field with v. Adjacent SetTo entries in a field log
// collapse to the later value.
func SetTo[V any](v V, description string) Transform[V] {
	return transformFunc[V]{kind: TransformSetTo, fn: func(V) V { return v }, description: description}
}

// Add adds delta to the field. Adjacent Adds with identical descriptions
// fold into one during field-log squashing.
func Add[V Numeric](delta V, description string) Transform[V] {
	return transformFunc[V]{kind: TransformAdd, fn: func(cur V) V { return cur + delta }, description: description}
}

// Sub subtracts delta from the field.
func Sub[V Numeric](delta V, description string) Transform[V] {
	return transformFunc[V]{kind: TransformSub, fn: func(cur V) V { return cur - delta }, description: description}
}

// Mul multiplies the field by factor.
func Mul[V Numeric](factor V, description string) Transform[V] {
	return transformFunc[V]{kind: TransformMul, fn: func(cur V) V { return cur * factor }, description: description}
}

// Div divides the field by divisor.
func Div[V Numeric](divisor V, description string) Transform[V] {
	return transformFunc[V]{kind: TransformDiv, fn: func(cur V) V { return cur / divisor }, description: description}
}

// Reduceable models a (base, reduced_by) pair used for HP/AP/stamina-style
// fields: Current is always clamped to [0, Base].
type Reduceable[V Numeric] struct {
	Base      V
	ReducedBy V
}

// Current returns Base-ReducedBy, clamped to zero at the low end.
func (r Reduceable[V]) Current() V {
	c := r.Base - r.ReducedBy
	var zero V
	if c < zero {
		return zero
	}
	return c
}

func clampReducedBy[V Numeric](r Reduceable[V]) Reduceable[V] {
	var zero V
	if r.ReducedBy < zero {
		r.ReducedBy = zero
	}
	if r.ReducedBy > r.Base {
		r.ReducedBy = r.Base
	}
	return r
}

// ReduceBy increases ReducedBy by amount, clamped so Current never goes
// negative: used for damage application.
func ReduceBy[V Numeric](amount V, description string) Transform[Reduceable[V]] {
	return transformFunc[Reduceable[V]]{
		kind: TransformReduceBy,
		fn: func(cur Reduceable[V]) Reduceable[V] {
			cur.ReducedBy += amount
			return clampReducedBy(cur)
		},
		description: description,
	}
}

// ReduceTo sets ReducedBy so Current equals amount, clamped to [0, Base].
func ReduceTo[V Numeric](amount V, description string) Transform[Reduceable[V]] {
	return transformFunc[Reduceable[V]]{
		kind: TransformReduceTo,
		fn: func(cur Reduceable[V]) Reduceable[V] {
			cur.ReducedBy = cur.Base - amount
			return clampReducedBy(cur)
		},
		description: description,
	}
}

// RecoverBy decreases ReducedBy by amount, clamped at zero: used for
// healing.
func RecoverBy[V Numeric](amount V, description string) Transform[Reduceable[V]] {
	return transformFunc[Reduceable[V]]{
		kind: TransformRecoverBy,
		fn: func(cur Reduceable[V]) Reduceable[V] {
			cur.ReducedBy -= amount
			return clampReducedBy(cur)
		},
		description: description,
	}
}

// IncreaseBy raises Base by amount, leaving ReducedBy (the absolute amount
// already lost) untouched: used for max-HP buffs.
func IncreaseBy[V Numeric](amount V, description string) Transform[Reduceable[V]] {
	return transformFunc[Reduceable[V]]{
		kind: TransformIncreaseBy,
		fn: func(cur Reduceable[V]) Reduceable[V] {
			cur.Base += amount
			return clampReducedBy(cur)
		},
		description: description,
	}
}

// Append adds v to the end of an ordered sequence field.
func Append[E any](v E, description string) Transform[[]E] {
	return transformFunc[[]E]{
		kind: TransformAppend,
		fn: func(cur []E) []E {
			return append(append([]E(nil), cur...), v)
		},
		description: description,
	}
}

// Remove deletes the first occurrence of v from an ordered sequence field.
func Remove[E comparable](v E, description string) Transform[[]E] {
	return transformFunc[[]E]{
		kind: TransformRemove,
		fn: func(cur []E) []E {
			out := make([]E, 0, len(cur))
			removed := false
			for _, e := range cur {
				if !removed && e == v {
					removed = true
					continue
				}
				out = append(out, e)
			}
			return out
		},
		description: description,
	}
}

// SetKeyTo inserts or overwrites key k with value v in a mapping field.
func SetKeyTo[K comparable, V any](k K, v V, description string) Transform[map[K]V] {
	return transformFunc[map[K]V]{
		kind: TransformSetKeyTo,
		fn: func(cur map[K]V) map[K]V {
			out := cloneMap(cur)
			out[k] = v
			return out
		},
		description: description,
	}
}

// RemoveKey deletes key k from a mapping field, a no-op if absent.
func RemoveKey[K comparable, V any](k K, description string) Transform[map[K]V] {
	return transformFunc[map[K]V]{
		kind: TransformRemoveKey,
		fn: func(cur map[K]V) map[K]V {
			out := cloneMap(cur)
			delete(out, k)
			return out
		},
		description: description,
	}
}

// AddToKey adds delta to the value stored at key k in a numeric-valued
// mapping field, treating an absent key as zero.
func AddToKey[K comparable, V Numeric](k K, delta V, description string) Transform[map[K]V] {
	return transformFunc[map[K]V]{
		kind: TransformAddToKey,
		fn: func(cur map[K]V) map[K]V {
			out := cloneMap(cur)
			out[k] += delta
			return out
		},
		description: description,
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Custom is an opaque, display-only transformation: it leaves the field
// untouched and exists purely to attach a human-readable description to a
// field log entry, for modifiers whose real effect is expressed directly in
// a hand-written Modifier[T].
func Custom[V any](description string) Transform[V] {
	return transformFunc[V]{kind: TransformCustom, fn: func(v V) V { return v }, description: description}
}

// FieldChange is one field-level description contributed by a modifier,
// consumed by field-log extraction (module I).
type FieldChange struct {
	Field       string
	Description string
	Kind        TransformKind
}

// FieldModifier is a Permanent or Limited modifier built from a Field
// descriptor and a Transform. Use Permanent or Limited to construct one.
type FieldModifier[T any, V any] struct {
	field       Field[T, V]
	transform   Transform[V]
	kind        ModifierKind
	activation  func(*View) bool
	description string
}

// Permanent builds a time-monotone FieldModifier.
func Permanent[T any, V any](field Field[T, V], transform Transform[V]) *FieldModifier[T, V] {
	return &FieldModifier[T, V]{field: field, transform: transform, kind: ModifierPermanent, description: transform.Describe()}
}

// Limited builds a FieldModifier active only while active returns true.
func Limited[T any, V any](field Field[T, V], transform Transform[V], active func(*View) bool) *FieldModifier[T, V] {
	return &FieldModifier[T, V]{field: field, transform: transform, kind: ModifierLimited, activation: active, description: transform.Describe()}
}

func (m *FieldModifier[T, V]) Classification() ModifierKind { return m.kind }
func (m *FieldModifier[T, V]) Activation() func(*View) bool { return m.activation }
func (m *FieldModifier[T, V]) Description() string          { return m.description }
func (m *FieldModifier[T, V]) Apply(current T, _ *View) T {
	return m.field.Set(current, m.transform.Apply(m.field.Get(current)))
}
func (m *FieldModifier[T, V]) FieldChanges() []FieldChange {
	return []FieldChange{{Field: m.field.Name, Description: m.description, Kind: m.transform.Kind()}}
}

// DynamicFieldModifier is a Dynamic modifier built from a Field descriptor
// and a function that may read the view (other entities, other component
// types) to decide the field's next value.
type DynamicFieldModifier[T any, V any] struct {
	field       Field[T, V]
	fn          func(current V, v *View) V
	description string
}

// NewDynamic builds a DynamicFieldModifier.
func NewDynamic[T any, V any](field Field[T, V], description string, fn func(current V, v *View) V) *DynamicFieldModifier[T, V] {
	return &DynamicFieldModifier[T, V]{field: field, fn: fn, description: description}
}

func (m *DynamicFieldModifier[T, V]) Classification() ModifierKind { return ModifierDynamic }
func (m *DynamicFieldModifier[T, V]) Activation() func(*View) bool { return nil }
func (m *DynamicFieldModifier[T, V]) Description() string          { return m.description }
func (m *DynamicFieldModifier[T, V]) Apply(current T, v *View) T {
	return m.field.Set(current, m.fn(m.field.Get(current), v))
}
func (m *DynamicFieldModifier[T, V]) FieldChanges() []FieldChange {
	return []FieldChange{{Field: m.field.Name, Description: m.description, Kind: TransformCustom}}
}
