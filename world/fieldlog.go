package world

// FieldLogEntry is one squashed, human-describable field change contributed
// by an active modifier, in the order its modifiers were applied.
type FieldLogEntry struct {
	Field       string
	Description string
	Kind        TransformKind
	Count       int
}

// FieldLog is the result of module I's extraction: the base value plus the
// ordered, squashed list of field-level descriptions of every modifier
// active on entity at the view's clock.
type FieldLog[T any] struct {
	Base    T
	Entries []FieldLogEntry
}

func (c *componentType[T]) fieldChangesFor(e Entity, cTarget Clock, v *View) []FieldChange {
	var out []FieldChange
	for _, m := range c.modifiers.constant {
		if m.entity != e || m.submittedAt > cTarget {
			continue
		}
		if m.disabledAt != MaxClock && m.disabledAt <= cTarget {
			continue
		}
		if m.activation != nil && !m.activation(v) {
			continue
		}
		out = append(out, fieldChangesOf(m))
	}
	for _, m := range c.modifiers.dynamic {
		if m.entity != e || m.submittedAt > cTarget {
			continue
		}
		if m.disabledAt != MaxClock && m.disabledAt <= cTarget {
			continue
		}
		out = append(out, fieldChangesOf(m))
	}
	return out
}

func (c *componentType[T]) fieldChangesForWhere(e Entity, cTarget Clock, v *View, include func(ModifierKind) bool) []FieldChange {
	var out []FieldChange
	for _, m := range c.modifiers.constant {
		if m.entity != e || m.submittedAt > cTarget || !include(m.modifier.Classification()) {
			continue
		}
		if m.disabledAt != MaxClock && m.disabledAt <= cTarget {
			continue
		}
		if m.activation != nil && !m.activation(v) {
			continue
		}
		out = append(out, fieldChangesOf(m))
	}
	for _, m := range c.modifiers.dynamic {
		if m.entity != e || m.submittedAt > cTarget || !include(m.modifier.Classification()) {
			continue
		}
		if m.disabledAt != MaxClock && m.disabledAt <= cTarget {
			continue
		}
		out = append(out, fieldChangesOf(m))
	}
	return out
}

func fieldChangesOf[T any](m modifierLogEntry[T]) FieldChange {
	changes := m.modifier.FieldChanges()
	if len(changes) == 0 {
		return FieldChange{Description: m.description, Kind: TransformCustom}
	}
	fc := changes[0]
	if fc.Description == "" {
		fc.Description = m.description
	}
	return fc
}

// FieldLogsFor produces entity's base value of type T plus the squashed,
// ordered list of field-level descriptions of every modifier active on it
// at v's clock, for UI breakdowns ("+3 melee accuracy: careful aim").
func FieldLogsFor[T any](v *View, s *Store, e Entity) FieldLog[T] {
	entry := componentEntry[T](s, "FieldLogsFor")
	base, _ := entry.base.get(e)
	raw := entry.fieldChangesFor(e, v.clock, v)
	return FieldLog[T]{Base: base, Entries: squashFieldChanges(raw)}
}

// FieldLogsWhere is FieldLogsFor restricted to modifiers whose
// classification satisfies include, letting a caller build separate
// "permanent only" or "limited/dynamic only" breakdowns instead of the full
// mix FieldLogsFor returns.
func FieldLogsWhere[T any](v *View, s *Store, e Entity, include func(ModifierKind) bool) FieldLog[T] {
	entry := componentEntry[T](s, "FieldLogsWhere")
	base, _ := entry.base.get(e)
	raw := entry.fieldChangesForWhere(e, v.clock, v, include)
	return FieldLog[T]{Base: base, Entries: squashFieldChanges(raw)}
}

// squashFieldChanges folds adjacent entries whose (field, description,
// transformation-kind) match and whose kind is combinable (SetTo, Add,
// Sub): SetTo collapses to the last value (Count stays 1, it is display
// only); Add/Sub fold their Count so the UI can show "+12 (x3)" instead of
// three separate "+4" lines.
func squashFieldChanges(changes []FieldChange) []FieldLogEntry {
	var out []FieldLogEntry
	for _, fc := range changes {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if fc.Kind.combinable() && last.Field == fc.Field && last.Description == fc.Description && last.Kind == fc.Kind {
				if fc.Kind != TransformSetTo {
					last.Count++
				}
				continue
			}
		}
		out = append(out, FieldLogEntry{Field: fc.Field, Description: fc.Description, Kind: fc.Kind, Count: 1})
	}
	return out
}
