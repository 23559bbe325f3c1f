package world

import "testing"

func TestArithmeticTransforms(t *testing.T) {
	cases := []struct {
		name string
		t    Transform[int]
		in   int
		want int
	}{
		{"SetTo", SetTo(7, ""), 3, 7},
		{"Add", Add(4, ""), 3, 7},
		{"Sub", Sub(2, ""), 7, 5},
		{"Mul", Mul(3, ""), 5, 15},
		{"Div", Div(3, ""), 15, 5},
	}
	for _, c := range cases {
		if got := c.t.Apply(c.in); got != c.want {
			t.Errorf("%s.Apply(%d) = %d, want %d", c.name, c.in, got, c.want)
		}
	}
}

func TestTransformKindStringAndCombinable(t *testing.T) {
	combinable := map[TransformKind]bool{
		TransformSetTo: true,
		TransformAdd:   true,
		TransformSub:   true,
		TransformMul:   false,
		TransformDiv:   false,
		TransformCustom: false,
	}
	for kind, want := range combinable {
		if got := kind.combinable(); got != want {
			t.Errorf("%v.combinable() = %v, want %v", kind, got, want)
		}
		if kind.String() == "" {
			t.Errorf("%v.String() returned empty", kind)
		}
	}
}

func TestReduceableCurrentClampsAtZero(t *testing.T) {
	r := Reduceable[int]{Base: 10, ReducedBy: 4}
	if got := r.Current(); got != 6 {
		t.Fatalf("Current() = %d, want 6", got)
	}

	over := Reduceable[int]{Base: 10, ReducedBy: 15}
	if got := over.Current(); got != 0 {
		t.Fatalf("over-reduced Current() = %d, want 0", got)
	}
}

func TestReduceByClampsAndRecoverByUndoes(t *testing.T) {
	hp := Reduceable[int]{Base: 10}

	dmg := ReduceBy(4, "hit")
	hp = dmg.Apply(hp)
	if hp.Current() != 6 {
		t.Fatalf("after 4 damage, current = %d, want 6", hp.Current())
	}

	lethal := ReduceBy(100, "overkill")
	hp = lethal.Apply(hp)
	if hp.Current() != 0 {
		t.Fatalf("overkill damage should clamp current at 0, got %d", hp.Current())
	}
	if hp.ReducedBy != hp.Base {
		t.Fatalf("ReducedBy should clamp at Base (%d), got %d", hp.Base, hp.ReducedBy)
	}

	heal := RecoverBy(3, "potion")
	hp = heal.Apply(hp)
	if hp.Current() != 3 {
		t.Fatalf("after healing 3 from 0, current = %d, want 3", hp.Current())
	}
}

func TestReduceToSetsCurrentExactly(t *testing.T) {
	hp := Reduceable[int]{Base: 10, ReducedBy: 8}
	set := ReduceTo(6, "set to 6")
	hp = set.Apply(hp)
	if hp.Current() != 6 {
		t.Fatalf("ReduceTo(6): current = %d, want 6", hp.Current())
	}
}

func TestIncreaseByRaisesBaseLeavingReducedByUntouched(t *testing.T) {
	hp := Reduceable[int]{Base: 10, ReducedBy: 4}
	buff := IncreaseBy(5, "vitality buff")
	hp = buff.Apply(hp)
	if hp.Base != 15 || hp.ReducedBy != 4 {
		t.Fatalf("after IncreaseBy(5): got %+v, want Base=15 ReducedBy=4", hp)
	}
	if hp.Current() != 11 {
		t.Fatalf("Current() after max-HP buff = %d, want 11", hp.Current())
	}
}

func TestAppendAndRemoveSequenceTransforms(t *testing.T) {
	seq := []int{1, 2, 3}
	seq = Append(4, "").Apply(seq)
	if len(seq) != 4 || seq[3] != 4 {
		t.Fatalf("after Append(4): %v", seq)
	}
	seq = Remove(2, "").Apply(seq)
	want := []int{1, 3, 4}
	if len(seq) != len(want) {
		t.Fatalf("after Remove(2): %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("after Remove(2): %v, want %v", seq, want)
		}
	}
}

func TestMapKeyTransforms(t *testing.T) {
	m := map[string]int{"a": 1}
	m = SetKeyTo("b", 2, "").Apply(m)
	if m["b"] != 2 {
		t.Fatalf("SetKeyTo did not insert: %v", m)
	}
	m = AddToKey("b", 3, "").Apply(m)
	if m["b"] != 5 {
		t.Fatalf("AddToKey did not accumulate: %v", m)
	}
	m = AddToKey("c", 7, "").Apply(m)
	if m["c"] != 7 {
		t.Fatalf("AddToKey on an absent key should treat it as zero: %v", m)
	}
	m = RemoveKey[string, int]("a", "").Apply(m)
	if _, ok := m["a"]; ok {
		t.Fatalf("RemoveKey did not delete: %v", m)
	}
}

func TestCustomTransformLeavesValueUntouched(t *testing.T) {
	c := Custom[int]("flavor text only")
	if got := c.Apply(42); got != 42 {
		t.Fatalf("Custom.Apply should be the identity, got %d", got)
	}
	if c.Kind() != TransformCustom {
		t.Fatalf("Custom.Kind() = %v, want TransformCustom", c.Kind())
	}
}

func TestFieldModifierAppliesThroughGetSet(t *testing.T) {
	fm := Permanent(statField(), Add(4, "+4"))
	if fm.Classification() != ModifierPermanent {
		t.Fatalf("Permanent() should classify as ModifierPermanent")
	}
	got := fm.Apply(statT{A: 1}, nil)
	if got.A != 5 {
		t.Fatalf("FieldModifier.Apply = %+v, want A=5", got)
	}
	changes := fm.FieldChanges()
	if len(changes) != 1 || changes[0].Field != "a" || changes[0].Kind != TransformAdd {
		t.Fatalf("FieldChanges() = %+v", changes)
	}
}

func TestLimitedFieldModifierCarriesActivation(t *testing.T) {
	active := func(v *View) bool { return true }
	fm := Limited(statField(), Add(1, ""), active)
	if fm.Classification() != ModifierLimited {
		t.Fatalf("Limited() should classify as ModifierLimited")
	}
	if fm.Activation() == nil {
		t.Fatalf("Limited() must carry its activation predicate")
	}
}

func TestDynamicFieldModifierReadsCurrentAndView(t *testing.T) {
	dm := NewDynamic(statField(), "double", func(cur int, v *View) int {
		return cur * 2
	})
	if dm.Classification() != ModifierDynamic {
		t.Fatalf("NewDynamic() should classify as ModifierDynamic")
	}
	got := dm.Apply(statT{A: 3}, nil)
	if got.A != 6 {
		t.Fatalf("DynamicFieldModifier.Apply = %+v, want A=6", got)
	}
}
