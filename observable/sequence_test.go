package observable

import (
	"reflect"
	"testing"
)

// collectChanges records every change a sequence emits.
func collectChanges[T any](s Sequence[T]) *[]SequenceChange[T] {
	var changes []SequenceChange[T]
	s.Changed().Connect(func(c SequenceChange[T]) {
		changes = append(changes, c)
	})
	return &changes
}

func contents[T any](s Sequence[T]) []T {
	out := make([]T, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		out = append(out, s.At(i))
	}
	return out
}

func TestVector_PushAndRemove(t *testing.T) {
	v := NewVector[string]()
	changes := collectChanges[string](v)

	v.PushBack("a")
	v.PushBack("b")
	v.RemoveAt(0)

	if got := contents[string](v); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("contents = %v, want [b]", got)
	}
	if len(*changes) != 3 {
		t.Fatalf("got %d changes, want 3", len(*changes))
	}
	kinds := []SequenceChangeKind{(*changes)[0].Kind, (*changes)[1].Kind, (*changes)[2].Kind}
	want := []SequenceChangeKind{SequenceAdd, SequenceAdd, SequenceRemove}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}
	last := (*changes)[2]
	if !reflect.DeepEqual(last.OldValues, []string{"a"}) {
		t.Errorf("remove oldValues = %v, want [a]", last.OldValues)
	}
	if last.OldIndex != 0 || last.NewIndex != -1 {
		t.Errorf("remove indices = (%d, %d), want (0, -1)", last.OldIndex, last.NewIndex)
	}
}

func TestVector_OneChangePerCall(t *testing.T) {
	v := NewVector[int]()
	changes := collectChanges[int](v)

	v.PushAll([]int{1, 2, 3})
	if len(*changes) != 1 {
		t.Fatalf("PushAll emitted %d changes, want 1", len(*changes))
	}
	if got := (*changes)[0].NewValues; !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("newValues = %v, want [1 2 3]", got)
	}

	v.InsertAll(1, []int{7, 8})
	if len(*changes) != 2 {
		t.Fatalf("InsertAll emitted %d more changes, want 1", len(*changes)-1)
	}
	if got := contents[int](v); !reflect.DeepEqual(got, []int{1, 7, 8, 2, 3}) {
		t.Errorf("contents = %v", got)
	}

	v.RemoveRange(1, 3)
	if len(*changes) != 3 {
		t.Fatalf("RemoveRange emitted %d more changes, want 1", len(*changes)-2)
	}
	if got := (*changes)[2].OldValues; !reflect.DeepEqual(got, []int{7, 8}) {
		t.Errorf("removed oldValues = %v, want [7 8]", got)
	}
}

func TestVector_SetAndAccessors(t *testing.T) {
	v := NewVector("x", "y", "z")
	changes := collectChanges[string](v)

	if v.Front() != "x" || v.Back() != "z" || v.Len() != 3 || v.IsEmpty() {
		t.Fatalf("unexpected accessors: front=%q back=%q len=%d", v.Front(), v.Back(), v.Len())
	}

	v.Set(1, "Y")
	if v.At(1) != "Y" {
		t.Errorf("At(1) = %q, want Y", v.At(1))
	}
	c := (*changes)[0]
	if c.Kind != SequenceSet || !reflect.DeepEqual(c.OldValues, []string{"y"}) || !reflect.DeepEqual(c.NewValues, []string{"Y"}) {
		t.Errorf("unexpected set change: %+v", c)
	}
}

func TestVector_MoveIsSingleEvent(t *testing.T) {
	v := NewVector(1, 2, 3, 4)
	changes := collectChanges[int](v)

	v.Move(0, 2)
	if got := contents[int](v); !reflect.DeepEqual(got, []int{2, 3, 1, 4}) {
		t.Errorf("contents = %v, want [2 3 1 4]", got)
	}
	if len(*changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(*changes))
	}
	c := (*changes)[0]
	if c.Kind != SequenceMove || c.OldIndex != 0 || c.NewIndex != 2 {
		t.Errorf("unexpected move change: %+v", c)
	}
	if !reflect.DeepEqual(c.OldValues, []int{1}) || !reflect.DeepEqual(c.NewValues, []int{1}) {
		t.Errorf("move values = %v/%v, want [1]/[1]", c.OldValues, c.NewValues)
	}
}

func TestVector_RemoveByValue(t *testing.T) {
	v := NewVector("a", "b", "a")
	changes := collectChanges[string](v)

	if i := v.Remove("b"); i != 1 {
		t.Errorf("Remove(b) = %d, want 1", i)
	}
	if i := v.Remove("a"); i != 0 {
		t.Errorf("Remove(a) = %d, want 0", i)
	}
	if i := v.Remove("zzz"); i != -1 {
		t.Errorf("Remove(zzz) = %d, want -1", i)
	}
	// Absent value emits nothing.
	if len(*changes) != 2 {
		t.Errorf("got %d changes, want 2", len(*changes))
	}
}

func TestVector_Clear(t *testing.T) {
	v := NewVector(1, 2, 3)
	changes := collectChanges[int](v)

	v.Clear()
	if !v.IsEmpty() {
		t.Error("vector not empty after Clear")
	}
	if len(*changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(*changes))
	}
	c := (*changes)[0]
	if c.Kind != SequenceRemove || !reflect.DeepEqual(c.OldValues, []int{1, 2, 3}) {
		t.Errorf("unexpected clear change: %+v", c)
	}

	// Clearing an empty vector emits nothing.
	v.Clear()
	if len(*changes) != 1 {
		t.Errorf("empty Clear emitted a change")
	}
}

func TestVector_PopBack(t *testing.T) {
	v := NewVector(1, 2)
	if got := v.PopBack(); got != 2 {
		t.Errorf("PopBack = %d, want 2", got)
	}
	if v.Len() != 1 {
		t.Errorf("len = %d, want 1", v.Len())
	}
}

func TestVector_DisposeStopsEvents(t *testing.T) {
	v := NewVector[int]()
	changes := collectChanges[int](v)
	v.PushBack(1)

	v.Dispose()
	if !v.IsDisposed() {
		t.Error("IsDisposed = false after Dispose")
	}
	if len(*changes) != 1 {
		t.Errorf("got %d changes, want 1", len(*changes))
	}
}

func TestSignal_Disconnect(t *testing.T) {
	var s Signal[int]
	var got []int
	off := s.Connect(func(v int) { got = append(got, v) })
	s.Emit(1)
	off()
	off() // double disconnect is harmless
	s.Emit(2)
	if !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("got %v, want [1]", got)
	}
}
