package observable

import "testing"

func TestText_InsertRemove(t *testing.T) {
	txt := NewText("hello")
	var changes []TextChange
	txt.Changed().Connect(func(c TextChange) { changes = append(changes, c) })

	txt.Insert(5, " world")
	if txt.Text() != "hello world" {
		t.Errorf("text = %q, want %q", txt.Text(), "hello world")
	}

	removed := txt.Remove(0, 6)
	if removed != "hello " {
		t.Errorf("removed = %q, want %q", removed, "hello ")
	}
	if txt.Text() != "world" {
		t.Errorf("text = %q, want %q", txt.Text(), "world")
	}

	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(changes))
	}
	if changes[0].Kind != TextInsert || changes[0].Start != 5 || changes[0].End != 11 || changes[0].Value != " world" {
		t.Errorf("unexpected insert change: %+v", changes[0])
	}
	if changes[1].Kind != TextRemove || changes[1].Start != 0 || changes[1].End != 6 || changes[1].Value != "hello " {
		t.Errorf("unexpected remove change: %+v", changes[1])
	}
}

func TestText_SetTextEqualIsNoop(t *testing.T) {
	txt := NewText("same")
	var changes []TextChange
	txt.Changed().Connect(func(c TextChange) { changes = append(changes, c) })

	txt.SetText("same")
	if len(changes) != 0 {
		t.Errorf("equal SetText emitted %d changes, want 0", len(changes))
	}

	txt.SetText("different")
	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(changes))
	}
	if changes[0].Kind != TextSet || changes[0].End != 4 || changes[0].Value != "different" {
		t.Errorf("unexpected set change: %+v", changes[0])
	}
}

func TestText_EmptyOperationsAreNoops(t *testing.T) {
	txt := NewText("abc")
	var n int
	txt.Changed().Connect(func(TextChange) { n++ })

	txt.Insert(1, "")
	txt.Remove(2, 2)
	if n != 0 {
		t.Errorf("empty ops emitted %d changes, want 0", n)
	}
}
