package layout

import "testing"

func entry(label string) Command {
	return Command{
		Name:   "test",
		Before: Snapshot{Tables: []Table{{ID: label + "-before"}}},
		After:  Snapshot{Tables: []Table{{ID: label + "-after"}}},
	}
}

func TestHistoryUndoReturnsStateBeforeCommand(t *testing.T) {
	history := NewHistory(10)
	history.Push(entry("a"))
	history.Push(entry("b"))

	snap, ok := history.Undo()
	if !ok {
		t.Fatalf("expected undo to be available")
	}
	if snap.Tables[0].ID != "b-before" {
		t.Fatalf("expected state before command b, got %s", snap.Tables[0].ID)
	}

	snap, ok = history.Undo()
	if !ok || snap.Tables[0].ID != "a-before" {
		t.Fatalf("expected state before command a, got %+v", snap)
	}

	if _, ok := history.Undo(); ok {
		t.Fatalf("undo past the beginning must fail")
	}
}

func TestHistoryRedoReturnsStateAfterCommand(t *testing.T) {
	history := NewHistory(10)
	history.Push(entry("a"))
	history.Undo()

	snap, ok := history.Redo()
	if !ok || snap.Tables[0].ID != "a-after" {
		t.Fatalf("expected state after command a, got %+v", snap)
	}
	if _, ok := history.Redo(); ok {
		t.Fatalf("redo past the tip must fail")
	}
}

func TestHistoryPushFromNonTipClearsRedo(t *testing.T) {
	history := NewHistory(10)
	history.Push(entry("a"))
	history.Push(entry("b"))
	history.Undo()

	if !history.CanRedo() {
		t.Fatalf("expected redo to be available after undo")
	}
	history.Push(entry("c"))
	if history.CanRedo() {
		t.Fatalf("pushing from a non-tip position must clear the redo tail")
	}
	if history.Len() != 2 {
		t.Fatalf("expected 2 entries after truncation, got %d", history.Len())
	}
}

func TestHistoryDropsOldestBeyondLimit(t *testing.T) {
	history := NewHistory(3)
	for _, label := range []string{"a", "b", "c", "d"} {
		history.Push(entry(label))
	}

	if history.Len() != 3 {
		t.Fatalf("expected history bounded to 3, got %d", history.Len())
	}

	// Walk back to the oldest retained command.
	var last Snapshot
	for history.CanUndo() {
		last, _ = history.Undo()
	}
	if last.Tables[0].ID != "b-before" {
		t.Fatalf("expected oldest entry to be b, got %s", last.Tables[0].ID)
	}
}
