package layout

// Snapshot is an immutable copy of the editable triple. Grid and bounds
// settings are not part of history.
type Snapshot struct {
	Tables   []Table
	Zones    []Zone
	Fixtures []Fixture
}

func snapshotOf(doc Document) Snapshot {
	clone := doc.Clone()
	return Snapshot{Tables: clone.Tables, Zones: clone.Zones, Fixtures: clone.Fixtures}
}

// Command records one completed mutation as the state before and after it
// ran. Mutations that should not be undoable, selection changes in
// particular, simply never produce a command.
type Command struct {
	Name   string
	Before Snapshot
	After  Snapshot
}

// History is a bounded command stack with a cursor. Pushing from a non-tip
// position discards the redo tail.
type History struct {
	entries []Command
	cursor  int
	limit   int
}

// NewHistory constructs a history bounded to limit commands.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 1
	}
	return &History{limit: limit}
}

// Push records a command at the cursor, clearing any redo entries beyond it.
// The oldest command is dropped once the limit is reached.
func (h *History) Push(cmd Command) {
	h.entries = append(h.entries[:h.cursor], cmd)
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
	h.cursor = len(h.entries)
}

// Undo steps the cursor back and returns the state before the undone command.
func (h *History) Undo() (Snapshot, bool) {
	if h.cursor == 0 {
		return Snapshot{}, false
	}
	h.cursor--
	return h.entries[h.cursor].Before, true
}

// Redo re-applies the next command and returns the state after it.
func (h *History) Redo() (Snapshot, bool) {
	if h.cursor >= len(h.entries) {
		return Snapshot{}, false
	}
	entry := h.entries[h.cursor]
	h.cursor++
	return entry.After, true
}

// CanUndo reports whether an undo step is available.
func (h *History) CanUndo() bool {
	return h.cursor > 0
}

// CanRedo reports whether a redo step is available.
func (h *History) CanRedo() bool {
	return h.cursor < len(h.entries)
}

// Len returns the number of recorded commands.
func (h *History) Len() int {
	return len(h.entries)
}
