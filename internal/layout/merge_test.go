package layout

import (
	"strings"
	"testing"

	"github.com/TableCraftLab/tablecraft/backend/internal/geometry"
)

func TestMergeTablesConservesCapacity(t *testing.T) {
	store := newTestStore(t)
	a := mustAddTable(t, store, 100, 100, ShapeRound)
	b := mustAddTable(t, store, 300, 100, ShapeRect)
	c := mustAddTable(t, store, 500, 100, ShapeSquare)

	merged, err := store.MergeTables([]string{a.ID, b.ID, c.ID})
	if err != nil {
		t.Fatalf("unexpected merge error: %v", err)
	}
	expected := a.Capacity + b.Capacity + c.Capacity
	if merged.Capacity != expected {
		t.Fatalf("expected merged capacity %d, got %d", expected, merged.Capacity)
	}
	if merged.Shape != ShapeRect {
		t.Fatalf("merged table must be rectangular, got %s", merged.Shape)
	}
	for _, label := range []string{a.Label, b.Label, c.Label} {
		if !strings.Contains(merged.Label, label) {
			t.Fatalf("merged label %q must contain %q", merged.Label, label)
		}
	}

	doc := store.Document()
	if len(doc.Tables) != 1 {
		t.Fatalf("sources must be removed, got %d tables", len(doc.Tables))
	}
	selection := store.Selection()
	if len(selection) != 1 || selection[0] != merged.ID {
		t.Fatalf("merged table must be selected, got %v", selection)
	}
}

func TestMergeTablesRequiresAtLeastTwo(t *testing.T) {
	store := newTestStore(t)
	a := mustAddTable(t, store, 100, 100, ShapeRound)

	if _, err := store.MergeTables([]string{a.ID}); err == nil {
		t.Fatalf("merging one table must fail")
	}
}

func TestCanMergeTablesRejectsLocked(t *testing.T) {
	store := newTestStore(t)
	a := mustAddTable(t, store, 100, 100, ShapeRound)
	b := mustAddTable(t, store, 300, 100, ShapeRound)

	if !store.CanMergeTables([]string{a.ID, b.ID}) {
		t.Fatalf("two unlocked tables must be mergeable")
	}

	locked := true
	if err := store.UpdateTable(b.ID, TablePatch{Locked: &locked}); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if store.CanMergeTables([]string{a.ID, b.ID}) {
		t.Fatalf("a locked table must block the merge")
	}
	if _, err := store.MergeTables([]string{a.ID, b.ID}); err == nil {
		t.Fatalf("merging a locked table must fail")
	}
}

func TestSplitTableDividesCapacity(t *testing.T) {
	store := newTestStore(t)
	a := mustAddTable(t, store, 100, 100, ShapeRound)
	b := mustAddTable(t, store, 300, 100, ShapeRect)
	c := mustAddTable(t, store, 500, 100, ShapeRound)

	merged, err := store.MergeTables([]string{a.ID, b.ID, c.ID})
	if err != nil {
		t.Fatalf("unexpected merge error: %v", err)
	}
	// capacity 14 -> N = max(2, 14/4) = 3 parts of capacity 4
	parts, err := store.SplitTable(merged.ID)
	if err != nil {
		t.Fatalf("unexpected split error: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	for _, part := range parts {
		if part.Capacity != 4 {
			t.Fatalf("expected part capacity 4, got %d", part.Capacity)
		}
		if part.Shape != ShapeRound {
			t.Fatalf("split parts must be round, got %s", part.Shape)
		}
	}

	// The split is lossy: it does not restore the original three tables.
	doc := store.Document()
	for _, table := range doc.Tables {
		if table.ID == a.ID || table.ID == b.ID || table.ID == c.ID {
			t.Fatalf("split must fabricate new tables, not restore originals")
		}
	}
	for i := 1; i < len(parts); i++ {
		if parts[i].X <= parts[i-1].X {
			t.Fatalf("parts must be placed left to right: %v then %v", parts[i-1].X, parts[i].X)
		}
	}
}

func TestSplitTableSmallCapacityYieldsTwoParts(t *testing.T) {
	store := newTestStore(t)
	table := mustAddTable(t, store, 100, 100, ShapeRound) // capacity 4

	parts, err := store.SplitTable(table.ID)
	if err != nil {
		t.Fatalf("unexpected split error: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected minimum of 2 parts, got %d", len(parts))
	}
	for _, part := range parts {
		if part.Capacity != 2 {
			t.Fatalf("expected part capacity 2, got %d", part.Capacity)
		}
	}
}

func TestAlignTablesCreatesSingleHistoryEntry(t *testing.T) {
	store := newTestStore(t)
	a := mustAddTable(t, store, 100, 100, ShapeRound)
	b := mustAddTable(t, store, 300, 240, ShapeRound)
	c := mustAddTable(t, store, 500, 380, ShapeRound)

	if err := store.AlignTables([]string{a.ID, b.ID, c.ID}, geometry.EdgeTop); err != nil {
		t.Fatalf("unexpected align error: %v", err)
	}
	for _, id := range []string{a.ID, b.ID, c.ID} {
		table, _ := store.Table(id)
		if table.Y != 100 {
			t.Fatalf("expected y=100 after top align, got %v", table.Y)
		}
	}

	// One undo reverts the whole batch.
	if !store.Undo() {
		t.Fatalf("expected undo available")
	}
	bAfter, _ := store.Table(b.ID)
	if bAfter.Y != 240 {
		t.Fatalf("undo must revert the entire batch, got y=%v", bAfter.Y)
	}
}

func TestDistributeTablesEvenlyKeepsEndpoints(t *testing.T) {
	store := newTestStore(t)
	a := mustAddTable(t, store, 0, 100, ShapeRound)
	b := mustAddTable(t, store, 90, 100, ShapeRound)
	c := mustAddTable(t, store, 520, 100, ShapeRound)

	if err := store.DistributeTablesEvenly([]string{a.ID, b.ID, c.ID}, geometry.AxisHorizontal); err != nil {
		t.Fatalf("unexpected distribute error: %v", err)
	}
	first, _ := store.Table(a.ID)
	last, _ := store.Table(c.ID)
	if first.X != 0 || last.X != 520 {
		t.Fatalf("endpoints must not move, got %v and %v", first.X, last.X)
	}
	mid, _ := store.Table(b.ID)
	// span 0..600 holds 240 of width, gaps of 180: interior starts at 260.
	if mid.X != 260 {
		t.Fatalf("expected interior table at x=260, got %v", mid.X)
	}
}
