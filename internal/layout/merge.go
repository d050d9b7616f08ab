package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/TableCraftLab/tablecraft/backend/internal/geometry"
)

var (
	// ErrMergeNeedsTwo indicates that a merge was requested with fewer than
	// two tables.
	ErrMergeNeedsTwo = errors.New("layout: merge requires at least two tables")
	// ErrSplitCapacity indicates the table is too small to split.
	ErrSplitCapacity = errors.New("layout: table capacity too small to split")
)

// CanMergeTables reports whether the given tables can be merged: at least two
// must be named, all must exist, and none may be locked.
func (s *Store) CanMergeTables(ids []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) < 2 {
		return false
	}
	for _, id := range ids {
		table, err := s.findTable(&s.doc, id)
		if err != nil || table.Locked {
			return false
		}
	}
	return true
}

// MergeTables replaces the named tables with one synthetic rectangular table
// centered at the centroid of their centers. Capacity is the sum of the
// source capacities and the label concatenates the source labels. The merged
// table becomes the selection.
func (s *Store) MergeTables(ids []string) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) < 2 {
		return Table{}, ErrMergeNeedsTwo
	}

	newID, err := s.idProvider.NewID()
	if err != nil {
		return Table{}, err
	}

	var merged Table
	err = s.mutate("merge_tables", func(doc *Document) error {
		sources := make([]Table, 0, len(ids))
		for _, id := range ids {
			table, err := s.findTable(doc, id)
			if err != nil {
				return err
			}
			if table.Locked {
				return fmt.Errorf("%w: %s", ErrTableLocked, id)
			}
			sources = append(sources, *table)
		}

		var centerX, centerY float64
		capacity := 0
		labels := make([]string, 0, len(sources))
		maxWidth, maxHeight := 0.0, 0.0
		for _, src := range sources {
			centerX += src.X + src.Width/2
			centerY += src.Y + src.Height/2
			capacity += src.Capacity
			labels = append(labels, src.Label)
			maxWidth = max(maxWidth, src.Width)
			maxHeight = max(maxHeight, src.Height)
		}
		centerX /= float64(len(sources))
		centerY /= float64(len(sources))

		width := maxWidth * 2
		height := maxHeight
		now := s.clock().UTC()
		merged = Table{
			ID:        newID,
			Label:     strings.Join(labels, "+"),
			X:         s.snap(centerX - width/2),
			Y:         s.snap(centerY - height/2),
			Width:     width,
			Height:    height,
			Shape:     ShapeRect,
			Capacity:  capacity,
			Status:    StatusFree,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}

		remove := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			remove[id] = struct{}{}
		}
		kept := doc.Tables[:0]
		for _, table := range doc.Tables {
			if _, drop := remove[table.ID]; !drop {
				kept = append(kept, table)
			}
		}
		doc.Tables = append(kept, merged)
		return nil
	})
	if err != nil {
		return Table{}, err
	}

	s.selection = map[string]struct{}{merged.ID: {}}
	return merged, nil
}

// SplitTable divides a table into new round tables. The split is lossy by
// design: pre-merge geometry is never retained, so the current capacity is
// divided across N = max(2, capacity/4) fabricated tables of equal capacity,
// placed left to right from the source table's origin.
func (s *Store) SplitTable(id string) ([]Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parts []Table
	err := s.mutate("split_table", func(doc *Document) error {
		source, err := s.findTable(doc, id)
		if err != nil {
			return err
		}
		if source.Locked {
			return fmt.Errorf("%w: %s", ErrTableLocked, id)
		}
		count := max(2, source.Capacity/4)
		capacityEach := source.Capacity / count
		if capacityEach < 1 {
			return fmt.Errorf("%w: capacity %d", ErrSplitCapacity, source.Capacity)
		}

		origin := *source
		kept := doc.Tables[:0]
		for _, table := range doc.Tables {
			if table.ID != id {
				kept = append(kept, table)
			}
		}
		doc.Tables = kept

		now := s.clock().UTC()
		parts = make([]Table, 0, count)
		for i := 0; i < count; i++ {
			partID, err := s.idProvider.NewID()
			if err != nil {
				return err
			}
			width, height := defaultSize(ShapeRound)
			part := Table{
				ID:        partID,
				Label:     nextLabel(doc.Tables),
				X:         s.snap(origin.X + float64(i)*(width+doc.GridSize)),
				Y:         s.snap(origin.Y),
				Width:     width,
				Height:    height,
				Shape:     ShapeRound,
				Capacity:  capacityEach,
				Status:    StatusFree,
				ZoneID:    origin.ZoneID,
				Active:    true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			doc.Tables = append(doc.Tables, part)
			parts = append(parts, part)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parts, nil
}

// AlignTables repositions the named tables so the chosen edge is shared.
// The batch records a single history entry.
func (s *Store) AlignTables(ids []string, edge geometry.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate("align_tables", func(doc *Document) error {
		return s.repositionGroup(doc, ids, func(rects []geometry.Rect) []geometry.Rect {
			return geometry.Align(rects, edge)
		})
	})
}

// DistributeTablesEvenly spaces the named tables equally along the axis.
// The batch records a single history entry.
func (s *Store) DistributeTablesEvenly(ids []string, axis geometry.Axis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate("distribute_tables", func(doc *Document) error {
		return s.repositionGroup(doc, ids, func(rects []geometry.Rect) []geometry.Rect {
			return geometry.Distribute(rects, axis)
		})
	})
}

func (s *Store) repositionGroup(doc *Document, ids []string, transform func([]geometry.Rect) []geometry.Rect) error {
	targets := make([]*Table, 0, len(ids))
	rects := make([]geometry.Rect, 0, len(ids))
	for _, id := range ids {
		table, err := s.findTable(doc, id)
		if err != nil {
			return err
		}
		targets = append(targets, table)
		rects = append(rects, table.Rect())
	}

	moved := transform(rects)
	now := s.clock().UTC()
	for i, table := range targets {
		table.X = moved[i].X
		table.Y = moved[i].Y
		table.UpdatedAt = now
	}
	return nil
}
