package layout

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/TableCraftLab/tablecraft/backend/internal/geometry"
)

const (
	minTableSize    = 40
	duplicateOffset = 50
)

var labelPattern = regexp.MustCompile(`^T(\d+)$`)

// defaultCapacity returns the seat count assigned when the caller does not
// override it: six for rectangular tables, four otherwise.
func defaultCapacity(shape Shape) int {
	if shape == ShapeRect {
		return 6
	}
	return 4
}

func defaultSize(shape Shape) (width, height float64) {
	if shape == ShapeRect {
		return 120, 80
	}
	return 80, 80
}

// nextLabel scans existing labels of the form T<n> and returns T<max+1>.
// Gaps in the numbering are ignored.
func nextLabel(tables []Table) string {
	highest := 0
	for _, table := range tables {
		match := labelPattern.FindStringSubmatch(table.Label)
		if match == nil {
			continue
		}
		if n, err := strconv.Atoi(match[1]); err == nil && n > highest {
			highest = n
		}
	}
	return "T" + strconv.Itoa(highest+1)
}

func (s *Store) snap(value float64) float64 {
	if !s.snapEnabled {
		return value
	}
	return geometry.Snap(value, s.doc.GridSize)
}

// AddTable inserts a new table at the snapped position. Capacity zero selects
// the shape default; zoneID may be empty.
func (s *Store) AddTable(x, y float64, shape Shape, capacity int, zoneID string) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.idProvider.NewID()
	if err != nil {
		return Table{}, err
	}
	if capacity <= 0 {
		capacity = defaultCapacity(shape)
	}
	width, height := defaultSize(shape)
	now := s.clock().UTC()

	table := Table{
		ID:        id,
		Label:     nextLabel(s.doc.Tables),
		X:         s.snap(x),
		Y:         s.snap(y),
		Width:     width,
		Height:    height,
		Shape:     shape,
		Capacity:  capacity,
		Status:    StatusFree,
		ZoneID:    zoneID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.mutate("add_table", func(doc *Document) error {
		doc.Tables = append(doc.Tables, table)
		return nil
	})
	if err != nil {
		return Table{}, err
	}
	return table, nil
}

// TablePatch carries the optional fields of UpdateTable. Nil fields are left
// unchanged.
type TablePatch struct {
	Label    *string
	Capacity *int
	Shape    *Shape
	Status   *TableStatus
	ZoneID   *string
	Active   *bool
	Locked   *bool
	Tags     *[]string
	Z        *float64
}

// UpdateTable applies a partial mutation to one table.
func (s *Store) UpdateTable(id string, patch TablePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate("update_table", func(doc *Document) error {
		table, err := s.findTable(doc, id)
		if err != nil {
			return err
		}
		if patch.Label != nil {
			table.Label = *patch.Label
		}
		if patch.Capacity != nil {
			if *patch.Capacity < 1 {
				return fmt.Errorf("layout: capacity must be at least 1, got %d", *patch.Capacity)
			}
			table.Capacity = *patch.Capacity
		}
		if patch.Shape != nil {
			table.Shape = *patch.Shape
		}
		if patch.Status != nil {
			table.Status = *patch.Status
		}
		if patch.ZoneID != nil {
			table.ZoneID = *patch.ZoneID
		}
		if patch.Active != nil {
			table.Active = *patch.Active
		}
		if patch.Locked != nil {
			table.Locked = *patch.Locked
		}
		if patch.Tags != nil {
			table.Tags = append([]string(nil), (*patch.Tags)...)
		}
		if patch.Z != nil {
			table.Z = *patch.Z
		}
		table.UpdatedAt = s.clock().UTC()
		return nil
	})
}

// MoveTable repositions a table, re-snapping and clamping to non-negative
// coordinates.
func (s *Store) MoveTable(id string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate("move_table", func(doc *Document) error {
		table, err := s.findTable(doc, id)
		if err != nil {
			return err
		}
		table.X = max(0, s.snap(x))
		table.Y = max(0, s.snap(y))
		table.UpdatedAt = s.clock().UTC()
		return nil
	})
}

// RotateTable sets the table rotation, normalized to 0-359 degrees.
func (s *Store) RotateTable(id string, degrees int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate("rotate_table", func(doc *Document) error {
		table, err := s.findTable(doc, id)
		if err != nil {
			return err
		}
		normalized := degrees % 360
		if normalized < 0 {
			normalized += 360
		}
		table.Rotation = normalized
		table.UpdatedAt = s.clock().UTC()
		return nil
	})
}

// ResizeTable sets the table footprint, enforcing a 40x40 minimum.
func (s *Store) ResizeTable(id string, width, height float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate("resize_table", func(doc *Document) error {
		table, err := s.findTable(doc, id)
		if err != nil {
			return err
		}
		table.Width = max(minTableSize, s.snap(width))
		table.Height = max(minTableSize, s.snap(height))
		table.UpdatedAt = s.clock().UTC()
		return nil
	})
}

// DeleteTable removes a table. Deletion is immediate; the id also leaves the
// current selection.
func (s *Store) DeleteTable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate("delete_table", func(doc *Document) error {
		for i, table := range doc.Tables {
			if table.ID == id {
				doc.Tables = append(doc.Tables[:i], doc.Tables[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrTableNotFound, id)
	})
}

// DuplicateTable clones a table with a fresh id and label, offset by a fixed
// (+50,+50).
func (s *Store) DuplicateTable(id string) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newID, err := s.idProvider.NewID()
	if err != nil {
		return Table{}, err
	}

	var clone Table
	err = s.mutate("duplicate_table", func(doc *Document) error {
		source, err := s.findTable(doc, id)
		if err != nil {
			return err
		}
		now := s.clock().UTC()
		clone = *source
		clone.ID = newID
		clone.Label = nextLabel(doc.Tables)
		clone.X = source.X + duplicateOffset
		clone.Y = source.Y + duplicateOffset
		clone.Locked = false
		clone.Status = StatusFree
		clone.Tags = append([]string(nil), source.Tags...)
		clone.CreatedAt = now
		clone.UpdatedAt = now
		doc.Tables = append(doc.Tables, clone)
		return nil
	})
	if err != nil {
		return Table{}, err
	}
	return clone, nil
}

// Table returns a copy of the table with the given id.
func (s *Store) Table(id string) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.findTable(&s.doc, id)
	if err != nil {
		return Table{}, err
	}
	out := *table
	out.Tags = append([]string(nil), table.Tags...)
	return out, nil
}
