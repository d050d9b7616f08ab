// Package layout implements the floor layout document model and the client
// state engine that edits it: table, zone, and fixture mutations, a bounded
// undo/redo history, geometric validation, and draft persistence against the
// activation API.
package layout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TableCraftLab/tablecraft/backend/internal/geometry"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidFloorID indicates that a floor identifier is empty or exceeds storage bounds.
	ErrInvalidFloorID = errors.New("layout: invalid floor id")
	// ErrInvalidTableID indicates that a table identifier is empty or exceeds storage bounds.
	ErrInvalidTableID = errors.New("layout: invalid table id")
)

// FloorID represents a validated floor identifier.
type FloorID string

// NewFloorID validates raw input and returns a FloorID.
func NewFloorID(rawInput string) (FloorID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidFloorID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidFloorID, maxIdentifierLength)
	}
	return FloorID(trimmed), nil
}

// String returns the underlying string identifier.
func (id FloorID) String() string {
	return string(id)
}

// Shape enumerates supported table footprints.
type Shape string

const (
	ShapeRound  Shape = "round"
	ShapeSquare Shape = "square"
	ShapeRect   Shape = "rect"
)

// ParseShape validates a raw shape value.
func ParseShape(value string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(value))) {
	case ShapeRound:
		return ShapeRound, nil
	case ShapeSquare:
		return ShapeSquare, nil
	case ShapeRect:
		return ShapeRect, nil
	default:
		return "", fmt.Errorf("layout: unknown shape %q", value)
	}
}

// TableStatus enumerates runtime occupancy states.
type TableStatus string

const (
	StatusFree     TableStatus = "FREE"
	StatusSeated   TableStatus = "SEATED"
	StatusDirty    TableStatus = "DIRTY"
	StatusReserved TableStatus = "RESERVED"
)

// Table is a single seating unit on a floor.
type Table struct {
	ID        string      `json:"id"`
	Label     string      `json:"label"`
	X         float64     `json:"x"`
	Y         float64     `json:"y"`
	Z         float64     `json:"z"`
	Width     float64     `json:"width"`
	Height    float64     `json:"height"`
	Rotation  int         `json:"rotation"`
	Shape     Shape       `json:"shape"`
	Capacity  int         `json:"capacity"`
	Status    TableStatus `json:"status"`
	ZoneID    string      `json:"zoneId,omitempty"`
	Active    bool        `json:"active"`
	Locked    bool        `json:"locked"`
	Tags      []string    `json:"tags,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Rect returns the table footprint used for overlap and bounds checks.
func (t Table) Rect() geometry.Rect {
	return geometry.Rect{X: t.X, Y: t.Y, W: t.Width, H: t.Height}
}

// Zone is a named spatial region grouping tables. Tables hold a weak
// reference to at most one zone.
type Zone struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Color      string  `json:"color"`
	TableLimit int     `json:"tableLimit,omitempty"`
	Active     bool    `json:"active"`
}

// Fixture is a non-seating spatial object such as a wall or a service
// station. Fixtures take part in overlap checks but carry no capacity.
type Fixture struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation int     `json:"rotation"`
}

// Rect returns the fixture footprint.
func (f Fixture) Rect() geometry.Rect {
	return geometry.Rect{X: f.X, Y: f.Y, W: f.Width, H: f.Height}
}

// Bounds describes the usable floor area, anchored at the origin.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether r lies fully inside the floor area.
func (b Bounds) Contains(r geometry.Rect) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.W <= b.Width && r.Y+r.H <= b.Height
}

// Document is the portable floor layout aggregate: everything the editor
// mutates plus the grid and bounds settings it mutates against.
type Document struct {
	Tables      []Table   `json:"tables"`
	Zones       []Zone    `json:"zones"`
	Fixtures    []Fixture `json:"fixtures"`
	GridSize    float64   `json:"gridSize"`
	FloorBounds Bounds    `json:"floorBounds"`
}

// Clone deep-copies the document.
func (d Document) Clone() Document {
	out := Document{
		Tables:      make([]Table, len(d.Tables)),
		Zones:       append([]Zone(nil), d.Zones...),
		Fixtures:    append([]Fixture(nil), d.Fixtures...),
		GridSize:    d.GridSize,
		FloorBounds: d.FloorBounds,
	}
	for i, table := range d.Tables {
		table.Tags = append([]string(nil), table.Tags...)
		out.Tables[i] = table
	}
	return out
}

// Stats are the derived aggregates recomputed after every mutation.
type Stats struct {
	TotalTables    int `json:"totalTables"`
	TotalCapacity  int `json:"totalCapacity"`
	AvailableSeats int `json:"availableSeats"`
}

func computeStats(tables []Table) Stats {
	stats := Stats{TotalTables: len(tables)}
	for _, table := range tables {
		stats.TotalCapacity += table.Capacity
		if table.Status == StatusFree {
			stats.AvailableSeats += table.Capacity
		}
	}
	return stats
}
