package layout

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExportMetadata annotates an exported document.
type ExportMetadata struct {
	Version       int64     `json:"version"`
	ExportedAt    time.Time `json:"exportedAt"`
	TotalTables   int       `json:"totalTables"`
	TotalCapacity int       `json:"totalCapacity"`
}

// ExportDocument is the portable serialization of a floor layout.
type ExportDocument struct {
	Tables      []Table        `json:"tables"`
	Zones       []Zone         `json:"zones"`
	Fixtures    []Fixture      `json:"fixtures"`
	GridSize    float64        `json:"gridSize"`
	FloorBounds Bounds         `json:"floorBounds"`
	Metadata    ExportMetadata `json:"metadata"`
}

// Export serializes the working document for download.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	doc := s.doc.Clone()
	version := s.version
	stats := s.stats
	now := s.clock().UTC()
	s.mu.Unlock()

	out := ExportDocument{
		Tables:      doc.Tables,
		Zones:       doc.Zones,
		Fixtures:    doc.Fixtures,
		GridSize:    doc.GridSize,
		FloorBounds: doc.FloorBounds,
		Metadata: ExportMetadata{
			Version:       version,
			ExportedAt:    now,
			TotalTables:   stats.TotalTables,
			TotalCapacity: stats.TotalCapacity,
		},
	}
	return json.MarshalIndent(out, "", "  ")
}

// Import replaces the working draft wholesale with the exported document and
// re-runs the overlap scan. The replacement is recorded as a single undoable
// command.
func (s *Store) Import(data []byte) error {
	var in ExportDocument
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("layout: malformed import document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate("import_layout", func(doc *Document) error {
		doc.Tables = in.Tables
		doc.Zones = in.Zones
		doc.Fixtures = in.Fixtures
		if in.GridSize > 0 {
			doc.GridSize = in.GridSize
		}
		if in.FloorBounds.Width > 0 && in.FloorBounds.Height > 0 {
			doc.FloorBounds = in.FloorBounds
		}
		return nil
	})
}
