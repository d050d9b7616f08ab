package layout

import (
	"fmt"
	"strings"

	"github.com/TableCraftLab/tablecraft/backend/internal/geometry"
)

// ValidationResult lists every rule violation found in a document. Violations
// accumulate; validation never stops at the first failure.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// ValidateDocument checks a layout document against the structural rules:
// unique table ids, no overlapping footprints, every table inside the floor
// bounds, and no zoneless tables once zones exist.
func ValidateDocument(doc Document) ValidationResult {
	var errs []string

	seen := make(map[string]struct{}, len(doc.Tables))
	for _, table := range doc.Tables {
		if _, dup := seen[table.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate table id %s", table.ID))
			continue
		}
		seen[table.ID] = struct{}{}
	}

	tables := make(map[string]geometry.Rect, len(doc.Tables))
	for _, table := range doc.Tables {
		tables[table.ID] = table.Rect()
	}
	fixtures := make([]geometry.Rect, 0, len(doc.Fixtures))
	for _, fixture := range doc.Fixtures {
		fixtures = append(fixtures, fixture.Rect())
	}
	if overlapping := overlappingTableIDs(tables, fixtures); len(overlapping) > 0 {
		errs = append(errs, fmt.Sprintf("overlapping tables: %s", strings.Join(overlapping, ", ")))
	}

	for _, table := range doc.Tables {
		if !doc.FloorBounds.Contains(table.Rect()) {
			errs = append(errs, fmt.Sprintf("table %s is outside floor bounds", labelOrID(table)))
		}
	}

	if len(doc.Zones) > 0 {
		for _, table := range doc.Tables {
			if table.ZoneID == "" {
				errs = append(errs, fmt.Sprintf("table %s is not assigned to a zone", labelOrID(table)))
			}
		}
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// ValidateLayout validates the store's working document.
func (s *Store) ValidateLayout() ValidationResult {
	s.mu.Lock()
	doc := s.doc.Clone()
	s.mu.Unlock()
	return ValidateDocument(doc)
}

func labelOrID(table Table) string {
	if table.Label != "" {
		return table.Label
	}
	return table.ID
}
