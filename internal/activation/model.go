// Package activation implements the server-side draft persistence and
// activation workflow. It is the single authority that promotes a floor's
// draft layout to the live layout, guarded by an optimistic version check.
package activation

import (
	"errors"
	"fmt"
)

// FloorLayoutRow is the persisted layout state for one floor: at most one
// draft and one active snapshot, arbitrated by a single integer version.
type FloorLayoutRow struct {
	FloorID            string `gorm:"column:floor_id;primaryKey;size:190;not null"`
	DraftJSON          string `gorm:"column:draft_json;type:text;not null;default:''"`
	ActiveJSON         string `gorm:"column:active_json;type:text;not null;default:''"`
	Version            int64  `gorm:"column:version;not null;default:0"`
	UpdatedAtSeconds   int64  `gorm:"column:updated_at_s;not null"`
	ActivatedAtSeconds int64  `gorm:"column:activated_at_s;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (FloorLayoutRow) TableName() string {
	return "floor_layouts"
}

// LayoutArchive is an append-only snapshot of a superseded active layout,
// written inside the activation transaction.
type LayoutArchive struct {
	ArchiveID         string `gorm:"column:archive_id;primaryKey;size:190;not null"`
	FloorID           string `gorm:"column:floor_id;not null;index:idx_layout_archives_floor,priority:1"`
	Version           int64  `gorm:"column:version;not null"`
	LayoutJSON        string `gorm:"column:layout_json;type:text;not null"`
	ArchivedAtSeconds int64  `gorm:"column:archived_at_s;not null;index:idx_layout_archives_floor,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (LayoutArchive) TableName() string {
	return "layout_archives"
}

var (
	// ErrLayoutNotFound indicates that no layout row exists for the floor.
	ErrLayoutNotFound = errors.New("activation: layout not found")
	// ErrNoDraft indicates that the floor has no draft attached.
	ErrNoDraft = errors.New("activation: no draft to activate")
)

// StaleVersionError rejects a request whose expected version no longer
// matches the persisted row. The caller must re-fetch before retrying.
type StaleVersionError struct {
	CurrentVersion int64
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("activation: stale version, current is %d", e.CurrentVersion)
}

// InvalidLayoutError rejects a draft that fails server-side revalidation.
// Problems name the offending table ids.
type InvalidLayoutError struct {
	Problems []string
}

func (e *InvalidLayoutError) Error() string {
	return fmt.Sprintf("activation: invalid layout: %v", e.Problems)
}
