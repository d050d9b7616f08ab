// Package registry implements the table-status registry: the live per-table
// occupancy state read by front-of-house views. Rows are seeded by layout
// activation and updated by order events. An optional Redis mirror serves
// hot reads.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TableCraftLab/tablecraft/backend/internal/layout"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrStatusNotFound indicates that no status row exists for the table.
var ErrStatusNotFound = errors.New("registry: table status not found")

// TableStatusRow is the persisted occupancy state of one table, keyed by
// table id. Geometry-derived fields are refreshed on every activation; the
// status field is owned by live order events once set.
type TableStatusRow struct {
	TableID          string  `gorm:"column:table_id;primaryKey;size:190;not null"`
	FloorID          string  `gorm:"column:floor_id;size:190;not null;index:idx_table_statuses_floor"`
	Label            string  `gorm:"column:label;size:190;not null;default:''"`
	Capacity         int     `gorm:"column:capacity;not null;default:0"`
	X                float64 `gorm:"column:x;not null;default:0"`
	Y                float64 `gorm:"column:y;not null;default:0"`
	Width            float64 `gorm:"column:width;not null;default:0"`
	Height           float64 `gorm:"column:height;not null;default:0"`
	ZoneID           string  `gorm:"column:zone_id;size:190;not null;default:''"`
	Status           string  `gorm:"column:status;size:32;not null;default:'FREE'"`
	UpdatedAtSeconds int64   `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (TableStatusRow) TableName() string {
	return "table_statuses"
}

// StoreConfig describes the registry dependencies. Redis is optional; a nil
// client disables the mirror.
type StoreConfig struct {
	Database *gorm.DB
	Redis    *redis.Client
	Logger   *zap.Logger
}

// Store is the table-status registry backed by the primary database.
type Store struct {
	db     *gorm.DB
	redis  *redis.Client
	logger *zap.Logger
}

// NewStore constructs the registry store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errors.New("registry: database connection required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: cfg.Database, redis: cfg.Redis, logger: logger}, nil
}

// Seed upserts a status row for every table in a newly activated layout,
// inside the caller's transaction. Missing rows are created as FREE; existing
// rows only have their geometry-derived metadata refreshed so a live
// occupancy status is never clobbered. It returns the number of rows created.
func (s *Store) Seed(tx *gorm.DB, floorID string, tables []layout.Table, now time.Time) (int, error) {
	created := 0
	for _, table := range tables {
		var row TableStatusRow
		err := tx.Where("table_id = ?", table.ID).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = TableStatusRow{
				TableID: table.ID,
				Status:  string(layout.StatusFree),
			}
			created++
		} else if err != nil {
			return 0, err
		}

		row.FloorID = floorID
		row.Label = table.Label
		row.Capacity = table.Capacity
		row.X = table.X
		row.Y = table.Y
		row.Width = table.Width
		row.Height = table.Height
		row.ZoneID = table.ZoneID
		row.UpdatedAtSeconds = now.UTC().Unix()

		if err := tx.Save(&row).Error; err != nil {
			return 0, err
		}
	}
	return created, nil
}

// SetOccupancy records a live occupancy transition for one table and mirrors
// it to Redis when configured. The mirror is advisory; a mirror failure is
// logged and does not fail the write.
func (s *Store) SetOccupancy(ctx context.Context, floorID, tableID string, status layout.TableStatus) error {
	result := s.db.WithContext(ctx).Model(&TableStatusRow{}).
		Where("table_id = ? AND floor_id = ?", tableID, floorID).
		Updates(map[string]any{
			"status":       string(status),
			"updated_at_s": time.Now().UTC().Unix(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrStatusNotFound, tableID)
	}

	if s.redis != nil {
		if err := s.redis.HSet(ctx, mirrorKey(floorID), tableID, string(status)).Err(); err != nil {
			s.logger.Warn("status mirror update failed",
				zap.String("table_id", tableID), zap.Error(err))
		}
	}
	return nil
}

// Statuses returns every status row for the floor.
func (s *Store) Statuses(ctx context.Context, floorID string) ([]TableStatusRow, error) {
	var rows []TableStatusRow
	err := s.db.WithContext(ctx).
		Where("floor_id = ?", floorID).
		Order("label ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LiveStatuses reads the occupancy map from the Redis mirror, falling back to
// the database when the mirror is unavailable or empty.
func (s *Store) LiveStatuses(ctx context.Context, floorID string) (map[string]layout.TableStatus, error) {
	if s.redis != nil {
		mirror, err := s.redis.HGetAll(ctx, mirrorKey(floorID)).Result()
		if err == nil && len(mirror) > 0 {
			out := make(map[string]layout.TableStatus, len(mirror))
			for tableID, status := range mirror {
				out[tableID] = layout.TableStatus(status)
			}
			return out, nil
		}
		if err != nil {
			s.logger.Warn("status mirror read failed", zap.String("floor_id", floorID), zap.Error(err))
		}
	}

	rows, err := s.Statuses(ctx, floorID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]layout.TableStatus, len(rows))
	for _, row := range rows {
		out[row.TableID] = layout.TableStatus(row.Status)
	}
	return out, nil
}

func mirrorKey(floorID string) string {
	return "floor:" + floorID + ":table_status"
}
