// Package audit defines the audit-log sink consumed by the activation
// workflow and two implementations: a database-backed log and a best-effort
// message-broker publisher.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Entry is one audit event.
type Entry struct {
	TenantID   string         `json:"tenantId"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Sink accepts audit entries. Implementations must be safe to call after the
// originating transaction has committed; failures are the caller's to log
// and ignore.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// Record is the persisted form of an audit entry.
type Record struct {
	ID               int64  `gorm:"column:id;primaryKey;autoIncrement"`
	TenantID         string `gorm:"column:tenant_id;size:190;not null;index:idx_audit_tenant_time,priority:1"`
	Action           string `gorm:"column:action;size:190;not null"`
	EntityType       string `gorm:"column:entity_type;size:190;not null"`
	EntityID         string `gorm:"column:entity_id;size:190;not null"`
	MetadataJSON     string `gorm:"column:metadata_json;type:text;not null;default:''"`
	OccurredAtSecond int64  `gorm:"column:occurred_at_s;not null;index:idx_audit_tenant_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "audit_log"
}

// DatabaseSink writes audit entries to the audit_log table.
type DatabaseSink struct {
	db *gorm.DB
}

// NewDatabaseSink constructs a database-backed sink.
func NewDatabaseSink(db *gorm.DB) *DatabaseSink {
	return &DatabaseSink{db: db}
}

// Record persists the entry.
func (s *DatabaseSink) Record(ctx context.Context, entry Entry) error {
	metadata := ""
	if entry.Metadata != nil {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
		metadata = string(data)
	}
	record := Record{
		TenantID:         entry.TenantID,
		Action:           entry.Action,
		EntityType:       entry.EntityType,
		EntityID:         entry.EntityID,
		MetadataJSON:     metadata,
		OccurredAtSecond: entry.Timestamp.UTC().Unix(),
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

// MultiSink fans one entry out to several sinks, returning the first error
// after trying all of them.
type MultiSink []Sink

// Record forwards the entry to every sink.
func (m MultiSink) Record(ctx context.Context, entry Entry) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Record(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
