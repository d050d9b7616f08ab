package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("unexpected database error: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unexpected connection error: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&Record{}); err != nil {
		t.Fatalf("unexpected migration error: %v", err)
	}
	return db
}

func TestDatabaseSinkPersistsEntry(t *testing.T) {
	db := newTestDatabase(t)
	sink := NewDatabaseSink(db)

	entry := Entry{
		TenantID:   "bistro-42",
		Action:     "layout.activated",
		EntityType: "floor_layout",
		EntityID:   "floor-1",
		Metadata:   map[string]any{"version": 3},
		Timestamp:  time.Unix(1700000000, 0),
	}
	if err := sink.Record(context.Background(), entry); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}

	var record Record
	if err := db.Take(&record).Error; err != nil {
		t.Fatalf("expected a persisted record: %v", err)
	}
	if record.TenantID != "bistro-42" || record.Action != "layout.activated" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if !strings.Contains(record.MetadataJSON, "\"version\":3") {
		t.Fatalf("metadata must be serialized, got %q", record.MetadataJSON)
	}
	if record.OccurredAtSecond != 1700000000 {
		t.Fatalf("unexpected timestamp: %d", record.OccurredAtSecond)
	}
}

type flakySink struct {
	err   error
	calls int
}

func (s *flakySink) Record(context.Context, Entry) error {
	s.calls++
	return s.err
}

func TestMultiSinkTriesEverySink(t *testing.T) {
	first := &flakySink{err: errors.New("broker down")}
	second := &flakySink{}
	multi := MultiSink{first, second}

	err := multi.Record(context.Background(), Entry{Action: "layout.activated"})
	if !errors.Is(err, first.err) {
		t.Fatalf("expected the first failure to surface, got %v", err)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("every sink must be tried: %d / %d", first.calls, second.calls)
	}
}
