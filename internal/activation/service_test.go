package activation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/TableCraftLab/tablecraft/backend/internal/audit"
	"github.com/TableCraftLab/tablecraft/backend/internal/layout"
	"github.com/TableCraftLab/tablecraft/backend/internal/registry"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequentialIDProvider struct {
	next int
}

func (p *sequentialIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("archive-%d", p.next), nil
}

type captureSink struct {
	entries []audit.Entry
}

func (s *captureSink) Record(_ context.Context, entry audit.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

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

	models := []any{&FloorLayoutRow{}, &LayoutArchive{}, &registry.TableStatusRow{}, &audit.Record{}}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("unexpected migration error: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, sink audit.Sink) *Service {
	t.Helper()
	statusStore, err := registry.NewStore(registry.StoreConfig{Database: db})
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		IDProvider: &sequentialIDProvider{},
		Registry:   statusStore,
		AuditSink:  sink,
		TenantID:   "bistro-42",
		Clock:      func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return service
}

func mustFloorID(t *testing.T, value string) layout.FloorID {
	t.Helper()
	id, err := layout.NewFloorID(value)
	if err != nil {
		t.Fatalf("unexpected floor id error: %v", err)
	}
	return id
}

func sampleDocument(tableIDs ...string) layout.Document {
	doc := layout.Document{
		GridSize:    20,
		FloorBounds: layout.Bounds{Width: 1200, Height: 800},
	}
	for i, id := range tableIDs {
		doc.Tables = append(doc.Tables, layout.Table{
			ID:       id,
			Label:    fmt.Sprintf("T%d", i+1),
			X:        float64(i) * 200,
			Y:        100,
			Width:    80,
			Height:   80,
			Shape:    layout.ShapeRound,
			Capacity: 4,
			Status:   layout.StatusFree,
			Active:   true,
		})
	}
	return doc
}

func TestSaveDraftCreatesFirstVersion(t *testing.T) {
	db := newTestDatabase(t)
	service := newTestService(t, db, nil)
	floorID := mustFloorID(t, "floor-1")

	version, err := service.SaveDraft(context.Background(), floorID, sampleDocument("t-1"), 0)
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected first save to create version 1, got %d", version)
	}

	doc, gotVersion, err := service.GetDraft(context.Background(), floorID)
	if err != nil {
		t.Fatalf("unexpected draft error: %v", err)
	}
	if gotVersion != 1 || len(doc.Tables) != 1 {
		t.Fatalf("unexpected draft state: version=%d tables=%d", gotVersion, len(doc.Tables))
	}
}

func TestSaveDraftRejectsStaleVersion(t *testing.T) {
	db := newTestDatabase(t)
	service := newTestService(t, db, nil)
	floorID := mustFloorID(t, "floor-1")
	ctx := context.Background()

	if _, err := service.SaveDraft(ctx, floorID, sampleDocument("t-1"), 0); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if _, err := service.SaveDraft(ctx, floorID, sampleDocument("t-1", "t-2"), 1); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	// An editor still holding version 1 must be rejected without mutating.
	_, err := service.SaveDraft(ctx, floorID, sampleDocument("t-9"), 1)
	var stale *StaleVersionError
	if !errors.As(err, &stale) {
		t.Fatalf("expected a stale version error, got %v", err)
	}
	if stale.CurrentVersion != 2 {
		t.Fatalf("expected current version 2, got %d", stale.CurrentVersion)
	}

	doc, version, err := service.GetDraft(ctx, floorID)
	if err != nil {
		t.Fatalf("unexpected draft error: %v", err)
	}
	if version != 2 || len(doc.Tables) != 2 {
		t.Fatalf("stale save must not mutate state: version=%d tables=%d", version, len(doc.Tables))
	}
}

func TestActivatePromotesDraft(t *testing.T) {
	db := newTestDatabase(t)
	sink := &captureSink{}
	service := newTestService(t, db, sink)
	floorID := mustFloorID(t, "floor-1")
	ctx := context.Background()

	if _, err := service.SaveDraft(ctx, floorID, sampleDocument("t-1", "t-2"), 0); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	result, err := service.Activate(ctx, floorID, 1)
	if err != nil {
		t.Fatalf("unexpected activation error: %v", err)
	}
	if result.Version != 2 {
		t.Fatalf("expected activation to bump to version 2, got %d", result.Version)
	}
	if result.Summary.TableCount != 2 || result.Summary.TablesInitialized != 2 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}

	// The draft is consumed by activation.
	if _, _, err := service.GetDraft(ctx, floorID); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected no draft after activation, got %v", err)
	}
	active, version, err := service.GetActive(ctx, floorID)
	if err != nil {
		t.Fatalf("unexpected active error: %v", err)
	}
	if version != 2 || len(active.Tables) != 2 {
		t.Fatalf("unexpected active state: version=%d tables=%d", version, len(active.Tables))
	}

	if len(sink.entries) != 1 || sink.entries[0].Action != "layout.activated" {
		t.Fatalf("expected one activation audit entry, got %+v", sink.entries)
	}
	if sink.entries[0].TenantID != "bistro-42" {
		t.Fatalf("unexpected tenant on audit entry: %q", sink.entries[0].TenantID)
	}
}

func TestActivateArchivesPriorActiveLayout(t *testing.T) {
	db := newTestDatabase(t)
	service := newTestService(t, db, nil)
	floorID := mustFloorID(t, "floor-1")
	ctx := context.Background()

	if _, err := service.SaveDraft(ctx, floorID, sampleDocument("t-1"), 0); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if _, err := service.Activate(ctx, floorID, 1); err != nil {
		t.Fatalf("unexpected activation error: %v", err)
	}

	// First activation has no prior active layout to archive.
	var count int64
	if err := db.Model(&LayoutArchive{}).Count(&count).Error; err != nil {
		t.Fatalf("unexpected count error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no archives after first activation, got %d", count)
	}

	if _, err := service.SaveDraft(ctx, floorID, sampleDocument("t-1", "t-2"), 2); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if _, err := service.Activate(ctx, floorID, 3); err != nil {
		t.Fatalf("unexpected activation error: %v", err)
	}

	var archive LayoutArchive
	if err := db.Take(&archive).Error; err != nil {
		t.Fatalf("expected an archive row: %v", err)
	}
	if archive.FloorID != "floor-1" || archive.Version != 3 {
		t.Fatalf("unexpected archive row: %+v", archive)
	}
	if !strings.Contains(archive.LayoutJSON, "t-1") || strings.Contains(archive.LayoutJSON, "t-2") {
		t.Fatalf("archive must hold the replaced layout, got %s", archive.LayoutJSON)
	}
}

func TestActivateRejectsStaleEditor(t *testing.T) {
	db := newTestDatabase(t)
	service := newTestService(t, db, nil)
	floorID := mustFloorID(t, "floor-1")
	ctx := context.Background()

	if _, err := service.SaveDraft(ctx, floorID, sampleDocument("t-1"), 0); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	// Editor B saves and activates first.
	if _, err := service.SaveDraft(ctx, floorID, sampleDocument("t-1", "t-2"), 1); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if _, err := service.Activate(ctx, floorID, 2); err != nil {
		t.Fatalf("unexpected activation error: %v", err)
	}

	// Editor A still holds version 1 and must lose the race.
	_, err := service.Activate(ctx, floorID, 1)
	var stale *StaleVersionError
	if !errors.As(err, &stale) {
		t.Fatalf("expected a stale version error, got %v", err)
	}
	if stale.CurrentVersion != 3 {
		t.Fatalf("expected current version 3, got %d", stale.CurrentVersion)
	}

	// B's activation is the one that persisted.
	active, _, err := service.GetActive(ctx, floorID)
	if err != nil {
		t.Fatalf("unexpected active error: %v", err)
	}
	if len(active.Tables) != 2 {
		t.Fatalf("expected the winner's layout to stay active, got %d tables", len(active.Tables))
	}
}

func TestActivateUnknownFloor(t *testing.T) {
	db := newTestDatabase(t)
	service := newTestService(t, db, nil)

	_, err := service.Activate(context.Background(), mustFloorID(t, "ghost"), 1)
	if !errors.Is(err, ErrLayoutNotFound) {
		t.Fatalf("expected layout not found, got %v", err)
	}
}

func TestActivateWithoutDraft(t *testing.T) {
	db := newTestDatabase(t)
	service := newTestService(t, db, nil)
	floorID := mustFloorID(t, "floor-1")
	ctx := context.Background()

	if _, err := service.SaveDraft(ctx, floorID, sampleDocument("t-1"), 0); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if _, err := service.Activate(ctx, floorID, 1); err != nil {
		t.Fatalf("unexpected activation error: %v", err)
	}

	_, err := service.Activate(ctx, floorID, 2)
	if !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected no draft error, got %v", err)
	}
}

func TestActivateRevalidatesDraft(t *testing.T) {
	db := newTestDatabase(t)
	service := newTestService(t, db, nil)
	floorID := mustFloorID(t, "floor-1")
	ctx := context.Background()

	doc := sampleDocument("t-1", "t-2")
	doc.Tables[1].Capacity = 0
	if _, err := service.SaveDraft(ctx, floorID, doc, 0); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	_, err := service.Activate(ctx, floorID, 1)
	var invalid *InvalidLayoutError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected an invalid layout error, got %v", err)
	}
	if len(invalid.Problems) == 0 || !strings.Contains(invalid.Problems[0], "t-2") {
		t.Fatalf("violation must name the offending table, got %v", invalid.Problems)
	}

	// Rejection must not consume the draft or bump the version.
	_, version, err := service.GetDraft(ctx, floorID)
	if err != nil {
		t.Fatalf("unexpected draft error: %v", err)
	}
	if version != 1 {
		t.Fatalf("rejected activation must not bump the version, got %d", version)
	}
}

func TestActivateRejectsOverlappingDraft(t *testing.T) {
	db := newTestDatabase(t)
	service := newTestService(t, db, nil)
	floorID := mustFloorID(t, "floor-1")
	ctx := context.Background()

	doc := sampleDocument("t-1", "t-2")
	doc.Tables[1].X = doc.Tables[0].X + 40 // footprints intersect
	if _, err := service.SaveDraft(ctx, floorID, doc, 0); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	_, err := service.Activate(ctx, floorID, 1)
	var invalid *InvalidLayoutError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected an invalid layout error, got %v", err)
	}
	found := false
	for _, problem := range invalid.Problems {
		if strings.Contains(problem, "overlapping tables") &&
			strings.Contains(problem, "t-1") && strings.Contains(problem, "t-2") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an overlap violation naming both tables, got %v", invalid.Problems)
	}
}

func TestActivatePreservesLiveOccupancy(t *testing.T) {
	db := newTestDatabase(t)
	service := newTestService(t, db, nil)
	statusStore, err := registry.NewStore(registry.StoreConfig{Database: db})
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}
	floorID := mustFloorID(t, "floor-1")
	ctx := context.Background()

	if _, err := service.SaveDraft(ctx, floorID, sampleDocument("t-1", "t-2"), 0); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if _, err := service.Activate(ctx, floorID, 1); err != nil {
		t.Fatalf("unexpected activation error: %v", err)
	}
	if err := statusStore.SetOccupancy(ctx, "floor-1", "t-1", layout.StatusSeated); err != nil {
		t.Fatalf("unexpected occupancy error: %v", err)
	}

	// Re-activating the floor refreshes metadata but never clobbers occupancy.
	moved := sampleDocument("t-1", "t-2")
	moved.Tables[0].X = 600
	if _, err := service.SaveDraft(ctx, floorID, moved, 2); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	result, err := service.Activate(ctx, floorID, 3)
	if err != nil {
		t.Fatalf("unexpected activation error: %v", err)
	}
	if result.Summary.TablesInitialized != 0 {
		t.Fatalf("existing rows must not count as initialized, got %d", result.Summary.TablesInitialized)
	}

	rows, err := statusStore.Statuses(ctx, "floor-1")
	if err != nil {
		t.Fatalf("unexpected statuses error: %v", err)
	}
	byID := map[string]registry.TableStatusRow{}
	for _, row := range rows {
		byID[row.TableID] = row
	}
	if byID["t-1"].Status != string(layout.StatusSeated) {
		t.Fatalf("expected seated status to survive re-activation, got %q", byID["t-1"].Status)
	}
	if byID["t-1"].X != 600 {
		t.Fatalf("expected geometry refresh, got x=%v", byID["t-1"].X)
	}
}
