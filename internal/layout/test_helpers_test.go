package layout

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

type sequentialIDProvider struct {
	next int
}

func (p *sequentialIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("id-%d", p.next), nil
}

type failingIDProvider struct{}

func (failingIDProvider) NewID() (string, error) {
	return "", errors.New("id generation unavailable")
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(StoreConfig{
		FloorID:     mustFloorID(t, "floor-1"),
		FloorBounds: Bounds{Width: 1000, Height: 800},
		GridSize:    10,
		SnapEnabled: true,
		IDProvider:  &sequentialIDProvider{},
		Clock:       func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func mustFloorID(t *testing.T, value string) FloorID {
	t.Helper()
	id, err := NewFloorID(value)
	if err != nil {
		t.Fatalf("unexpected floor id error: %v", err)
	}
	return id
}

func mustAddTable(t *testing.T, store *Store, x, y float64, shape Shape) Table {
	t.Helper()
	table, err := store.AddTable(x, y, shape, 0, "")
	if err != nil {
		t.Fatalf("unexpected add table error: %v", err)
	}
	return table
}
