package layout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const historyLimit = 50

var (
	errMissingFloorID    = errors.New("floor identifier is required")
	errMissingIDProvider = errors.New("id provider is required")
	// ErrTableNotFound indicates that no table with the given id exists.
	ErrTableNotFound = errors.New("layout: table not found")
	// ErrZoneNotFound indicates that no zone with the given id exists.
	ErrZoneNotFound = errors.New("layout: zone not found")
	// ErrFixtureNotFound indicates that no fixture with the given id exists.
	ErrFixtureNotFound = errors.New("layout: fixture not found")
	// ErrTableLocked indicates that the operation touches a locked table.
	ErrTableLocked = errors.New("layout: table is locked")

	noOpLogger = zap.NewNop()
)

// IDProvider issues unique identifiers for new layout objects.
type IDProvider interface {
	NewID() (string, error)
}

// StoreConfig describes the dependencies of a layout store.
type StoreConfig struct {
	FloorID     FloorID
	FloorBounds Bounds
	GridSize    float64
	SnapEnabled bool
	IDProvider  IDProvider
	Client      Client
	Clock       func() time.Time
	Logger      *zap.Logger
}

// Store is the client-side state engine for one floor's draft layout. All
// exported methods are safe for concurrent use; in practice a store is driven
// by a single editor, with the background overlap checker as the only other
// writer.
type Store struct {
	mu sync.Mutex

	floorID     FloorID
	doc         Document
	version     int64
	snapEnabled bool

	history   *History
	selection map[string]struct{}
	stats     Stats

	overlapping map[string]struct{}
	hasOverlaps bool
	overlapSeq  uint64
	checker     *overlapChecker

	dirty     bool
	draftMode bool
	loading   bool
	errMsg    string
	reqSeq    uint64

	idProvider IDProvider
	client     Client
	clock      func() time.Time
	logger     *zap.Logger
}

// NewStore constructs a layout store for the given floor.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.FloorID == "" {
		return nil, errMissingFloorID
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	gridSize := cfg.GridSize
	if gridSize <= 0 {
		gridSize = 20
	}
	bounds := cfg.FloorBounds
	if bounds.Width <= 0 || bounds.Height <= 0 {
		bounds = Bounds{Width: 1200, Height: 800}
	}

	store := &Store{
		floorID: cfg.FloorID,
		doc: Document{
			GridSize:    gridSize,
			FloorBounds: bounds,
		},
		snapEnabled: cfg.SnapEnabled,
		history:     NewHistory(historyLimit),
		selection:   map[string]struct{}{},
		overlapping: map[string]struct{}{},
		draftMode:   true,
		idProvider:  cfg.IDProvider,
		client:      cfg.Client,
		clock:       clock,
		logger:      logger,
	}
	store.checker = newOverlapChecker(store.applyOverlapResult)
	return store, nil
}

// Close stops the background overlap checker.
func (s *Store) Close() {
	s.checker.stop()
}

// mutate runs fn against the working document, records a history command,
// marks the floor dirty, and recomputes derived state. fn returning an error
// leaves the document untouched.
func (s *Store) mutate(name string, fn func(doc *Document) error) error {
	before := snapshotOf(s.doc)
	working := s.doc.Clone()
	if err := fn(&working); err != nil {
		return err
	}
	s.doc = working
	s.history.Push(Command{Name: name, Before: before, After: snapshotOf(s.doc)})
	s.dirty = true
	s.pruneSelection()
	s.refreshDerived()
	return nil
}

func (s *Store) refreshDerived() {
	s.stats = computeStats(s.doc.Tables)
	s.scheduleOverlapCheck()
}

// Undo steps back one command and restores the prior editable triple.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.restoreSnapshot(snap)
	return true
}

// Redo re-applies the most recently undone command.
func (s *Store) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.history.Redo()
	if !ok {
		return false
	}
	s.restoreSnapshot(snap)
	return true
}

func (s *Store) restoreSnapshot(snap Snapshot) {
	s.doc.Tables = append([]Table(nil), snap.Tables...)
	s.doc.Zones = append([]Zone(nil), snap.Zones...)
	s.doc.Fixtures = append([]Fixture(nil), snap.Fixtures...)
	s.dirty = true
	s.pruneSelection()
	s.refreshDerived()
}

// CanUndo reports whether an undo step is available.
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

// CanRedo reports whether a redo step is available.
func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// Document returns a copy of the working layout.
func (s *Store) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Stats returns the derived capacity aggregates.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Version returns the last persisted draft version.
func (s *Store) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Dirty reports whether local edits exist that have not been saved.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// DraftMode reports whether the store is still editing a draft. It flips to
// false only after a successful activation.
func (s *Store) DraftMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftMode
}

// Loading reports whether a persistence call is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the latest surfaced persistence error message, empty when the
// last call succeeded.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// SelectTable makes id the only selected table.
func (s *Store) SelectTable(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = map[string]struct{}{id: {}}
}

// ToggleSelection adds or removes id from the selection.
func (s *Store) ToggleSelection(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selection[id]; ok {
		delete(s.selection, id)
		return
	}
	s.selection[id] = struct{}{}
}

// SelectTables replaces the selection with the given ids.
func (s *Store) SelectTables(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.selection[id] = struct{}{}
	}
}

// ClearSelection removes every selected id.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = map[string]struct{}{}
}

// Selection returns the selected table ids in document order.
func (s *Store) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.selection))
	for _, table := range s.doc.Tables {
		if _, ok := s.selection[table.ID]; ok {
			ids = append(ids, table.ID)
		}
	}
	return ids
}

func (s *Store) pruneSelection() {
	live := make(map[string]struct{}, len(s.doc.Tables))
	for _, table := range s.doc.Tables {
		live[table.ID] = struct{}{}
	}
	for id := range s.selection {
		if _, ok := live[id]; !ok {
			delete(s.selection, id)
		}
	}
}

// SaveDraft persists the working document as the floor's draft. On success
// the store transitions to clean and adopts the returned version. A late
// response that lost to a newer call is discarded.
func (s *Store) SaveDraft(ctx context.Context) error {
	s.mu.Lock()
	if s.client == nil {
		s.mu.Unlock()
		return errors.New("layout: no persistence client configured")
	}
	doc := s.doc.Clone()
	version := s.version
	seq := s.beginRequest()
	s.mu.Unlock()

	newVersion, err := s.client.SaveDraft(ctx, s.floorID, doc, version)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endRequest(seq) {
		return err
	}
	if err != nil {
		s.errMsg = err.Error()
		s.logger.Warn("draft save failed", zap.String("floor_id", s.floorID.String()), zap.Error(err))
		return err
	}
	s.version = newVersion
	s.dirty = false
	s.errMsg = ""
	return nil
}

// LoadDraft replaces the working document with the persisted draft.
func (s *Store) LoadDraft(ctx context.Context) error {
	s.mu.Lock()
	if s.client == nil {
		s.mu.Unlock()
		return errors.New("layout: no persistence client configured")
	}
	seq := s.beginRequest()
	s.mu.Unlock()

	doc, version, err := s.client.LoadDraft(ctx, s.floorID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endRequest(seq) {
		return err
	}
	if err != nil {
		s.errMsg = err.Error()
		return err
	}
	s.doc = doc
	s.version = version
	s.dirty = false
	s.draftMode = true
	s.errMsg = ""
	s.history = NewHistory(historyLimit)
	s.selection = map[string]struct{}{}
	s.refreshDerived()
	return nil
}

// Activate asks the server to promote the floor's saved draft to the active
// layout. The server revalidates and arbitrates versions; on success the
// store leaves draft mode.
func (s *Store) Activate(ctx context.Context) (ActivationResult, error) {
	s.mu.Lock()
	if s.client == nil {
		s.mu.Unlock()
		return ActivationResult{}, errors.New("layout: no persistence client configured")
	}
	version := s.version
	seq := s.beginRequest()
	s.mu.Unlock()

	result, err := s.client.Activate(ctx, s.floorID, version)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endRequest(seq) {
		return result, err
	}
	if err != nil {
		s.errMsg = err.Error()
		s.logger.Warn("activation failed", zap.String("floor_id", s.floorID.String()), zap.Error(err))
		return ActivationResult{}, err
	}
	s.version = result.Version
	s.draftMode = false
	s.errMsg = ""
	return result, nil
}

func (s *Store) beginRequest() uint64 {
	s.reqSeq++
	s.loading = true
	return s.reqSeq
}

// endRequest reports whether the response belongs to the latest request.
// Stale responses are ignored rather than applied.
func (s *Store) endRequest(seq uint64) bool {
	if seq != s.reqSeq {
		return false
	}
	s.loading = false
	return true
}

func (s *Store) findTable(doc *Document, id string) (*Table, error) {
	for i := range doc.Tables {
		if doc.Tables[i].ID == id {
			return &doc.Tables[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTableNotFound, id)
}
