package layout

import (
	"sort"

	"github.com/TableCraftLab/tablecraft/backend/internal/geometry"
)

type overlapRequest struct {
	seq      uint64
	tables   map[string]geometry.Rect
	fixtures []geometry.Rect
}

// overlapChecker runs the pairwise overlap scan off the editing path. It is
// an advisory signal only; activation re-runs the authoritative check on the
// server.
type overlapChecker struct {
	requests chan overlapRequest
	done     chan struct{}
	apply    func(seq uint64, overlapping []string)
}

func newOverlapChecker(apply func(seq uint64, overlapping []string)) *overlapChecker {
	c := &overlapChecker{
		requests: make(chan overlapRequest, 1),
		done:     make(chan struct{}),
		apply:    apply,
	}
	go c.run()
	return c
}

func (c *overlapChecker) run() {
	for {
		select {
		case <-c.done:
			return
		case req := <-c.requests:
			c.apply(req.seq, overlappingTableIDs(req.tables, req.fixtures))
		}
	}
}

// enqueue submits the latest geometry, displacing any pending request that
// has not started yet.
func (c *overlapChecker) enqueue(req overlapRequest) {
	for {
		select {
		case c.requests <- req:
			return
		default:
			select {
			case <-c.requests:
			default:
			}
		}
	}
}

func (c *overlapChecker) stop() {
	close(c.done)
}

// overlappingTableIDs returns the sorted ids of tables whose footprint
// intersects another table or a fixture.
func overlappingTableIDs(tables map[string]geometry.Rect, fixtures []geometry.Rect) []string {
	ids := make([]string, 0, len(tables))
	for id := range tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	flagged := map[string]struct{}{}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if geometry.Overlaps(tables[ids[i]], tables[ids[j]]) {
				flagged[ids[i]] = struct{}{}
				flagged[ids[j]] = struct{}{}
			}
		}
		for _, fixture := range fixtures {
			if geometry.Overlaps(tables[ids[i]], fixture) {
				flagged[ids[i]] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(flagged))
	for _, id := range ids {
		if _, ok := flagged[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// scheduleOverlapCheck hands the current geometry to the checker goroutine.
// Callers must hold s.mu.
func (s *Store) scheduleOverlapCheck() {
	s.overlapSeq++
	req := overlapRequest{
		seq:      s.overlapSeq,
		tables:   make(map[string]geometry.Rect, len(s.doc.Tables)),
		fixtures: make([]geometry.Rect, 0, len(s.doc.Fixtures)),
	}
	for _, table := range s.doc.Tables {
		req.tables[table.ID] = table.Rect()
	}
	for _, fixture := range s.doc.Fixtures {
		req.fixtures = append(req.fixtures, fixture.Rect())
	}
	s.checker.enqueue(req)
}

// applyOverlapResult records the checker's advisory output. Results from
// superseded requests are dropped.
func (s *Store) applyOverlapResult(seq uint64, overlapping []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.overlapSeq {
		return
	}
	s.overlapping = make(map[string]struct{}, len(overlapping))
	for _, id := range overlapping {
		s.overlapping[id] = struct{}{}
	}
	s.hasOverlaps = len(overlapping) > 0
}

// OverlappingTableIDs returns the ids most recently flagged by the
// background checker, in document order.
func (s *Store) OverlappingTableIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.overlapping))
	for _, table := range s.doc.Tables {
		if _, ok := s.overlapping[table.ID]; ok {
			out = append(out, table.ID)
		}
	}
	return out
}

// HasOverlaps reports the advisory overlap flag.
func (s *Store) HasOverlaps() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasOverlaps
}

// CheckOverlaps runs the pairwise scan synchronously and applies the result.
// The background checker covers routine edits; this is for callers that need
// the advisory state settled before reading it.
func (s *Store) CheckOverlaps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.overlapSeq++
	tables := make(map[string]geometry.Rect, len(s.doc.Tables))
	for _, table := range s.doc.Tables {
		tables[table.ID] = table.Rect()
	}
	fixtures := make([]geometry.Rect, 0, len(s.doc.Fixtures))
	for _, fixture := range s.doc.Fixtures {
		fixtures = append(fixtures, fixture.Rect())
	}

	overlapping := overlappingTableIDs(tables, fixtures)
	s.overlapping = make(map[string]struct{}, len(overlapping))
	for _, id := range overlapping {
		s.overlapping[id] = struct{}{}
	}
	s.hasOverlaps = len(overlapping) > 0
	return overlapping
}
