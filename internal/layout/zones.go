package layout

import "fmt"

// AddZone inserts a named region.
func (s *Store) AddZone(name string, x, y, width, height float64, color string) (Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.idProvider.NewID()
	if err != nil {
		return Zone{}, err
	}
	zone := Zone{
		ID:     id,
		Name:   name,
		X:      s.snap(x),
		Y:      s.snap(y),
		Width:  width,
		Height: height,
		Color:  color,
		Active: true,
	}

	err = s.mutate("add_zone", func(doc *Document) error {
		doc.Zones = append(doc.Zones, zone)
		return nil
	})
	if err != nil {
		return Zone{}, err
	}
	return zone, nil
}

// ZonePatch carries the optional fields of UpdateZone.
type ZonePatch struct {
	Name       *string
	X          *float64
	Y          *float64
	Width      *float64
	Height     *float64
	Color      *string
	TableLimit *int
	Active     *bool
}

// UpdateZone applies a partial mutation to one zone.
func (s *Store) UpdateZone(id string, patch ZonePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate("update_zone", func(doc *Document) error {
		for i := range doc.Zones {
			if doc.Zones[i].ID != id {
				continue
			}
			zone := &doc.Zones[i]
			if patch.Name != nil {
				zone.Name = *patch.Name
			}
			if patch.X != nil {
				zone.X = s.snap(*patch.X)
			}
			if patch.Y != nil {
				zone.Y = s.snap(*patch.Y)
			}
			if patch.Width != nil {
				zone.Width = *patch.Width
			}
			if patch.Height != nil {
				zone.Height = *patch.Height
			}
			if patch.Color != nil {
				zone.Color = *patch.Color
			}
			if patch.TableLimit != nil {
				zone.TableLimit = *patch.TableLimit
			}
			if patch.Active != nil {
				zone.Active = *patch.Active
			}
			return nil
		}
		return fmt.Errorf("%w: %s", ErrZoneNotFound, id)
	})
}

// DeleteZone removes a zone. Member tables keep existing; their zone
// reference is cleared rather than cascading the delete.
func (s *Store) DeleteZone(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate("delete_zone", func(doc *Document) error {
		found := false
		for i, zone := range doc.Zones {
			if zone.ID == id {
				doc.Zones = append(doc.Zones[:i], doc.Zones[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrZoneNotFound, id)
		}
		now := s.clock().UTC()
		for i := range doc.Tables {
			if doc.Tables[i].ZoneID == id {
				doc.Tables[i].ZoneID = ""
				doc.Tables[i].UpdatedAt = now
			}
		}
		return nil
	})
}

// AddFixture inserts a non-seating spatial object.
func (s *Store) AddFixture(kind string, x, y, width, height float64) (Fixture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.idProvider.NewID()
	if err != nil {
		return Fixture{}, err
	}
	fixture := Fixture{
		ID:     id,
		Kind:   kind,
		X:      s.snap(x),
		Y:      s.snap(y),
		Width:  width,
		Height: height,
	}

	err = s.mutate("add_fixture", func(doc *Document) error {
		doc.Fixtures = append(doc.Fixtures, fixture)
		return nil
	})
	if err != nil {
		return Fixture{}, err
	}
	return fixture, nil
}

// FixturePatch carries the optional fields of UpdateFixture.
type FixturePatch struct {
	Kind     *string
	X        *float64
	Y        *float64
	Width    *float64
	Height   *float64
	Rotation *int
}

// UpdateFixture applies a partial mutation to one fixture.
func (s *Store) UpdateFixture(id string, patch FixturePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate("update_fixture", func(doc *Document) error {
		for i := range doc.Fixtures {
			if doc.Fixtures[i].ID != id {
				continue
			}
			fixture := &doc.Fixtures[i]
			if patch.Kind != nil {
				fixture.Kind = *patch.Kind
			}
			if patch.X != nil {
				fixture.X = s.snap(*patch.X)
			}
			if patch.Y != nil {
				fixture.Y = s.snap(*patch.Y)
			}
			if patch.Width != nil {
				fixture.Width = *patch.Width
			}
			if patch.Height != nil {
				fixture.Height = *patch.Height
			}
			if patch.Rotation != nil {
				normalized := *patch.Rotation % 360
				if normalized < 0 {
					normalized += 360
				}
				fixture.Rotation = normalized
			}
			return nil
		}
		return fmt.Errorf("%w: %s", ErrFixtureNotFound, id)
	})
}

// DeleteFixture removes a fixture.
func (s *Store) DeleteFixture(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate("delete_fixture", func(doc *Document) error {
		for i, fixture := range doc.Fixtures {
			if fixture.ID == id {
				doc.Fixtures = append(doc.Fixtures[:i], doc.Fixtures[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrFixtureNotFound, id)
	})
}
