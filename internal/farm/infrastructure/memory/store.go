package memory

import (
	"errors"
	"fmt"
	"sync"

	farm "solarfarm-cloud/internal/farm/domain"
)

// Filter narrows panel listings. Empty fields match everything.
type Filter struct {
	SectorID string
	Status   string
}

func (f Filter) match(p farm.Panel) bool {
	if f.SectorID != "" && p.SectorID != f.SectorID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	return true
}

// Store is the authoritative in-memory state of all panels and sectors.
// Readers receive copies; every mutation replaces a panel's field set under the write lock.
type Store struct {
	mu sync.RWMutex

	panels   []farm.Panel
	index    map[string]int
	bySector map[string][]int

	sectors     []farm.Sector
	sectorIndex map[string]int
}

// NewStore builds a store from a generated or restored population.
func NewStore(sectors []farm.Sector, panels []farm.Panel) (*Store, error) {
	s := &Store{
		panels:      make([]farm.Panel, 0, len(panels)),
		index:       make(map[string]int, len(panels)),
		bySector:    make(map[string][]int, len(sectors)),
		sectors:     make([]farm.Sector, 0, len(sectors)),
		sectorIndex: make(map[string]int, len(sectors)),
	}
	for _, sector := range sectors {
		if sector.ID == "" {
			return nil, errors.New("memory store: empty sector id")
		}
		if _, dup := s.sectorIndex[sector.ID]; dup {
			return nil, fmt.Errorf("memory store: duplicate sector %s", sector.ID)
		}
		s.sectorIndex[sector.ID] = len(s.sectors)
		s.sectors = append(s.sectors, sector)
	}
	for _, p := range panels {
		if p.ID == "" {
			return nil, errors.New("memory store: empty panel id")
		}
		if _, dup := s.index[p.ID]; dup {
			return nil, fmt.Errorf("memory store: duplicate panel %s", p.ID)
		}
		if _, ok := s.sectorIndex[p.SectorID]; !ok {
			return nil, fmt.Errorf("memory store: panel %s references unknown sector %s", p.ID, p.SectorID)
		}
		normalize(&p)
		i := len(s.panels)
		s.index[p.ID] = i
		s.bySector[p.SectorID] = append(s.bySector[p.SectorID], i)
		s.panels = append(s.panels, p)
	}
	return s, nil
}

// Len returns the number of panels.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.panels)
}

// All returns panels matching the filter in generation order.
func (s *Store) All(f Filter) []farm.Panel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f.SectorID != "" {
		return s.collect(s.bySector[f.SectorID], f)
	}
	out := make([]farm.Panel, 0, len(s.panels))
	for _, p := range s.panels {
		if f.match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Get returns a panel by id.
func (s *Store) Get(id string) (farm.Panel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return farm.Panel{}, farm.ErrPanelNotFound
	}
	return s.panels[i], nil
}

// BySector returns every panel of a sector regardless of status.
func (s *Store) BySector(sectorID string) []farm.Panel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.bySector[sectorID], Filter{})
}

// Sectors lists sectors in grid order.
func (s *Store) Sectors() []farm.Sector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]farm.Sector, len(s.sectors))
	copy(out, s.sectors)
	return out
}

// Sector returns a sector by code.
func (s *Store) Sector(id string) (farm.Sector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.sectorIndex[id]
	if !ok {
		return farm.Sector{}, false
	}
	return s.sectors[i], true
}

// Snapshot returns sectors and panels observed under a single read lock.
func (s *Store) Snapshot() ([]farm.Sector, []farm.Panel) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sectors := make([]farm.Sector, len(s.sectors))
	copy(sectors, s.sectors)
	panels := make([]farm.Panel, len(s.panels))
	copy(panels, s.panels)
	return sectors, panels
}

// Upsert replaces the mutable fields of an existing panel.
// Sector, location, capacity and installation date are immutable.
func (s *Store) Upsert(p farm.Panel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[p.ID]
	if !ok {
		return farm.ErrPanelNotFound
	}
	current := s.panels[i]
	if p.SectorID != "" && p.SectorID != current.SectorID {
		return fmt.Errorf("%w: sector of %s is immutable", farm.ErrInvalidPanel, p.ID)
	}
	current.Status = p.Status
	current.CurrentEfficiency = p.CurrentEfficiency
	current.DustLevel = p.DustLevel
	current.LastCleaned = p.LastCleaned
	normalize(&current)
	s.panels[i] = current
	return nil
}

// Update applies fn to one panel and returns the stored result.
func (s *Store) Update(id string, fn func(*farm.Panel)) (farm.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return farm.Panel{}, farm.ErrPanelNotFound
	}
	s.apply(i, fn)
	return s.panels[i], nil
}

// UpdateSector visits every panel of a sector. fn reports whether it changed the panel;
// changed panels are returned along with the sector size.
func (s *Store) UpdateSector(sectorID string, fn func(*farm.Panel) bool) ([]farm.Panel, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.bySector[sectorID]
	if len(members) == 0 {
		return nil, 0, farm.ErrSectorNotFound
	}
	var changed []farm.Panel
	for _, i := range members {
		mutated := false
		s.apply(i, func(p *farm.Panel) { mutated = fn(p) })
		if mutated {
			changed = append(changed, s.panels[i])
		}
	}
	return changed, len(members), nil
}

// UpdateActive applies fn to every active panel and returns how many were visited.
func (s *Store) UpdateActive(fn func(*farm.Panel)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.panels {
		if !s.panels[i].IsActive() {
			continue
		}
		s.apply(i, fn)
		n++
	}
	return n
}

// apply runs fn on a working copy, restores identity fields and re-derives voltage
// before the copy replaces the stored panel.
func (s *Store) apply(i int, fn func(*farm.Panel)) {
	original := s.panels[i]
	working := original
	fn(&working)
	working.ID = original.ID
	working.SectorID = original.SectorID
	working.Location = original.Location
	working.Capacity = original.Capacity
	working.InstallationDate = original.InstallationDate
	normalize(&working)
	s.panels[i] = working
}

func (s *Store) collect(indices []int, f Filter) []farm.Panel {
	out := make([]farm.Panel, 0, len(indices))
	for _, i := range indices {
		if f.match(s.panels[i]) {
			out = append(out, s.panels[i])
		}
	}
	return out
}

func normalize(p *farm.Panel) {
	p.SetDust(p.DustLevel)
	p.SetEfficiency(farm.Clamp(p.CurrentEfficiency, farm.MinEfficiency, farm.MaxEfficiency))
}
