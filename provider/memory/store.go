package memory

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/multicache/internal/wire"
)

// Store is an in-process expiring table partitioned by region.
// A Store is owned by whoever created it; tiers built on a caller-provided
// Store never close it.
type Store struct {
	mu      sync.RWMutex
	regions map[string]map[string]wire.Entry
	now     func() time.Time

	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewStore creates a Store. cleanupInterval>0 starts a janitor that purges
// expired entries in every region; now=nil uses time.Now.
func NewStore(cleanupInterval time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	s := &Store{
		regions: make(map[string]map[string]wire.Entry),
		now:     now,
	}
	if cleanupInterval > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.PurgeAll()
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

// Peek returns the entry without touching it. Expired entries are reported
// as absent but left in place.
func (s *Store) Peek(region, key string) (wire.Entry, bool) {
	now := s.now()
	s.mu.RLock()
	e, ok := s.regions[region][key]
	s.mu.RUnlock()
	if !ok || e.Expired(now) {
		return wire.Entry{}, false
	}
	return e, true
}

// Touch returns the live entry and, for sliding entries, extends its expiry.
// Expired entries found on the way are deleted.
func (s *Store) Touch(region, key string) (wire.Entry, bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.regions[region]
	e, ok := m[key]
	if !ok {
		return wire.Entry{}, false
	}
	if e.Expired(now) {
		s.deleteLocked(region, key)
		return wire.Entry{}, false
	}
	if e.Sliding {
		e = e.Touch(now)
		m[key] = e
	}
	return e, true
}

func (s *Store) Set(region, key string, e wire.Entry) {
	s.mu.Lock()
	m := s.regions[region]
	if m == nil {
		m = make(map[string]wire.Entry)
		s.regions[region] = m
	}
	m[key] = e
	s.mu.Unlock()
}

func (s *Store) Delete(region, key string) {
	s.mu.Lock()
	s.deleteLocked(region, key)
	s.mu.Unlock()
}

func (s *Store) deleteLocked(region, key string) {
	m := s.regions[region]
	if m == nil {
		return
	}
	delete(m, key)
	if len(m) == 0 {
		delete(s.regions, region)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.regions = make(map[string]map[string]wire.Entry)
	s.mu.Unlock()
}

func (s *Store) ClearRegion(region string) {
	s.mu.Lock()
	delete(s.regions, region)
	s.mu.Unlock()
}

// Purge deletes expired entries in region and returns how many were removed.
func (s *Store) Purge(region string) int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeLocked(region, now)
}

// PurgeAll runs Purge over every region.
func (s *Store) PurgeAll() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for region := range s.regions {
		removed += s.purgeLocked(region, now)
	}
	return removed
}

func (s *Store) purgeLocked(region string, now time.Time) int {
	m := s.regions[region]
	removed := 0
	for k, e := range m {
		if e.Expired(now) {
			delete(m, k)
			removed++
		}
	}
	if m != nil && len(m) == 0 {
		delete(s.regions, region)
	}
	return removed
}

// Count returns the number of live entries in region.
func (s *Store) Count(region string) int64 {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.regions[region] {
		if !e.Expired(now) {
			n++
		}
	}
	return n
}

// Close stops the janitor. It does not clear the table.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			if s.ticker != nil {
				s.ticker.Stop()
			}
			s.wg.Wait()
		}
	})
}
