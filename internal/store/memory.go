package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/climate-zones/internal/climate"
)

var (
	// ErrNotFound is returned when no data is available for a given zone.
	ErrNotFound = errors.New("no climate data for zone")
)

// zoneHistory holds the series of one zone, each kept ordered by date.
type zoneHistory struct {
	Daily   []climate.DailySample
	Monthly []climate.MonthlyAggregate
}

// MemoryStore is a concurrency-safe in-memory implementation of climate.Store.
// Re-saving a day or month replaces the previous value.
type MemoryStore struct {
	mu sync.RWMutex

	// key: zone label
	data map[string]*zoneHistory

	// max number of daily samples kept per zone (0 = unlimited)
	maxDaily int
}

// NewMemoryStore creates a new MemoryStore.
// If maxDaily is <= 0, it is treated as unlimited.
func NewMemoryStore(maxDaily int) *MemoryStore {
	return &MemoryStore{
		data:     make(map[string]*zoneHistory),
		maxDaily: maxDaily,
	}
}

func (s *MemoryStore) history(label string) *zoneHistory {
	h, ok := s.data[label]
	if !ok {
		h = &zoneHistory{}
		s.data[label] = h
	}
	return h
}

// SaveDaily merges samples into the zone's daily series and enforces retention.
func (s *MemoryStore) SaveDaily(_ context.Context, zone climate.Zone, samples []climate.DailySample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history(zone.Key())

	byDate := make(map[time.Time]int, len(h.Daily))
	for i, d := range h.Daily {
		byDate[d.Date] = i
	}
	for _, d := range samples {
		if i, ok := byDate[d.Date]; ok {
			h.Daily[i] = d
			continue
		}
		byDate[d.Date] = len(h.Daily)
		h.Daily = append(h.Daily, d)
	}
	sort.SliceStable(h.Daily, func(i, j int) bool { return h.Daily[i].Date.Before(h.Daily[j].Date) })

	// Enforce retention by count, dropping the oldest days.
	if s.maxDaily > 0 && len(h.Daily) > s.maxDaily {
		over := len(h.Daily) - s.maxDaily
		h.Daily = h.Daily[over:]
	}
	return nil
}

// AppendMonthly merges monthly rows, keyed by zone and interval start.
func (s *MemoryStore) AppendMonthly(_ context.Context, rows []climate.MonthlyAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		h := s.history(r.Label)
		replaced := false
		for i := range h.Monthly {
			if h.Monthly[i].IntervalStart.Equal(r.IntervalStart) {
				h.Monthly[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			h.Monthly = append(h.Monthly, r)
		}
		sort.SliceStable(h.Monthly, func(i, j int) bool {
			return h.Monthly[i].IntervalStart.Before(h.Monthly[j].IntervalStart)
		})
	}
	return nil
}

// GetDaily returns all samples for a zone between from and to (inclusive).
func (s *MemoryStore) GetDaily(_ context.Context, label string, from, to time.Time) ([]climate.DailySample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[label]
	if !ok || len(h.Daily) == 0 {
		return nil, ErrNotFound
	}

	var result []climate.DailySample
	for _, d := range h.Daily {
		if !d.Date.Before(from) && !d.Date.After(to) {
			result = append(result, d)
		}
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// GetMonthly returns a zone's monthly rows for year, or every year when year is 0.
func (s *MemoryStore) GetMonthly(_ context.Context, label string, year int) ([]climate.MonthlyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[label]
	if !ok || len(h.Monthly) == 0 {
		return nil, ErrNotFound
	}

	var result []climate.MonthlyAggregate
	for _, r := range h.Monthly {
		if year == 0 || r.Year == year {
			result = append(result, r)
		}
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
