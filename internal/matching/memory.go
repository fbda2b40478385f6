// internal/matching/memory.go
package matching

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process CaregiverStore. It applies the same effective-date
// and same-day filtering as the database-backed store.
type MemoryStore struct {
	mu         sync.RWMutex
	candidates []Candidate
	err        error
	calls      int
}

func NewMemoryStore(candidates ...Candidate) *MemoryStore {
	return &MemoryStore{candidates: candidates}
}

// Put adds c, replacing any candidate with the same id.
func (s *MemoryStore) Put(c Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.candidates {
		if s.candidates[i].ID == c.ID {
			s.candidates[i] = c
			return
		}
	}
	s.candidates = append(s.candidates, c)
}

// FailWith makes every subsequent read return err. A nil err clears it.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns how many reads the store has served.
func (s *MemoryStore) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

func (s *MemoryStore) ListActiveCaregivers(ctx context.Context, asOf time.Time) ([]Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}

	dayStart := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, asOf.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	out := make([]Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		cp := c
		cp.Skills = append([]string(nil), c.Skills...)

		cp.Availability = nil
		for _, w := range c.Availability {
			if w.EffectiveOn(asOf) {
				cp.Availability = append(cp.Availability, w)
			}
		}

		cp.Bookings = nil
		for _, b := range c.Bookings {
			if !b.Start.Before(dayStart) && b.Start.Before(dayEnd) {
				cp.Bookings = append(cp.Bookings, b)
			}
		}
		out = append(out, cp)
	}
	return out, nil
}
