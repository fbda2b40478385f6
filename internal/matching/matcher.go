// Package matching ranks active caregivers against a single care request.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"caring-compass-workers/internal/common/logger"
)

// ErrDataUnavailable is returned when the caregiver store cannot be read.
var ErrDataUnavailable = errors.New("caregiver data unavailable")

// CaregiverStore is the read contract the matcher depends on.
//
// ListActiveCaregivers returns active caregivers with their skills, the
// availability windows effective on or before asOf, and the non-cancelled
// bookings on asOf's calendar day.
type CaregiverStore interface {
	ListActiveCaregivers(ctx context.Context, asOf time.Time) ([]Candidate, error)
}

type Matcher struct {
	store  CaregiverStore
	logger logger.Logger
}

func NewMatcher(store CaregiverStore, log logger.Logger) *Matcher {
	return &Matcher{
		store:  store,
		logger: log,
	}
}

// FindMatches scores every active caregiver and returns those above MinimumScore,
// best first. Equal scores are ordered by caregiver id.
func (m *Matcher) FindMatches(ctx context.Context, criteria Criteria) ([]Result, error) {
	candidates, err := m.store.ListActiveCaregivers(ctx, criteria.RequestedStart)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}

	results := make([]Result, 0, len(candidates))
	outOfRange := 0
	for _, c := range candidates {
		r, inRange := Score(c, criteria)
		if !inRange {
			outOfRange++
			continue
		}
		if r.Score > MinimumScore {
			results = append(results, r)
		}
	}

	sortResults(results)

	m.logger.Debug("caregiver matching finished", map[string]interface{}{
		"candidates": len(candidates),
		"outOfRange": outOfRange,
		"matches":    len(results),
	})

	return results, nil
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CaregiverID < results[j].CaregiverID
	})
}
