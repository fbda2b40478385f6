// internal/matching/scoring.go
package matching

import (
	"fmt"
	"math"
)

// MinimumScore is exclusive: a candidate must score strictly more to be returned.
const MinimumScore = 20

const (
	ReasonVeryClose          = "Very close location"
	ReasonClose              = "Close location"
	ReasonReasonableDistance = "Reasonable distance"
	ReasonAllSkills          = "All required skills"
	ReasonLanguage           = "Language preference match"
	ReasonGender             = "Gender preference match"
	ReasonAvailable          = "Available at requested time"
	ReasonConflict           = "Scheduling conflict"
)

const (
	pointsAllSkills = 25
	pointsLanguage  = 15
	pointsGender    = 10
	pointsAvailable = 20
	penaltyConflict = 30
)

// Score evaluates a single candidate against criteria. The boolean is false when
// the candidate lies outside the search radius, in which case the Result is empty.
// The acceptance threshold is not applied here.
func Score(c Candidate, criteria Criteria) (Result, bool) {
	distance := Haversine(criteria.ClientLocation, locationOf(c))
	if distance > criteria.MaxDistanceMiles {
		return Result{}, false
	}

	var (
		total   int
		reasons []string
	)
	add := func(points int, reason string) {
		total += points
		reasons = append(reasons, reason)
	}

	if points, reason := distanceScore(distance); reason != "" {
		add(points, reason)
	}

	if points, reason := skillScore(criteria.RequiredSkills, c.Skills); reason != "" {
		add(points, reason)
	}

	if contains(criteria.PreferredLanguages, c.PrimaryLanguage) {
		add(pointsLanguage, ReasonLanguage)
	}

	if criteria.GenderPreference != "" && c.Gender == criteria.GenderPreference {
		add(pointsGender, ReasonGender)
	}

	start := criteria.RequestedStart
	hasAvailability := AvailableAt(c.Availability, start, criteria.VisitDurationHours)
	if hasAvailability {
		add(pointsAvailable, ReasonAvailable)
	}

	hasConflict := HasConflict(c.Bookings, criteria.VisitID, start, criteria.VisitDurationHours)
	if hasConflict {
		add(-penaltyConflict, ReasonConflict)
	}

	return Result{
		CaregiverID:   c.ID,
		Score:         total,
		Reasons:       reasons,
		DistanceMiles: distance,
		IsAvailable:   hasAvailability && !hasConflict,
	}, true
}

// skillScore returns no reason when nothing is required or nothing matched.
func skillScore(required, held []string) (int, string) {
	if len(required) == 0 {
		return 0, ""
	}

	matched := 0
	for _, s := range required {
		if contains(held, s) {
			matched++
		}
	}

	switch {
	case matched == len(required):
		return pointsAllSkills, ReasonAllSkills
	case matched > 0:
		points := int(math.Floor(float64(matched) / float64(len(required)) * pointsAllSkills))
		return points, fmt.Sprintf("%d/%d skills matched", matched, len(required))
	default:
		return 0, ""
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
