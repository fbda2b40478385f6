// internal/workers/matching/find-caregiver-matches/models.go
package findcaregivermatches

import (
	"time"

	"caring-compass-workers/internal/matching"
)

type Input struct {
	VisitID           string                 `json:"visitId"`
	ClientID          string                 `json:"clientId"`
	MatchingCriteria  MatchingCriteria       `json:"matchingCriteria"`
	AutoAssign        bool                   `json:"autoAssign"`
	NotifyCoordinator bool                   `json:"notifyCoordinator"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

type MatchingCriteria struct {
	RequiredSkills     []string  `json:"requiredSkills"`
	PreferredLanguages []string  `json:"preferredLanguages,omitempty"`
	GenderPreference   string    `json:"genderPreference,omitempty"` // MALE or FEMALE
	MaxDistance        float64   `json:"maxDistance"`                // miles
	VisitDate          time.Time `json:"visitDate"`
	VisitDuration      float64   `json:"visitDuration"` // hours
	// HourlyRateMax is accepted for process compatibility and not scored.
	HourlyRateMax float64 `json:"hourlyRateMax,omitempty"`
}

type Output struct {
	Success              bool              `json:"success"`
	MatchRunID           string            `json:"matchRunId"`
	Matches              []matching.Result `json:"matches"`
	MatchCount           int               `json:"matchCount"`
	SelectedCaregiverID  string            `json:"selectedCaregiverId,omitempty"`
	AutoAssigned         bool              `json:"autoAssigned"`
	CoordinatorsNotified int               `json:"coordinatorsNotified"`
}

// Visit is the scheduled visit joined with its client.
type Visit struct {
	ID              string
	ClientID        string
	ServiceType     string
	ScheduledStart  time.Time
	ClientFirstName string
	ClientLastName  string
	ClientLocation  matching.Coordinate
}

type Coordinator struct {
	ID    string
	Email string
}

// MatchRun is the audit document indexed for every completed run.
type MatchRun struct {
	RunID                string                 `json:"runId"`
	VisitID              string                 `json:"visitId"`
	ClientID             string                 `json:"clientId"`
	Criteria             CriteriaDocument       `json:"criteria"`
	MatchCount           int                    `json:"matchCount"`
	TopMatches           []matching.Result      `json:"topMatches"`
	AutoAssignRequested  bool                   `json:"autoAssignRequested"`
	AutoAssigned         bool                   `json:"autoAssigned"`
	SelectedCaregiverID  string                 `json:"selectedCaregiverId,omitempty"`
	CoordinatorsNotified int                    `json:"coordinatorsNotified"`
	Metadata             map[string]interface{} `json:"metadata,omitempty"`
	Timestamp            time.Time              `json:"@timestamp"`
}

type CriteriaDocument struct {
	ClientLocation     matching.Coordinate `json:"clientLocation"`
	RequiredSkills     []string            `json:"requiredSkills"`
	PreferredLanguages []string            `json:"preferredLanguages"`
	GenderPreference   string              `json:"genderPreference,omitempty"`
	RequestedStart     time.Time           `json:"requestedStart"`
	VisitDurationHours float64             `json:"visitDurationHours"`
	MaxDistanceMiles   float64             `json:"maxDistanceMiles"`
}

func criteriaDocument(c matching.Criteria) CriteriaDocument {
	return CriteriaDocument{
		ClientLocation:     c.ClientLocation,
		RequiredSkills:     c.RequiredSkills,
		PreferredLanguages: c.PreferredLanguages,
		GenderPreference:   c.GenderPreference,
		RequestedStart:     c.RequestedStart,
		VisitDurationHours: c.VisitDurationHours,
		MaxDistanceMiles:   c.MaxDistanceMiles,
	}
}
