// internal/matching/models.go
package matching

import "time"

// Coordinate is a point on the earth's surface in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Criteria describes a single care request.
type Criteria struct {
	// VisitID is the visit being staffed, if it already exists. Its own
	// booking is ignored when checking for conflicts.
	VisitID            string
	ClientLocation     Coordinate
	RequiredSkills     []string
	PreferredLanguages []string
	GenderPreference   string // empty means no preference
	RequestedStart     time.Time
	VisitDurationHours float64
	MaxDistanceMiles   float64
}

// AvailabilityWindow is one effective-dated weekly availability row.
// StartHour and EndHour are hours of the day in the agency time zone.
type AvailabilityWindow struct {
	DayOfWeek     time.Weekday `json:"dayOfWeek"`
	StartHour     int          `json:"startHour"`
	EndHour       int          `json:"endHour"`
	EffectiveDate time.Time    `json:"effectiveDate"`
}

// Booking is an existing, non-cancelled visit on the requested day.
type Booking struct {
	VisitID string     `json:"visitId,omitempty"`
	Start   time.Time  `json:"start"`
	End     *time.Time `json:"end,omitempty"`
}

// Candidate is an active caregiver as read from a CaregiverStore.
type Candidate struct {
	ID              string               `json:"id"`
	Location        *Coordinate          `json:"location,omitempty"`
	Gender          string               `json:"gender"`
	PrimaryLanguage string               `json:"primaryLanguage"`
	Skills          []string             `json:"skills"`
	Availability    []AvailabilityWindow `json:"availability"`
	Bookings        []Booking            `json:"bookings"`
}

// Result is the scored outcome for one accepted candidate.
type Result struct {
	CaregiverID   string   `json:"caregiverId"`
	Score         int      `json:"score"`
	Reasons       []string `json:"reasons"`
	DistanceMiles float64  `json:"distance"`
	IsAvailable   bool     `json:"availability"`
}
