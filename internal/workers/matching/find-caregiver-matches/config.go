// internal/workers/matching/find-caregiver-matches/config.go
package findcaregivermatches

import (
	"time"

	"caring-compass-workers/internal/common/camunda"
)

type Config struct {
	Timeout time.Duration
	// Location is the agency time zone the visit date is read in.
	Location     *time.Location
	MaxResults   int
	AuditEnabled bool
	AuditIndex   string
	Retry        camunda.RetryConfig
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		Location:   time.UTC,
		MaxResults: 10,
		AuditIndex: "caregiver-match-runs",
		Retry:      camunda.DefaultRetryConfig,
	}
}

func (c *Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}
