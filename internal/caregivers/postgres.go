// Package caregivers loads active caregiver snapshots for the matcher.
package caregivers

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"caring-compass-workers/internal/matching"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

const (
	queryActiveProfiles = `
		SELECT id, latitude, longitude, COALESCE(gender, ''), COALESCE(primary_language, '')
		FROM caregiver_profiles
		WHERE status = 'ACTIVE'
		ORDER BY id`

	querySkills = `
		SELECT caregiver_id, skill_name
		FROM caregiver_skills
		WHERE caregiver_id = ANY($1)`

	queryAvailability = `
		SELECT caregiver_id, day_of_week, start_time, end_time, effective_date
		FROM caregiver_availability
		WHERE caregiver_id = ANY($1) AND effective_date <= $2::date
		ORDER BY caregiver_id, day_of_week, effective_date DESC, start_time`

	queryBookings = `
		SELECT id, caregiver_id, scheduled_start, scheduled_end
		FROM visits
		WHERE caregiver_id = ANY($1)
		  AND scheduled_start >= $2 AND scheduled_start < $3
		  AND status <> 'CANCELLED'
		ORDER BY caregiver_id, scheduled_start`
)

const dateLayout = "2006-01-02"

var weekdays = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// PostgresStore reads caregivers with one profile query followed by three
// batched child queries that run concurrently.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListActiveCaregivers(ctx context.Context, asOf time.Time) ([]matching.Candidate, error) {
	candidates, err := s.loadProfiles(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]string, len(candidates))
	index := make(map[string]*matching.Candidate, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].ID
		index[candidates[i].ID] = &candidates[i]
	}

	dayStart := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, asOf.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	skills := map[string][]string{}
	windows := map[string][]matching.AvailabilityWindow{}
	bookings := map[string][]matching.Booking{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		skills, err = s.loadSkills(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		windows, err = s.loadAvailability(gctx, ids, asOf)
		return err
	})
	g.Go(func() error {
		var err error
		bookings, err = s.loadBookings(gctx, ids, dayStart, dayEnd)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for id, c := range index {
		c.Skills = skills[id]
		c.Availability = windows[id]
		c.Bookings = bookings[id]
	}
	return candidates, nil
}

func (s *PostgresStore) loadProfiles(ctx context.Context) ([]matching.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, queryActiveProfiles)
	if err != nil {
		return nil, fmt.Errorf("query caregiver profiles: %w", err)
	}
	defer rows.Close()

	var out []matching.Candidate
	for rows.Next() {
		var (
			c        matching.Candidate
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, &lat, &lon, &c.Gender, &c.PrimaryLanguage); err != nil {
			return nil, fmt.Errorf("scan caregiver profile: %w", err)
		}
		if lat.Valid && lon.Valid {
			c.Location = &matching.Coordinate{Latitude: lat.Float64, Longitude: lon.Float64}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate caregiver profiles: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) loadSkills(ctx context.Context, ids []string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, querySkills, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query caregiver skills: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var id, skill string
		if err := rows.Scan(&id, &skill); err != nil {
			return nil, fmt.Errorf("scan caregiver skill: %w", err)
		}
		out[id] = append(out[id], skill)
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadAvailability(ctx context.Context, ids []string, asOf time.Time) (map[string][]matching.AvailabilityWindow, error) {
	// effective_date is a calendar date; compare it against asOf's local date.
	rows, err := s.db.QueryContext(ctx, queryAvailability, pq.Array(ids), asOf.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query caregiver availability: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]matching.AvailabilityWindow)
	for rows.Next() {
		var (
			id, day, start, end string
			effective           time.Time
		)
		if err := rows.Scan(&id, &day, &start, &end, &effective); err != nil {
			return nil, fmt.Errorf("scan caregiver availability: %w", err)
		}

		w, err := toWindow(day, start, end, effective)
		if err != nil {
			return nil, fmt.Errorf("caregiver %s availability: %w", id, err)
		}
		out[id] = append(out[id], w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadBookings(ctx context.Context, ids []string, from, to time.Time) (map[string][]matching.Booking, error) {
	rows, err := s.db.QueryContext(ctx, queryBookings, pq.Array(ids), from, to)
	if err != nil {
		return nil, fmt.Errorf("query caregiver bookings: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]matching.Booking)
	for rows.Next() {
		var (
			visitID, id string
			start       time.Time
			end         sql.NullTime
		)
		if err := rows.Scan(&visitID, &id, &start, &end); err != nil {
			return nil, fmt.Errorf("scan caregiver booking: %w", err)
		}

		b := matching.Booking{VisitID: visitID, Start: start}
		if end.Valid {
			e := end.Time
			b.End = &e
		}
		out[id] = append(out[id], b)
	}
	return out, rows.Err()
}

func toWindow(day, start, end string, effective time.Time) (matching.AvailabilityWindow, error) {
	weekday, ok := weekdays[strings.ToUpper(strings.TrimSpace(day))]
	if !ok {
		return matching.AvailabilityWindow{}, fmt.Errorf("unknown day of week %q", day)
	}
	startHour, err := parseHour(start)
	if err != nil {
		return matching.AvailabilityWindow{}, err
	}
	endHour, err := parseHour(end)
	if err != nil {
		return matching.AvailabilityWindow{}, err
	}
	return matching.AvailabilityWindow{
		DayOfWeek:     weekday,
		StartHour:     startHour,
		EndHour:       endHour,
		EffectiveDate: effective,
	}, nil
}

// parseHour reads the hour from an "HH:MM" clock value. Minutes are dropped.
func parseHour(clock string) (int, error) {
	h, _, _ := strings.Cut(strings.TrimSpace(clock), ":")
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid clock value %q", clock)
	}
	return hour, nil
}
