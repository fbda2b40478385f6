package findcaregivermatches

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"caring-compass-workers/internal/common/errors"
)

const (
	queryVisit = `
		SELECT v.id, v.client_id, COALESCE(v.service_type, ''), v.scheduled_start,
		       COALESCE(c.first_name, ''), COALESCE(c.last_name, ''), c.latitude, c.longitude
		FROM visits v
		JOIN clients c ON c.id = v.client_id
		WHERE v.id = $1`

	queryAssignVisit = `
		UPDATE visits
		SET caregiver_id = $2, status = 'ASSIGNED', assigned_at = $3, assigned_by = 'SYSTEM'
		WHERE id = $1`

	queryCoordinators = `
		SELECT id, COALESCE(email, '')
		FROM users
		WHERE role = 'COORDINATOR' AND is_active = true
		ORDER BY id`

	queryCaregiverPhone = `
		SELECT COALESCE(phone, '')
		FROM caregiver_profiles
		WHERE id = $1`
)

type visitRepository struct {
	db *sql.DB
}

func (r *visitRepository) loadVisit(ctx context.Context, visitID string) (*Visit, error) {
	var (
		v        Visit
		lat, lon sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, queryVisit, visitID).Scan(
		&v.ID, &v.ClientID, &v.ServiceType, &v.ScheduledStart,
		&v.ClientFirstName, &v.ClientLastName, &lat, &lon,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewVisitNotFoundError(visitID).WithMetadata("visitId", visitID)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("load visit", err)
	}

	// Missing client coordinates are treated as the origin.
	v.ClientLocation.Latitude = lat.Float64
	v.ClientLocation.Longitude = lon.Float64
	return &v, nil
}

func (r *visitRepository) assignVisit(ctx context.Context, visitID, caregiverID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, queryAssignVisit, visitID, caregiverID, at)
	if err != nil {
		return errors.NewAssignmentFailedError(visitID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewAssignmentFailedError(visitID, err)
	}
	if n == 0 {
		return errors.NewAssignmentFailedError(visitID, fmt.Errorf("visit %s no longer exists", visitID))
	}
	return nil
}

func (r *visitRepository) listCoordinators(ctx context.Context) ([]Coordinator, error) {
	rows, err := r.db.QueryContext(ctx, queryCoordinators)
	if err != nil {
		return nil, fmt.Errorf("query coordinators: %w", err)
	}
	defer rows.Close()

	var out []Coordinator
	for rows.Next() {
		var c Coordinator
		if err := rows.Scan(&c.ID, &c.Email); err != nil {
			return nil, fmt.Errorf("scan coordinator: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *visitRepository) caregiverPhone(ctx context.Context, caregiverID string) (string, error) {
	var phone string
	if err := r.db.QueryRowContext(ctx, queryCaregiverPhone, caregiverID).Scan(&phone); err != nil {
		return "", fmt.Errorf("query caregiver phone: %w", err)
	}
	return phone, nil
}
