package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/models"
)

//go:embed schema/postgres.sql
var postgresSchema string

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db Database
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db Database) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables when they do not exist yet
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if err := s.db.Exec(ctx, postgresSchema); err != nil {
		return apperrors.DatabaseError{Operation: "migrate", Err: err}
	}
	return nil
}

func (s *PostgresStore) LookupVessel(ctx context.Context, id string) (*models.Vessel, error) {
	query := `
		SELECT mmsi, name, vessel_type, flag, first_seen_at, updated_at
		FROM vessels
		WHERE mmsi = $1
	`

	var v models.Vessel
	err := s.db.QueryRow(ctx, query, id).Scan(
		&v.MMSI, &v.Name, &v.VesselType, &v.Flag, &v.FirstSeenAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("lookup vessel %s: %w", id, err)
	}
	return &v, nil
}

func (s *PostgresStore) UpsertVessel(ctx context.Context, v models.Vessel) error {
	query := `
		INSERT INTO vessels (mmsi, name, vessel_type, flag, first_seen_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (mmsi) DO UPDATE SET
			name = EXCLUDED.name,
			vessel_type = EXCLUDED.vessel_type,
			flag = EXCLUDED.flag,
			updated_at = EXCLUDED.updated_at
	`
	if err := s.db.Exec(ctx, query, v.MMSI, v.Name, v.VesselType, v.Flag, v.FirstSeenAt, v.UpdatedAt); err != nil {
		return fmt.Errorf("upsert vessel %s: %w", v.MMSI, err)
	}
	return nil
}

func (s *PostgresStore) ListActiveSubscriptions(ctx context.Context, vesselID string) ([]models.Subscription, error) {
	query := `
		SELECT id, user_id, vessel_id, alert_types, speed_threshold_knots, is_active
		FROM subscriptions
		WHERE is_active AND ($1 = '' OR vessel_id = $1 OR vessel_id = $2)
		ORDER BY id
	`

	rows, err := s.db.Query(ctx, query, vesselID, models.AllVessels)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var (
			sub   models.Subscription
			types []string
		)
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.VesselID, &types, &sub.SpeedThresholdKnots, &sub.IsActive); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.AlertTypes = toAlertTypes(types)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PostgresStore) AddSubscription(ctx context.Context, sub models.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_id, vessel_id, alert_types, speed_threshold_knots, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			vessel_id = EXCLUDED.vessel_id,
			alert_types = EXCLUDED.alert_types,
			speed_threshold_knots = EXCLUDED.speed_threshold_knots,
			is_active = EXCLUDED.is_active
	`
	err := s.db.Exec(ctx, query,
		sub.ID, sub.UserID, sub.VesselID, fromAlertTypes(sub.AlertTypes),
		sub.SpeedThresholdKnots, sub.IsActive,
	)
	if err != nil {
		return fmt.Errorf("add subscription %s: %w", sub.ID, err)
	}
	return nil
}

// PersistPositionReports writes the batch in one round trip; reports already
// stored under the same (vessel, timestamp) are skipped
func (s *PostgresStore) PersistPositionReports(ctx context.Context, reports []models.PositionReport) error {
	if len(reports) == 0 {
		return nil
	}

	query := `
		INSERT INTO position_reports (
			vessel_id, ts, latitude, longitude, speed_knots, course_deg,
			heading_deg, nav_status, source, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (vessel_id, ts) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, r := range reports {
		batch.Queue(query,
			r.VesselID, r.Timestamp, r.Latitude, r.Longitude, r.SpeedKnots, r.CourseDeg,
			r.HeadingDeg, r.NavStatus, r.Source, receivedAt(r),
		)
	}
	if err := s.db.SendBatch(ctx, batch); err != nil {
		return fmt.Errorf("persist %d reports: %w", len(reports), err)
	}
	return nil
}

func (s *PostgresStore) UpsertVoyage(ctx context.Context, v models.Voyage) error {
	query := `
		INSERT INTO voyages (
			id, vessel_id, start_time, start_lat, start_lon, end_time, end_lat, end_lon,
			start_port, end_port, distance_km, duration_hours, avg_speed_knots,
			state, report_count, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
		ON CONFLICT (id) DO UPDATE SET
			end_time = EXCLUDED.end_time,
			end_lat = EXCLUDED.end_lat,
			end_lon = EXCLUDED.end_lon,
			start_port = EXCLUDED.start_port,
			end_port = EXCLUDED.end_port,
			distance_km = EXCLUDED.distance_km,
			duration_hours = EXCLUDED.duration_hours,
			avg_speed_knots = EXCLUDED.avg_speed_knots,
			state = EXCLUDED.state,
			report_count = EXCLUDED.report_count,
			updated_at = EXCLUDED.updated_at
	`

	endLat, endLon := endCoords(v)
	err := s.db.Exec(ctx, query,
		v.ID, v.VesselID, v.StartTime, v.StartPos.Latitude, v.StartPos.Longitude,
		v.EndTime, endLat, endLon, v.StartPort, v.EndPort, v.DistanceKm,
		v.DurationHours, v.AvgSpeedKnots, string(v.State), v.ReportCount, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert voyage %s: %w", v.ID, err)
	}
	return nil
}

func (s *PostgresStore) AppendAlert(ctx context.Context, a models.Alert) error {
	query := `
		INSERT INTO alerts (id, user_id, vessel_id, alert_type, message, triggered_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	err := s.db.Exec(ctx, query,
		a.ID, a.UserID, a.VesselID, string(a.AlertType), a.Message, a.TriggeredAt, createdAt,
	)
	if err != nil {
		return fmt.Errorf("append alert %s: %w", a.ID, err)
	}
	return nil
}

func (s *PostgresStore) AlertExists(ctx context.Context, userID, vesselID string, alertType models.AlertType, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE user_id = $1 AND vessel_id = $2 AND alert_type = $3 AND triggered_at >= $4
		)
	`
	var exists bool
	if err := s.db.QueryRow(ctx, query, userID, vesselID, string(alertType), since).Scan(&exists); err != nil {
		return false, fmt.Errorf("alert exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ActiveVoyage(ctx context.Context, vesselID string) (*models.Voyage, error) {
	return activeVoyage(ctx, s, vesselID)
}

// QueryVoyages retrieves voyages based on query parameters
func (s *PostgresStore) QueryVoyages(ctx context.Context, q models.VoyageQuery) ([]models.Voyage, error) {
	query := `
		SELECT id, vessel_id, start_time, start_lat, start_lon, end_time, end_lat, end_lon,
			   start_port, end_port, distance_km, duration_hours, avg_speed_knots,
			   state, report_count, updated_at
		FROM voyages
		WHERE 1=1
	`

	var args []any
	argIndex := 1

	if len(q.VesselIDs) > 0 {
		query += fmt.Sprintf(" AND vessel_id = ANY($%d)", argIndex)
		args = append(args, q.VesselIDs)
		argIndex++
	}

	if len(q.States) > 0 {
		states := make([]string, len(q.States))
		for i, st := range q.States {
			states[i] = string(st)
		}
		query += fmt.Sprintf(" AND state = ANY($%d)", argIndex)
		args = append(args, states)
		argIndex++
	}

	query += " ORDER BY start_time DESC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query voyages: %w", err)
	}
	defer rows.Close()

	var voyages []models.Voyage
	for rows.Next() {
		var (
			v              models.Voyage
			state          string
			endLat, endLon *float64
		)
		err := rows.Scan(
			&v.ID, &v.VesselID, &v.StartTime, &v.StartPos.Latitude, &v.StartPos.Longitude,
			&v.EndTime, &endLat, &endLon, &v.StartPort, &v.EndPort, &v.DistanceKm,
			&v.DurationHours, &v.AvgSpeedKnots, &state, &v.ReportCount, &v.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan voyage: %w", err)
		}
		v.State = models.VoyageState(state)
		if endLat != nil && endLon != nil {
			v.EndPos = &models.Position{Latitude: *endLat, Longitude: *endLon}
		}
		voyages = append(voyages, v)
	}

	return voyages, rows.Err()
}

// QueryAlerts retrieves alerts based on query parameters
func (s *PostgresStore) QueryAlerts(ctx context.Context, q models.AlertQuery) ([]models.Alert, error) {
	query := `
		SELECT id, user_id, vessel_id, alert_type, message, triggered_at, created_at
		FROM alerts
		WHERE 1=1
	`

	var args []any
	argIndex := 1

	// Build WHERE conditions
	if len(q.UserIDs) > 0 {
		query += fmt.Sprintf(" AND user_id = ANY($%d)", argIndex)
		args = append(args, q.UserIDs)
		argIndex++
	}

	if len(q.VesselIDs) > 0 {
		query += fmt.Sprintf(" AND vessel_id = ANY($%d)", argIndex)
		args = append(args, q.VesselIDs)
		argIndex++
	}

	if len(q.AlertTypes) > 0 {
		query += fmt.Sprintf(" AND alert_type = ANY($%d)", argIndex)
		args = append(args, fromAlertTypes(q.AlertTypes))
		argIndex++
	}

	if !q.Since.IsZero() {
		query += fmt.Sprintf(" AND triggered_at >= $%d", argIndex)
		args = append(args, q.Since)
		argIndex++
	}

	if !q.Until.IsZero() {
		query += fmt.Sprintf(" AND triggered_at <= $%d", argIndex)
		args = append(args, q.Until)
		argIndex++
	}

	query += " ORDER BY triggered_at DESC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
		argIndex++
	}

	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, q.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var (
			a         models.Alert
			alertType string
		)
		err := rows.Scan(&a.ID, &a.UserID, &a.VesselID, &alertType, &a.Message, &a.TriggeredAt, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.AlertType = models.AlertType(alertType)
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// Health checks the database connection
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

// Close is a no-op; the pool belongs to the database package
func (s *PostgresStore) Close() error { return nil }

func toAlertTypes(in []string) []models.AlertType {
	out := make([]models.AlertType, 0, len(in))
	for _, t := range in {
		out = append(out, models.AlertType(t))
	}
	return out
}

func fromAlertTypes(in []models.AlertType) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		out = append(out, string(t))
	}
	return out
}

func endCoords(v models.Voyage) (*float64, *float64) {
	if v.EndPos == nil {
		return nil, nil
	}
	return models.Float(v.EndPos.Latitude), models.Float(v.EndPos.Longitude)
}

func receivedAt(r models.PositionReport) time.Time {
	if r.ReceivedAt.IsZero() {
		return time.Now().UTC()
	}
	return r.ReceivedAt
}
