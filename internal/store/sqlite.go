package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/metrics"
	"github.com/rajasatyajit/VesselWatch/internal/models"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// sqliteTime is fixed width so that stored timestamps sort lexically
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store on a single SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; workers queue on the pool instead of on SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.Init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logger.Info("SQLite store ready", "path", path)
	return s, nil
}

// Init creates the necessary tables and indexes
func (s *SQLiteStore) Init() error {
	_, err := s.db.Exec(sqliteSchema)
	return err
}

func (s *SQLiteStore) LookupVessel(ctx context.Context, id string) (*models.Vessel, error) {
	var (
		v                  models.Vessel
		firstSeen, updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT mmsi, name, vessel_type, flag, first_seen_at, updated_at
		FROM vessels WHERE mmsi = ?
	`, id).Scan(&v.MMSI, &v.Name, &v.VesselType, &v.Flag, &firstSeen, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("lookup vessel %s: %w", id, err)
	}
	v.FirstSeenAt = parseTime(firstSeen)
	v.UpdatedAt = parseTime(updated)
	return &v, nil
}

func (s *SQLiteStore) UpsertVessel(ctx context.Context, v models.Vessel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vessels (mmsi, name, vessel_type, flag, first_seen_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (mmsi) DO UPDATE SET
			name = excluded.name,
			vessel_type = excluded.vessel_type,
			flag = excluded.flag,
			updated_at = excluded.updated_at
	`, v.MMSI, v.Name, v.VesselType, v.Flag, formatTime(v.FirstSeenAt), formatTime(v.UpdatedAt))
	s.record("exec", err)
	if err != nil {
		return fmt.Errorf("upsert vessel %s: %w", v.MMSI, err)
	}
	return nil
}

func (s *SQLiteStore) ListActiveSubscriptions(ctx context.Context, vesselID string) ([]models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, vessel_id, alert_types, speed_threshold_knots, is_active
		FROM subscriptions
		WHERE is_active = 1 AND (? = '' OR vessel_id = ? OR vessel_id = ?)
		ORDER BY id
	`, vesselID, vesselID, models.AllVessels)
	s.record("query", err)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var (
			sub       models.Subscription
			types     string
			threshold sql.NullFloat64
		)
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.VesselID, &types, &threshold, &sub.IsActive); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		if types != "" {
			sub.AlertTypes = toAlertTypes(strings.Split(types, ","))
		}
		if threshold.Valid {
			sub.SpeedThresholdKnots = models.Float(threshold.Float64)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *SQLiteStore) AddSubscription(ctx context.Context, sub models.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO subscriptions
		(id, user_id, vessel_id, alert_types, speed_threshold_knots, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.UserID, sub.VesselID, strings.Join(fromAlertTypes(sub.AlertTypes), ","),
		nullFloat(sub.SpeedThresholdKnots), sub.IsActive)
	s.record("exec", err)
	if err != nil {
		return fmt.Errorf("add subscription %s: %w", sub.ID, err)
	}
	return nil
}

// PersistPositionReports performs a bulk insert within a transaction
func (s *SQLiteStore) PersistPositionReports(ctx context.Context, reports []models.PositionReport) error {
	if len(reports) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO position_reports
		(vessel_id, ts, latitude, longitude, speed_knots, course_deg, heading_deg, nav_status, source, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range reports {
		var status sql.NullInt64
		if r.NavStatus != nil {
			status = sql.NullInt64{Int64: int64(*r.NavStatus), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			r.VesselID, formatTime(r.Timestamp), r.Latitude, r.Longitude,
			nullFloat(r.SpeedKnots), nullFloat(r.CourseDeg), nullFloat(r.HeadingDeg), status,
			r.Source, formatTime(receivedAt(r)),
		)
		if err != nil {
			s.record("exec", err)
			return fmt.Errorf("failed to insert report %s: %w", r.Key(), err)
		}
	}

	err = tx.Commit()
	s.record("exec", err)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReportCount returns the number of stored reports
func (s *SQLiteStore) ReportCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM position_reports`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) UpsertVoyage(ctx context.Context, v models.Voyage) error {
	var endTime sql.NullString
	if v.EndTime != nil {
		endTime = sql.NullString{String: formatTime(*v.EndTime), Valid: true}
	}
	endLat, endLon := endCoords(v)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO voyages (
			id, vessel_id, start_time, start_lat, start_lon, end_time, end_lat, end_lon,
			start_port, end_port, distance_km, duration_hours, avg_speed_knots,
			state, report_count, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			end_time = excluded.end_time,
			end_lat = excluded.end_lat,
			end_lon = excluded.end_lon,
			start_port = excluded.start_port,
			end_port = excluded.end_port,
			distance_km = excluded.distance_km,
			duration_hours = excluded.duration_hours,
			avg_speed_knots = excluded.avg_speed_knots,
			state = excluded.state,
			report_count = excluded.report_count,
			updated_at = excluded.updated_at
	`,
		v.ID, v.VesselID, formatTime(v.StartTime), v.StartPos.Latitude, v.StartPos.Longitude,
		endTime, nullFloat(endLat), nullFloat(endLon), v.StartPort, v.EndPort, v.DistanceKm,
		v.DurationHours, v.AvgSpeedKnots, string(v.State), v.ReportCount, formatTime(v.UpdatedAt),
	)
	s.record("exec", err)
	if err != nil {
		return fmt.Errorf("upsert voyage %s: %w", v.ID, err)
	}
	return nil
}

func (s *SQLiteStore) AppendAlert(ctx context.Context, a models.Alert) error {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, user_id, vessel_id, alert_type, message, triggered_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.VesselID, string(a.AlertType), a.Message, formatTime(a.TriggeredAt), formatTime(createdAt))
	s.record("exec", err)
	if err != nil {
		return fmt.Errorf("append alert %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteStore) AlertExists(ctx context.Context, userID, vesselID string, alertType models.AlertType, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE user_id = ? AND vessel_id = ? AND alert_type = ? AND triggered_at >= ?
		)
	`, userID, vesselID, string(alertType), formatTime(since)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("alert exists: %w", err)
	}
	return exists, nil
}

func (s *SQLiteStore) ActiveVoyage(ctx context.Context, vesselID string) (*models.Voyage, error) {
	return activeVoyage(ctx, s, vesselID)
}

func (s *SQLiteStore) QueryVoyages(ctx context.Context, q models.VoyageQuery) ([]models.Voyage, error) {
	query := `
		SELECT id, vessel_id, start_time, start_lat, start_lon, end_time, end_lat, end_lon,
			   start_port, end_port, distance_km, duration_hours, avg_speed_knots,
			   state, report_count, updated_at
		FROM voyages
		WHERE 1=1
	`
	var args []any
	if len(q.VesselIDs) > 0 {
		query += " AND vessel_id IN (" + placeholders(len(q.VesselIDs)) + ")"
		for _, id := range q.VesselIDs {
			args = append(args, id)
		}
	}
	if len(q.States) > 0 {
		query += " AND state IN (" + placeholders(len(q.States)) + ")"
		for _, st := range q.States {
			args = append(args, string(st))
		}
	}
	query += " ORDER BY start_time DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	s.record("query", err)
	if err != nil {
		return nil, fmt.Errorf("query voyages: %w", err)
	}
	defer rows.Close()

	var voyages []models.Voyage
	for rows.Next() {
		var (
			v              models.Voyage
			start, updated string
			state          string
			endTime        sql.NullString
			endLat, endLon sql.NullFloat64
		)
		err := rows.Scan(
			&v.ID, &v.VesselID, &start, &v.StartPos.Latitude, &v.StartPos.Longitude,
			&endTime, &endLat, &endLon, &v.StartPort, &v.EndPort, &v.DistanceKm,
			&v.DurationHours, &v.AvgSpeedKnots, &state, &v.ReportCount, &updated,
		)
		if err != nil {
			return nil, fmt.Errorf("scan voyage: %w", err)
		}
		v.StartTime = parseTime(start)
		v.UpdatedAt = parseTime(updated)
		v.State = models.VoyageState(state)
		if endTime.Valid {
			t := parseTime(endTime.String)
			v.EndTime = &t
		}
		if endLat.Valid && endLon.Valid {
			v.EndPos = &models.Position{Latitude: endLat.Float64, Longitude: endLon.Float64}
		}
		voyages = append(voyages, v)
	}
	return voyages, rows.Err()
}

func (s *SQLiteStore) QueryAlerts(ctx context.Context, q models.AlertQuery) ([]models.Alert, error) {
	query := `
		SELECT id, user_id, vessel_id, alert_type, message, triggered_at, created_at
		FROM alerts
		WHERE 1=1
	`
	var args []any
	if len(q.UserIDs) > 0 {
		query += " AND user_id IN (" + placeholders(len(q.UserIDs)) + ")"
		for _, id := range q.UserIDs {
			args = append(args, id)
		}
	}
	if len(q.VesselIDs) > 0 {
		query += " AND vessel_id IN (" + placeholders(len(q.VesselIDs)) + ")"
		for _, id := range q.VesselIDs {
			args = append(args, id)
		}
	}
	if len(q.AlertTypes) > 0 {
		query += " AND alert_type IN (" + placeholders(len(q.AlertTypes)) + ")"
		for _, t := range q.AlertTypes {
			args = append(args, string(t))
		}
	}
	if !q.Since.IsZero() {
		query += " AND triggered_at >= ?"
		args = append(args, formatTime(q.Since))
	}
	if !q.Until.IsZero() {
		query += " AND triggered_at <= ?"
		args = append(args, formatTime(q.Until))
	}
	query += " ORDER BY triggered_at DESC"
	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	s.record("query", err)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var (
			a                  models.Alert
			alertType          string
			triggered, created string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.VesselID, &alertType, &a.Message, &triggered, &created); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.AlertType = models.AlertType(alertType)
		a.TriggeredAt = parseTime(triggered)
		a.CreatedAt = parseTime(created)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) record(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDBQuery(op, status)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(sqliteTime, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
