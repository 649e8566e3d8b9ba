package voyage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/metrics"
	"github.com/rajasatyajit/VesselWatch/internal/models"
	"github.com/rajasatyajit/VesselWatch/pkg/utils"
)

// Default thresholds
const (
	DefaultMinSpeedKnots = 2.0
	DefaultMinDistanceKm = 10.0
	DefaultMaxStationary = 6 * time.Hour
)

// Config tunes the state machine
type Config struct {
	MinSpeedKnots float64
	MinDistanceKm float64
	MaxStationary time.Duration
}

// DefaultConfig returns the stock thresholds
func DefaultConfig() Config {
	return Config{
		MinSpeedKnots: DefaultMinSpeedKnots,
		MinDistanceKm: DefaultMinDistanceKm,
		MaxStationary: DefaultMaxStationary,
	}
}

// Writer persists voyages; store.Sink satisfies it
type Writer interface {
	UpsertVoyage(ctx context.Context, v models.Voyage) error
}

// Reader loads the voyage left open by a previous run; store.Sink satisfies it
type Reader interface {
	// ActiveVoyage returns errors.ErrNotFound when the vessel has no open voyage
	ActiveVoyage(ctx context.Context, vesselID string) (*models.Voyage, error)
}

// voyageNamespace scopes voyage IDs derived from vessel and start time
var voyageNamespace = uuid.MustParse("6f1d7a52-3c4e-4b8a-9d2f-0e5b7c9a1d34")

// VoyageID is the natural identity of a voyage: the same vessel and start
// time always give the same ID, so replays rewrite the same row.
func VoyageID(vesselID string, start time.Time) string {
	return uuid.NewSHA1(voyageNamespace, []byte(vesselID+"|"+start.UTC().Format(time.RFC3339Nano))).String()
}

// PortResolver finds the nearest named port; geocoder.PortIndex satisfies it
type PortResolver interface {
	NearestPort(lat, lon float64) (models.Port, bool)
}

// EventKind names a voyage lifecycle transition
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventCompleted EventKind = "completed"
)

// Event is emitted when a voyage opens or closes
type Event struct {
	Kind   EventKind
	Voyage models.Voyage
}

type vesselState struct {
	last   models.PositionReport
	active *models.Voyage
	// movedAt is when the vessel was last seen moving; the stationary timer runs from it.
	movedAt time.Time
	// closedAt is the timestamp of the report that closed the previous voyage.
	closedAt time.Time
}

// Engine segments each vessel's report stream into voyages.
//
// An Engine is not safe for concurrent use. The pipeline gives every worker its
// own Engine and routes each vessel to exactly one worker, so all state for a
// vessel is owned by one goroutine.
type Engine struct {
	cfg     Config
	writer  Writer
	reader  Reader
	ports   PortResolver
	vessels map[string]*vesselState
	now     func() time.Time
}

// New creates an engine. ports may be nil, in which case every end point
// resolves to models.OpenSea. When writer also implements Reader, open
// voyages are picked up from it the first time a vessel is seen.
func New(cfg Config, writer Writer, ports PortResolver) *Engine {
	if cfg.MaxStationary <= 0 {
		cfg.MaxStationary = DefaultMaxStationary
	}
	e := &Engine{
		cfg:     cfg,
		writer:  writer,
		ports:   ports,
		vessels: make(map[string]*vesselState),
		now:     func() time.Time { return time.Now().UTC() },
	}
	if r, ok := writer.(Reader); ok {
		e.reader = r
	}
	return e
}

// Last returns the last accepted report for a vessel
func (e *Engine) Last(vesselID string) (models.PositionReport, bool) {
	st, ok := e.vessels[vesselID]
	if !ok {
		return models.PositionReport{}, false
	}
	return st.last, true
}

// Active returns the open voyage for a vessel, if any
func (e *Engine) Active(vesselID string) (models.Voyage, bool) {
	st, ok := e.vessels[vesselID]
	if !ok || st.active == nil {
		return models.Voyage{}, false
	}
	return *st.active, true
}

// ActiveCount returns the number of vessels currently on a voyage
func (e *Engine) ActiveCount() int {
	n := 0
	for _, st := range e.vessels {
		if st.active != nil {
			n++
		}
	}
	return n
}

// Tracked returns the number of vessels the engine holds state for
func (e *Engine) Tracked() int { return len(e.vessels) }

// IsMoving applies the movement rule to a pair of consecutive reports. A
// missing speed is derived from distance over elapsed time. Identical
// positions never count as moving, whatever speed the sensor claims.
func (e *Engine) IsMoving(prev, cur models.PositionReport) (bool, float64) {
	movementKm := utils.Haversine(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
	speed := cur.Speed()
	if !cur.HasSpeed() {
		speed = utils.AverageSpeedKnots(movementKm, cur.Timestamp.Sub(prev.Timestamp).Hours())
	}
	return speed > e.cfg.MinSpeedKnots && movementKm > e.cfg.MinDistanceKm, movementKm
}

// Process advances the vessel's state machine with one report. Reports not
// strictly newer than the last accepted one are ignored. Events are returned
// even when persisting the voyage fails; the in-memory state stays
// authoritative and the next write carries the full aggregate.
func (e *Engine) Process(ctx context.Context, r models.PositionReport) ([]Event, error) {
	st, seen := e.vessels[r.VesselID]
	if !seen {
		e.vessels[r.VesselID] = e.restore(ctx, r)
		return nil, nil
	}
	if !r.Timestamp.After(st.last.Timestamp) {
		return nil, nil
	}

	prev := st.last
	st.last = r
	moving, movementKm := e.IsMoving(prev, r)

	log := logger.WithContext(logger.WithVessel(ctx, r.VesselID))

	switch {
	case st.active == nil && moving:
		start := prev
		if !prev.Timestamp.After(st.closedAt) {
			// prev closed the last voyage and cannot also open this one
			start = r
		}
		v := models.Voyage{
			ID:          VoyageID(r.VesselID, start.Timestamp),
			VesselID:    r.VesselID,
			StartTime:   start.Timestamp,
			StartPos:    start.Position(),
			State:       models.VoyageActive,
			ReportCount: 1,
			UpdatedAt:   e.now(),
		}
		if start.Timestamp.Before(r.Timestamp) {
			v.ReportCount = 2
		}
		st.active = &v
		st.movedAt = r.Timestamp

		log.Info("Voyage started", "voyage_id", v.ID, "movement_km", movementKm)
		metrics.RecordVoyage(string(EventStarted))
		events := []Event{{Kind: EventStarted, Voyage: v}}
		if err := e.write(ctx, v); err != nil {
			return events, err
		}
		return events, nil

	case st.active != nil && moving:
		st.movedAt = r.Timestamp
		st.active.ReportCount++
		return nil, nil

	case st.active != nil:
		st.active.ReportCount++
		if r.Timestamp.Sub(st.movedAt) <= e.cfg.MaxStationary {
			return nil, nil
		}
		v := e.close(st, r)
		log.Info("Voyage completed",
			"voyage_id", v.ID,
			"distance_km", v.DistanceKm,
			"duration_hours", v.DurationHours,
			"end_port", v.EndPort,
		)
		events := []Event{{Kind: EventCompleted, Voyage: v}}
		if err := e.write(ctx, v); err != nil {
			return events, err
		}
		return events, nil
	}

	return nil, nil
}

// Sweep closes active voyages of vessels that have been silent for longer
// than the stationary limit, using the last known report as the end point.
func (e *Engine) Sweep(ctx context.Context, now time.Time) ([]Event, error) {
	var (
		events []Event
		errs   []error
	)
	for id, st := range e.vessels {
		if st.active == nil || now.Sub(st.last.Timestamp) <= e.cfg.MaxStationary {
			continue
		}
		v := e.close(st, st.last)
		logger.WithContext(logger.WithVessel(ctx, id)).Info("Voyage closed by sweep",
			"voyage_id", v.ID,
			"silent_for", now.Sub(st.last.Timestamp).String(),
		)
		events = append(events, Event{Kind: EventCompleted, Voyage: v})
		if err := e.write(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return events, fmt.Errorf("sweep: %d voyage writes failed, first: %w", len(errs), errs[0])
	}
	return events, nil
}

// restore builds the state for a vessel seen for the first time, resuming
// the voyage a previous run left open. Motion is assumed up to r, so the
// stationary timer restarts from the first report after the restart.
func (e *Engine) restore(ctx context.Context, r models.PositionReport) *vesselState {
	st := &vesselState{last: r}
	if e.reader == nil {
		return st
	}
	v, err := e.reader.ActiveVoyage(ctx, r.VesselID)
	switch {
	case err == nil && v != nil && v.IsActive():
		st.active = v
		st.movedAt = r.Timestamp
		if v.StartTime.Before(r.Timestamp) {
			v.ReportCount++
		} else {
			st.movedAt = v.StartTime
		}
		logger.WithContext(logger.WithVessel(ctx, r.VesselID)).Info("Resumed open voyage",
			"voyage_id", v.ID,
			"start_time", v.StartTime,
		)
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		logger.WithContext(logger.WithVessel(ctx, r.VesselID)).Warn("Open voyage lookup failed", "error", err)
	}
	return st
}

// close finalises the active voyage. The end time is when motion ceased; the
// end position is the closing report.
func (e *Engine) close(st *vesselState, end models.PositionReport) models.Voyage {
	v := *st.active
	endTime := st.movedAt
	endPos := end.Position()

	v.EndTime = &endTime
	v.EndPos = &endPos
	v.StartPort = e.resolve(v.StartPos)
	v.EndPort = e.resolve(endPos)
	v.DistanceKm = utils.Haversine(v.StartPos.Latitude, v.StartPos.Longitude, endPos.Latitude, endPos.Longitude)
	v.DurationHours = endTime.Sub(v.StartTime).Hours()
	v.AvgSpeedKnots = utils.AverageSpeedKnots(v.DistanceKm, v.DurationHours)
	v.State = models.VoyageCompleted
	v.UpdatedAt = e.now()

	st.active = nil
	st.closedAt = end.Timestamp
	metrics.RecordVoyage(string(EventCompleted))
	return v
}

func (e *Engine) resolve(p models.Position) string {
	if e.ports == nil {
		return models.OpenSea
	}
	if port, ok := e.ports.NearestPort(p.Latitude, p.Longitude); ok {
		return port.Name
	}
	return models.OpenSea
}

func (e *Engine) write(ctx context.Context, v models.Voyage) error {
	if e.writer == nil {
		return nil
	}
	if err := e.writer.UpsertVoyage(ctx, v); err != nil {
		return fmt.Errorf("upsert voyage %s: %w", v.ID, err)
	}
	return nil
}
