package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/metrics"
	"github.com/rajasatyajit/VesselWatch/internal/models"
)

// DefaultMovementThresholdKnots separates "moving" from "stopped"
const DefaultMovementThresholdKnots = 0.5

// Status is the coarse navigation state derived from speed
type Status string

const (
	StatusMoving  Status = "moving"
	StatusStopped Status = "stopped"
)

// Writer is the part of the sink the engine needs
type Writer interface {
	AlertExists(ctx context.Context, userID, vesselID string, alertType models.AlertType, since time.Time) (bool, error)
	AppendAlert(ctx context.Context, a models.Alert) error
}

// PortResolver names the port a vessel is near, for port event messages
type PortResolver interface {
	NearestPort(lat, lon float64) (models.Port, bool)
}

// Engine evaluates subscriptions against consecutive report pairs. It keeps
// no per-vessel state of its own: the caller passes the previous report.
type Engine struct {
	threshold float64
	writer    Writer
	ports     PortResolver
	now       func() time.Time
	newID     func() string
}

// New creates an alert engine. A non-positive threshold uses the default.
func New(movementThresholdKnots float64, writer Writer, ports PortResolver) *Engine {
	if movementThresholdKnots <= 0 {
		movementThresholdKnots = DefaultMovementThresholdKnots
	}
	return &Engine{
		threshold: movementThresholdKnots,
		writer:    writer,
		ports:     ports,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// StatusOf derives the coarse status of a report
func (e *Engine) StatusOf(r models.PositionReport) Status {
	if r.Speed() > e.threshold {
		return StatusMoving
	}
	return StatusStopped
}

// candidate is an alert that passed its rule but not yet deduplication
type candidate struct {
	alertType models.AlertType
	message   string
}

// Evaluate compares cur with prev for every subscription and records the
// alerts that fire. prev is nil for the first report of a vessel, and then
// nothing fires. Alerts already recorded for the same user, vessel and type
// at or after cur's timestamp are skipped, so re-evaluating a pair is safe.
func (e *Engine) Evaluate(ctx context.Context, prev *models.PositionReport, cur models.PositionReport, subs []models.Subscription) ([]models.Alert, error) {
	if prev == nil {
		return nil, nil
	}

	var (
		raised []models.Alert
		errs   apperrors.MultiError
	)
	for _, sub := range subs {
		if !sub.Covers(cur.VesselID) {
			continue
		}
		for _, c := range e.rules(sub, *prev, cur) {
			a, err := e.record(ctx, sub, cur, c)
			if err != nil {
				errs.Add(err)
				continue
			}
			if a != nil {
				raised = append(raised, *a)
			}
		}
	}
	return raised, errs.ErrOrNil()
}

func (e *Engine) rules(sub models.Subscription, prev, cur models.PositionReport) []candidate {
	var out []candidate

	if sub.Wants(models.AlertTypeSpeed) && sub.SpeedThresholdKnots != nil && prev.HasSpeed() && cur.HasSpeed() {
		limit := *sub.SpeedThresholdKnots
		if prev.Speed() <= limit && cur.Speed() > limit {
			out = append(out, candidate{
				alertType: models.AlertTypeSpeed,
				message:   fmt.Sprintf("Vessel %s is doing %.1f kn, above your %.1f kn threshold", cur.VesselID, cur.Speed(), limit),
			})
		}
	}

	// Without both speeds the status of the pair is unknown and nothing can change.
	if !prev.HasSpeed() || !cur.HasSpeed() {
		return out
	}
	before, after := e.StatusOf(prev), e.StatusOf(cur)
	if before == after {
		return out
	}

	if sub.Wants(models.AlertTypeStatusChange) {
		out = append(out, candidate{
			alertType: models.AlertTypeStatusChange,
			message:   fmt.Sprintf("Vessel %s changed from %s to %s (%.1f kn)", cur.VesselID, before, after, cur.Speed()),
		})
	}

	// In port is approximated as stopped; this is not geofencing.
	if sub.Wants(models.AlertTypePortEvent) {
		out = append(out, candidate{
			alertType: models.AlertTypePortEvent,
			message:   e.portMessage(cur, after == StatusStopped),
		})
	}
	return out
}

func (e *Engine) record(ctx context.Context, sub models.Subscription, cur models.PositionReport, c candidate) (*models.Alert, error) {
	log := logger.WithContext(logger.WithVessel(ctx, cur.VesselID))

	exists, err := e.writer.AlertExists(ctx, sub.UserID, cur.VesselID, c.alertType, cur.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("check alert %s for %s: %w", c.alertType, sub.UserID, err)
	}
	if exists {
		metrics.RecordAlert(string(c.alertType), "suppressed")
		log.Debug("Alert suppressed", "user_id", sub.UserID, "alert_type", c.alertType)
		return nil, nil
	}

	a := models.Alert{
		ID:          e.newID(),
		UserID:      sub.UserID,
		VesselID:    cur.VesselID,
		AlertType:   c.alertType,
		Message:     c.message,
		TriggeredAt: cur.Timestamp,
		CreatedAt:   e.now(),
	}
	if err := e.writer.AppendAlert(ctx, a); err != nil {
		metrics.RecordAlert(string(c.alertType), "error")
		return nil, fmt.Errorf("append alert %s for %s: %w", c.alertType, sub.UserID, err)
	}

	metrics.RecordAlert(string(c.alertType), "raised")
	log.Info("Alert raised", "user_id", sub.UserID, "alert_type", c.alertType, "alert_id", a.ID)
	return &a, nil
}

func (e *Engine) portMessage(r models.PositionReport, entered bool) string {
	var (
		port models.Port
		ok   bool
	)
	if e.ports != nil {
		port, ok = e.ports.NearestPort(r.Latitude, r.Longitude)
	}
	switch {
	case entered && ok:
		return fmt.Sprintf("Vessel %s entered port near %s", r.VesselID, port.Name)
	case entered:
		return fmt.Sprintf("Vessel %s stopped at open sea", r.VesselID)
	case ok:
		return fmt.Sprintf("Vessel %s left port near %s", r.VesselID, port.Name)
	default:
		return fmt.Sprintf("Vessel %s got under way at open sea", r.VesselID)
	}
}
