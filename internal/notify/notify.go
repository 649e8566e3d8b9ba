package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/models"
	"github.com/rajasatyajit/VesselWatch/internal/voyage"
)

// Dispatcher delivers one notification to one user
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification) error
}

// SubscriptionLister is the part of the reference store the notifier reads
type SubscriptionLister interface {
	ListActiveSubscriptions(ctx context.Context, vesselID string) ([]models.Subscription, error)
}

// Notifier turns alerts and voyage events into per-user notifications.
// Delivery failures are logged and counted; they never fail the caller's
// write path.
type Notifier struct {
	dispatcher Dispatcher
	subs       SubscriptionLister
	now        func() time.Time
	newID      func() string
}

// New creates a notifier
func New(dispatcher Dispatcher, subs SubscriptionLister) *Notifier {
	if dispatcher == nil {
		dispatcher = NewLogDispatcher()
	}
	return &Notifier{
		dispatcher: dispatcher,
		subs:       subs,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// AlertRaised sends one notification to the owner of the alert
func (n *Notifier) AlertRaised(ctx context.Context, a models.Alert) int {
	note := models.Notification{
		ID:        n.newID(),
		Kind:      models.KindAlert,
		Title:     alertTitle(a.AlertType),
		Message:   a.Message,
		Severity:  alertSeverity(a.AlertType),
		UserID:    a.UserID,
		VesselID:  a.VesselID,
		CreatedAt: n.now(),
	}
	return n.send(ctx, []models.Notification{note})
}

// VoyageChanged sends one notification per distinct active subscriber of the
// vessel, global subscriptions included. It returns the number delivered.
func (n *Notifier) VoyageChanged(ctx context.Context, ev voyage.Event) int {
	if n.subs == nil {
		return 0
	}
	log := logger.WithContext(logger.WithVessel(ctx, ev.Voyage.VesselID))

	subs, err := n.subs.ListActiveSubscriptions(ctx, ev.Voyage.VesselID)
	if err != nil {
		log.Error("Failed to list subscribers", "error", err)
		return 0
	}

	kind, title, message := voyageText(ev)
	seen := make(map[string]struct{}, len(subs))
	var notes []models.Notification
	for _, s := range subs {
		if !s.Covers(ev.Voyage.VesselID) {
			continue
		}
		if _, dup := seen[s.UserID]; dup {
			continue
		}
		seen[s.UserID] = struct{}{}
		notes = append(notes, models.Notification{
			ID:        n.newID(),
			Kind:      kind,
			Title:     title,
			Message:   message,
			Severity:  models.SeverityInfo,
			UserID:    s.UserID,
			VesselID:  ev.Voyage.VesselID,
			CreatedAt: n.now(),
		})
	}
	return n.send(ctx, notes)
}

func (n *Notifier) send(ctx context.Context, notes []models.Notification) int {
	delivered := 0
	for _, note := range notes {
		if err := n.dispatcher.Dispatch(ctx, note); err != nil {
			logger.WithContext(logger.WithVessel(ctx, note.VesselID)).Warn("Notification not delivered",
				"user_id", note.UserID,
				"kind", note.Kind,
				"error", err,
			)
			continue
		}
		delivered++
	}
	return delivered
}

func alertTitle(t models.AlertType) string {
	switch t {
	case models.AlertTypeSpeed:
		return "Speed alert"
	case models.AlertTypeStatusChange:
		return "Status change"
	case models.AlertTypePortEvent:
		return "Port event"
	}
	return "Vessel alert"
}

func alertSeverity(t models.AlertType) models.Severity {
	if t == models.AlertTypeSpeed {
		return models.SeverityWarning
	}
	return models.SeverityInfo
}

func voyageText(ev voyage.Event) (models.NotificationKind, string, string) {
	v := ev.Voyage
	if ev.Kind == voyage.EventCompleted {
		return models.KindVoyageCompleted, "Voyage completed",
			fmt.Sprintf("Vessel %s completed a voyage from %s to %s: %.1f km in %.1f h (%.1f kn)",
				v.VesselID, orOpenSea(v.StartPort), orOpenSea(v.EndPort), v.DistanceKm, v.DurationHours, v.AvgSpeedKnots)
	}
	return models.KindVoyageStarted, "Voyage started",
		fmt.Sprintf("Vessel %s started a voyage at %.4f, %.4f", v.VesselID, v.StartPos.Latitude, v.StartPos.Longitude)
}

func orOpenSea(port string) string {
	if port == "" {
		return models.OpenSea
	}
	return port
}
