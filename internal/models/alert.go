package models

import "time"

// AlertType enumerates the rule kinds a subscription can ask for
type AlertType string

const (
	AlertTypeSpeed        AlertType = "speed"
	AlertTypeStatusChange AlertType = "status_change"
	AlertTypePortEvent    AlertType = "port_event"
)

// Valid reports whether t is a known alert type
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeSpeed, AlertTypeStatusChange, AlertTypePortEvent:
		return true
	}
	return false
}

// AllVessels is the vessel id used by global subscriptions
const AllVessels = "*"

// Subscription represents a user's interest in alerts for one vessel or for all vessels
type Subscription struct {
	ID                  string      `json:"id" db:"id"`
	UserID              string      `json:"user_id" db:"user_id"`
	VesselID            string      `json:"vessel_id" db:"vessel_id"`
	AlertTypes          []AlertType `json:"alert_types" db:"alert_types"`
	SpeedThresholdKnots *float64    `json:"speed_threshold_knots,omitempty" db:"speed_threshold_knots"`
	IsActive            bool        `json:"is_active" db:"is_active"`
}

// IsGlobal returns true for subscriptions covering every vessel
func (s Subscription) IsGlobal() bool {
	return s.VesselID == AllVessels
}

// Covers reports whether the subscription applies to the given vessel
func (s Subscription) Covers(vesselID string) bool {
	return s.IsActive && (s.IsGlobal() || s.VesselID == vesselID)
}

// Wants reports whether the subscription asked for alerts of type t
func (s Subscription) Wants(t AlertType) bool {
	for _, at := range s.AlertTypes {
		if at == t {
			return true
		}
	}
	return false
}

// Alert is an append-only record of one qualifying transition for one subscriber
type Alert struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	VesselID    string    `json:"vessel_id" db:"vessel_id"`
	AlertType   AlertType `json:"alert_type" db:"alert_type"`
	Message     string    `json:"message" db:"message"`
	TriggeredAt time.Time `json:"triggered_at" db:"triggered_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// AlertQuery represents query parameters for filtering alerts
type AlertQuery struct {
	UserIDs    []string    `json:"user_ids"`
	VesselIDs  []string    `json:"vessel_ids"`
	AlertTypes []AlertType `json:"alert_types"`
	Since      time.Time   `json:"since"`
	Until      time.Time   `json:"until"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

// Matches checks if an alert matches the query criteria
func (q AlertQuery) Matches(alert Alert) bool {
	if len(q.UserIDs) > 0 && !contains(q.UserIDs, alert.UserID) {
		return false
	}
	if len(q.VesselIDs) > 0 && !contains(q.VesselIDs, alert.VesselID) {
		return false
	}
	if len(q.AlertTypes) > 0 && !contains(q.AlertTypes, alert.AlertType) {
		return false
	}
	if !q.Since.IsZero() && alert.TriggeredAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && alert.TriggeredAt.After(q.Until) {
		return false
	}
	return true
}

func contains[T comparable](slice []T, item T) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
