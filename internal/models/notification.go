package models

import "time"

// Severity grades a notification for the delivery channel
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// NotificationKind says what produced a notification
type NotificationKind string

const (
	KindAlert           NotificationKind = "alert"
	KindVoyageStarted   NotificationKind = "voyage_started"
	KindVoyageCompleted NotificationKind = "voyage_completed"
)

// Notification is the per-user payload handed to a delivery sink
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Severity  Severity         `json:"severity"`
	UserID    string           `json:"user_id"`
	VesselID  string           `json:"vessel_id"`
	CreatedAt time.Time        `json:"created_at"`
}
