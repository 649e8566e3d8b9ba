package models

import "time"

// VoyageState is the lifecycle state of a voyage
type VoyageState string

const (
	VoyageActive    VoyageState = "active"
	VoyageCompleted VoyageState = "completed"
)

// Voyage aggregates a contiguous run of reports for one vessel between a
// moving start and a stationary end.
type Voyage struct {
	ID            string      `json:"id" db:"id"`
	VesselID      string      `json:"vessel_id" db:"vessel_id"`
	StartTime     time.Time   `json:"start_time" db:"start_time"`
	StartPos      Position    `json:"start_pos" db:"-"`
	EndTime       *time.Time  `json:"end_time,omitempty" db:"end_time"`
	EndPos        *Position   `json:"end_pos,omitempty" db:"-"`
	StartPort     string      `json:"start_port,omitempty" db:"start_port"`
	EndPort       string      `json:"end_port,omitempty" db:"end_port"`
	DistanceKm    float64     `json:"distance_km" db:"distance_km"`
	DurationHours float64     `json:"duration_hours" db:"duration_hours"`
	AvgSpeedKnots float64     `json:"avg_speed_knots" db:"avg_speed_knots"`
	State         VoyageState `json:"state" db:"state"`
	ReportCount   int         `json:"report_count" db:"report_count"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// IsActive returns true while the voyage is still open
func (v Voyage) IsActive() bool {
	return v.State == VoyageActive
}

// VoyageQuery filters voyages for reads
type VoyageQuery struct {
	VesselIDs []string      `json:"vessel_ids"`
	States    []VoyageState `json:"states"`
	Limit     int           `json:"limit"`
}

// Matches checks if a voyage matches the query criteria
func (q VoyageQuery) Matches(v Voyage) bool {
	if len(q.VesselIDs) > 0 && !contains(q.VesselIDs, v.VesselID) {
		return false
	}
	if len(q.States) > 0 && !contains(q.States, v.State) {
		return false
	}
	return true
}
