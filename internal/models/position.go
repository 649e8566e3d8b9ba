package models

import "time"

// PositionReport is one normalized observation of a vessel. Optional kinematic
// fields are nil when the provider did not report them.
type PositionReport struct {
	VesselID   string    `json:"vessel_id" db:"vessel_id" validate:"required"`
	Latitude   float64   `json:"latitude" db:"latitude" validate:"latitude"`
	Longitude  float64   `json:"longitude" db:"longitude" validate:"longitude"`
	SpeedKnots *float64  `json:"speed_knots,omitempty" db:"speed_knots" validate:"omitnil,gte=0,lt=102.3"`
	CourseDeg  *float64  `json:"course_deg,omitempty" db:"course_deg" validate:"omitnil,gte=0,lt=360"`
	HeadingDeg *float64  `json:"heading_deg,omitempty" db:"heading_deg" validate:"omitnil,gte=0,lt=360"`
	NavStatus  *int      `json:"nav_status,omitempty" db:"nav_status" validate:"omitnil,gte=0,lte=15"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp" validate:"required"`
	Source     string    `json:"source" db:"source"`

	// VesselName carries static metadata when the provider sends it alongside the position.
	VesselName string    `json:"vessel_name,omitempty" db:"-"`
	ReceivedAt time.Time `json:"received_at" db:"received_at"`
}

// Position returns the report's coordinate
func (r PositionReport) Position() Position {
	return Position{Latitude: r.Latitude, Longitude: r.Longitude}
}

// Speed returns the reported speed, or 0 when absent
func (r PositionReport) Speed() float64 {
	if r.SpeedKnots == nil {
		return 0
	}
	return *r.SpeedKnots
}

// HasSpeed reports whether the provider supplied a speed
func (r PositionReport) HasSpeed() bool {
	return r.SpeedKnots != nil
}

// Key is the natural identity used for deduplication
func (r PositionReport) Key() string {
	return r.VesselID + "|" + r.Timestamp.UTC().Format(time.RFC3339Nano)
}

// Float returns a pointer to v, for optional fields
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for optional fields
func Int(v int) *int { return &v }
