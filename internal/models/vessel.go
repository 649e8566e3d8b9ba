package models

import "time"

// Vessel is the reference identity of a ship, keyed by MMSI
type Vessel struct {
	MMSI        string    `json:"mmsi" db:"mmsi"`
	Name        string    `json:"name" db:"name"`
	VesselType  string    `json:"vessel_type" db:"vessel_type"`
	Flag        string    `json:"flag" db:"flag"`
	FirstSeenAt time.Time `json:"first_seen_at" db:"first_seen_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Position is a bare coordinate pair in decimal degrees
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BoundingBox limits a streaming subscription to an area
type BoundingBox struct {
	MinLatitude  float64 `json:"min_latitude"`
	MinLongitude float64 `json:"min_longitude"`
	MaxLatitude  float64 `json:"max_latitude"`
	MaxLongitude float64 `json:"max_longitude"`
}

// World covers the whole globe
var World = BoundingBox{MinLatitude: -90, MinLongitude: -180, MaxLatitude: 90, MaxLongitude: 180}

// Contains reports whether the coordinate lies inside the box
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLatitude && lat <= b.MaxLatitude &&
		lon >= b.MinLongitude && lon <= b.MaxLongitude
}

// Port is a named reference point used for nearest-port resolution
type Port struct {
	Name      string  `json:"name" koanf:"name"`
	Country   string  `json:"country,omitempty" koanf:"country"`
	Latitude  float64 `json:"latitude" koanf:"latitude"`
	Longitude float64 `json:"longitude" koanf:"longitude"`
}

// OpenSea is the port name recorded when no port is within range
const OpenSea = "Open Sea"
