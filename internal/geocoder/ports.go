package geocoder

import (
	"fmt"
	"math"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/rajasatyajit/VesselWatch/internal/models"
	"github.com/rajasatyajit/VesselWatch/pkg/utils"
)

// DefaultRadiusKm is the match radius used when none is configured
const DefaultRadiusKm = 500.0

// PortIndex resolves coordinates to the nearest known port within a radius.
// The table is copied on construction and never mutated, so lookups are
// safe from any goroutine.
type PortIndex struct {
	ports    []models.Port
	radiusKm float64
}

// NewPortIndex creates an index over ports. A non-positive radius falls back
// to DefaultRadiusKm.
func NewPortIndex(ports []models.Port, radiusKm float64) *PortIndex {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	cp := make([]models.Port, len(ports))
	copy(cp, ports)
	return &PortIndex{ports: cp, radiusKm: radiusKm}
}

// NearestPort returns the closest port within the radius. On an exact
// distance tie the port listed first wins.
func (p *PortIndex) NearestPort(lat, lon float64) (models.Port, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, port := range p.ports {
		d := utils.Haversine(lat, lon, port.Latitude, port.Longitude)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > p.radiusKm {
		return models.Port{}, false
	}
	return p.ports[best], true
}

// Resolve returns the nearest port name, or models.OpenSea when nothing is
// in range
func (p *PortIndex) Resolve(lat, lon float64) string {
	if port, ok := p.NearestPort(lat, lon); ok {
		return port.Name
	}
	return models.OpenSea
}

// Ports returns a copy of the port table
func (p *PortIndex) Ports() []models.Port {
	cp := make([]models.Port, len(p.ports))
	copy(cp, p.ports)
	return cp
}

// RadiusKm returns the match radius
func (p *PortIndex) RadiusKm() float64 { return p.radiusKm }

// LoadPorts reads a YAML port table of the form
//
//	ports:
//	  - name: Rotterdam
//	    country: NL
//	    latitude: 51.95
//	    longitude: 4.14
func LoadPorts(path string) ([]models.Port, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load ports file %s: %w", path, err)
	}

	var ports []models.Port
	if err := k.Unmarshal("ports", &ports); err != nil {
		return nil, fmt.Errorf("failed to decode ports: %w", err)
	}

	for i, port := range ports {
		if port.Name == "" {
			return nil, fmt.Errorf("port %d: name is required", i)
		}
		if port.Latitude < -90 || port.Latitude > 90 || port.Longitude < -180 || port.Longitude > 180 {
			return nil, fmt.Errorf("port %s: coordinates out of range", port.Name)
		}
	}
	return ports, nil
}

// Load builds an index from path, or from DefaultPorts when path is empty
func Load(path string, radiusKm float64) (*PortIndex, error) {
	if path == "" {
		return NewPortIndex(DefaultPorts(), radiusKm), nil
	}
	ports, err := LoadPorts(path)
	if err != nil {
		return nil, err
	}
	return NewPortIndex(ports, radiusKm), nil
}
