package geocoder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rajasatyajit/VesselWatch/internal/models"
)

func TestPortIndex_NearestPort(t *testing.T) {
	idx := NewPortIndex(DefaultPorts(), 500)

	tests := []struct {
		name     string
		lat, lon float64
		wantPort string
		wantOK   bool
	}{
		{name: "Helsinki harbour", lat: 60.16, lon: 24.95, wantPort: "Helsinki", wantOK: true},
		{name: "Off Rotterdam", lat: 52.0, lon: 3.9, wantPort: "Rotterdam", wantOK: true},
		{name: "Mid Atlantic", lat: 35.0, lon: -40.0, wantOK: false},
		{name: "South Pacific", lat: -40.0, lon: -130.0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, ok := idx.NearestPort(tt.lat, tt.lon)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (port %q)", ok, tt.wantOK, port.Name)
			}
			if ok && port.Name != tt.wantPort {
				t.Errorf("port = %q, want %q", port.Name, tt.wantPort)
			}
		})
	}
}

func TestPortIndex_RadiusBoundary(t *testing.T) {
	ports := []models.Port{{Name: "Equator", Latitude: 0, Longitude: 0}}

	// One degree of latitude is about 111.19 km
	if _, ok := NewPortIndex(ports, 112).NearestPort(1, 0); !ok {
		t.Error("expected a match inside the radius")
	}
	if _, ok := NewPortIndex(ports, 110).NearestPort(1, 0); ok {
		t.Error("expected open sea outside the radius")
	}
	if got := NewPortIndex(ports, 110).Resolve(1, 0); got != models.OpenSea {
		t.Errorf("Resolve = %q, want %q", got, models.OpenSea)
	}
}

func TestPortIndex_TieBreakFirstEnumerated(t *testing.T) {
	ports := []models.Port{
		{Name: "North", Latitude: 1, Longitude: 0},
		{Name: "South", Latitude: -1, Longitude: 0},
	}
	port, ok := NewPortIndex(ports, 500).NearestPort(0, 0)
	if !ok || port.Name != "North" {
		t.Fatalf("expected first enumerated port on a tie, got %q (ok=%v)", port.Name, ok)
	}

	reversed := []models.Port{ports[1], ports[0]}
	port, _ = NewPortIndex(reversed, 500).NearestPort(0, 0)
	if port.Name != "South" {
		t.Fatalf("expected South when listed first, got %q", port.Name)
	}
}

func TestPortIndex_EmptyAndDefaults(t *testing.T) {
	idx := NewPortIndex(nil, 0)
	if idx.RadiusKm() != DefaultRadiusKm {
		t.Errorf("radius = %v, want default %v", idx.RadiusKm(), DefaultRadiusKm)
	}
	if _, ok := idx.NearestPort(60, 25); ok {
		t.Error("empty index should never match")
	}
}

func TestPortIndex_CopiesInput(t *testing.T) {
	ports := []models.Port{{Name: "A", Latitude: 10, Longitude: 10}}
	idx := NewPortIndex(ports, 100)
	ports[0].Name = "mutated"

	if got := idx.Ports()[0].Name; got != "A" {
		t.Errorf("index shares caller slice: %q", got)
	}
}

func TestLoadPorts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ports.yaml")
	content := `ports:
  - name: Mariehamn
    country: AX
    latitude: 60.0960
    longitude: 19.9340
  - name: Visby
    country: SE
    latitude: 57.6390
    longitude: 18.2890
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write ports file: %v", err)
	}

	ports, err := LoadPorts(path)
	if err != nil {
		t.Fatalf("LoadPorts: %v", err)
	}
	if len(ports) != 2 {
		t.Fatalf("expected 2 ports, got %d", len(ports))
	}
	if ports[0].Name != "Mariehamn" || ports[0].Country != "AX" || ports[0].Latitude != 60.096 {
		t.Errorf("unexpected first port %+v", ports[0])
	}

	idx, err := Load(path, 50)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := idx.Resolve(57.64, 18.28); got != "Visby" {
		t.Errorf("Resolve = %q, want Visby", got)
	}
}

func TestLoadPorts_Errors(t *testing.T) {
	if _, err := LoadPorts(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(path, []byte("ports:\n  - country: XX\n    latitude: 1\n    longitude: 1\n"), 0o600)
	if _, err := LoadPorts(path); err == nil {
		t.Error("expected error for unnamed port")
	}

	path = filepath.Join(t.TempDir(), "range.yaml")
	_ = os.WriteFile(path, []byte("ports:\n  - name: Nowhere\n    latitude: 95\n    longitude: 1\n"), 0o600)
	if _, err := LoadPorts(path); err == nil {
		t.Error("expected error for out-of-range latitude")
	}
}

func TestLoad_DefaultTable(t *testing.T) {
	idx, err := Load("", 500)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(idx.Ports()) != len(DefaultPorts()) {
		t.Errorf("expected built-in table")
	}
}
