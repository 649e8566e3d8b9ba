package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rajasatyajit/VesselWatch/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileReplay_CSV(t *testing.T) {
	path := writeFile(t, "track.csv", `MMSI,Latitude,Longitude,SOG,COG,Heading,Status,Timestamp,Name
230145000,60.10,24.90,12.0,90,91,0,2024-03-01T10:00:00Z,ARANDA
230145000,60.20,25.10,12.5,,511,0,1709287200,ARANDA
230145000,95.00,25.10,12.5,90,91,0,2024-03-01T11:00:00Z,ARANDA
230145000,60.30,25.30,13.0,90,91,0
`)

	var got []models.PositionReport
	skipped, err := NewFileReplay(path).Replay(context.Background(), func(r models.PositionReport) {
		got = append(got, r)
	})
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	// the short row has no timestamp and falls back to ingestion time
	if len(got) != 3 {
		t.Fatalf("got %d reports, want 3", len(got))
	}
	if got[0].VesselName != "ARANDA" || got[0].Source != FileReplayName {
		t.Errorf("unexpected first report %+v", got[0])
	}
	if got[1].CourseDeg != nil || got[1].HeadingDeg != nil {
		t.Errorf("blank course and heading 511 should be nil")
	}
	if got[1].Timestamp.Unix() != 1709287200 {
		t.Errorf("epoch timestamp = %s", got[1].Timestamp)
	}
}

func TestFileReplay_CSVMissingColumn(t *testing.T) {
	path := writeFile(t, "bad.csv", "mmsi,lat,timestamp\n1,2,3\n")
	if _, err := NewFileReplay(path).Replay(context.Background(), func(models.PositionReport) {}); err == nil {
		t.Fatal("expected error for missing longitude column")
	}
}

func TestFileReplay_JSONLines(t *testing.T) {
	path := writeFile(t, "track.jsonl", `# recorded 2024-03-01
{"mmsi": 244660000, "lat": 51.9, "lon": 4.1, "speed": 0.1, "timestamp": "2024-03-01T10:00:00Z"}

{"vessel_id": "244660000", "latitude": 52.3, "longitude": 3.6, "speed": 14, "timestamp": 1709290800000, "source": "archive"}
not json
{"mmsi": "244660000", "lat": 52.3}
`)

	var got []models.PositionReport
	skipped, err := NewFileReplay(path).Replay(context.Background(), func(r models.PositionReport) {
		got = append(got, r)
	})
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
	if len(got) != 2 {
		t.Fatalf("got %d reports, want 2", len(got))
	}
	if got[0].VesselID != "244660000" {
		t.Errorf("numeric mmsi = %q", got[0].VesselID)
	}
	if got[1].Source != "archive" || got[1].Latitude != 52.3 {
		t.Errorf("unexpected second report %+v", got[1])
	}
}

func TestFileReplay_SubscribeFiltersBoundingBox(t *testing.T) {
	path := writeFile(t, "track.jsonl", `{"mmsi":"1","lat":60.1,"lon":24.9,"timestamp":"2024-03-01T10:00:00Z"}
{"mmsi":"2","lat":10.0,"lon":10.0,"timestamp":"2024-03-01T10:00:00Z"}
`)
	box := models.BoundingBox{MinLatitude: 59, MinLongitude: 19, MaxLatitude: 61, MaxLongitude: 26}

	var ids []string
	err := NewFileReplay(path).Subscribe(context.Background(), box, func(r models.PositionReport) {
		ids = append(ids, r.VesselID)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "1" {
		t.Errorf("ids = %v, want [1]", ids)
	}
}

func TestFileReplay_MissingFile(t *testing.T) {
	if _, err := NewFileReplay(filepath.Join(t.TempDir(), "nope.csv")).Replay(context.Background(), func(models.PositionReport) {}); err == nil {
		t.Fatal("expected error for missing file")
	}
}
