package provider

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/models"
)

// FileReplayName is the default source tag for replayed reports
const FileReplayName = "replay"

// csvAliases maps accepted header names onto flatPosition fields
var csvAliases = map[string]string{
	"mmsi":        "mmsi",
	"vessel_id":   "mmsi",
	"name":        "name",
	"vessel_name": "name",
	"lat":         "lat",
	"latitude":    "lat",
	"lon":         "lon",
	"lng":         "lon",
	"longitude":   "lon",
	"speed":       "speed",
	"sog":         "speed",
	"speed_knots": "speed",
	"course":      "course",
	"cog":         "course",
	"course_deg":  "course",
	"heading":     "heading",
	"heading_deg": "heading",
	"status":      "status",
	"nav_status":  "status",
	"timestamp":   "timestamp",
	"time":        "timestamp",
	"source":      "source",
}

// FileReplay reads recorded reports from a CSV file with a header row or a
// JSON-lines file and emits them in file order
type FileReplay struct {
	path string
	now  func() time.Time
}

// NewFileReplay creates a replay source for path. The format is chosen by
// extension: .csv is CSV, anything else is JSON lines.
func NewFileReplay(path string) *FileReplay {
	return &FileReplay{path: path, now: time.Now}
}

func (f *FileReplay) Name() string { return FileReplayName }

// Subscribe emits every valid report inside bbox, then returns nil at end of file
func (f *FileReplay) Subscribe(ctx context.Context, bbox models.BoundingBox, emit func(models.PositionReport)) error {
	_, err := f.Replay(ctx, func(r models.PositionReport) {
		if bbox.Contains(r.Latitude, r.Longitude) {
			emit(r)
		}
	})
	return err
}

// Replay emits every valid report and returns how many lines were skipped
// as invalid
func (f *FileReplay) Replay(ctx context.Context, emit func(models.PositionReport)) (skipped int, err error) {
	file, err := os.Open(f.path)
	if err != nil {
		return 0, fmt.Errorf("open replay file: %w", err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(f.path), ".csv") {
		return f.replayCSV(ctx, file, emit)
	}
	return f.replayJSONL(ctx, file, emit)
}

func (f *FileReplay) replayJSONL(ctx context.Context, r io.Reader, emit func(models.PositionReport)) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	skipped, line := 0, 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return skipped, err
		}
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var rec flatPosition
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			logger.Warn("replay: malformed line", "line", line, "error", err)
			skipped++
			continue
		}
		report := rec.toReport("", FileReplayName, f.now())
		if err := Validate(report); err != nil {
			logger.Warn("replay: invalid report", "line", line, "error", err)
			skipped++
			continue
		}
		emit(report)
	}
	return skipped, scanner.Err()
}

func (f *FileReplay) replayCSV(ctx context.Context, r io.Reader, emit func(models.PositionReport)) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		if field, ok := csvAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, seen := columns[field]; !seen {
				columns[field] = i
			}
		}
	}
	for _, required := range []string{"mmsi", "lat", "lon", "timestamp"} {
		if _, ok := columns[required]; !ok {
			return 0, fmt.Errorf("csv header missing %q column", required)
		}
	}

	skipped, line := 0, 1
	for {
		if err := ctx.Err(); err != nil {
			return skipped, err
		}
		row, err := reader.Read()
		if err == io.EOF {
			return skipped, nil
		}
		line++
		if err != nil {
			logger.Warn("replay: malformed csv row", "line", line, "error", err)
			skipped++
			continue
		}

		rec := csvRecord(row, columns)
		report := rec.toReport("", FileReplayName, f.now())
		if err := Validate(report); err != nil {
			logger.Warn("replay: invalid report", "line", line, "error", err)
			skipped++
			continue
		}
		emit(report)
	}
}

func csvRecord(row []string, columns map[string]int) flatPosition {
	get := func(field string) string {
		i, ok := columns[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	float := func(field string) *float64 {
		v, err := strconv.ParseFloat(get(field), 64)
		if err != nil {
			return nil
		}
		return &v
	}

	rec := flatPosition{
		VesselID:  get("mmsi"),
		Name:      get("name"),
		Lat:       float("lat"),
		Lon:       float("lon"),
		Speed:     float("speed"),
		Course:    float("course"),
		Heading:   float("heading"),
		Timestamp: get("timestamp"),
		Source:    get("source"),
	}
	if s, err := strconv.Atoi(get("status")); err == nil {
		rec.Status = &s
	}
	return rec
}
