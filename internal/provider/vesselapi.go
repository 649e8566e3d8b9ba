package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rajasatyajit/VesselWatch/internal/models"
)

// VesselAPIName is the source tag on reports from the keyed REST provider
const VesselAPIName = "vesselapi"

// flatPosition is the flat record shape shared by the keyed REST provider and
// JSON-lines replay files
type flatPosition struct {
	MMSI      any      `json:"mmsi"`
	VesselID  string   `json:"vessel_id"`
	Name      string   `json:"name"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Speed     *float64 `json:"speed"`
	Course    *float64 `json:"course"`
	Heading   *float64 `json:"heading"`
	Status    *int     `json:"status"`
	Timestamp any      `json:"timestamp"`
	Source    string   `json:"source"`
}

func (f flatPosition) toReport(fallbackID, source string, now time.Time) models.PositionReport {
	id := f.VesselID
	if id == "" && f.MMSI != nil {
		id = mmsiString(f.MMSI)
	}
	if id == "" {
		id = fallbackID
	}
	lat, lon := f.Lat, f.Lon
	if lat == nil {
		lat = f.Latitude
	}
	if lon == nil {
		lon = f.Longitude
	}
	if f.Source != "" {
		source = f.Source
	}

	ts, _ := ParseTimestamp(f.Timestamp, now)
	r := models.PositionReport{
		VesselID:   id,
		SpeedKnots: f.Speed,
		CourseDeg:  f.Course,
		HeadingDeg: f.Heading,
		NavStatus:  f.Status,
		Timestamp:  ts,
		Source:     source,
		VesselName: f.Name,
		ReceivedAt: now.UTC(),
	}
	// Missing coordinates become out-of-range values so validation rejects them
	r.Latitude, r.Longitude = 999, 999
	if lat != nil {
		r.Latitude = *lat
	}
	if lon != nil {
		r.Longitude = *lon
	}
	normalize(&r)
	return r
}

func mmsiString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// VesselAPIClient talks to a keyed REST provider exposing
// GET {base}/vessels/{mmsi}/position
type VesselAPIClient struct {
	baseURL string
	rest    restClient
}

// NewVesselAPIClient creates a client authenticating with a bearer key
func NewVesselAPIClient(baseURL, apiKey string, opts ...Option) *VesselAPIClient {
	return &VesselAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		rest: restClient{
			provider: VesselAPIName,
			opts:     buildOptions(opts),
			decorate: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+apiKey)
			},
		},
	}
}

func (c *VesselAPIClient) Name() string { return VesselAPIName }

// FetchByVesselID returns the latest position of vesselID
func (c *VesselAPIClient) FetchByVesselID(ctx context.Context, vesselID string) (models.PositionReport, error) {
	endpoint := fmt.Sprintf("%s/vessels/%s/position", c.baseURL, url.PathEscape(vesselID))

	var rec flatPosition
	if err := c.rest.getJSON(ctx, endpoint, vesselID, &rec); err != nil {
		return models.PositionReport{}, err
	}

	report := rec.toReport(vesselID, VesselAPIName, c.rest.opts.now())
	return report, Validate(report)
}
