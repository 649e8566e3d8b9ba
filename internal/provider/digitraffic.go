package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/models"
)

// DigitrafficName is the source tag on reports from the Digitraffic AIS API
const DigitrafficName = "digitraffic"

// DigitrafficClient polls the Finnish Digitraffic AIS REST API, which answers
// /locations/{mmsi} with a GeoJSON feature
type DigitrafficClient struct {
	baseURL string
	user    string
	rest    restClient
}

type digitrafficFeature struct {
	MMSI     int64 `json:"mmsi"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		SOG               *float64 `json:"sog"`
		COG               *float64 `json:"cog"`
		Heading           *float64 `json:"heading"`
		NavStat           *int     `json:"navStat"`
		TimestampExternal any      `json:"timestampExternal"`
	} `json:"properties"`
}

// NewDigitrafficClient creates a client. user is sent as the Digitraffic-User
// header, which the API asks every consumer to set.
func NewDigitrafficClient(baseURL, user string, opts ...Option) *DigitrafficClient {
	c := &DigitrafficClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
	}
	c.rest = restClient{
		provider: DigitrafficName,
		opts:     buildOptions(opts),
		decorate: func(r *http.Request) {
			if c.user != "" {
				r.Header.Set("Digitraffic-User", c.user)
			}
		},
	}
	return c
}

func (c *DigitrafficClient) Name() string { return DigitrafficName }

// FetchByVesselID returns the latest position of vesselID
func (c *DigitrafficClient) FetchByVesselID(ctx context.Context, vesselID string) (models.PositionReport, error) {
	endpoint := fmt.Sprintf("%s/locations/%s", c.baseURL, url.PathEscape(vesselID))

	var feature digitrafficFeature
	if err := c.rest.getJSON(ctx, endpoint, vesselID, &feature); err != nil {
		return models.PositionReport{}, err
	}

	if len(feature.Geometry.Coordinates) < 2 {
		return models.PositionReport{}, apperrors.ValidationError{Field: "geometry", Message: "missing coordinates"}
	}

	now := c.rest.opts.now()
	ts, _ := ParseTimestamp(feature.Properties.TimestampExternal, now)

	id := vesselID
	if feature.MMSI != 0 {
		id = fmt.Sprintf("%d", feature.MMSI)
	}

	report := models.PositionReport{
		VesselID:   id,
		Longitude:  feature.Geometry.Coordinates[0],
		Latitude:   feature.Geometry.Coordinates[1],
		SpeedKnots: feature.Properties.SOG,
		CourseDeg:  feature.Properties.COG,
		HeadingDeg: feature.Properties.Heading,
		NavStatus:  feature.Properties.NavStat,
		Timestamp:  ts,
		Source:     DigitrafficName,
		ReceivedAt: now.UTC(),
	}
	normalize(&report)
	return report, Validate(report)
}
