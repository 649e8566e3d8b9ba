package provider

import (
	"fmt"

	"github.com/rajasatyajit/VesselWatch/internal/models"
	"github.com/rajasatyajit/VesselWatch/pkg/utils"
)

// ParseBoundingBox parses "lat1,lon1,lat2,lon2" with corners in any order.
// An empty string is the whole world.
func ParseBoundingBox(s string) (models.BoundingBox, error) {
	if s == "" {
		return models.World, nil
	}
	v, err := utils.ParseFloats(s)
	if err != nil {
		return models.BoundingBox{}, fmt.Errorf("parse bounding box: %w", err)
	}
	if len(v) != 4 {
		return models.BoundingBox{}, fmt.Errorf("bounding box needs 4 values, got %d", len(v))
	}
	box := models.BoundingBox{
		MinLatitude:  min(v[0], v[2]),
		MaxLatitude:  max(v[0], v[2]),
		MinLongitude: min(v[1], v[3]),
		MaxLongitude: max(v[1], v[3]),
	}
	if box.MinLatitude < -90 || box.MaxLatitude > 90 || box.MinLongitude < -180 || box.MaxLongitude > 180 {
		return models.BoundingBox{}, fmt.Errorf("bounding box %q out of range", s)
	}
	return box, nil
}
