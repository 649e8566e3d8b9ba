package provider

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/models"
	"github.com/rajasatyajit/VesselWatch/pkg/utils"
)

// AIS "not available" sentinels
const (
	speedNotAvailable   = 102.3
	courseNotAvailable  = 360.0
	headingNotAvailable = 511.0
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks a normalized report. The first failing field is returned
// as an errors.ValidationError.
func Validate(r models.PositionReport) error {
	if strings.TrimSpace(r.VesselID) == "" {
		return apperrors.ValidationError{Field: "vessel_id", Message: "is required"}
	}
	if r.Timestamp.IsZero() {
		return apperrors.ValidationError{Field: "timestamp", Message: "is required"}
	}

	err := getValidator().Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.ValidationError{Field: "report", Message: err.Error()}
	}
	fe := fieldErrs[0]
	msg := fe.Tag()
	if fe.Param() != "" {
		msg = fmt.Sprintf("%s %s", fe.Tag(), fe.Param())
	}
	return apperrors.ValidationError{
		Field:   fe.Field(),
		Message: fmt.Sprintf("failed %s (value %v)", msg, fe.Value()),
	}
}

// speedKnots maps the AIS sentinel to nil
func speedKnots(v *float64) *float64 {
	if v == nil || *v >= speedNotAvailable {
		return nil
	}
	return v
}

func courseDeg(v *float64) *float64 {
	if v == nil || *v >= courseNotAvailable {
		return nil
	}
	return v
}

func headingDeg(v *float64) *float64 {
	if v == nil || *v >= courseNotAvailable || *v == headingNotAvailable {
		return nil
	}
	return v
}

// normalize applies sentinel mapping and identifier cleanup in place
func normalize(r *models.PositionReport) {
	r.VesselID = utils.NormalizeMMSI(r.VesselID)
	r.VesselName = strings.TrimSpace(strings.TrimRight(r.VesselName, "@ "))
	r.SpeedKnots = speedKnots(r.SpeedKnots)
	r.CourseDeg = courseDeg(r.CourseDeg)
	r.HeadingDeg = headingDeg(r.HeadingDeg)
}
