package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
)

func TestVesselAPIClient_FetchByVesselID(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{
			"mmsi": "244660000",
			"name": "EVER GIVEN",
			"lat": 51.95,
			"lon": 4.05,
			"speed": 14.2,
			"course": 270,
			"heading": 268,
			"status": 0,
			"timestamp": "2024-03-01 10:30:00"
		}`))
	}))
	defer srv.Close()

	c := NewVesselAPIClient(srv.URL, "secret-key")
	report, err := c.FetchByVesselID(context.Background(), "244660000")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/vessels/244660000/position" {
		t.Errorf("path = %q", gotPath)
	}
	if report.VesselName != "EVER GIVEN" || report.Source != VesselAPIName {
		t.Errorf("unexpected report %+v", report)
	}
	if report.CourseDeg == nil || *report.CourseDeg != 270 {
		t.Errorf("course = %v", report.CourseDeg)
	}
	if !report.Timestamp.Equal(time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %s", report.Timestamp)
	}
}

func TestVesselAPIClient_FallbackIDAndMissingCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"lat": 10.0, "speed": 3, "timestamp": 1709289000}`))
	}))
	defer srv.Close()

	report, err := NewVesselAPIClient(srv.URL, "k").FetchByVesselID(context.Background(), "111222333")
	if apperrors.Classify(err) != apperrors.KindValidation {
		t.Fatalf("expected validation error for missing longitude, got %v", err)
	}
	if report.VesselID != "111222333" {
		t.Errorf("vessel id should fall back to the requested one, got %q", report.VesselID)
	}
}

func TestVesselAPIClient_AuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewVesselAPIClient(srv.URL, "bad").FetchByVesselID(context.Background(), "1")
	if apperrors.Classify(err) != apperrors.KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if apperrors.Classify(err).Retryable() {
		t.Error("auth errors must not be retryable")
	}
}
