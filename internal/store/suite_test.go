package store

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/models"
)

// runStoreSuite exercises the behaviour every Store implementation shares
func runStoreSuite(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	t.Run("vessels", func(t *testing.T) {
		if _, err := s.LookupVessel(ctx, "000000000"); !errors.Is(err, apperrors.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		v := models.Vessel{MMSI: "230145000", Name: "FINNMAID", FirstSeenAt: base, UpdatedAt: base}
		if err := s.UpsertVessel(ctx, v); err != nil {
			t.Fatalf("UpsertVessel: %v", err)
		}
		v.Name = "FINNMAID II"
		v.FirstSeenAt = base.Add(time.Hour)
		v.UpdatedAt = base.Add(time.Hour)
		if err := s.UpsertVessel(ctx, v); err != nil {
			t.Fatalf("UpsertVessel again: %v", err)
		}
		got, err := s.LookupVessel(ctx, "230145000")
		if err != nil {
			t.Fatalf("LookupVessel: %v", err)
		}
		if got.Name != "FINNMAID II" {
			t.Errorf("expected updated name, got %q", got.Name)
		}
		if !got.FirstSeenAt.Equal(base) {
			t.Errorf("first seen should be kept, got %v", got.FirstSeenAt)
		}
	})

	t.Run("subscriptions", func(t *testing.T) {
		subs := []models.Subscription{
			{ID: "s1", UserID: "u1", VesselID: "230145000", AlertTypes: []models.AlertType{models.AlertTypeSpeed}, SpeedThresholdKnots: models.Float(12), IsActive: true},
			{ID: "s2", UserID: "u2", VesselID: models.AllVessels, AlertTypes: []models.AlertType{models.AlertTypePortEvent, models.AlertTypeStatusChange}, IsActive: true},
			{ID: "s3", UserID: "u3", VesselID: "230145000", AlertTypes: []models.AlertType{models.AlertTypeSpeed}, IsActive: false},
			{ID: "s4", UserID: "u4", VesselID: "266000000", AlertTypes: []models.AlertType{models.AlertTypeSpeed}, IsActive: true},
		}
		for _, sub := range subs {
			if err := s.AddSubscription(ctx, sub); err != nil {
				t.Fatalf("AddSubscription: %v", err)
			}
		}

		got, err := s.ListActiveSubscriptions(ctx, "230145000")
		if err != nil {
			t.Fatalf("ListActiveSubscriptions: %v", err)
		}
		if len(got) != 2 || got[0].ID != "s1" || got[1].ID != "s2" {
			t.Fatalf("expected s1 and s2, got %+v", got)
		}
		if got[0].SpeedThresholdKnots == nil || *got[0].SpeedThresholdKnots != 12 {
			t.Errorf("threshold lost: %+v", got[0])
		}
		if !got[1].Wants(models.AlertTypeStatusChange) {
			t.Errorf("alert types lost: %+v", got[1].AlertTypes)
		}

		all, err := s.ListActiveSubscriptions(ctx, "")
		if err != nil {
			t.Fatalf("ListActiveSubscriptions all: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 active subscriptions, got %d", len(all))
		}
	})

	t.Run("reports", func(t *testing.T) {
		r := models.PositionReport{
			VesselID: "230145000", Latitude: 60.1, Longitude: 24.9,
			SpeedKnots: models.Float(11.2), NavStatus: models.Int(0),
			Timestamp: base, Source: "test",
		}
		batch := []models.PositionReport{r, r}
		r2 := r
		r2.Timestamp = base.Add(time.Minute)
		r2.SpeedKnots = nil
		batch = append(batch, r2)
		if err := s.PersistPositionReports(ctx, batch); err != nil {
			t.Fatalf("PersistPositionReports: %v", err)
		}
		if err := s.PersistPositionReports(ctx, batch[:1]); err != nil {
			t.Fatalf("re-persist should be ignored, got %v", err)
		}
		if err := s.PersistPositionReports(ctx, nil); err != nil {
			t.Fatalf("empty batch: %v", err)
		}
	})

	t.Run("voyages", func(t *testing.T) {
		v := models.Voyage{
			ID: "v1", VesselID: "230145000", StartTime: base,
			StartPos: models.Position{Latitude: 60.1, Longitude: 24.9},
			State:    models.VoyageActive, ReportCount: 2, UpdatedAt: base,
		}
		if _, err := s.ActiveVoyage(ctx, "230145000"); !errors.Is(err, apperrors.ErrNotFound) {
			t.Fatalf("expected ErrNotFound before any voyage, got %v", err)
		}
		if err := s.UpsertVoyage(ctx, v); err != nil {
			t.Fatalf("UpsertVoyage: %v", err)
		}
		open, err := s.ActiveVoyage(ctx, "230145000")
		if err != nil {
			t.Fatalf("ActiveVoyage: %v", err)
		}
		if open.ID != "v1" || !open.StartTime.Equal(base) || open.ReportCount != 2 {
			t.Errorf("unexpected open voyage %+v", open)
		}
		end := base.Add(2 * time.Hour)
		v.EndTime = &end
		v.EndPos = &models.Position{Latitude: 59.4, Longitude: 24.7}
		v.StartPort, v.EndPort = "Helsinki", "Tallinn"
		v.DistanceKm, v.DurationHours, v.AvgSpeedKnots = 80.5, 2, 21.7
		v.State = models.VoyageCompleted
		if err := s.UpsertVoyage(ctx, v); err != nil {
			t.Fatalf("UpsertVoyage close: %v", err)
		}
		if _, err := s.ActiveVoyage(ctx, "230145000"); !errors.Is(err, apperrors.ErrNotFound) {
			t.Fatalf("expected ErrNotFound once closed, got %v", err)
		}
		active := models.Voyage{
			ID: "v2", VesselID: "230145000", StartTime: base.Add(5 * time.Hour),
			State: models.VoyageActive, UpdatedAt: base,
		}
		if err := s.UpsertVoyage(ctx, active); err != nil {
			t.Fatalf("UpsertVoyage second: %v", err)
		}
		if open, err := s.ActiveVoyage(ctx, "230145000"); err != nil || open.ID != "v2" {
			t.Fatalf("expected v2 open, got %+v, %v", open, err)
		}

		got, err := s.QueryVoyages(ctx, models.VoyageQuery{VesselIDs: []string{"230145000"}})
		if err != nil {
			t.Fatalf("QueryVoyages: %v", err)
		}
		if len(got) != 2 || got[0].ID != "v2" {
			t.Fatalf("expected newest first, got %+v", got)
		}
		done, err := s.QueryVoyages(ctx, models.VoyageQuery{States: []models.VoyageState{models.VoyageCompleted}})
		if err != nil {
			t.Fatalf("QueryVoyages completed: %v", err)
		}
		if len(done) != 1 {
			t.Fatalf("expected 1 completed voyage, got %d", len(done))
		}
		c := done[0]
		if c.EndTime == nil || !c.EndTime.Equal(end) || c.EndPos == nil || c.EndPort != "Tallinn" {
			t.Errorf("closing fields lost: %+v", c)
		}
		if c.DistanceKm != 80.5 {
			t.Errorf("expected 80.5 km, got %v", c.DistanceKm)
		}
	})

	t.Run("alerts", func(t *testing.T) {
		a := models.Alert{
			ID: "a1", UserID: "u1", VesselID: "230145000", AlertType: models.AlertTypeSpeed,
			Message: "speed 15.0 kn above 12.0 kn", TriggeredAt: base.Add(time.Hour),
		}
		if err := s.AppendAlert(ctx, a); err != nil {
			t.Fatalf("AppendAlert: %v", err)
		}

		tests := []struct {
			name  string
			user  string
			typ   models.AlertType
			since time.Time
			want  bool
		}{
			{"same instant", "u1", models.AlertTypeSpeed, a.TriggeredAt, true},
			{"earlier candidate", "u1", models.AlertTypeSpeed, base, true},
			{"later candidate", "u1", models.AlertTypeSpeed, a.TriggeredAt.Add(time.Second), false},
			{"other user", "u2", models.AlertTypeSpeed, base, false},
			{"other type", "u1", models.AlertTypePortEvent, base, false},
		}
		for _, tt := range tests {
			got, err := s.AlertExists(ctx, tt.user, "230145000", tt.typ, tt.since)
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("%s: AlertExists=%v want %v", tt.name, got, tt.want)
			}
		}

		b := a
		b.ID, b.AlertType, b.TriggeredAt = "a2", models.AlertTypePortEvent, base.Add(2*time.Hour)
		if err := s.AppendAlert(ctx, b); err != nil {
			t.Fatalf("AppendAlert b: %v", err)
		}
		got, err := s.QueryAlerts(ctx, models.AlertQuery{UserIDs: []string{"u1"}})
		if err != nil {
			t.Fatalf("QueryAlerts: %v", err)
		}
		if len(got) != 2 || got[0].ID != "a2" {
			t.Fatalf("expected newest first, got %+v", got)
		}
		got, err = s.QueryAlerts(ctx, models.AlertQuery{AlertTypes: []models.AlertType{models.AlertTypeSpeed}, Limit: 5})
		if err != nil {
			t.Fatalf("QueryAlerts by type: %v", err)
		}
		if len(got) != 1 || got[0].AlertType != models.AlertTypeSpeed {
			t.Errorf("unexpected type filter result %+v", got)
		}
		got, err = s.QueryAlerts(ctx, models.AlertQuery{Offset: 1})
		if err != nil {
			t.Fatalf("QueryAlerts offset: %v", err)
		}
		if len(got) != 1 || got[0].ID != "a1" {
			t.Errorf("unexpected offset result %+v", got)
		}
	})

	if err := s.Health(ctx); err != nil {
		t.Errorf("Health: %v", err)
	}
}
