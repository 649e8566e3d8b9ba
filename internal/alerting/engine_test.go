package alerting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rajasatyajit/VesselWatch/internal/geocoder"
	"github.com/rajasatyajit/VesselWatch/internal/models"
	"github.com/rajasatyajit/VesselWatch/internal/store"
)

var base = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int, speed *float64) models.PositionReport {
	return models.PositionReport{
		VesselID:   "244660000",
		Latitude:   51.95,
		Longitude:  4.14,
		SpeedKnots: speed,
		Timestamp:  base.Add(time.Duration(minutes) * time.Minute),
	}
}

func speedSub(threshold float64) models.Subscription {
	return models.Subscription{
		ID:                  "sub-speed",
		UserID:              "user-1",
		VesselID:            "244660000",
		AlertTypes:          []models.AlertType{models.AlertTypeSpeed},
		SpeedThresholdKnots: models.Float(threshold),
		IsActive:            true,
	}
}

func TestEvaluate_SpeedUpwardCrossingOnly(t *testing.T) {
	st := store.NewInMemoryStore()
	e := New(0, st, nil)
	ctx := context.Background()
	subs := []models.Subscription{speedSub(10)}

	r8, r15, r16 := at(0, models.Float(8)), at(10, models.Float(15)), at(20, models.Float(16))

	alerts, err := e.Evaluate(ctx, &r8, r15, subs)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 || alerts[0].AlertType != models.AlertTypeSpeed {
		t.Fatalf("expected one speed alert on 8->15, got %+v", alerts)
	}
	if !alerts[0].TriggeredAt.Equal(r15.Timestamp) {
		t.Errorf("alert should be stamped with the report time, got %v", alerts[0].TriggeredAt)
	}

	alerts, err = e.Evaluate(ctx, &r15, r16, subs)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 0 {
		t.Fatalf("15->16 must not fire again, got %+v", alerts)
	}

	all, _ := st.QueryAlerts(ctx, models.AlertQuery{})
	if len(all) != 1 {
		t.Errorf("expected exactly one stored alert, got %d", len(all))
	}
}

func TestEvaluate_DoubleEvaluationIsIdempotent(t *testing.T) {
	st := store.NewInMemoryStore()
	e := New(0, st, nil)
	ctx := context.Background()
	subs := []models.Subscription{speedSub(10)}
	prev, cur := at(0, models.Float(8)), at(10, models.Float(15))

	for i := 0; i < 2; i++ {
		if _, err := e.Evaluate(ctx, &prev, cur, subs); err != nil {
			t.Fatal(err)
		}
	}
	all, _ := st.QueryAlerts(ctx, models.AlertQuery{})
	if len(all) != 1 {
		t.Fatalf("expected one alert after replay, got %d", len(all))
	}
}

func TestEvaluate_FirstReportNeverFires(t *testing.T) {
	e := New(0, store.NewInMemoryStore(), nil)
	alerts, err := e.Evaluate(context.Background(), nil, at(0, models.Float(30)), []models.Subscription{speedSub(10)})
	if err != nil || len(alerts) != 0 {
		t.Fatalf("expected nothing for the first report, got %v %v", alerts, err)
	}
}

func TestEvaluate_StatusAndPortEvents(t *testing.T) {
	ports := geocoder.NewPortIndex([]models.Port{{Name: "Rotterdam", Latitude: 51.95, Longitude: 4.14}}, 50)
	st := store.NewInMemoryStore()
	e := New(0.5, st, ports)
	ctx := context.Background()

	sub := models.Subscription{
		ID:         "sub-all",
		UserID:     "user-2",
		VesselID:   models.AllVessels,
		AlertTypes: []models.AlertType{models.AlertTypeStatusChange, models.AlertTypePortEvent},
		IsActive:   true,
	}
	subs := []models.Subscription{sub}

	stopped, moving := at(0, models.Float(0.1)), at(10, models.Float(9))
	alerts, err := e.Evaluate(ctx, &stopped, moving, subs)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected status change and port exit, got %+v", alerts)
	}
	byType := map[models.AlertType]models.Alert{}
	for _, a := range alerts {
		byType[a.AlertType] = a
	}
	if !strings.Contains(byType[models.AlertTypeStatusChange].Message, "stopped to moving") {
		t.Errorf("unexpected status message %q", byType[models.AlertTypeStatusChange].Message)
	}
	if !strings.Contains(byType[models.AlertTypePortEvent].Message, "left port near Rotterdam") {
		t.Errorf("unexpected port message %q", byType[models.AlertTypePortEvent].Message)
	}

	stoppedAgain := at(20, models.Float(0))
	alerts, err = e.Evaluate(ctx, &moving, stoppedAgain, subs)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, a := range alerts {
		if a.AlertType == models.AlertTypePortEvent && strings.Contains(a.Message, "entered port near Rotterdam") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a port entry alert, got %+v", alerts)
	}

	// no transition
	later := at(30, models.Float(0.2))
	alerts, _ = e.Evaluate(ctx, &stoppedAgain, later, subs)
	if len(alerts) != 0 {
		t.Errorf("stopped->stopped should be quiet, got %+v", alerts)
	}
}

func TestEvaluate_SkipsUnknownSpeedAndOtherVessels(t *testing.T) {
	e := New(0, store.NewInMemoryStore(), nil)
	ctx := context.Background()
	sub := models.Subscription{
		UserID:              "u",
		VesselID:            "244660000",
		AlertTypes:          []models.AlertType{models.AlertTypeSpeed, models.AlertTypeStatusChange},
		SpeedThresholdKnots: models.Float(10),
		IsActive:            true,
	}

	prev, cur := at(0, nil), at(10, models.Float(15))
	if alerts, _ := e.Evaluate(ctx, &prev, cur, []models.Subscription{sub}); len(alerts) != 0 {
		t.Errorf("missing previous speed should not fire, got %+v", alerts)
	}

	prev = at(0, models.Float(1))
	other := sub
	other.VesselID = "111111111"
	if alerts, _ := e.Evaluate(ctx, &prev, cur, []models.Subscription{other}); len(alerts) != 0 {
		t.Errorf("subscription for another vessel should not fire, got %+v", alerts)
	}

	inactive := sub
	inactive.IsActive = false
	if alerts, _ := e.Evaluate(ctx, &prev, cur, []models.Subscription{inactive}); len(alerts) != 0 {
		t.Errorf("inactive subscription should not fire, got %+v", alerts)
	}
}

type brokenWriter struct{ *store.InMemoryStore }

func (b *brokenWriter) AppendAlert(ctx context.Context, a models.Alert) error {
	return errors.New("write failed")
}

func TestEvaluate_WriteErrorsAreCollected(t *testing.T) {
	w := &brokenWriter{InMemoryStore: store.NewInMemoryStore()}
	e := New(0, w, nil)
	prev, cur := at(0, models.Float(1)), at(10, models.Float(15))

	subs := []models.Subscription{speedSub(10), speedSub(12)}
	subs[1].UserID = "user-9"
	alerts, err := e.Evaluate(context.Background(), &prev, cur, subs)
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(alerts) != 0 {
		t.Errorf("no alert should be reported as raised, got %+v", alerts)
	}
	if !strings.Contains(err.Error(), "and 1 more") {
		t.Errorf("expected both failures to be collected, got %v", err)
	}
}
