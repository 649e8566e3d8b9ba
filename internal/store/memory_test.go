package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rajasatyajit/VesselWatch/internal/models"
)

func TestInMemoryStore_Suite(t *testing.T) {
	runStoreSuite(t, NewInMemoryStore())
}

func TestInMemoryStore_PersistDeduplicates(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	r := models.PositionReport{VesselID: "1", Latitude: 1, Longitude: 1, Timestamp: ts}
	if err := s.PersistPositionReports(ctx, []models.PositionReport{r, r}); err != nil {
		t.Fatal(err)
	}
	// same instant in another zone is the same key
	r.Timestamp = ts.In(time.FixedZone("X", 7200))
	if err := s.PersistPositionReports(ctx, []models.PositionReport{r}); err != nil {
		t.Fatal(err)
	}
	if n := s.ReportCount(); n != 1 {
		t.Errorf("expected 1 report, got %d", n)
	}
}

func TestInMemoryStore_AppendAlertStampsCreatedAt(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.AppendAlert(context.Background(), models.Alert{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if s.alerts[0].CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestInMemoryStore_ConcurrentWriters(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r := models.PositionReport{VesselID: "v", Timestamp: base.Add(time.Duration(w*50+i) * time.Second)}
				_ = s.PersistPositionReports(ctx, []models.PositionReport{r})
				_, _ = s.AlertExists(ctx, "u", "v", models.AlertTypeSpeed, base)
			}
		}(w)
	}
	wg.Wait()

	if n := s.ReportCount(); n != 400 {
		t.Errorf("expected 400 reports, got %d", n)
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	tests := []struct {
		offset, limit int
		want          int
	}{
		{0, 0, 5},
		{0, 2, 2},
		{3, 0, 2},
		{4, 10, 1},
		{5, 0, 0},
		{9, 1, 0},
	}
	for _, tt := range tests {
		if got := paginate(items, tt.offset, tt.limit); len(got) != tt.want {
			t.Errorf("paginate(%d,%d) len=%d want %d", tt.offset, tt.limit, len(got), tt.want)
		}
	}
}
