package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	json "github.com/goccy/go-json"
	"github.com/rajasatyajit/VesselWatch/internal/models"
	"github.com/rajasatyajit/VesselWatch/internal/store"
	"github.com/rajasatyajit/VesselWatch/internal/voyage"
	redis "github.com/redis/go-redis/v9"
)

type recorder struct {
	mu    sync.Mutex
	notes []models.Notification
	fail  bool
}

func (r *recorder) Dispatch(ctx context.Context, n models.Notification) error {
	if r.fail {
		return errors.New("sink down")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

func seedSubs(t *testing.T) *store.InMemoryStore {
	t.Helper()
	st := store.NewInMemoryStore()
	ctx := context.Background()
	subs := []models.Subscription{
		{ID: "a", UserID: "alice", VesselID: "244660000", AlertTypes: []models.AlertType{models.AlertTypeSpeed}, IsActive: true},
		{ID: "b", UserID: "alice", VesselID: models.AllVessels, AlertTypes: []models.AlertType{models.AlertTypePortEvent}, IsActive: true},
		{ID: "c", UserID: "bob", VesselID: models.AllVessels, IsActive: true},
		{ID: "d", UserID: "carol", VesselID: "244660000", IsActive: false},
		{ID: "e", UserID: "dave", VesselID: "111111111", IsActive: true},
	}
	for _, s := range subs {
		if err := st.AddSubscription(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	return st
}

func TestNotifier_VoyageChangedOnePerSubscriber(t *testing.T) {
	rec := &recorder{}
	n := New(rec, seedSubs(t))

	end := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	ev := voyage.Event{Kind: voyage.EventCompleted, Voyage: models.Voyage{
		VesselID:      "244660000",
		EndTime:       &end,
		StartPort:     "Helsinki",
		EndPort:       "Tallinn",
		DistanceKm:    82.4,
		DurationHours: 3,
	}}
	if got := n.VoyageChanged(context.Background(), ev); got != 2 {
		t.Fatalf("delivered %d, want 2", got)
	}

	users := map[string]bool{}
	for _, note := range rec.notes {
		users[note.UserID] = true
		if note.Kind != models.KindVoyageCompleted {
			t.Errorf("kind = %s", note.Kind)
		}
		if !strings.Contains(note.Message, "from Helsinki to Tallinn") {
			t.Errorf("unexpected message %q", note.Message)
		}
	}
	if !users["alice"] || !users["bob"] || len(users) != 2 {
		t.Errorf("expected alice and bob once each, got %v", users)
	}
}

func TestNotifier_AlertRaisedGoesToOwner(t *testing.T) {
	rec := &recorder{}
	n := New(rec, nil)

	got := n.AlertRaised(context.Background(), models.Alert{
		UserID:    "alice",
		VesselID:  "244660000",
		AlertType: models.AlertTypeSpeed,
		Message:   "too fast",
	})
	if got != 1 || len(rec.notes) != 1 {
		t.Fatalf("expected one notification, got %d", got)
	}
	note := rec.notes[0]
	if note.UserID != "alice" || note.Kind != models.KindAlert || note.Severity != models.SeverityWarning {
		t.Errorf("unexpected notification %+v", note)
	}
	if note.ID == "" {
		t.Error("notification id should be set")
	}
}

func TestNotifier_FailuresAreSwallowed(t *testing.T) {
	n := New(&recorder{fail: true}, seedSubs(t))
	ev := voyage.Event{Kind: voyage.EventStarted, Voyage: models.Voyage{VesselID: "244660000"}}
	if got := n.VoyageChanged(context.Background(), ev); got != 0 {
		t.Errorf("delivered %d from a failing sink", got)
	}
}

func TestWebhookDispatcher(t *testing.T) {
	var hits atomic.Int32
	var got models.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if hits.Add(1) == 1 {
			_ = json.Unmarshal(body, &got)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL, 0, srv.Client())
	note := models.Notification{ID: "n1", UserID: "alice", Kind: models.KindAlert, Message: "hello"}
	if err := d.Dispatch(context.Background(), note); err != nil {
		t.Fatal(err)
	}
	if got.ID != "n1" || got.Message != "hello" {
		t.Errorf("server received %+v", got)
	}
	if err := d.Dispatch(context.Background(), note); err == nil {
		t.Error("expected error on 502")
	}
}

func TestWebhookDispatcher_Throttles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL, 1, srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := d.Dispatch(ctx, models.Notification{}); err != nil {
		t.Fatal(err)
	}
	if err := d.Dispatch(ctx, models.Notification{}); err == nil {
		t.Error("second call within the same second should be throttled past the deadline")
	}
}

func TestRedisDispatcher_PublishesAndCapsInbox(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "vw:test")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatal(err)
	}

	d, err := NewRedisDispatcher(client, "vw:test", 3)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		if err := d.Dispatch(ctx, models.Notification{ID: id, UserID: "alice"}); err != nil {
			t.Fatal(err)
		}
	}

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg.Payload, `"id":"1"`) {
		t.Errorf("unexpected first message %s", msg.Payload)
	}

	inbox, err := d.Inbox(ctx, "alice", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 3 || inbox[0].ID != "5" || inbox[2].ID != "3" {
		t.Errorf("inbox should hold the newest three, got %+v", inbox)
	}
}

func TestMultiDispatcher(t *testing.T) {
	ok, bad := &recorder{}, &recorder{fail: true}
	m := MultiDispatcher{bad, ok}
	if err := m.Dispatch(context.Background(), models.Notification{ID: "x"}); err == nil {
		t.Error("expected the failing sink's error")
	}
	if len(ok.notes) != 1 {
		t.Error("healthy sink should still receive the notification")
	}
}

func TestBuild(t *testing.T) {
	d, err := Build("", 0, nil, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(*LogDispatcher); !ok {
		t.Errorf("expected log dispatcher only, got %T", d)
	}

	d, err = Build("http://localhost:1", 2, nil, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if m, ok := d.(MultiDispatcher); !ok || len(m) != 2 {
		t.Errorf("expected log+webhook, got %T", d)
	}
}
