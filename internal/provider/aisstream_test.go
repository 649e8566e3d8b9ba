package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/models"
)

const aisPositionFrame = `{
  "MessageType": "PositionReport",
  "MetaData": {"MMSI": 259000420, "ShipName": "AUGUSTSON           ", "latitude": 66.02695, "longitude": 12.253821666666665, "time_utc": "2024-03-01 10:30:00.318353 +0000 UTC"},
  "Message": {"PositionReport": {"Sog": 10.5, "Cog": 308, "TrueHeading": 511, "NavigationalStatus": 0}}
}`

// wsServer upgrades one connection, records the subscription and runs script
func wsServer(t *testing.T, script func(conn *websocket.Conn)) (*httptest.Server, <-chan aisSubscription) {
	t.Helper()
	subs := make(chan aisSubscription, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read subscription: %v", err)
			return
		}
		var sub aisSubscription
		if err := json.Unmarshal(data, &sub); err != nil {
			t.Errorf("decode subscription: %v", err)
			return
		}
		subs <- sub
		script(conn)
	}))
	return srv, subs
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestAISStreamClient_Subscribe(t *testing.T) {
	srv, subs := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(aisPositionFrame))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"MessageType":"ShipStaticData","MetaData":{"MMSI":1}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"MessageType":"PositionReport","MetaData":{"MMSI":2,"latitude":95,"longitude":0,"time_utc":"2024-03-01T10:00:00Z"},"Message":{"PositionReport":{"Sog":1}}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(aisPositionFrame))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(50 * time.Millisecond)
	})
	defer srv.Close()

	c := NewAISStreamClient(wsURL(srv), "api-key")
	box := models.BoundingBox{MinLatitude: 50, MinLongitude: 0, MaxLatitude: 70, MaxLongitude: 30}

	var mu sync.Mutex
	var got []models.PositionReport
	err := c.Subscribe(context.Background(), box, func(r models.PositionReport) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("expected clean return on normal close, got %v", err)
	}

	sub := <-subs
	if sub.APIKey != "api-key" {
		t.Errorf("subscription key = %q", sub.APIKey)
	}
	if len(sub.BoundingBoxes) != 1 || sub.BoundingBoxes[0][0][0] != 50 || sub.BoundingBoxes[0][1][1] != 30 {
		t.Errorf("subscription boxes = %v", sub.BoundingBoxes)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 reports (malformed, static and invalid frames skipped), got %d", len(got))
	}
	r := got[0]
	if r.VesselID != "259000420" || r.VesselName != "AUGUSTSON" || r.Source != AISStreamName {
		t.Errorf("unexpected identity %+v", r)
	}
	if r.SpeedKnots == nil || *r.SpeedKnots != 10.5 || r.HeadingDeg != nil {
		t.Errorf("unexpected kinematics speed=%v heading=%v", r.SpeedKnots, r.HeadingDeg)
	}
	want := time.Date(2024, 3, 1, 10, 30, 0, 318353000, time.UTC)
	if !r.Timestamp.Equal(want) {
		t.Errorf("timestamp = %s, want %s", r.Timestamp, want)
	}
}

func TestAISStreamClient_DropIsTransient(t *testing.T) {
	srv, _ := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(aisPositionFrame))
		// returning closes the TCP connection without a close frame
	})
	defer srv.Close()

	err := NewAISStreamClient(wsURL(srv), "k").Subscribe(context.Background(), models.World, func(models.PositionReport) {})
	var terr *apperrors.TransientError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransientError on abrupt drop, got %T %v", err, err)
	}
}

func TestAISStreamClient_ContextCancelClosesSocket(t *testing.T) {
	release := make(chan struct{})
	srv, _ := wsServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(release)
				return
			}
		}
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- NewAISStreamClient(wsURL(srv), "k").Subscribe(ctx, models.World, func(models.PositionReport) {})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}

	select {
	case <-release:
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the socket close")
	}
}

func TestAISStreamClient_AuthRejectedOnDial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewAISStreamClient(wsURL(srv), "k").Subscribe(context.Background(), models.World, func(models.PositionReport) {})
	if apperrors.Classify(err) != apperrors.KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestAISStreamClient_ServerErrorMessageIsAuth(t *testing.T) {
	srv, _ := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"Api Key Is Not Valid"}`))
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	err := NewAISStreamClient(wsURL(srv), "k").Subscribe(context.Background(), models.World, func(models.PositionReport) {})
	if apperrors.Classify(err) != apperrors.KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}
