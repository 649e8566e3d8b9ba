package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/metrics"
	"github.com/rajasatyajit/VesselWatch/internal/models"
)

// AISStreamName is the source tag on reports from the streaming provider
const AISStreamName = "aisstream"

const (
	streamReadTimeout  = 90 * time.Second
	streamPingInterval = 30 * time.Second
	streamWriteTimeout = 5 * time.Second
)

// AISStreamClient subscribes to an aisstream-style websocket feed
type AISStreamClient struct {
	url    string
	apiKey string
	dialer websocket.Dialer
	now    func() time.Time

	readTimeout  time.Duration
	pingInterval time.Duration
}

type aisSubscription struct {
	APIKey             string          `json:"APIKey"`
	BoundingBoxes      [][2][2]float64 `json:"BoundingBoxes"`
	FilterMessageTypes []string        `json:"FilterMessageTypes,omitempty"`
}

type aisMessage struct {
	MessageType string `json:"MessageType"`
	MetaData    struct {
		MMSI      any     `json:"MMSI"`
		ShipName  string  `json:"ShipName"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		TimeUTC   string  `json:"time_utc"`
	} `json:"MetaData"`
	Message struct {
		PositionReport *struct {
			Sog                *float64 `json:"Sog"`
			Cog                *float64 `json:"Cog"`
			TrueHeading        *float64 `json:"TrueHeading"`
			NavigationalStatus *int     `json:"NavigationalStatus"`
		} `json:"PositionReport"`
	} `json:"Message"`
	Error string `json:"error"`
}

// NewAISStreamClient creates a streaming client for url authenticated by apiKey
func NewAISStreamClient(url, apiKey string) *AISStreamClient {
	return &AISStreamClient{
		url:    url,
		apiKey: apiKey,
		dialer: websocket.Dialer{
			HandshakeTimeout:  10 * time.Second,
			EnableCompression: true,
		},
		now:          time.Now,
		readTimeout:  streamReadTimeout,
		pingInterval: streamPingInterval,
	}
}

func (c *AISStreamClient) Name() string { return AISStreamName }

// Subscribe connects, sends the subscription and emits every position report
// until the connection drops or ctx is cancelled. A malformed message is
// logged and skipped without closing the connection.
func (c *AISStreamClient) Subscribe(ctx context.Context, bbox models.BoundingBox, emit func(models.PositionReport)) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return &apperrors.AuthError{Provider: AISStreamName, StatusCode: resp.StatusCode, Err: err}
		}
		if resp != nil {
			return &apperrors.TransientError{Provider: AISStreamName, Err: fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)}
		}
		return &apperrors.TransientError{Provider: AISStreamName, Err: fmt.Errorf("websocket dial: %w", err)}
	}
	defer closeConnection(conn)

	sub := aisSubscription{
		APIKey: c.apiKey,
		BoundingBoxes: [][2][2]float64{{
			{bbox.MinLatitude, bbox.MinLongitude},
			{bbox.MaxLatitude, bbox.MaxLongitude},
		}},
		FilterMessageTypes: []string{"PositionReport"},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return &apperrors.TransientError{Provider: AISStreamName, Err: fmt.Errorf("send subscription: %w", err)}
	}

	logger.Info("stream connected", "provider", AISStreamName)
	metrics.SetStreamConnected(AISStreamName, true)
	defer metrics.SetStreamConnected(AISStreamName, false)

	done := make(chan struct{})
	defer close(done)
	go c.watch(ctx, conn, done)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			logger.Debug("stream: failed to set read deadline", "error", err)
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("stream closed by server", "provider", AISStreamName)
				return nil
			}
			return &apperrors.TransientError{Provider: AISStreamName, Err: fmt.Errorf("read: %w", err)}
		}

		report, ok, err := c.decode(data)
		if err != nil {
			if apperrors.Classify(err) == apperrors.KindAuth {
				return err
			}
			metrics.RecordReport(AISStreamName, "invalid")
			logger.Warn("stream message rejected", "provider", AISStreamName, "error", err)
			continue
		}
		if ok {
			emit(report)
		}
	}
}

// watch keeps the connection alive with pings and closes it on cancellation
func (c *AISStreamClient) watch(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			closeConnection(conn)
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				logger.Debug("stream ping failed", "provider", AISStreamName, "error", err)
			}
		}
	}
}

// decode turns one frame into a report. ok is false for message types that
// carry no position.
func (c *AISStreamClient) decode(data []byte) (models.PositionReport, bool, error) {
	var msg aisMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return models.PositionReport{}, false, apperrors.ValidationError{Field: "message", Message: err.Error()}
	}
	if msg.Error != "" {
		return models.PositionReport{}, false, &apperrors.AuthError{Provider: AISStreamName, Err: fmt.Errorf("%s", msg.Error)}
	}
	if msg.MessageType != "PositionReport" || msg.Message.PositionReport == nil {
		return models.PositionReport{}, false, nil
	}

	now := c.now()
	ts, _ := ParseTimestamp(msg.MetaData.TimeUTC, now)
	pr := msg.Message.PositionReport

	report := models.PositionReport{
		VesselID:   aisMMSI(msg.MetaData.MMSI),
		Latitude:   msg.MetaData.Latitude,
		Longitude:  msg.MetaData.Longitude,
		SpeedKnots: pr.Sog,
		CourseDeg:  pr.Cog,
		HeadingDeg: pr.TrueHeading,
		NavStatus:  pr.NavigationalStatus,
		Timestamp:  ts,
		Source:     AISStreamName,
		VesselName: msg.MetaData.ShipName,
		ReceivedAt: now.UTC(),
	}
	normalize(&report)
	if err := Validate(report); err != nil {
		return models.PositionReport{}, false, err
	}
	return report, true, nil
}

func aisMMSI(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// closeConnection sends a close frame and closes the socket
func closeConnection(conn *websocket.Conn) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = conn.Close()
}
