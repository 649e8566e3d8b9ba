package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/metrics"
	"github.com/rajasatyajit/VesselWatch/internal/models"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// LogDispatcher writes notifications to the structured log
type LogDispatcher struct{}

func NewLogDispatcher() *LogDispatcher { return &LogDispatcher{} }

func (d *LogDispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	logger.WithContext(logger.WithVessel(ctx, n.VesselID)).Info("Notification",
		"user_id", n.UserID,
		"kind", n.Kind,
		"severity", n.Severity,
		"title", n.Title,
		"message", n.Message,
	)
	metrics.RecordNotification("log", "ok")
	return nil
}

// WebhookDispatcher POSTs each notification as JSON to a fixed URL, throttled
// on the client side so a burst of alerts cannot flood the receiver
type WebhookDispatcher struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhookDispatcher creates a webhook sink. perSecond <= 0 disables throttling.
func NewWebhookDispatcher(url string, perSecond float64, client *http.Client) *WebhookDispatcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &WebhookDispatcher{
		url:     url,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	if err := d.limiter.Wait(ctx); err != nil {
		metrics.RecordNotification("webhook", "throttled")
		return fmt.Errorf("webhook throttle: %w", err)
	}

	body, err := json.Marshal(n)
	if err != nil {
		metrics.RecordNotification("webhook", "error")
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		metrics.RecordNotification("webhook", "error")
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "VesselWatch/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		metrics.RecordNotification("webhook", "error")
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordNotification("webhook", "error")
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	metrics.RecordNotification("webhook", "ok")
	return nil
}

// RedisDispatcher publishes every notification on one channel and keeps the
// newest inboxSize entries per user in a list under inbox:<user>
type RedisDispatcher struct {
	redis     *redis.Client
	channel   string
	inboxSize int
}

func NewRedisDispatcher(client *redis.Client, channel string, inboxSize int) (*RedisDispatcher, error) {
	if client == nil {
		return nil, fmt.Errorf("notify: redis client is nil")
	}
	if inboxSize < 1 {
		inboxSize = 100
	}
	return &RedisDispatcher{redis: client, channel: channel, inboxSize: inboxSize}, nil
}

// InboxKey returns the list key holding a user's notifications
func InboxKey(userID string) string { return "inbox:" + userID }

func (d *RedisDispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		metrics.RecordNotification("redis", "error")
		return fmt.Errorf("encode notification: %w", err)
	}

	key := InboxKey(n.UserID)
	pipe := d.redis.Pipeline()
	if d.channel != "" {
		pipe.Publish(ctx, d.channel, payload)
	}
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(d.inboxSize-1))
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordNotification("redis", "error")
		return fmt.Errorf("redis notify %s: %w", n.UserID, err)
	}
	metrics.RecordNotification("redis", "ok")
	return nil
}

// Inbox returns up to limit of the user's newest notifications
func (d *RedisDispatcher) Inbox(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit < 1 || limit > d.inboxSize {
		limit = d.inboxSize
	}
	raw, err := d.redis.LRange(ctx, InboxKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read inbox %s: %w", userID, err)
	}
	out := make([]models.Notification, 0, len(raw))
	for _, s := range raw {
		var n models.Notification
		if err := json.Unmarshal([]byte(s), &n); err != nil {
			return nil, fmt.Errorf("decode inbox entry: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// MultiDispatcher hands each notification to every sink. One sink failing
// does not stop the others; the first error is returned.
type MultiDispatcher []Dispatcher

func (m MultiDispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	var first error
	for _, d := range m {
		if err := d.Dispatch(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build assembles the sinks the configuration asks for. The log sink is always on.
func Build(webhookURL string, webhookRate float64, client *redis.Client, channel string, inboxSize int) (Dispatcher, error) {
	sinks := MultiDispatcher{NewLogDispatcher()}
	if webhookURL != "" {
		sinks = append(sinks, NewWebhookDispatcher(webhookURL, webhookRate, nil))
	}
	if client != nil {
		rd, err := NewRedisDispatcher(client, channel, inboxSize)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, rd)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}
