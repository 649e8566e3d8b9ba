package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/metrics"
)

// restClient performs GET requests and maps HTTP status codes to the
// provider error taxonomy
type restClient struct {
	provider string
	opts     options
	decorate func(*http.Request)
}

// getJSON fetches endpoint into out. A 429 is retried once after the
// configured delay; every other failure is returned immediately. Each attempt
// takes its own slot from the configured limiter.
func (c *restClient) getJSON(ctx context.Context, endpoint, vesselID string, out any) error {
	for attempt := 0; ; attempt++ {
		if c.opts.limiter != nil {
			if err := c.opts.limiter.Acquire(ctx); err != nil {
				return err
			}
		}
		err := c.fetch(ctx, endpoint, vesselID, out)
		if err == nil {
			return nil
		}
		if apperrors.Classify(err) != apperrors.KindRateLimit || attempt > 0 {
			return err
		}

		logger.Debug("provider rate limited, retrying once", "provider", c.provider, "delay", c.opts.rateLimitDelay)
		timer := time.NewTimer(c.opts.rateLimitDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &apperrors.TransientError{Provider: c.provider, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

func (c *restClient) fetch(ctx context.Context, endpoint, vesselID string, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &apperrors.TransientError{Provider: c.provider, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.decorate != nil {
		c.decorate(req)
	}

	start := time.Now()
	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		metrics.RecordProviderCall(c.provider, "network_error", time.Since(start))
		return &apperrors.TransientError{Provider: c.provider, Err: err}
	}
	defer resp.Body.Close()
	metrics.RecordProviderCall(c.provider, statusOutcome(resp.StatusCode), time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &apperrors.TransientError{Provider: c.provider, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return &apperrors.NotFoundError{Provider: c.provider, VesselID: vesselID}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &apperrors.AuthError{Provider: c.provider, StatusCode: resp.StatusCode, Err: apperrors.ErrUnauthorized}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &apperrors.RateLimitError{Provider: c.provider, Err: apperrors.ErrRateLimit}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &apperrors.TransientError{
			Provider: c.provider,
			Err:      fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}
}

func statusOutcome(code int) string {
	switch {
	case code == http.StatusOK:
		return "ok"
	case code == http.StatusNotFound:
		return "not_found"
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "auth_error"
	case code == http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "error"
	}
}
