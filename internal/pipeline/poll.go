package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/metrics"
	"github.com/rajasatyajit/VesselWatch/internal/models"
	"github.com/rajasatyajit/VesselWatch/internal/provider"
	"github.com/rajasatyajit/VesselWatch/pkg/utils"
	"golang.org/x/sync/semaphore"
)

// runPoller fetches every tracked vessel from a on the poll schedule until ctx
// is done or the adapter is disabled
func (p *Pipeline) runPoller(ctx context.Context, a provider.PollAdapter) error {
	log := logger.Component("poller").With("provider", a.Name())
	if len(p.cfg.TrackedVessels) == 0 {
		log.Warn("No tracked vessels, poller idle")
		return nil
	}
	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	log.Info("Starting poller", "interval", interval, "vessels", len(p.cfg.TrackedVessels))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.pollOnce(ctx, a); err != nil {
			if errors.Is(err, apperrors.ErrAdapterDisabled) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			log.Error("Poll round failed", "error", err)
		}
		select {
		case <-ctx.Done():
			log.Info("Poller stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// pollOnce fetches all tracked vessels with at most PollFanOut requests in flight
func (p *Pipeline) pollOnce(ctx context.Context, a provider.PollAdapter) error {
	if p.Disabled(a.Name()) {
		return apperrors.ErrAdapterDisabled
	}

	fanOut := int64(p.cfg.PollFanOut)
	sem := semaphore.NewWeighted(fanOut)
	var authFailed atomic.Bool

	for _, raw := range p.cfg.TrackedVessels {
		id := utils.NormalizeMMSI(raw)
		if err := sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("acquire semaphore: %w", err)
		}
		if authFailed.Load() {
			sem.Release(1)
			break
		}
		go func() {
			defer sem.Release(1)
			r, err := p.fetchWithRetry(ctx, a, id)
			if err != nil {
				if apperrors.Classify(err) == apperrors.KindAuth {
					authFailed.Store(true)
					p.disable(a.Name(), err)
				}
				return
			}
			if err := p.Submit(ctx, r); err != nil && !errors.Is(err, apperrors.ErrDuplicate) {
				logger.WithContext(logger.WithVessel(ctx, id)).Debug("Polled report rejected", "provider", a.Name(), "error", err)
			}
		}()
	}

	// wait for in-flight fetches
	if err := sem.Acquire(ctx, fanOut); err != nil {
		return fmt.Errorf("wait for fetches: %w", err)
	}
	sem.Release(fanOut)

	if authFailed.Load() {
		return apperrors.ErrAdapterDisabled
	}
	return nil
}

// fetchWithRetry applies the retry policy to one vessel fetch. Auth, not
// found and validation failures return at once; rate limit and transient
// failures are retried with linear backoff up to RetryAttempts, after which
// the observation is dropped.
func (p *Pipeline) fetchWithRetry(ctx context.Context, a provider.PollAdapter, vesselID string) (models.PositionReport, error) {
	log := logger.WithContext(logger.WithVessel(ctx, vesselID)).With("provider", a.Name())

	for attempt := 0; ; attempt++ {
		start := time.Now()
		r, err := a.FetchByVesselID(ctx, vesselID)
		if err == nil {
			metrics.RecordProviderCall(a.Name(), "ok", time.Since(start))
			return r, nil
		}
		if ctx.Err() != nil {
			return models.PositionReport{}, ctx.Err()
		}

		kind := apperrors.Classify(err)
		metrics.RecordProviderCall(a.Name(), kind.String(), time.Since(start))
		p.stats.pollErrors.Add(1)

		if !kind.Retryable() {
			if kind == apperrors.KindNotFound {
				log.Info("Vessel not found, skipping", "error", err)
			} else {
				log.Error("Fetch failed", "kind", kind.String(), "error", err)
			}
			return models.PositionReport{}, err
		}
		if attempt >= p.cfg.RetryAttempts {
			p.stats.dropped.Add(1)
			metrics.RecordReport(a.Name(), "dropped")
			log.Warn("Giving up on vessel for this round", "attempts", attempt+1, "error", err)
			return models.PositionReport{}, err
		}

		delay := time.Duration(attempt+1) * p.cfg.RetryDelay
		log.Debug("Retrying fetch", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return models.PositionReport{}, ctx.Err()
		case <-time.After(delay):
		}
	}
}
