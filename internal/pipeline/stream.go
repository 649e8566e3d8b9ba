package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/metrics"
	"github.com/rajasatyajit/VesselWatch/internal/models"
)

// runStream keeps one stream subscription alive. After a drop it waits,
// doubling the wait up to the ceiling; a connection that delivered at least
// one report resets the wait.
func (p *Pipeline) runStream(ctx context.Context, s streamSource) error {
	name := s.adapter.Name()
	log := logger.Component("stream").With("provider", name)
	backoff := p.reconnect.min

	for {
		var delivered atomic.Bool
		err := s.adapter.Subscribe(ctx, s.bbox, func(r models.PositionReport) {
			delivered.Store(true)
			if err := p.Submit(ctx, r); err != nil && !errors.Is(err, apperrors.ErrDuplicate) && ctx.Err() == nil {
				log.Debug("Streamed report rejected", "vessel_id", r.VesselID, "error", err)
			}
		})
		metrics.SetStreamConnected(name, false)
		if ctx.Err() != nil {
			log.Info("Stream stopping")
			return nil
		}
		if apperrors.Classify(err) == apperrors.KindAuth {
			p.disable(name, err)
			return nil
		}

		if delivered.Load() {
			backoff = p.reconnect.min
		}
		p.stats.reconnects.Add(1)
		log.Warn("Stream disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > p.reconnect.max {
			backoff = p.reconnect.max
		}
	}
}

