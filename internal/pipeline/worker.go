package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rajasatyajit/VesselWatch/internal/alerting"
	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/metrics"
	"github.com/rajasatyajit/VesselWatch/internal/models"
	"github.com/rajasatyajit/VesselWatch/internal/voyage"
	"github.com/rajasatyajit/VesselWatch/pkg/utils"
)

// minCourseKm is the displacement below which no course is derived; GPS
// jitter between close fixes gives meaningless bearings
const minCourseKm = 0.05

// item is either a report or, when tick is set, a sweep event. Both share
// the worker queue so per-vessel state has a single consumer.
type item struct {
	report models.PositionReport
	tick   time.Time
}

type worker struct {
	id      int
	p       *Pipeline
	queue   chan item
	voyages *voyage.Engine
	alerts  *alerting.Engine
	// names caches the vessel name last written to the reference store
	names map[string]string
	batch []models.PositionReport
}

func (w *worker) run(ctx context.Context) {
	var (
		timer  *time.Timer
		flushC <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, flushC = nil, nil
		}
	}
	defer stopTimer()

	for {
		select {
		case it, ok := <-w.queue:
			if !ok {
				w.flush(ctx)
				return
			}
			if !it.tick.IsZero() {
				stopTimer()
				w.flush(ctx)
				w.sweep(ctx, it.tick)
				continue
			}
			w.handle(ctx, it.report)
			switch {
			case len(w.batch) >= w.p.cfg.BatchSize:
				stopTimer()
				w.flush(ctx)
			case len(w.batch) == 1 && timer == nil:
				timer = time.NewTimer(w.p.cfg.BatchWait)
				flushC = timer.C
			}
		case <-flushC:
			timer, flushC = nil, nil
			w.flush(ctx)
		}
	}
}

func (w *worker) handle(ctx context.Context, r models.PositionReport) {
	ctx = logger.WithVessel(ctx, r.VesselID)
	log := logger.WithContext(ctx)

	prev, known := w.voyages.Last(r.VesselID)
	if known && !r.Timestamp.After(prev.Timestamp) {
		w.p.stats.stale.Add(1)
		metrics.RecordReport(r.Source, "stale")
		log.Debug("Stale report ignored", "timestamp", r.Timestamp, "last", prev.Timestamp)
		return
	}

	w.p.stats.accepted.Add(1)
	metrics.RecordReport(r.Source, "accepted")
	if known {
		r.CourseDeg = courseOverGround(prev, r)
	}
	w.batch = append(w.batch, r)
	w.trackVessel(ctx, r)

	events, err := w.voyages.Process(ctx, r)
	if err != nil {
		log.Error("Voyage write failed", "error", err)
	}
	for _, ev := range events {
		w.announce(ctx, ev)
	}

	if !known {
		return
	}
	subs, err := w.p.store.ListActiveSubscriptions(ctx, r.VesselID)
	if err != nil {
		log.Error("Failed to load subscriptions", "error", err)
		return
	}
	alerts, err := w.alerts.Evaluate(ctx, &prev, r, subs)
	if err != nil {
		log.Error("Alert evaluation incomplete", "error", err)
	}
	for i := range alerts {
		w.p.stats.alerts.Add(1)
		w.p.outbox.post(notice{ctx: ctx, alert: &alerts[i]})
	}
}

func (w *worker) announce(ctx context.Context, ev voyage.Event) {
	if ev.Kind == voyage.EventStarted {
		w.p.stats.voyagesOpened.Add(1)
	} else {
		w.p.stats.voyagesClosed.Add(1)
	}
	w.p.outbox.post(notice{ctx: ctx, voyage: &ev})
}

// courseOverGround keeps a reported course, or derives one from the
// displacement since prev
func courseOverGround(prev, r models.PositionReport) *float64 {
	if r.CourseDeg != nil {
		return r.CourseDeg
	}
	if utils.Haversine(prev.Latitude, prev.Longitude, r.Latitude, r.Longitude) < minCourseKm {
		return nil
	}
	return models.Float(utils.Bearing(prev.Latitude, prev.Longitude, r.Latitude, r.Longitude))
}

// trackVessel writes the vessel on first sighting and whenever the feed
// reports a new name for it
func (w *worker) trackVessel(ctx context.Context, r models.PositionReport) {
	name, cached := w.names[r.VesselID]
	if cached && (r.VesselName == "" || r.VesselName == name) {
		return
	}

	if !cached {
		v, err := w.p.store.LookupVessel(ctx, r.VesselID)
		switch {
		case err == nil:
			w.names[r.VesselID] = v.Name
			if r.VesselName == "" || r.VesselName == v.Name {
				return
			}
		case !errors.Is(err, apperrors.ErrNotFound):
			logger.WithContext(ctx).Warn("Vessel lookup failed", "error", err)
			return
		}
	}

	now := time.Now().UTC()
	v := models.Vessel{MMSI: r.VesselID, Name: r.VesselName, FirstSeenAt: r.Timestamp, UpdatedAt: now}
	if err := w.p.store.UpsertVessel(ctx, v); err != nil {
		logger.WithContext(ctx).Warn("Vessel upsert failed", "error", err)
		return
	}
	w.names[r.VesselID] = r.VesselName
}

func (w *worker) flush(ctx context.Context) {
	if len(w.batch) == 0 {
		return
	}
	start := time.Now()
	batch := w.batch
	w.batch = nil

	if err := w.p.store.PersistPositionReports(ctx, batch); err != nil {
		w.p.stats.persistErrors.Add(int64(len(batch)))
		logger.WithContext(ctx).Error("Failed to persist reports",
			"count", len(batch),
			"error", apperrors.PipelineError{Source: fmt.Sprintf("worker-%d", w.id), Stage: "persist", Err: err},
		)
		return
	}
	w.p.stats.persisted.Add(int64(len(batch)))
	metrics.RecordBatch(len(batch), time.Since(start))
	metrics.SetQueueDepth(fmt.Sprint(w.id), float64(len(w.queue)))
}

func (w *worker) sweep(ctx context.Context, now time.Time) {
	events, err := w.voyages.Sweep(ctx, now)
	if err != nil {
		logger.WithContext(ctx).Error("Sweep incomplete", "error", err)
	}
	for _, ev := range events {
		w.announce(logger.WithVessel(ctx, ev.Voyage.VesselID), ev)
	}
}
