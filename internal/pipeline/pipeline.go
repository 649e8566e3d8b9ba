package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rajasatyajit/VesselWatch/config"
	"github.com/rajasatyajit/VesselWatch/internal/alerting"
	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/metrics"
	"github.com/rajasatyajit/VesselWatch/internal/models"
	"github.com/rajasatyajit/VesselWatch/internal/notify"
	"github.com/rajasatyajit/VesselWatch/internal/provider"
	"github.com/rajasatyajit/VesselWatch/internal/store"
	"github.com/rajasatyajit/VesselWatch/internal/voyage"
	"github.com/rajasatyajit/VesselWatch/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// ErrStopped is returned by Submit once the pipeline has begun shutting down
var ErrStopped = errors.New("pipeline stopped")

// Store is everything a worker reads and writes
type Store interface {
	store.ReferenceStore
	store.Sink
}

// Notifier receives raised alerts and voyage transitions
type Notifier interface {
	AlertRaised(ctx context.Context, a models.Alert) int
	VoyageChanged(ctx context.Context, ev voyage.Event) int
}

type streamSource struct {
	adapter provider.StreamAdapter
	bbox    models.BoundingBox
}

// Pipeline owns adapter lifecycles and the worker pool. Every report, whatever
// its origin, enters through Submit and is routed by vessel id to exactly one
// worker, which owns all per-vessel state.
type Pipeline struct {
	cfg       config.PipelineConfig
	store     Store
	ports     voyage.PortResolver
	notifier  Notifier
	deduper   Deduper
	segment   voyage.Config
	threshold float64
	reconnect struct{ min, max time.Duration }

	polls   []provider.PollAdapter
	streams []streamSource
	workers []*worker
	outbox  *outbox

	mu       sync.RWMutex
	running  bool
	closed   bool
	disabled sync.Map

	stats counters
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithPorts sets the port resolver used for voyage end points and port alerts
func WithPorts(ports voyage.PortResolver) Option {
	return func(p *Pipeline) { p.ports = ports }
}

// WithNotifier replaces the default log-only notifier
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithDeduper replaces the default in-memory deduper
func WithDeduper(d Deduper) Option {
	return func(p *Pipeline) { p.deduper = d }
}

// WithSegmentation sets the voyage thresholds
func WithSegmentation(cfg voyage.Config) Option {
	return func(p *Pipeline) { p.segment = cfg }
}

// WithMovementThreshold sets the speed separating moving from stopped for alerts
func WithMovementThreshold(knots float64) Option {
	return func(p *Pipeline) { p.threshold = knots }
}

// WithReconnect sets the stream reconnect backoff bounds
func WithReconnect(initial, ceiling time.Duration) Option {
	return func(p *Pipeline) {
		p.reconnect.min = initial
		p.reconnect.max = ceiling
	}
}

// WithPollAdapter registers a poll adapter, run on the poll schedule over the tracked vessels
func WithPollAdapter(a provider.PollAdapter) Option {
	return func(p *Pipeline) { p.polls = append(p.polls, a) }
}

// WithStreamAdapter registers a stream adapter subscribed to bbox
func WithStreamAdapter(a provider.StreamAdapter, bbox models.BoundingBox) Option {
	return func(p *Pipeline) { p.streams = append(p.streams, streamSource{adapter: a, bbox: bbox}) }
}

// New creates a new pipeline instance
func New(cfg config.PipelineConfig, st Store, opts ...Option) *Pipeline {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1000
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	if cfg.BatchWait <= 0 {
		cfg.BatchWait = 30 * time.Second
	}
	if cfg.PollFanOut < 1 {
		cfg.PollFanOut = 1
	}
	if cfg.NotifySenders < 1 {
		cfg.NotifySenders = 1
	}
	if cfg.NotifyQueueSize < 1 {
		cfg.NotifyQueueSize = cfg.QueueSize
	}

	p := &Pipeline{
		cfg:     cfg,
		store:   st,
		segment: voyage.DefaultConfig(),
	}
	p.reconnect.min = time.Second
	p.reconnect.max = 32 * time.Second
	for _, opt := range opts {
		opt(p)
	}
	if p.notifier == nil {
		p.notifier = notify.New(notify.NewLogDispatcher(), st)
	}
	if p.deduper == nil {
		p.deduper = NewMemoryDeduper(cfg.QueueSize * cfg.WorkerCount * 10)
	}
	if p.reconnect.max < p.reconnect.min {
		p.reconnect.max = p.reconnect.min
	}

	p.outbox = newOutbox(p, cfg.NotifySenders, cfg.NotifyQueueSize)
	p.workers = make([]*worker, cfg.WorkerCount)
	for i := range p.workers {
		p.workers[i] = &worker{
			id:      i,
			p:       p,
			queue:   make(chan item, cfg.QueueSize),
			voyages: voyage.New(p.segment, st, p.ports),
			alerts:  alerting.New(p.threshold, st, p.ports),
			names:   make(map[string]string),
		}
	}

	logger.Info("Pipeline initialized",
		"workers", cfg.WorkerCount,
		"poll_adapters", len(p.polls),
		"stream_adapters", len(p.streams),
		"tracked_vessels", len(cfg.TrackedVessels),
	)
	return p
}

// Run starts workers, notification senders, pollers, streams and the sweep
// ticker, and blocks until ctx is cancelled. On cancellation it stops
// accepting reports, lets the workers drain their queues and flush their
// batches, delivers the queued notifications, then returns.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already running")
	}
	if p.closed {
		p.mu.Unlock()
		return ErrStopped
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	logger.Info("Starting pipeline")

	// Workers outlive ctx so queued reports are still processed during drain.
	workCtx := context.WithoutCancel(ctx)
	p.outbox.start()
	var workers sync.WaitGroup
	for _, w := range p.workers {
		workers.Add(1)
		go func(w *worker) {
			defer workers.Done()
			w.run(logger.WithWorker(workCtx, w.id))
		}(w)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range p.polls {
		a := a
		g.Go(func() error { return p.runPoller(gctx, a) })
	}
	for _, s := range p.streams {
		s := s
		g.Go(func() error { return p.runStream(gctx, s) })
	}
	if p.cfg.SweepInterval > 0 {
		g.Go(func() error { return p.runSweeper(gctx) })
	}

	err := g.Wait()
	<-ctx.Done()

	p.mu.Lock()
	p.closed = true
	for _, w := range p.workers {
		close(w.queue)
	}
	p.mu.Unlock()

	workers.Wait()
	p.outbox.close()
	logger.Info("Pipeline stopped",
		"accepted", p.stats.accepted.Load(),
		"persisted", p.stats.persisted.Load(),
		"notifications_dropped", p.stats.notifyDropped.Load(),
	)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Submit validates, deduplicates and routes one report to its worker. It
// blocks while the worker's queue is full.
func (p *Pipeline) Submit(ctx context.Context, r models.PositionReport) error {
	p.stats.submitted.Add(1)

	r.VesselID = utils.NormalizeMMSI(r.VesselID)
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now().UTC()
	}
	if err := provider.Validate(r); err != nil {
		p.stats.invalid.Add(1)
		metrics.RecordReport(r.Source, "invalid")
		return err
	}

	seen, err := p.deduper.Seen(ctx, r.Key())
	if err != nil {
		// a dedup outage must not stop ingestion; the store ignores duplicates anyway
		logger.Warn("Deduplication unavailable", "error", err)
	}
	if seen {
		p.stats.duplicates.Add(1)
		metrics.RecordReport(r.Source, "duplicate")
		return apperrors.ErrDuplicate
	}

	if err := p.enqueue(ctx, p.route(r.VesselID), item{report: r}); err != nil {
		if ferr := p.deduper.Forget(context.WithoutCancel(ctx), r.Key()); ferr != nil {
			logger.Warn("Failed to release dedup key", "error", ferr)
		}
		return err
	}
	return nil
}

// Tick pushes a sweep event carrying now into every worker queue
func (p *Pipeline) Tick(ctx context.Context, now time.Time) error {
	for _, w := range p.workers {
		if err := p.enqueue(ctx, w, item{tick: now}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) enqueue(ctx context.Context, w *worker, it item) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrStopped
	}
	select {
	case w.queue <- it:
		metrics.SetQueueDepth(fmt.Sprint(w.id), float64(len(w.queue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) route(vesselID string) *worker {
	return p.workers[utils.ShardIndex(vesselID, len(p.workers))]
}

func (p *Pipeline) runSweeper(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := p.Tick(ctx, now.UTC()); err != nil && ctx.Err() == nil {
				logger.Warn("Sweep tick not delivered", "error", err)
			}
		}
	}
}

// IsRunning returns whether the pipeline is currently running
func (p *Pipeline) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Disabled reports whether an adapter was switched off after an auth failure
func (p *Pipeline) Disabled(name string) bool {
	_, ok := p.disabled.Load(name)
	return ok
}

func (p *Pipeline) disable(name string, err error) {
	if _, loaded := p.disabled.LoadOrStore(name, struct{}{}); !loaded {
		logger.Error("Adapter disabled", "provider", name, "error", err)
	}
}
