package pipeline

import "sync/atomic"

type counters struct {
	submitted     atomic.Int64
	invalid       atomic.Int64
	duplicates    atomic.Int64
	stale         atomic.Int64
	accepted      atomic.Int64
	persisted     atomic.Int64
	persistErrors atomic.Int64
	voyagesOpened atomic.Int64
	voyagesClosed atomic.Int64
	alerts        atomic.Int64
	notifications atomic.Int64
	notifyDropped atomic.Int64
	pollErrors    atomic.Int64
	dropped       atomic.Int64
	reconnects    atomic.Int64
}

// Stats is a point-in-time snapshot of pipeline counters
type Stats struct {
	Running          bool     `json:"running"`
	Workers          int      `json:"workers"`
	QueueDepths      []int    `json:"queue_depths"`
	Submitted        int64    `json:"submitted"`
	Invalid          int64    `json:"invalid"`
	Duplicates       int64    `json:"duplicates"`
	Stale            int64    `json:"stale"`
	Accepted         int64    `json:"accepted"`
	Persisted        int64    `json:"persisted"`
	PersistErrors    int64    `json:"persist_errors"`
	VoyagesOpened    int64    `json:"voyages_opened"`
	VoyagesClosed    int64    `json:"voyages_closed"`
	Alerts           int64    `json:"alerts"`
	Notifications    int64    `json:"notifications"`
	NotifyDropped    int64    `json:"notify_dropped"`
	NotifyBacklog    int      `json:"notify_backlog"`
	PollErrors       int64    `json:"poll_errors"`
	Dropped          int64    `json:"dropped"`
	Reconnects       int64    `json:"reconnects"`
	DisabledAdapters []string `json:"disabled_adapters,omitempty"`
}

// Stats returns current counters
func (p *Pipeline) Stats() Stats {
	s := Stats{
		Running:       p.IsRunning(),
		Workers:       len(p.workers),
		QueueDepths:   make([]int, len(p.workers)),
		Submitted:     p.stats.submitted.Load(),
		Invalid:       p.stats.invalid.Load(),
		Duplicates:    p.stats.duplicates.Load(),
		Stale:         p.stats.stale.Load(),
		Accepted:      p.stats.accepted.Load(),
		Persisted:     p.stats.persisted.Load(),
		PersistErrors: p.stats.persistErrors.Load(),
		VoyagesOpened: p.stats.voyagesOpened.Load(),
		VoyagesClosed: p.stats.voyagesClosed.Load(),
		Alerts:        p.stats.alerts.Load(),
		Notifications: p.stats.notifications.Load(),
		NotifyDropped: p.stats.notifyDropped.Load(),
		NotifyBacklog: p.outbox.backlog(),
		PollErrors:    p.stats.pollErrors.Load(),
		Dropped:       p.stats.dropped.Load(),
		Reconnects:    p.stats.reconnects.Load(),
	}
	for i, w := range p.workers {
		s.QueueDepths[i] = len(w.queue)
	}
	p.disabled.Range(func(k, _ any) bool {
		s.DisabledAdapters = append(s.DisabledAdapters, k.(string))
		return true
	})
	return s
}
