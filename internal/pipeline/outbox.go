package pipeline

import (
	"context"
	"sync"

	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/metrics"
	"github.com/rajasatyajit/VesselWatch/internal/models"
	"github.com/rajasatyajit/VesselWatch/internal/voyage"
	"github.com/rajasatyajit/VesselWatch/pkg/utils"
)

// notice is one alert or voyage transition waiting for fan-out
type notice struct {
	ctx    context.Context
	alert  *models.Alert
	voyage *voyage.Event
}

func (n notice) vesselID() string {
	if n.alert != nil {
		return n.alert.VesselID
	}
	return n.voyage.Voyage.VesselID
}

// outbox decouples notification delivery from the workers. Notices are
// sharded by vessel so each vessel's notices keep their order. A full shard
// drops the notice rather than block ingestion.
type outbox struct {
	p      *Pipeline
	shards []chan notice
	wg     sync.WaitGroup
}

func newOutbox(p *Pipeline, senders, size int) *outbox {
	o := &outbox{p: p, shards: make([]chan notice, senders)}
	for i := range o.shards {
		o.shards[i] = make(chan notice, size)
	}
	return o
}

// post queues n without blocking and reports whether it was accepted
func (o *outbox) post(n notice) bool {
	select {
	case o.shards[utils.ShardIndex(n.vesselID(), len(o.shards))] <- n:
		return true
	default:
		o.p.stats.notifyDropped.Add(1)
		kind := "voyage"
		if n.alert != nil {
			kind = "alert"
		}
		metrics.RecordNotification("outbox", "dropped")
		logger.WithContext(n.ctx).Warn("Notification queue full, notice dropped", "kind", kind)
		return false
	}
}

func (o *outbox) start() {
	for i, shard := range o.shards {
		o.wg.Add(1)
		go func(id int, shard <-chan notice) {
			defer o.wg.Done()
			for n := range shard {
				o.deliver(n)
			}
			logger.Debug("Notification sender stopped", "sender", id)
		}(i, shard)
	}
}

// close stops accepting notices and waits until every queued one is delivered
func (o *outbox) close() {
	for _, shard := range o.shards {
		close(shard)
	}
	o.wg.Wait()
}

func (o *outbox) deliver(n notice) {
	var sent int
	if n.alert != nil {
		sent = o.p.notifier.AlertRaised(n.ctx, *n.alert)
	} else {
		sent = o.p.notifier.VoyageChanged(n.ctx, *n.voyage)
	}
	o.p.stats.notifications.Add(int64(sent))
}

func (o *outbox) backlog() int {
	n := 0
	for _, shard := range o.shards {
		n += len(shard)
	}
	return n
}
