package webhook

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Dispatcher schedules deliveries on a worker pool so the caller's
// status-update path never blocks on network I/O. When the pool is not
// running, Dispatch falls back to sending inline.
type Dispatcher struct {
	sender  *Sender
	jobs    chan job
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

type job struct {
	dest Destination
	n    *Notification
	meta Metadata
}

func NewDispatcher(sender *Sender, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		sender: sender,
		jobs:   make(chan job, queueSize),
	}
}

// Start launches the worker goroutines. Workers drain remaining jobs
// after Stop is called.
func (d *Dispatcher) Start(ctx context.Context, workers int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true

	if workers <= 0 {
		workers = 4
	}
	for range workers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.sender.Send(ctx, j.dest, j.n, j.meta)
			}
		}()
	}
}

// Stop closes the queue and waits for in-flight deliveries to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}

// Dispatch hands the delivery to a worker and returns immediately. The
// outcome is observable only through the delivery log. If the queue is
// full or the pool is stopped, the send runs inline instead of being
// dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, dest Destination, n *Notification, meta Metadata) {
	d.mu.Lock()
	if d.running {
		select {
		case d.jobs <- job{dest: dest, n: n, meta: meta}:
			d.mu.Unlock()
			return
		default:
			log.Warn().Str("url", dest.URL).Msg("webhook.Dispatch: queue full, sending inline")
		}
	}
	d.mu.Unlock()

	d.sender.Send(ctx, dest, n, meta)
}
