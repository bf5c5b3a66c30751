package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config sizes the dispatcher queue. With DropIfFull, routine events are
// discarded instead of waiting for queue space; critical events always wait.
type Config struct {
	BufferSize int
	DropIfFull bool
}

// Dispatcher relays engine events to a Sink on one background goroutine, in
// emission order. A nil *Dispatcher discards everything.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	idle   chan struct{}

	drops    [eventCount]atomic.Uint64
	rejected atomic.Uint64
}

func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, cfg.BufferSize),
		idle:       make(chan struct{}),
	}
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer close(d.idle)
	for ev := range d.queue {
		d.sink.Emit(context.Background(), ev)
	}
}

// Emit queues ev. Events whose type is not one the engine emits are counted
// as rejected and never reach the sink. A routine event is dropped when the
// queue is full and DropIfFull is set; a critical event waits for space or
// for ctx.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	idx, ok := eventIndex(ev.EventType)
	if !ok {
		d.rejected.Add(1)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull && !Critical(ev.EventType) {
		select {
		case d.queue <- ev:
		default:
			d.drops[idx].Add(1)
		}
		return
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.drops[idx].Add(1)
	}
}

// Close stops accepting events and returns once every queued event has
// reached the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.idle
}

// Dropped is the number of known events that never reached the queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	var n uint64
	for i := range d.drops {
		n += d.drops[i].Load()
	}
	return n
}

// DroppedFor reports drops for one event type.
func (d *Dispatcher) DroppedFor(eventType string) uint64 {
	idx, ok := eventIndex(eventType)
	if d == nil || !ok {
		return 0
	}
	return d.drops[idx].Load()
}

// Rejected counts events with an unrecognised type.
func (d *Dispatcher) Rejected() uint64 {
	if d == nil {
		return 0
	}
	return d.rejected.Load()
}
