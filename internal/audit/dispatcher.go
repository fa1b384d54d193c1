package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	Logger     *zap.Logger
}

// Dispatcher relays events to a sink from a single background goroutine so
// engine calls never wait on sink I/O. With DropIfFull, a full queue drops
// the event and counts it; otherwise Emit blocks until there is room or the
// caller's context ends.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool
	logger     *zap.Logger

	queue    chan Event
	quit     chan struct{}
	finished chan struct{}

	closing atomic.Bool
	dropped atomic.Uint64
	once    sync.Once
}

// NewDispatcher returns nil when cfg is disabled; a nil *Dispatcher is a
// valid no-op.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		logger:     logger,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		quit:       make(chan struct{}),
		finished:   make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.finished)
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.quit:
			d.drain()
			return
		}
	}
}

// drain delivers whatever is still queued at shutdown.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

// deliver isolates the relay goroutine from a panicking sink.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("audit sink panicked", zap.String("event_type", ev.EventType), zap.Any("panic", r))
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closing.Load() {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		case <-d.quit:
		default:
			d.countDrop(ev)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
	case <-d.quit:
	}
}

func (d *Dispatcher) countDrop(ev Event) {
	n := d.dropped.Add(1)
	if n == 1 || n%1000 == 0 {
		d.logger.Warn("audit buffer full, dropping events",
			zap.String("event_type", ev.EventType),
			zap.Uint64("dropped", n))
	}
}

// Close stops accepting events and returns once the queue is drained.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closing.Store(true)
		close(d.quit)
		<-d.finished
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
