// Package recorder persists security events off the request path.
//
// Record never blocks: events go onto a bounded queue drained by a fixed worker
// pool. A full queue drops the event. A failed write is logged and dropped. Neither
// is ever reported to the request that produced the event.
//
// Sinks are fed from a second bounded queue by a single forwarder goroutine, so a
// slow or unreachable sink never holds up the store writers.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"adminconsole/internal/platform/metrics"
	"adminconsole/internal/securitylog"
	"adminconsole/pkg/platform/privacy"
	"adminconsole/pkg/platform/sentinel"
)

// Store is the write side of the security event store.
type Store interface {
	Insert(ctx context.Context, event *securitylog.Event) error
}

// Sink receives events after they were persisted (e.g. a SIEM feed).
type Sink interface {
	Publish(ctx context.Context, event securitylog.Event) error
}

const (
	defaultBufferSize   = 1024
	defaultWorkers      = 2
	defaultWriteTimeout = 5 * time.Second
)

// Recorder is the asynchronous writer in front of the event store.
type Recorder struct {
	store        Store
	sinks        []Sink
	logger       *slog.Logger
	metrics      *metrics.Metrics
	queue        chan *securitylog.Event
	sinkQueue    chan securitylog.Event
	workers      int
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	sinkWG sync.WaitGroup
	stop   chan struct{}
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func WithBufferSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan *securitylog.Event, n)
		}
	}
}

func WithWorkers(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// WithSink adds a sink that receives each successfully persisted event.
func WithSink(sink Sink) Option {
	return func(r *Recorder) {
		if sink != nil {
			r.sinks = append(r.sinks, sink)
		}
	}
}

// New creates a Recorder and starts its workers.
func New(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:        store,
		logger:       slog.Default(),
		queue:        make(chan *securitylog.Event, defaultBufferSize),
		workers:      defaultWorkers,
		writeTimeout: defaultWriteTimeout,
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if len(r.sinks) > 0 {
		r.sinkQueue = make(chan securitylog.Event, cap(r.queue))
		r.sinkWG.Add(1)
		go r.forward()
	}

	r.wg.Add(r.workers)
	for range r.workers {
		go r.run()
	}
	return r
}

// Record enqueues an event. It reports sentinel.ErrQueueFull or sentinel.ErrClosed
// when the event was dropped; callers on the request path ignore the result.
func (r *Recorder) Record(event *securitylog.Event) error {
	if event == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.metrics.IncDropped()
		return sentinel.ErrClosed
	}

	select {
	case r.queue <- event:
		return nil
	default:
		r.metrics.IncDropped()
		r.logger.Warn("security event queue full, dropping event",
			"event_type", event.EventType,
			"ip", privacy.AnonymizeIP(event.IPAddress),
		)
		return sentinel.ErrQueueFull
	}
}

// Shutdown stops intake and waits for queued events to be written or for ctx to expire.
// Events still queued when ctx expires are lost.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		// writers are gone, nothing else sends on sinkQueue
		if r.sinkQueue != nil {
			close(r.sinkQueue)
			r.sinkWG.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		close(r.stop)
		return fmt.Errorf("security event drain interrupted: %w", ctx.Err())
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop:
			return
		case event, ok := <-r.queue:
			if !ok {
				return
			}
			r.write(event)
		}
	}
}

// write persists one event. Panics from the store are contained here so a single
// bad event cannot take down a worker.
func (r *Recorder) write(event *securitylog.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.IncWriteFailure()
			r.logger.Error("panic while writing security event",
				"event_type", event.EventType,
				"panic", rec,
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	if err := r.store.Insert(ctx, event); err != nil {
		r.metrics.IncWriteFailure()
		r.logger.Error("failed to persist security event",
			"event_type", event.EventType,
			"ip", privacy.AnonymizeIP(event.IPAddress),
			"error", err,
		)
		return
	}
	r.metrics.IncEventRecorded(string(event.EventType))

	r.logger.Info("security event",
		"log_type", "audit",
		"event_id", event.ID.String(),
		"event_type", event.EventType,
		"actor_kind", event.ActorKind,
		"actor_id", event.ActorID(),
		"resource", event.Resource,
		"action", event.Action,
		"status", event.ResponseStatus,
	)

	if r.sinkQueue == nil {
		return
	}
	select {
	case r.sinkQueue <- *event:
	default:
		r.metrics.IncSinkFailure()
		r.logger.Warn("security event forward queue full, event not forwarded",
			"event_id", event.ID.String(),
			"event_type", event.EventType,
		)
	}
}

func (r *Recorder) forward() {
	defer r.sinkWG.Done()
	for {
		select {
		case <-r.stop:
			return
		case event, ok := <-r.sinkQueue:
			if !ok {
				return
			}
			for _, sink := range r.sinks {
				r.publish(sink, event)
			}
		}
	}
}

func (r *Recorder) publish(sink Sink, event securitylog.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.IncSinkFailure()
			r.logger.Error("panic while forwarding security event",
				"event_id", event.ID.String(),
				"panic", rec,
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	if err := sink.Publish(ctx, event); err != nil {
		r.metrics.IncSinkFailure()
		r.logger.Warn("failed to forward security event",
			"event_id", event.ID.String(),
			"error", err,
		)
	}
}
