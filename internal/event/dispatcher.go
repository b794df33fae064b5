package event

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default dispatcher tuning values.
const (
	// DefaultQueueSize bounds the number of records waiting for a worker.
	DefaultQueueSize = 1024

	// DefaultWorkers bounds concurrent in-flight persist calls.
	DefaultWorkers = 4

	// DefaultPersistTimeout bounds a single persist call so a stuck sink
	// cannot pin workers indefinitely.
	DefaultPersistTimeout = 5 * time.Second
)

// DispatcherConfig holds tuning knobs for the background dispatcher.
// Zero values fall back to the package defaults.
type DispatcherConfig struct {
	QueueSize      int
	Workers        int
	PersistTimeout time.Duration
}

// Dispatcher forwards records to a Sink off the caller's critical path.
// Dispatch never blocks and never returns an error: when the queue is
// saturated the record is dropped and counted, and persist failures are
// logged and counted but never propagated. This implements the engine's
// "best effort, no propagation" persistence contract.
type Dispatcher struct {
	sink    Sink
	logger  *slog.Logger
	metrics *Metrics
	timeout time.Duration

	queue chan Record

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher and starts its worker pool.
// A nil logger falls back to slog.Default; metrics may be nil to disable
// instrumentation.
func NewDispatcher(sink Sink, cfg DispatcherConfig, logger *slog.Logger, metrics *Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}

	d := &Dispatcher{
		sink:    sink,
		logger:  logger,
		metrics: metrics,
		timeout: cfg.PersistTimeout,
		queue:   make(chan Record, cfg.QueueSize),
		done:    make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}

	return d
}

// Dispatch enqueues a record for background persistence. It never blocks:
// if the queue is full the record is dropped and counted.
func (d *Dispatcher) Dispatch(rec Record) {
	select {
	case <-d.done:
		return
	default:
	}

	if d.metrics != nil {
		d.metrics.IncDispatched(d.sink.Name(), rec.Kind())
	}

	select {
	case d.queue <- rec:
	default:
		if d.metrics != nil {
			d.metrics.IncDropped(d.sink.Name(), rec.Kind())
		}
		d.logger.Warn("event dispatch queue full, dropping record",
			slog.String("sink", d.sink.Name()),
			slog.String("kind", string(rec.Kind())),
			slog.String("event_id", rec.EventID()))
	}
}

// Close stops accepting new records, drains the queue, and waits for
// in-flight persist calls to finish. The queue channel is never closed,
// so a Dispatch racing Close enqueues harmlessly instead of panicking;
// a record that slips in after the workers exit is silently dropped,
// which the best-effort contract permits.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}

// worker persists queued records with a bounded timeout until Close
// signals shutdown, then drains whatever is already buffered.
func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case rec := <-d.queue:
			d.persist(rec)
		case <-d.done:
			for {
				select {
				case rec := <-d.queue:
					d.persist(rec)
				default:
					return
				}
			}
		}
	}
}

// persist runs one sink call. Failures are logged and counted, never
// returned: the caller's in-memory record already succeeded and the
// contract promises local durability only.
func (d *Dispatcher) persist(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	err := d.sink.Persist(ctx, rec)
	if d.metrics != nil {
		d.metrics.ObservePersistDuration(d.sink.Name(), time.Since(start).Seconds())
	}

	if err != nil {
		if d.metrics != nil {
			d.metrics.IncFailed(d.sink.Name(), rec.Kind())
		}
		d.logger.Error("failed to persist event",
			slog.String("sink", d.sink.Name()),
			slog.String("kind", string(rec.Kind())),
			slog.String("event_id", rec.EventID()),
			slog.String("error", err.Error()))
	}
}
