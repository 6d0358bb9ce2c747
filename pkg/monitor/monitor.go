// Package monitor runs the acquisition pipeline: a reader goroutine pulls raw
// bytes from a transport.Port into a bounded queue and a processor goroutine
// frames, decodes, acknowledges and collects them. Collector state is only
// touched by the processor.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/collector"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/transport"
)

// ErrShutdownTimeout is returned by Run when the tasks do not stop within
// the grace period after cancellation.
var ErrShutdownTimeout = errors.New("monitor: tasks did not stop within grace period")

// Defaults for Config fields left at zero.
const (
	DefaultQueueSize   = 1000
	DefaultIdleSleep   = time.Millisecond
	DefaultGracePeriod = 2 * time.Second
	DefaultReadSize    = 4096
)

// Config tunes the pipeline.
type Config struct {
	// QueueSize bounds the number of read chunks waiting for the processor.
	QueueSize int
	// IdleSleep is slept by the reader after a read that returned no data.
	IdleSleep time.Duration
	// GracePeriod bounds how long Run waits for both tasks after
	// cancellation.
	GracePeriod time.Duration
	// ReadSize is the reader's buffer size.
	ReadSize int
	// StopWhenComplete ends Run once the collector reports that every
	// expected device is complete.
	StopWhenComplete bool
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = DefaultIdleSleep
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.ReadSize <= 0 {
		c.ReadSize = DefaultReadSize
	}
	return c
}

// Monitor owns the reader and processor tasks for one Port.
type Monitor struct {
	log   zerolog.Logger
	port  transport.Port
	cfg   Config
	proc  *Processor
	stats *counters
}

// New creates a Monitor reading from and acknowledging to port.
func New(log zerolog.Logger, port transport.Port, coll *collector.Collector, cfg Config) *Monitor {
	stats := &counters{}
	return &Monitor{
		log:   log.With().Str("component", "monitor").Logger(),
		port:  port,
		cfg:   cfg.withDefaults(),
		proc:  newProcessor(log, coll, port, stats),
		stats: stats,
	}
}

// Stats returns the current counters.
func (m *Monitor) Stats() Stats {
	return m.stats.snapshot()
}

// Run starts both tasks and blocks until one of them ends the session:
//   - the source is exhausted (io.EOF) and the queue has been drained,
//   - the source fails, in which case its error is returned,
//   - the collection completes and StopWhenComplete is set,
//   - ctx is cancelled.
//
// Run does not close the port. Closing it after ErrShutdownTimeout unblocks
// a reader stuck in Read.
func (m *Monitor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan []byte, m.cfg.QueueSize)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.read(gctx, queue) })
	g.Go(func() error { return m.process(gctx, queue, cancel) })

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	m.log.Info().Int("queue_size", m.cfg.QueueSize).Msg("Monitor started")

	select {
	case err := <-done:
		return m.stopped(err)
	case <-ctx.Done():
	}

	m.log.Info().Dur("grace_period", m.cfg.GracePeriod).Msg("Stopping monitor")
	timer := time.NewTimer(m.cfg.GracePeriod)
	defer timer.Stop()
	select {
	case err := <-done:
		return m.stopped(err)
	case <-timer.C:
		m.log.Error().Msg("Tasks did not stop in time")
		return ErrShutdownTimeout
	}
}

func (m *Monitor) stopped(err error) error {
	st := m.stats.snapshot()
	ev := m.log.Info()
	if err != nil {
		ev = m.log.Error().Err(err)
	}
	ev.Uint64("bytes", st.BytesRead).
		Uint64("accepted", st.Accepted).
		Uint64("rejected", st.Rejected).
		Uint64("acks", st.Acks).
		Msg("Monitor stopped")
	return err
}

func (m *Monitor) read(ctx context.Context, queue chan<- []byte) error {
	defer close(queue)
	buf := make([]byte, m.cfg.ReadSize)

	for ctx.Err() == nil {
		n, err := m.port.Read(buf)
		if n > 0 {
			m.stats.bytesRead.Add(uint64(n))
			if !m.enqueue(ctx, queue, append([]byte(nil), buf[:n]...)) {
				return nil
			}
		}

		switch {
		case errors.Is(err, io.EOF):
			m.log.Info().Msg("Source exhausted")
			return nil
		case err != nil:
			return fmt.Errorf("monitor: read: %w", err)
		case n == 0:
			sleep(ctx, m.cfg.IdleSleep)
		}
	}
	return nil
}

// enqueue hands data to the processor. A full queue is counted and logged,
// then waited on; it returns false if ctx ends first.
func (m *Monitor) enqueue(ctx context.Context, queue chan<- []byte, data []byte) bool {
	select {
	case queue <- data:
		return true
	default:
	}

	total := m.stats.backpressure.Add(1)
	m.log.Warn().Uint64("occurrences", total).Int("capacity", cap(queue)).Msg("Queue full, reader waiting")

	select {
	case queue <- data:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Monitor) process(ctx context.Context, queue <-chan []byte, stop context.CancelFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-queue:
			if !ok {
				return nil
			}
			if m.proc.Feed(ctx, data) && m.cfg.StopWhenComplete {
				m.log.Info().Msg("All expected devices complete")
				stop()
				return nil
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
