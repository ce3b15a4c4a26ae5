// SPDX-License-Identifier: Apache-2.0

// Package bridge executes Telegram operations from synchronous HTTP handlers
// on a single owning worker goroutine. Telegram clients are not safe for
// concurrent use, so every operation that touches a client must flow through
// here: one scheduling domain, bounded queue, bounded wall-clock timeouts.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/solanagram/solanagram/internal/logger"
)

var (
	// ErrSystemBusy is returned when the pending queue is at its high-water
	// mark; callers surface it as a 503-equivalent.
	ErrSystemBusy = errors.New("system busy: bridge queue full")

	// ErrNested is returned when an operation already running on the bridge
	// tries to submit another one, which would deadlock the single owner.
	ErrNested = errors.New("nested bridge call rejected")

	// ErrTimeout is returned when an operation exceeds its wall-clock bound.
	ErrTimeout = errors.New("bridge operation timed out")

	// ErrClosed is returned when the bridge has been shut down.
	ErrClosed = errors.New("bridge closed")
)

// Op is a single asynchronous Telegram operation. It must respect ctx
// cancellation at every suspension point.
type Op func(ctx context.Context) (any, error)

type outcome struct {
	value any
	err   error
}

type job struct {
	ctx    context.Context
	op     Op
	result chan outcome
}

// insideKey marks contexts that are already executing on the bridge worker.
type insideKey struct{}

// Bridge is the synchronous-to-asynchronous boundary. Construct with New;
// Close releases the worker.
type Bridge struct {
	queue          chan job
	defaultTimeout time.Duration
	log            *logger.Logger

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// New starts the owning worker with the given queue high-water mark and
// default operation timeout.
func New(queueSize int, defaultTimeout time.Duration, log *logger.Logger) *Bridge {
	if queueSize <= 0 {
		queueSize = 100
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}

	b := &Bridge{
		queue:          make(chan job, queueSize),
		defaultTimeout: defaultTimeout,
		log:            log,
		closed:         make(chan struct{}),
		done:           make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Bridge) loop() {
	defer close(b.done)
	for {
		select {
		case <-b.closed:
			// Drain what was already admitted so no caller hangs.
			for {
				select {
				case j := <-b.queue:
					j.result <- outcome{err: ErrClosed}
				default:
					return
				}
			}
		case j := <-b.queue:
			b.execute(j)
		}
	}
}

func (b *Bridge) execute(j job) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Any("panic", r).Msg("bridge operation panicked")
			j.result <- outcome{err: errors.New("internal operation failure")}
		}
	}()

	value, err := j.op(j.ctx)
	j.result <- outcome{value: value, err: err}
}

// Run executes op on the owning worker with the bridge's default timeout.
func (b *Bridge) Run(ctx context.Context, op Op) (any, error) {
	return b.RunWithTimeout(ctx, b.defaultTimeout, op)
}

// RunWithTimeout executes op with an explicit wall-clock bound. The call
// returns ErrSystemBusy immediately when the queue is full, ErrNested when
// issued from inside another operation, and ErrTimeout when the bound
// expires. On timeout the in-flight operation sees its context cancelled
// and must leave the affected client evicted or consistent.
func (b *Bridge) RunWithTimeout(ctx context.Context, timeout time.Duration, op Op) (any, error) {
	if ctx.Value(insideKey{}) != nil {
		return nil, ErrNested
	}

	opCtx, cancel := context.WithTimeout(context.WithValue(ctx, insideKey{}, true), timeout)
	defer cancel()

	j := job{ctx: opCtx, op: op, result: make(chan outcome, 1)}

	// Checked on its own first: in the select below a free queue slot and a
	// closed bridge can both be ready, and Go picks between them at random.
	select {
	case <-b.closed:
		return nil, ErrClosed
	default:
	}

	select {
	case <-b.closed:
		return nil, ErrClosed
	case b.queue <- j:
	default:
		return nil, ErrSystemBusy
	}

	select {
	case res := <-j.result:
		return res.value, res.err
	case <-opCtx.Done():
		// The worker still finishes the cancelled op; its buffered result
		// channel keeps it from blocking forever.
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, opCtx.Err()
	}
}

// Close shuts the bridge down. Queued operations fail with ErrClosed; the
// call blocks until the worker exits.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.closed) })
	<-b.done
}

// Pending returns the number of queued operations, used by health reporting.
func (b *Bridge) Pending() int {
	return len(b.queue)
}
