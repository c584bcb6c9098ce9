package solver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"schedule-bridge-backend/internal/telemetry"
)

// Options configures a Queue.
type Options struct {
	Addr string
	// TotalTimeout bounds queue wait plus the exchange, per call.
	TotalTimeout time.Duration
	// SocketTimeout bounds dialing and the whole exchange on one connection.
	SocketTimeout time.Duration
	// Capacity is the number of calls that may wait behind the one in flight.
	Capacity int
}

type result struct {
	reply Reply
	err   error
}

// call is owned by the queue until its result is delivered.
type call struct {
	ctx  context.Context
	req  Request
	done chan result
}

// Queue serializes every exchange with the solver onto a single worker.
// Calls complete in submission order and at most one connection to the
// solver is open at any time.
type Queue struct {
	addr          string
	totalTimeout  time.Duration
	socketTimeout time.Duration
	logger        zerolog.Logger

	calls   chan *call
	pending atomic.Int64

	mu        sync.RWMutex
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once

	stopCtx   context.Context
	forceStop context.CancelFunc
	stopped   chan struct{}

	activeMu sync.Mutex
	active   net.Conn
}

// NewQueue creates the queue and starts its worker.
func NewQueue(opts Options, logger zerolog.Logger) *Queue {
	if opts.TotalTimeout <= 0 {
		opts.TotalTimeout = 30 * time.Second
	}
	if opts.SocketTimeout <= 0 {
		opts.SocketTimeout = 10 * time.Second
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 1024
	}

	stopCtx, forceStop := context.WithCancel(context.Background())
	q := &Queue{
		addr:          opts.Addr,
		totalTimeout:  opts.TotalTimeout,
		socketTimeout: opts.SocketTimeout,
		logger:        logger.With().Str("component", "solver-queue").Logger(),
		calls:         make(chan *call, opts.Capacity),
		closing:       make(chan struct{}),
		stopCtx:       stopCtx,
		forceStop:     forceStop,
		stopped:       make(chan struct{}),
	}
	go q.run()
	return q
}

// Addr returns the solver address the queue dials.
func (q *Queue) Addr() string { return q.addr }

// Pending returns the number of calls submitted but not yet completed,
// including the one in flight.
func (q *Queue) Pending() int64 { return q.pending.Load() }

// Submit enqueues req and blocks until the solver answers, the call fails, or
// the overall deadline elapses. A caller that times out detaches from its call:
// a still-queued call is skipped, an in-flight one runs to completion unobserved.
func (q *Queue) Submit(ctx context.Context, req Request) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, q.totalTimeout)
	defer cancel()

	c := &call{ctx: ctx, req: req, done: make(chan result, 1)}
	if err := q.enqueue(c); err != nil {
		return Reply{}, err
	}

	select {
	case res := <-c.done:
		return res.reply, res.err
	case <-ctx.Done():
		select {
		case res := <-c.done:
			return res.reply, res.err
		default:
		}
		q.logger.Warn().Int64("id", req.ID).Dur("timeout", q.totalTimeout).Msg("caller gave up waiting for solver")
		return Reply{}, q.deadlineErr(ctx)
	}
}

func (q *Queue) enqueue(c *call) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	position := q.pending.Add(1)
	telemetry.SolverQueuePending.Inc()

	// A full buffer blocks here with the read lock held; closing releases
	// the submitter so Shutdown can take the write lock.
	select {
	case q.calls <- c:
		q.logger.Info().Int64("id", c.req.ID).Int64("position", position).Msg("enqueued solver request")
		return nil
	case <-q.closing:
		q.pending.Add(-1)
		telemetry.SolverQueuePending.Dec()
		return ErrQueueClosed
	case <-c.ctx.Done():
		q.pending.Add(-1)
		telemetry.SolverQueuePending.Dec()
		return q.deadlineErr(c.ctx)
	}
}

func (q *Queue) deadlineErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		telemetry.SolverCallsTotal.WithLabelValues(telemetry.OutcomeTimeout).Inc()
		return fmt.Errorf("%w: no reply within %s (queue wait + exchange)", ErrTimeout, q.totalTimeout)
	}
	return fmt.Errorf("solver request cancelled: %w", ctx.Err())
}

// Shutdown stops accepting submissions and lets the worker drain what is
// already queued. If ctx expires first the in-flight exchange is cut and every
// remaining call fails with ErrQueueClosed; completed results are never dropped.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.closeOnce.Do(func() { close(q.closing) })
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.calls)
	}
	q.mu.Unlock()

	q.logger.Info().Int64("pending", q.Pending()).Msg("shutting down solver queue")

	select {
	case <-q.stopped:
		q.logger.Info().Msg("solver queue drained")
		return nil
	case <-ctx.Done():
		q.logger.Warn().Int64("pending", q.Pending()).Msg("solver queue did not drain in time, forcing stop")
		q.forceStop()
		q.closeActive()
		<-q.stopped
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer close(q.stopped)
	for c := range q.calls {
		q.process(c)
	}
}

func (q *Queue) process(c *call) {
	var res result
	switch {
	case q.stopCtx.Err() != nil:
		res.err = ErrQueueClosed
		telemetry.SolverCallsTotal.WithLabelValues(telemetry.OutcomeClosed).Inc()
	case c.ctx.Err() != nil:
		q.logger.Debug().Int64("id", c.req.ID).Msg("skipping solver request abandoned while queued")
		telemetry.SolverCallsTotal.WithLabelValues(telemetry.OutcomeAbandoned).Inc()
		q.complete(c, result{err: ErrTimeout})
		return
	default:
		start := time.Now()
		res.reply, res.err = q.exchange(c.req)
		telemetry.SolverExchangeDuration.Observe(time.Since(start).Seconds())
		telemetry.SolverCallsTotal.WithLabelValues(outcome(res.err)).Inc()
	}
	q.complete(c, res)
}

// complete releases the pending slot before handing the result over, so a
// caller that returns from Submit never observes its own call as pending.
func (q *Queue) complete(c *call, res result) {
	q.pending.Add(-1)
	telemetry.SolverQueuePending.Dec()
	c.done <- res
}

func (q *Queue) exchange(req Request) (Reply, error) {
	payload, err := EncodeRequest(req)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: encode request: %v", ErrProtocol, err)
	}

	q.logger.Info().Str("addr", q.addr).Int64("id", req.ID).Str("start_time", req.StartTime).
		Int("duration", req.Duration).Str("corpus", req.Corpus).Msg("sending request to solver")

	dialer := net.Dialer{Timeout: q.socketTimeout}
	conn, err := dialer.DialContext(q.stopCtx, "tcp", q.addr)
	if err != nil {
		return Reply{}, q.classify(fmt.Errorf("%w: dial %s: %w", ErrConnection, q.addr, err))
	}
	defer conn.Close()
	q.setActive(conn)
	defer q.setActive(nil)

	if err := conn.SetDeadline(time.Now().Add(q.socketTimeout)); err != nil {
		return Reply{}, fmt.Errorf("%w: set deadline: %w", ErrConnection, err)
	}

	if err := WriteFrame(conn, payload); err != nil {
		return Reply{}, q.classify(err)
	}
	q.logger.Debug().Int("bytes", len(payload)).Msg("request written to solver")

	body, err := ReadFrame(bufio.NewReader(conn))
	if err != nil {
		return Reply{}, q.classify(err)
	}
	q.logger.Debug().Bytes("body", body).Msg("received solver reply")

	reply, ok := DecodeReply(body)
	if !ok {
		q.logger.Warn().Int64("id", req.ID).Msg("invalid JSON received from solver, treating as empty reply")
	}
	return reply, nil
}

// classify turns socket deadline expiry into ErrTimeout.
func (q *Queue) classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: socket timeout after %s: %v", ErrTimeout, q.socketTimeout, err)
	}
	return err
}

func (q *Queue) setActive(conn net.Conn) {
	q.activeMu.Lock()
	defer q.activeMu.Unlock()
	q.active = conn
	if conn != nil && q.stopCtx.Err() != nil {
		conn.Close()
	}
}

func (q *Queue) closeActive() {
	q.activeMu.Lock()
	defer q.activeMu.Unlock()
	if q.active != nil {
		q.active.Close()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeOK
	case errors.Is(err, ErrTimeout):
		return telemetry.OutcomeTimeout
	case errors.Is(err, ErrProtocol):
		return telemetry.OutcomeProtocol
	default:
		return telemetry.OutcomeConnection
	}
}
