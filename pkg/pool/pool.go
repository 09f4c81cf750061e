// Package pool provides the bounded connection pool owned by one data source.
//
// Capacity is enforced by a weighted semaphore holding Max permits: every
// leased Handle owns one permit until it is released or discarded. A waiter
// that times out is dropped by the semaphore and never receives a handle.
// The pool mutex guards only the idle list and counters; dialing, pinging and
// closing connections happen outside of it.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/driver"
)

// Handle is an exclusive lease on one physical connection.
type Handle struct {
	id         uint64
	conn       driver.Conn
	pool       *Pool
	createdAt  time.Time
	releasedAt time.Time
	leased     bool
}

// ID returns the pool-unique handle id, for logs.
func (h *Handle) ID() uint64 { return h.id }

// Conn returns the underlying connection. Valid only while leased.
func (h *Handle) Conn() driver.Conn { return h.conn }

// CreatedAt returns when the physical connection was opened.
func (h *Handle) CreatedAt() time.Time { return h.createdAt }

// Stats is a point-in-time snapshot of pool counters. Open == Idle + Leased
// in every snapshot; Open + Dialing never exceeds Max.
type Stats struct {
	Max       int
	Open      int
	Idle      int
	Leased    int
	Dialing   int   // connections being opened, not yet idle or leased
	WaitCount int64 // acquires that had to wait for capacity
	Exhausted int64 // acquires that timed out
	Discarded int64 // connections discarded after a failure
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithName sets the pool name used in logs, errors and metrics.
func WithName(name string) Option {
	return func(p *Pool) { p.name = name }
}

// WithClock replaces time.Now, for tests of idle expiry and health checks.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// Pool is a bounded set of connections to one data source.
type Pool struct {
	name   string
	cfg    core.PoolConfig
	dial   driver.OpenFunc
	logger *slog.Logger
	now    func() time.Time
	sem    *semaphore.Weighted

	closing     context.Context
	cancelClose context.CancelFunc

	mu        sync.Mutex
	idle      []*Handle // oldest release first
	leased    map[*Handle]struct{}
	numOpen   int // established connections, idle or leased
	dialing   int
	nextID    uint64
	closed    bool
	drained   chan struct{}
	waitCount int64
	exhausted int64
	discarded int64
}

// New creates a pool. No connection is opened until Warm or Acquire.
func New(cfg core.PoolConfig, open driver.OpenFunc, opts ...Option) (*Pool, error) {
	if open == nil {
		return nil, errors.New("pool: open function is required")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}

	p := &Pool{
		name:    "default",
		cfg:     cfg,
		dial:    open,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
		sem:     semaphore.NewWeighted(int64(cfg.Max)),
		leased:  make(map[*Handle]struct{}),
		drained: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.closing, p.cancelClose = context.WithCancel(context.Background())
	p.logger = p.logger.With(slog.String("pool", p.name))
	return p, nil
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Config returns the effective pool configuration.
func (p *Pool) Config() core.PoolConfig { return p.cfg }

// Warm opens connections until Min are open. Each dial holds a permit, so
// warming stops early rather than wait when acquirers use the capacity.
func (p *Pool) Warm(ctx context.Context) error {
	for {
		if !p.sem.TryAcquire(1) {
			return nil
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.sem.Release(1)
			return core.ErrPoolClosed
		}
		if p.numOpen+p.dialing >= p.cfg.Min {
			p.mu.Unlock()
			p.sem.Release(1)
			return nil
		}
		p.dialing++
		p.mu.Unlock()

		h, err := p.connect(ctx)
		if err == nil {
			err = p.admit(h, false)
		}
		p.sem.Release(1)
		if err != nil {
			return err
		}
	}
}

// Acquire leases a handle, waiting up to the configured AcquireTimeout.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	return p.AcquireTimeout(ctx, p.cfg.AcquireTimeout)
}

// AcquireTimeout leases a handle, waiting up to timeout for capacity.
// It fails with *core.PoolExhaustedError when the timeout elapses and with
// core.ErrPoolClosed once Shutdown has started.
func (p *Pool) AcquireTimeout(ctx context.Context, timeout time.Duration) (*Handle, error) {
	if p.isClosed() {
		return nil, core.ErrPoolClosed
	}

	if !p.sem.TryAcquire(1) {
		p.mu.Lock()
		p.waitCount++
		p.mu.Unlock()

		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		stop := context.AfterFunc(p.closing, cancel)
		err := p.sem.Acquire(waitCtx, 1)
		stop()
		cancel()

		if err != nil {
			switch {
			case p.isClosed():
				return nil, core.ErrPoolClosed
			case ctx.Err() != nil:
				return nil, fmt.Errorf("acquire connection: %w", ctx.Err())
			}
			p.mu.Lock()
			p.exhausted++
			p.mu.Unlock()
			p.logger.Warn("connection pool exhausted",
				slog.Duration("timeout", timeout),
				slog.Int("max", p.cfg.Max))
			return nil, &core.PoolExhaustedError{Pool: p.name, Timeout: timeout, Max: p.cfg.Max}
		}
	}

	h, err := p.checkout(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}
	return h, nil
}

// checkout hands an idle handle to the permit holder or dials a new one.
// An idle handle that fails its health check is discarded and checkout
// retries once.
func (p *Pool) checkout(ctx context.Context) (*Handle, error) {
	for attempt := 0; ; attempt++ {
		h, dialSlot, expired, err := p.takeIdle()
		closeAll(expired)
		if err != nil {
			return nil, err
		}

		if dialSlot {
			h, err = p.connect(ctx)
			if err != nil {
				return nil, err
			}
			if err := p.admit(h, true); err != nil {
				return nil, err
			}
			return h, nil
		}

		if p.now().Sub(h.releasedAt) <= p.cfg.HealthCheckAfter {
			return h, nil
		}
		pingErr := h.conn.PingContext(ctx)
		if pingErr == nil {
			return h, nil
		}

		p.logger.Warn("connection health check failed",
			slog.Uint64("handle", h.id),
			slog.String("error", pingErr.Error()))
		p.destroy(h)
		if attempt > 0 {
			return nil, &core.ConnectionError{Op: "health check", Err: pingErr}
		}
	}
}

// takeIdle expires stale idle handles and pops the most recently released one,
// marking it leased. With no idle handle it reserves a slot for dialing.
func (p *Pool) takeIdle() (h *Handle, dialSlot bool, expired []*Handle, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, false, nil, core.ErrPoolClosed
	}

	now := p.now()
	keep := p.idle[:0]
	for _, idle := range p.idle {
		if p.numOpen > p.cfg.Min && now.Sub(idle.releasedAt) > p.cfg.IdleTimeout {
			p.numOpen--
			expired = append(expired, idle)
			continue
		}
		keep = append(keep, idle)
	}
	clear(p.idle[len(keep):])
	p.idle = keep

	if n := len(p.idle); n > 0 {
		h = p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		h.leased = true
		p.leased[h] = struct{}{}
		return h, false, expired, nil
	}

	p.dialing++
	return nil, true, expired, nil
}

// connect dials one connection into a slot already counted in dialing. On
// failure the slot is given back; on success admit must follow.
func (p *Pool) connect(ctx context.Context) (*Handle, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		p.mu.Lock()
		p.dialing--
		p.mu.Unlock()
		if errors.Is(err, core.ErrConnectionFailure) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &core.ConnectionError{Op: "open", Err: err}
	}

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.mu.Unlock()

	now := p.now()
	return &Handle{id: id, conn: conn, pool: p, createdAt: now, releasedAt: now}, nil
}

// admit moves a freshly dialed handle from dialing to leased or idle in one
// step, so Open == Idle + Leased holds in every snapshot.
func (p *Pool) admit(h *Handle, leased bool) error {
	p.mu.Lock()
	p.dialing--
	if p.closed {
		p.mu.Unlock()
		_ = h.conn.Close()
		return core.ErrPoolClosed
	}
	p.numOpen++
	if leased {
		h.leased = true
		p.leased[h] = struct{}{}
	} else {
		p.idle = append(p.idle, h)
	}
	p.mu.Unlock()
	return nil
}

// Release returns a leased handle to the idle list. Releasing a handle that is
// not currently leased from this pool is logged and ignored.
func (p *Pool) Release(h *Handle) {
	if h == nil {
		return
	}

	p.mu.Lock()
	if !p.ownsLease(h) {
		p.mu.Unlock()
		p.logger.Warn("ignoring release of handle not leased from this pool", slog.Uint64("handle", h.id))
		return
	}
	p.unlease(h)
	h.releasedAt = p.now()

	if p.closed {
		p.numOpen--
		p.mu.Unlock()
		_ = h.conn.Close()
		p.sem.Release(1)
		return
	}
	p.idle = append(p.idle, h)
	p.mu.Unlock()
	p.sem.Release(1)
}

// Discard closes a leased handle's connection instead of returning it, freeing
// its capacity. Used after a connection failure.
func (p *Pool) Discard(h *Handle) {
	if h == nil {
		return
	}

	p.mu.Lock()
	if !p.ownsLease(h) {
		p.mu.Unlock()
		p.logger.Warn("ignoring discard of handle not leased from this pool", slog.Uint64("handle", h.id))
		return
	}
	p.unlease(h)
	p.numOpen--
	p.discarded++
	p.mu.Unlock()

	p.logger.Debug("discarding connection", slog.Uint64("handle", h.id))
	_ = h.conn.Close()
	p.sem.Release(1)
}

// destroy closes a handle that failed its health check during checkout.
// The caller keeps its permit.
func (p *Pool) destroy(h *Handle) {
	p.mu.Lock()
	if p.ownsLease(h) {
		p.unlease(h)
	}
	p.numOpen--
	p.discarded++
	p.mu.Unlock()
	_ = h.conn.Close()
}

func (p *Pool) ownsLease(h *Handle) bool {
	if h.pool != p || !h.leased {
		return false
	}
	_, ok := p.leased[h]
	return ok
}

// unlease removes h from the lease set. Must hold p.mu.
func (p *Pool) unlease(h *Handle) {
	h.leased = false
	delete(p.leased, h)
	if p.closed && len(p.leased) == 0 {
		p.signalDrained()
	}
}

// signalDrained closes the drained channel once. Must hold p.mu.
func (p *Pool) signalDrained() {
	select {
	case <-p.drained:
	default:
		close(p.drained)
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Shutdown stops the pool: new acquires fail with core.ErrPoolClosed, idle
// connections are closed, and leased ones are awaited until they are
// returned, grace elapses or ctx is done. Whatever is still leased then is
// force-closed. Calling Shutdown again is a no-op.
func (p *Pool) Shutdown(ctx context.Context, grace time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.numOpen -= len(idle)
	if len(p.leased) == 0 {
		p.signalDrained()
	}
	p.mu.Unlock()

	p.cancelClose()
	closeAll(idle)

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.drained:
		p.logger.Debug("connection pool shut down")
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	p.mu.Lock()
	forced := make([]*Handle, 0, len(p.leased))
	for h := range p.leased {
		forced = append(forced, h)
		h.leased = false
	}
	clear(p.leased)
	p.numOpen -= len(forced)
	p.signalDrained()
	p.mu.Unlock()

	for _, h := range forced {
		p.logger.Warn("force-closing leased connection at shutdown", slog.Uint64("handle", h.id))
		_ = h.conn.Close()
	}
	if len(forced) > 0 {
		p.sem.Release(int64(len(forced)))
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("shutdown pool %s: %w", p.name, err)
	}
	return nil
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Max:       p.cfg.Max,
		Open:      p.numOpen,
		Idle:      len(p.idle),
		Leased:    len(p.leased),
		Dialing:   p.dialing,
		WaitCount: p.waitCount,
		Exhausted: p.exhausted,
		Discarded: p.discarded,
	}
}

func closeAll(handles []*Handle) {
	for _, h := range handles {
		_ = h.conn.Close()
	}
}
