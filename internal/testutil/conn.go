package testutil

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/leaporm/pkg/driver"
)

// ErrFakeConnClosed is returned by a FakeConn used after Close.
var ErrFakeConnClosed = errors.New("fake connection closed")

// FakeConn is an in-memory driver.Conn for pool tests. Exec and Query are not
// supported; use go-sqlmock or SQLite when statements matter.
type FakeConn struct {
	ID int64

	mu      sync.Mutex
	closed  bool
	pingErr error
	pings   int
}

// SetPingError makes subsequent pings fail with err (nil restores success).
func (c *FakeConn) SetPingError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingErr = err
}

// Pings returns how many times PingContext was called.
func (c *FakeConn) Pings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *FakeConn) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.ErrUnsupported
}

func (c *FakeConn) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.ErrUnsupported
}

func (c *FakeConn) PingContext(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	if c.closed {
		return ErrFakeConnClosed
	}
	return c.pingErr
}

func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// FakeDialer hands out FakeConns and records them.
type FakeDialer struct {
	opened atomic.Int64

	mu      sync.Mutex
	conns   []*FakeConn
	openErr error
	gate    chan struct{}
}

// Open is a driver.OpenFunc.
func (d *FakeDialer) Open(ctx context.Context) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	gate := d.gate
	d.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	c := &FakeConn{ID: d.opened.Add(1)}
	d.conns = append(d.conns, c)
	return c, nil
}

// Hold blocks subsequent opens until the returned function is called.
func (d *FakeDialer) Hold() (release func()) {
	gate := make(chan struct{})
	d.mu.Lock()
	d.gate = gate
	d.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			d.gate = nil
			d.mu.Unlock()
			close(gate)
		})
	}
}

// SetOpenError makes subsequent opens fail with err.
func (d *FakeDialer) SetOpenError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
}

// Opened returns how many connections were opened.
func (d *FakeDialer) Opened() int {
	return int(d.opened.Load())
}

// Conns returns every connection opened so far.
func (d *FakeDialer) Conns() []*FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeConn(nil), d.conns...)
}

// OpenCount returns how many connections are not closed.
func (d *FakeDialer) OpenCount() int {
	n := 0
	for _, c := range d.Conns() {
		if !c.Closed() {
			n++
		}
	}
	return n
}
