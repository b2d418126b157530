// Package client implements the CRAQ client described in spec.md
// §4.6: one persistent connection per replica, writes always sent to
// the head, reads sent to the replica with the lowest EWMA response
// time. Grounded on original_source/craq_cluster.py's CraqClient.
package client

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"craqkv/internal/topology"
	"craqkv/internal/wire"
)

// ewmaAlpha is the smoothing factor from craq_cluster.py:
// ewma' = 0.3*sample + 0.7*ewma.
const ewmaAlpha = 0.3

// conn is one persistent connection to a replica plus its running
// read-latency EWMA.
type conn struct {
	info topology.Info
	mu   sync.Mutex
	nc   net.Conn
	ewma float64
}

// Client is a CRAQ client holding one connection per replica.
//
// The EWMA for every replica starts at zero, matching the Python
// source's all-zero initialization rather than +Inf: since min()
// breaks ties by iteration order, the client always tries replicas in
// chain order until real samples separate them. This is one of the
// two choices spec.md §9 calls out as worth documenting rather than
// silently picking; we keep the source's behavior.
type Client struct {
	conns []*conn
}

// Dial opens one connection to every replica in order. replicas[0] is
// treated as the head for writes, matching the "index 0 by
// convention" rule in spec.md §4.6.
func Dial(ctx context.Context, replicas []topology.Info) (*Client, error) {
	if len(replicas) == 0 {
		return nil, errors.New("client requires at least one replica")
	}
	conns := make([]*conn, 0, len(replicas))
	for _, info := range replicas {
		var d net.Dialer
		nc, err := d.DialContext(ctx, "tcp", info.Addr())
		if err != nil {
			return nil, errors.Wrapf(err, "dial replica %s at %s", info.ID, info.Addr())
		}
		conns = append(conns, &conn{info: info, nc: nc})
	}
	return &Client{conns: conns}, nil
}

// Close closes every connection.
func (c *Client) Close() error {
	var firstErr error
	for _, cn := range c.conns {
		if err := cn.nc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// roundTrip stamps every outbound request with a fresh correlation ID
// so log lines on each hop of the chain can be tied back to the
// client call that triggered them.
func (cn *conn) roundTrip(req wire.Request) (wire.Response, error) {
	req.RequestID = uuid.NewString()

	cn.mu.Lock()
	defer cn.mu.Unlock()
	if err := wire.WriteMessage(cn.nc, req); err != nil {
		return wire.Response{}, errors.Wrapf(err, "send to %s", cn.info.ID)
	}
	var resp wire.Response
	if err := wire.ReadMessage(cn.nc, &resp); err != nil {
		return wire.Response{}, errors.Wrapf(err, "read from %s", cn.info.ID)
	}
	return resp, nil
}

// Set writes key=val to the head and reports whether it committed.
func (c *Client) Set(key, val string) (bool, error) {
	resp, err := c.conns[0].roundTrip(wire.Request{Type: wire.TypeSet, Key: key, Val: val})
	if err != nil {
		return false, err
	}
	return resp.OK(), nil
}

// Get reads key from the least-loaded replica by EWMA response time
// and reports (ok, value).
func (c *Client) Get(key string) (bool, string) {
	target := c.leastLoaded()

	start := time.Now()
	resp, err := target.roundTrip(wire.Request{Type: wire.TypeGet, Key: key})
	elapsed := time.Since(start).Seconds()

	target.mu.Lock()
	target.ewma = ewmaAlpha*elapsed + (1-ewmaAlpha)*target.ewma
	target.mu.Unlock()

	if err != nil || !resp.OK() {
		return false, ""
	}
	return true, resp.Val
}

// leastLoaded returns the connection with the lowest EWMA, ties
// broken by iteration order (spec.md §4.6).
func (c *Client) leastLoaded() *conn {
	bestIdx := 0
	bestEWMA := c.conns[0].snapshotEWMA()
	for i, cn := range c.conns[1:] {
		if e := cn.snapshotEWMA(); e < bestEWMA {
			bestEWMA = e
			bestIdx = i + 1
		}
	}
	return c.conns[bestIdx]
}

func (cn *conn) snapshotEWMA() float64 {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	return cn.ewma
}
