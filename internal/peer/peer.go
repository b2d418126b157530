// Package peer implements the synchronous peer connector craq.Peer
// consumes: a pool of persistent TCP connections per named replica,
// checked out for one request/response and returned afterward.
// Grounded on original_source/network.py's TcpClient and
// ConnectionStub.
package peer

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"craqkv/internal/topology"
	"craqkv/internal/wire"
)

// client is a small pool of persistent connections to one replica.
type client struct {
	target topology.Info

	mu      sync.Mutex
	pool    []net.Conn
	dialed  int
	maxSize int
}

func newClient(target topology.Info, poolSize int) *client {
	return &client{target: target, maxSize: poolSize}
}

func (c *client) get(ctx context.Context) (net.Conn, error) {
	c.mu.Lock()
	if n := len(c.pool); n > 0 {
		conn := c.pool[n-1]
		c.pool = c.pool[:n-1]
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.target.Addr())
	if err != nil {
		return nil, errors.Wrapf(err, "dial peer %s at %s", c.target.ID, c.target.Addr())
	}
	return conn, nil
}

func (c *client) release(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pool) >= c.maxSize {
		_ = conn.Close()
		return
	}
	c.pool = append(c.pool, conn)
}

func (c *client) discard(conn net.Conn) {
	_ = conn.Close()
}

// send performs one synchronous request/response over a pooled
// connection, matching TcpClient.send.
func (c *client) send(ctx context.Context, req wire.Request) (wire.Response, error) {
	conn, err := c.get(ctx)
	if err != nil {
		return wire.Response{}, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := wire.WriteMessage(conn, req); err != nil {
		c.discard(conn)
		return wire.Response{}, errors.Wrapf(err, "send to peer %s", c.target.ID)
	}

	var resp wire.Response
	if err := wire.ReadMessage(conn, &resp); err != nil {
		c.discard(conn)
		return wire.Response{}, errors.Wrapf(err, "read reply from peer %s", c.target.ID)
	}

	_ = conn.SetDeadline(time.Time{})
	c.release(conn)
	return resp, nil
}

// ConnectionStub is a replica's set of outbound connections to every
// peer it may need to reach, matching original_source/network.py's
// ConnectionStub. It implements craq.Peer.
type ConnectionStub struct {
	clients map[topology.ReplicaID]*client
}

// DefaultPoolSize matches craq_cluster.py's POOL_SZ constant.
const DefaultPoolSize = 32

// NewConnectionStub builds a stub with one pooled client per peer in
// peers.
func NewConnectionStub(peers []topology.Info, poolSize int) *ConnectionStub {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	clients := make(map[topology.ReplicaID]*client, len(peers))
	for _, p := range peers {
		clients[p.ID] = newClient(p, poolSize)
	}
	return &ConnectionStub{clients: clients}
}

// Send implements craq.Peer.
func (s *ConnectionStub) Send(ctx context.Context, to topology.ReplicaID, req wire.Request) (wire.Response, error) {
	c, ok := s.clients[to]
	if !ok {
		return wire.Response{}, errors.Newf("no connection configured to peer %q", to)
	}
	return c.send(ctx, req)
}
