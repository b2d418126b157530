package cluster

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"craqkv/internal/topology"
	"craqkv/internal/wire"
)

func testChain(t *testing.T, base int) *topology.Chain {
	t.Helper()
	chain, err := topology.NewChain([]topology.Info{
		{ID: "a", Host: "127.0.0.1", Port: base},
		{ID: "b", Host: "127.0.0.1", Port: base + 1},
		{ID: "c", Host: "127.0.0.1", Port: base + 2},
		{ID: "d", Host: "127.0.0.1", Port: base + 3},
	})
	require.NoError(t, err)
	return chain
}

func dial(t *testing.T, addr string) *testConn {
	t.Helper()
	return &testConn{addr: addr, t: t}
}

type testConn struct {
	addr string
	t    *testing.T
}

func (c *testConn) roundTrip(req wire.Request) wire.Response {
	c.t.Helper()
	conn, err := net.DialTimeout("tcp", c.addr, 2*time.Second)
	require.NoError(c.t, err)
	defer conn.Close()
	require.NoError(c.t, wire.WriteMessage(conn, req))
	var resp wire.Response
	require.NoError(c.t, wire.ReadMessage(conn, &resp))
	return resp
}

func TestClusterStartAllServesFourNodeChainSetAndGet(t *testing.T) {
	chain := testChain(t, 19900)
	m := New(chain)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.StartAll(ctx))
	defer m.StopAll()

	head := dial(t, chain.Head().Addr())
	tail := dial(t, chain.TailInfo().Addr())

	setResp := head.roundTrip(wire.Request{Type: wire.TypeSet, Key: "k", Val: "hello"})
	require.True(t, setResp.OK())

	getResp := tail.roundTrip(wire.Request{Type: wire.TypeGet, Key: "k"})
	require.True(t, getResp.OK())
	require.Equal(t, "hello", getResp.Val)
}

func TestClusterStartAllTwiceErrors(t *testing.T) {
	chain := testChain(t, 19910)
	m := New(chain)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.StartAll(ctx))
	defer m.StopAll()

	require.Error(t, m.StartAll(ctx))
}
