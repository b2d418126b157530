// Package cluster is the generic bootstrapper named as an external
// collaborator in spec.md §1: it starts and stops a chain of
// replicas and wires each one's peer connector according to the
// static topology. Grounded on original_source/cluster.py's
// ClusterManager.
package cluster

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/cockroachdb/errors"

	"craqkv/internal/craq"
	"craqkv/internal/peer"
	"craqkv/internal/topology"
	"craqkv/internal/transport"
)

// Manager starts/stops every replica in a Chain as an in-process TCP
// server, matching ClusterManager.start_all/stop_all.
type Manager struct {
	chain    *topology.Chain
	poolSize int
	logs     map[topology.ReplicaID]*log.Logger

	mu       sync.Mutex
	servers  map[topology.ReplicaID]*transport.Server
	cancel   context.CancelFunc
	started  bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithPoolSize overrides the peer connection pool size (default
// peer.DefaultPoolSize).
func WithPoolSize(n int) Option {
	return func(m *Manager) { m.poolSize = n }
}

// WithLogWriter routes every replica's log lines to w; without it
// the Manager discards them.
func WithLogWriter(w io.Writer) Option {
	return func(m *Manager) {
		for _, id := range m.chain.Replicas {
			m.logs[id.ID] = log.New(w, fmt.Sprintf("[%s] ", id.ID), log.LstdFlags)
		}
	}
}

// New builds a Manager over the given chain topology.
func New(chain *topology.Chain, opts ...Option) *Manager {
	m := &Manager{
		chain:   chain,
		logs:    make(map[topology.ReplicaID]*log.Logger),
		servers: make(map[topology.ReplicaID]*transport.Server),
	}
	for _, r := range chain.Replicas {
		m.logs[r.ID] = log.New(io.Discard, fmt.Sprintf("[%s] ", r.ID), 0)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartAll binds and begins serving every replica in the chain,
// matching ClusterManager.start_all.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("cluster already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for _, info := range m.chain.Replicas {
		info := info
		links, err := m.chain.LinksFor(info.ID)
		if err != nil {
			cancel()
			return err
		}

		stub := peer.NewConnectionStub(peersOf(m.chain.Replicas, info.ID), m.poolSize)
		replica := craq.New(info.ID, links, stub, m.logs[info.ID])
		srv := transport.NewServer(replica, m.logs[info.ID])

		if err := srv.Listen(info.Addr()); err != nil {
			cancel()
			return errors.Wrapf(err, "replica %s failed to bind %s", info.ID, info.Addr())
		}
		m.servers[info.ID] = srv

		go func(addr string) {
			if err := srv.ListenAndServe(runCtx, addr); err != nil {
				m.logs[info.ID].Printf("replica %s: serve exited: %v", info.ID, err)
			}
		}(info.Addr())
	}

	m.started = true
	return nil
}

// StopAll stops every replica, matching ClusterManager.stop_all.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	for _, srv := range m.servers {
		_ = srv.Close()
	}
	m.started = false
}

// Server returns the transport.Server StartAll created for a replica
// (it stays in place, closed, after StopAll), or nil if StartAll has
// not created one.
func (m *Manager) Server(id topology.ReplicaID) *transport.Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.servers[id]
}

func peersOf(all []topology.Info, self topology.ReplicaID) []topology.Info {
	out := make([]topology.Info, 0, len(all))
	for _, info := range all {
		if info.ID != self {
			out = append(out, info)
		}
	}
	return out
}
