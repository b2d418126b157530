// Package topology holds the static chain configuration: replica
// identities, addresses, and each replica's view of its predecessor,
// successor and the chain tail.
package topology

import (
	"net"
	"strconv"

	"github.com/cockroachdb/errors"
)

// ReplicaID names a replica within the chain, e.g. "a".
type ReplicaID string

// Info is the address at which a replica listens for peer and client
// connections.
type Info struct {
	ID   ReplicaID
	Host string
	Port int
}

func (i Info) String() string {
	return string(i.ID)
}

// Addr returns the host:port dial string for this replica.
func (i Info) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

// Links is the chain-local view a single replica holds of its
// neighbors: its predecessor and successor (both optional, nil at the
// head/tail respectively) and the tail's identity, which every
// replica knows so it can recognize when it is the tail itself.
type Links struct {
	Prev *Info
	Next *Info
	Tail Info
}

// IsHead reports whether this replica has no predecessor.
func (l Links) IsHead() bool { return l.Prev == nil }

// IsTail reports whether this replica has no successor.
func (l Links) IsTail() bool { return l.Next == nil }

// Chain is a static linear topology of two or more replicas, head
// first and tail last. DefaultFourNodeChain builds the four-node
// A -> B -> C -> D chain of spec.md §3, with D as tail.
type Chain struct {
	Replicas []Info
	links    map[ReplicaID]Links
}

// NewChain builds a linear chain from an ordered list of replicas.
// The first replica is the head, the last is the tail.
func NewChain(replicas []Info) (*Chain, error) {
	if len(replicas) < 2 {
		return nil, errors.Newf("chain must have at least 2 replicas, got %d", len(replicas))
	}
	seen := make(map[ReplicaID]struct{}, len(replicas))
	for _, r := range replicas {
		if _, dup := seen[r.ID]; dup {
			return nil, errors.Newf("duplicate replica id %q in chain", r.ID)
		}
		seen[r.ID] = struct{}{}
	}

	tail := replicas[len(replicas)-1]
	links := make(map[ReplicaID]Links, len(replicas))
	for i, r := range replicas {
		l := Links{Tail: tail}
		if i > 0 {
			prev := replicas[i-1]
			l.Prev = &prev
		}
		if i < len(replicas)-1 {
			next := replicas[i+1]
			l.Next = &next
		}
		links[r.ID] = l
	}
	return &Chain{Replicas: replicas, links: links}, nil
}

// LinksFor returns the chain-local view for the named replica.
func (c *Chain) LinksFor(id ReplicaID) (Links, error) {
	l, ok := c.links[id]
	if !ok {
		return Links{}, errors.Newf("unknown replica %q", id)
	}
	return l, nil
}

// Head returns the chain's head replica.
func (c *Chain) Head() Info { return c.Replicas[0] }

// TailInfo returns the chain's tail replica.
func (c *Chain) TailInfo() Info { return c.Replicas[len(c.Replicas)-1] }

// DefaultFourNodeChain is the canonical A->B->C->D chain used by the
// craqd and craqctl binaries, mirroring
// craq_cluster.py's hardcoded localhost:990{0..3} layout.
func DefaultFourNodeChain() (*Chain, error) {
	return NewChain([]Info{
		{ID: "a", Host: "127.0.0.1", Port: 9900},
		{ID: "b", Host: "127.0.0.1", Port: 9901},
		{ID: "c", Host: "127.0.0.1", Port: 9902},
		{ID: "d", Host: "127.0.0.1", Port: 9903},
	})
}
