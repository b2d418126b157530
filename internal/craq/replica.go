// Package craq implements the CRAQ core: the request dispatcher and
// the SET/GET/QUERY handlers described in spec.md §4, plus the
// per-key state machine's invariants. It has no knowledge of sockets
// or JSON framing — those live in internal/transport and
// internal/wire; craq consumes only the Peer interface below, which
// is the "ConnectionStub.send" collaborator named in spec.md §6.
package craq

import (
	"context"
	"log"

	"craqkv/internal/store"
	"craqkv/internal/topology"
	"craqkv/internal/wire"
)

// Peer is the synchronous request/response channel to a named
// replica, matching spec.md §6's ConnectionStub.send collaborator
// interface. Implementations may pool connections (internal/peer).
type Peer interface {
	Send(ctx context.Context, to topology.ReplicaID, req wire.Request) (wire.Response, error)
}

// Replica is one chain node's CRAQ core: its identity, its neighbor
// view, its version store, and the peer connector used to forward
// SET/QUERY toward the tail. It is the direct analog of
// original_source/craq_server.py's CraqServer.
type Replica struct {
	ID    topology.ReplicaID
	Links topology.Links
	Store *store.Store
	Peer  Peer
	Log   *log.Logger
}

// New constructs a Replica bound to its chain position.
func New(id topology.ReplicaID, links topology.Links, peer Peer, logger *log.Logger) *Replica {
	return &Replica{
		ID:    id,
		Links: links,
		Store: store.New(),
		Peer:  peer,
		Log:   logger,
	}
}

// Dispatch routes an inbound request to the handler selected by its
// Type, matching spec.md §4.1. It performs no locking itself; each
// handler acquires whatever per-key locks it needs.
func (r *Replica) Dispatch(ctx context.Context, req wire.Request) wire.Response {
	switch req.Type {
	case wire.TypeSet:
		return r.handleSet(ctx, req)
	case wire.TypeGet:
		return r.handleGet(ctx, req)
	case wire.TypeQuery:
		return r.handleQuery(ctx, req)
	default:
		r.Log.Printf("CRITICAL rid=%s unexpected request type %q", req.RequestID, req.Type)
		return wire.Response{Status: wire.StatusUnexpectedType}
	}
}
