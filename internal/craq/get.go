package craq

import (
	"context"

	"craqkv/internal/wire"
)

// handleGet implements the CRAQ apportioned read of spec.md §4.3: a
// dirty path that resolves ambiguity with a QUERY to the tail, and a
// clean path served straight from the clean map.
func (r *Replica) handleGet(ctx context.Context, req wire.Request) wire.Response {
	if req.Key == "" {
		return wire.Response{Status: wire.StatusMalformed}
	}

	lock := r.Store.Lock(req.Key)
	defer lock.Unlock()

	if r.Store.HasDirty(req.Key) {
		return r.resolveDirtyRead(ctx, req)
	}
	if c, ok := r.Store.Clean(req.Key); ok {
		return wire.Response{Status: wire.StatusOK, Val: c.Value}
	}
	return wire.Response{Status: wire.StatusKeyNotFound}
}

// resolveDirtyRead is the dirty path of spec.md §4.3: it queries the
// tail for the currently committed version and serves whichever of
// this replica's dirty/clean entries matches the linearization point.
func (r *Replica) resolveDirtyRead(ctx context.Context, req wire.Request) wire.Response {
	next := *r.Links.Next
	queryResp, err := r.Peer.Send(ctx, next.ID, wire.Request{Type: wire.TypeQuery, Key: req.Key, RequestID: req.RequestID})
	if err != nil || queryResp.Ver == nil {
		// The tail has no committed version for this key: either a
		// transport failure, or a read for a key never written.
		// Both fall through to "Key not found" (spec.md §7).
		return wire.Response{Status: wire.StatusKeyNotFound}
	}
	committed := *queryResp.Ver

	if v, ok := r.Store.DirtyValue(req.Key, committed); ok {
		return wire.Response{Status: wire.StatusOK, Val: v}
	}
	if c, ok := r.Store.Clean(req.Key); ok {
		return wire.Response{Status: wire.StatusOK, Val: c.Value}
	}
	// Neither: this replica holds no dirty value at the committed
	// version and has no clean entry for the key.
	return wire.Response{Status: wire.StatusKeyNotFound}
}
