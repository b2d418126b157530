package craq

import (
	"context"

	"craqkv/internal/wire"
)

// handleQuery implements spec.md §4.4. At the tail it returns the
// version currently held in the clean map; elsewhere it forwards
// toward the tail and relays the response.
//
// Open question (spec.md §9): the Python source takes the per-key
// lock on every QUERY hop defensively. This implementation does not
// — the tail's clean map is the sole authority, reading Links.Next
// requires no lock (it is immutable after construction), and skipping
// the lock lets QUERY proceed during a same-key SET on an interior
// replica instead of queueing behind it.
func (r *Replica) handleQuery(ctx context.Context, req wire.Request) wire.Response {
	if req.Key == "" {
		return wire.Response{Status: wire.StatusMalformed}
	}

	if r.Links.IsTail() {
		c, ok := r.Store.Clean(req.Key)
		if !ok {
			// A read for a key never written at the tail: surfaced
			// to the caller's dirty-read path, which turns it into
			// "Key not found" (spec.md §7).
			return wire.Response{}
		}
		ver := c.Version
		return wire.Response{Ver: &ver}
	}

	next := *r.Links.Next
	resp, err := r.Peer.Send(ctx, next.ID, req)
	if err != nil {
		return wire.Response{}
	}
	return resp
}
