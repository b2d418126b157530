package craq

import (
	"context"

	"craqkv/internal/wire"
)

// handleSet implements spec.md §4.2. It assigns a version at the
// head, adopts one verbatim at an interior replica or the tail,
// and propagates dirty-then-clean along the chain under the per-key
// lock held across the synchronous forward.
func (r *Replica) handleSet(ctx context.Context, req wire.Request) wire.Response {
	if req.Key == "" {
		return wire.Response{Status: wire.StatusMalformed}
	}

	lock := r.Store.Lock(req.Key)
	defer lock.Unlock()

	if r.Links.IsHead() {
		if req.HasVersion() {
			// A client-originated write must not carry a version;
			// only intra-chain forwards do.
			return wire.Response{Status: wire.StatusMalformed}
		}
		req = req.WithVersion(r.Store.NextVersion(req.Key))
	} else if !req.HasVersion() {
		// Interior replicas and the tail require an adopted version.
		return wire.Response{Status: wire.StatusMalformed}
	}

	version := *req.Version

	if r.Links.IsTail() {
		// The tail commits directly into the clean map; it never
		// uses a dirty entry (spec.md §4.2, tail contract).
		r.Store.SetClean(req.Key, version, req.Val)
		r.Log.Printf("rid=%s SET key=%s ver=%d committed at tail %s", req.RequestID, req.Key, version, r.ID)
		return wire.Response{Status: wire.StatusOK}
	}

	r.Store.PutDirty(req.Key, version, req.Val)

	next := *r.Links.Next
	resp, err := r.Peer.Send(ctx, next.ID, req)
	if err != nil || !resp.OK() {
		// Forward failed: leave the dirty entry in place (it is
		// harmless and will be superseded by a later successful
		// write at an equal-or-higher version) and surface the
		// failure rather than reporting OK, correcting the source's
		// silent-ignore behavior noted in spec.md §9.
		r.Log.Printf("rid=%s SET key=%s ver=%d forward to %s failed: %v", req.RequestID, req.Key, version, next.ID, err)
		return wire.Response{Status: wire.StatusDownstreamFailed}
	}

	if err := r.Store.PromoteDirty(req.Key, version, req.Val); err != nil {
		r.Log.Printf("rid=%s SET key=%s ver=%d promote failed: %v", req.RequestID, req.Key, version, err)
		return wire.Response{Status: wire.StatusDownstreamFailed}
	}

	return wire.Response{Status: wire.StatusOK}
}
