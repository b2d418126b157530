// Package observability exposes a small chi-routed HTTP surface per
// replica: a liveness probe and a debug endpoint showing a key's
// clean/dirty state. It is never consulted by the CRAQ protocol
// itself — adapted from the teacher's internal/api/server.go, which
// wired the same /health check in front of a (here removed) REST KV
// API.
package observability

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"craqkv/internal/craq"
)

// KeyDebugView is the JSON shape returned by GET /debug/keys/{key}.
type KeyDebugView struct {
	Key          string     `json:"key"`
	Clean        *CleanView `json:"clean,omitempty"`
	DirtyVersion []int64    `json:"dirty_versions,omitempty"`
}

// CleanView mirrors store.Clean without exposing the store package's
// internals to HTTP clients.
type CleanView struct {
	Version int64  `json:"version"`
	Value   string `json:"value"`
}

// NewRouter builds the observability HTTP handler for one replica.
func NewRouter(replica *craq.Replica) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","replica":"` + string(replica.ID) + `"}`))
	})

	r.Get("/debug/keys/{key}", func(w http.ResponseWriter, req *http.Request) {
		key := chi.URLParam(req, "key")

		lock := replica.Store.Lock(key)
		view := KeyDebugView{Key: key, DirtyVersion: replica.Store.DirtyVersions(key)}
		if c, ok := replica.Store.Clean(key); ok {
			view.Clean = &CleanView{Version: c.Version, Value: c.Value}
		}
		lock.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if view.Clean == nil && len(view.DirtyVersion) == 0 {
			w.WriteHeader(http.StatusNotFound)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(view)
	})

	return r
}
