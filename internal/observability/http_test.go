package observability

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"craqkv/internal/craq"
	"craqkv/internal/topology"
	"craqkv/internal/wire"
)

type noopPeer struct{}

func (noopPeer) Send(ctx context.Context, to topology.ReplicaID, req wire.Request) (wire.Response, error) {
	return wire.Response{}, nil
}

func TestHealthEndpoint(t *testing.T) {
	self := topology.Info{ID: "a", Host: "127.0.0.1", Port: 1}
	replica := craq.New(self.ID, topology.Links{Tail: self}, noopPeer{}, log.New(io.Discard, "", 0))

	srv := httptest.NewServer(NewRouter(replica))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDebugKeysReflectsStoreState(t *testing.T) {
	self := topology.Info{ID: "a", Host: "127.0.0.1", Port: 1}
	replica := craq.New(self.ID, topology.Links{Tail: self}, noopPeer{}, log.New(io.Discard, "", 0))

	require.True(t, replica.Dispatch(context.Background(), wire.Request{Type: wire.TypeSet, Key: "k", Val: "v"}).OK())

	srv := httptest.NewServer(NewRouter(replica))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/keys/k")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view KeyDebugView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	require.NotNil(t, view.Clean)
	require.Equal(t, "v", view.Clean.Value)
}

func TestDebugKeysMissingReturns404(t *testing.T) {
	self := topology.Info{ID: "a", Host: "127.0.0.1", Port: 1}
	replica := craq.New(self.ID, topology.Links{Tail: self}, noopPeer{}, log.New(io.Discard, "", 0))

	srv := httptest.NewServer(NewRouter(replica))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/keys/absent")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
