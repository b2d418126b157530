// Command craqd runs a single CRAQ chain replica.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"craqkv/internal/craq"
	"craqkv/internal/observability"
	"craqkv/internal/peer"
	"craqkv/internal/topology"
	"craqkv/internal/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

// newRootCmd wires craqd's flags the way cockroach's pkg/cli binds
// server flags with spf13/cobra and spf13/pflag.
func newRootCmd() *cobra.Command {
	var (
		id       string
		httpAddr string
		poolSize int
	)

	cmd := &cobra.Command{
		Use:   "craqd",
		Short: "Run one replica of a CRAQ chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := topology.DefaultFourNodeChain()
			if err != nil {
				return err
			}
			if v := os.Getenv("CRAQ_REPLICA_ID"); v != "" && id == "" {
				id = v
			}
			if id == "" {
				return fmt.Errorf("--id is required (one of a,b,c,d)")
			}
			return run(chain, topology.ReplicaID(id), httpAddr, poolSize)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "replica id within the chain (a, b, c, or d)")
	cmd.Flags().StringVar(&httpAddr, "http-addr", envOrDefault("CRAQ_HTTP_ADDR", "127.0.0.1:0"), "observability HTTP listen address")
	cmd.Flags().IntVar(&poolSize, "peer-pool-size", peer.DefaultPoolSize, "outbound connection pool size per peer")

	return cmd
}

func run(chain *topology.Chain, id topology.ReplicaID, httpAddr string, poolSize int) error {
	links, err := chain.LinksFor(id)
	if err != nil {
		return err
	}
	var self topology.Info
	for _, r := range chain.Replicas {
		if r.ID == id {
			self = r
		}
	}

	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", id), log.LstdFlags)

	peers := make([]topology.Info, 0, len(chain.Replicas)-1)
	for _, r := range chain.Replicas {
		if r.ID != id {
			peers = append(peers, r)
		}
	}
	stub := peer.NewConnectionStub(peers, poolSize)
	replica := craq.New(id, links, stub, logger)

	srv := transport.NewServer(replica, logger)
	if err := srv.Listen(self.Addr()); err != nil {
		return err
	}

	httpSrv := &http.Server{Addr: httpAddr, Handler: observability.NewRouter(replica)}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("observability server exited: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Printf("starting replica %s on %s (http %s)", id, self.Addr(), httpAddr)
	return srv.ListenAndServe(ctx, self.Addr())
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
