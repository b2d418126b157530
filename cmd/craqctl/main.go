// Command craqctl is a CLI client for manually exercising a running
// CRAQ chain: SET a key at the head, GET a key via the client's EWMA
// replica picker, or QUERY a replica for its committed version.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/spf13/cobra"

	"craqkv/client"
	"craqkv/internal/topology"
	"craqkv/internal/wire"
)

// dialRaw opens a bare TCP connection to a single replica, used by
// query (which talks to one named replica rather than through the
// client's head/least-loaded routing).
func dialRaw(ctx context.Context, info topology.Info) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", info.Addr())
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "craqctl",
		Short: "Manually SET/GET/QUERY a running CRAQ chain",
	}
	cmd.AddCommand(newSetCmd(), newGetCmd(), newQueryCmd())
	return cmd
}

func dialDefaultChain(ctx context.Context) (*client.Client, error) {
	chain, err := topology.DefaultFourNodeChain()
	if err != nil {
		return nil, err
	}
	return client.Dial(ctx, chain.Replicas)
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a key to the chain's head",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			c, err := dialDefaultChain(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			ok, err := c.Set(args[0], args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("SET %s failed", args[0])
			}
			fmt.Println("OK")
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read a key via the EWMA-least-loaded replica",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			c, err := dialDefaultChain(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			ok, val := c.Get(args[0])
			if !ok {
				fmt.Println("Key not found")
				return nil
			}
			fmt.Println(val)
			return nil
		},
	}
}

func newQueryCmd() *cobra.Command {
	var replicaID string
	cmd := &cobra.Command{
		Use:   "query <key>",
		Short: "Ask a replica for the tail-committed version of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := topology.DefaultFourNodeChain()
			if err != nil {
				return err
			}
			var target topology.Info
			found := false
			for _, r := range chain.Replicas {
				if string(r.ID) == replicaID {
					target, found = r, true
				}
			}
			if !found {
				return fmt.Errorf("unknown replica %q", replicaID)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			conn, err := dialRaw(ctx, target)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := wire.WriteMessage(conn, wire.Request{Type: wire.TypeQuery, Key: args[0]}); err != nil {
				return err
			}
			var resp wire.Response
			if err := wire.ReadMessage(conn, &resp); err != nil {
				return err
			}
			if resp.Ver == nil {
				fmt.Println("Key not found")
				return nil
			}
			fmt.Println(*resp.Ver)
			return nil
		},
	}
	cmd.Flags().StringVar(&replicaID, "replica", "a", "replica id to query (a, b, c, or d)")
	return cmd
}
