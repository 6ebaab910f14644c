// Command txgraph-bench drives a random transactional workload against a graph
// and reports throughput, commit rate and latency.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := defaultConfig()

	cmd := &cobra.Command{
		Use:   "txgraph-bench",
		Short: "Benchmark lock-free graph transactions",
		Long: `Runs test-size random transactions on each of threads workers.
Operator kinds are drawn with the given ratios, which must sum to 1.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			res, err := run(cmd.Context(), cfg, newLogger(cmd.ErrOrStderr(), cfg.verbose))
			if err != nil {
				return err
			}
			renderTable(cmd.OutOrStdout(), cfg, res)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&cfg.testSize, "test-size", "n", cfg.testSize, "transactions per worker")
	f.IntVarP(&cfg.txnSize, "txn-size", "s", cfg.txnSize, "operators per transaction")
	f.IntVarP(&cfg.threads, "threads", "t", cfg.threads, "number of workers")
	f.Uint32VarP(&cfg.keyRange, "key-range", "k", cfg.keyRange, "keys are drawn from [1, key-range]")
	f.Float64Var(&cfg.mix.InsertVertex, "insert-vertex", cfg.mix.InsertVertex, "ratio of InsertVertex operators")
	f.Float64Var(&cfg.mix.DeleteVertex, "delete-vertex", cfg.mix.DeleteVertex, "ratio of DeleteVertex operators")
	f.Float64Var(&cfg.mix.InsertEdge, "insert-edge", cfg.mix.InsertEdge, "ratio of InsertEdge operators")
	f.Float64Var(&cfg.mix.DeleteEdge, "delete-edge", cfg.mix.DeleteEdge, "ratio of DeleteEdge operators")
	f.Float64Var(&cfg.mix.Find, "find", cfg.mix.Find, "ratio of Find operators")
	f.BoolVar(&cfg.prepopulate, "prepopulate", cfg.prepopulate, "insert keys [1, key-range) before the run")
	f.Float64Var(&cfg.rate, "rate", cfg.rate, "transactions per second across all workers (0 = unlimited)")
	f.Int64Var(&cfg.seed, "seed", cfg.seed, "random seed (0 = time based)")
	f.Int64Var(&cfg.memoryLimit, "memory-limit", cfg.memoryLimit, "arena memory limit in bytes (0 = unlimited)")
	f.BoolVarP(&cfg.verbose, "verbose", "v", cfg.verbose, "enable debug logging")

	return cmd
}
