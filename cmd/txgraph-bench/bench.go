package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/txgraph"
	"github.com/hupe1980/txgraph/testutil"
)

// Latencies are recorded in nanoseconds up to one minute.
const (
	minLatency = 1
	maxLatency = int64(time.Minute)
	sigFigs    = 3
)

type result struct {
	commits  int64
	aborts   int64
	elapsed  time.Duration
	latency  *hdrhistogram.Histogram
	stats    txgraph.Stats
	vertices uint64
	memory   int64
}

func (r result) opsPerSec(txnSize int) float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(r.commits) * float64(txnSize) / r.elapsed.Seconds()
}

func (r result) successRate() float64 {
	total := r.commits + r.aborts
	if total == 0 {
		return 0
	}
	return float64(r.commits) / float64(total)
}

type workerResult struct {
	commits int64
	aborts  int64
	latency *hdrhistogram.Histogram
}

func newLogger(w io.Writer, verbose bool) *txgraph.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return txgraph.NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, cfg config, logger *txgraph.Logger) (result, error) {
	seed := cfg.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	opts := []txgraph.Option{
		txgraph.WithLogger(logger),
		txgraph.WithMemoryLimit(cfg.memoryLimit),
	}
	if cfg.rate > 0 {
		opts = append(opts, txgraph.WithAdmission(0, cfg.rate, cfg.threads))
	}

	g, err := txgraph.New(cfg.workers(), cfg.txnSize, cfg.opsPerWorker(), opts...)
	if err != nil {
		return result{}, err
	}
	defer g.Close()

	if cfg.prepopulate {
		if err := prepopulate(g, cfg.keyRange); err != nil {
			return result{}, err
		}
		logger.Info("prepopulated", "vertices", g.Vertices().GetCardinality())
	}

	workers := make([]*txgraph.Worker, cfg.threads)
	for i := range workers {
		if workers[i], err = g.NewWorker(); err != nil {
			return result{}, err
		}
	}

	logger.Info("starting test", "threads", cfg.threads, "test_size", cfg.testSize, "txn_size", cfg.txnSize, "seed", seed)

	results := make([]workerResult, cfg.threads)
	eg, ctx := errgroup.WithContext(ctx)
	start := time.Now()
	for i, w := range workers {
		eg.Go(func() error {
			rng := testutil.NewRNG(seed + int64(i))
			gen, err := testutil.NewGenerator(rng, cfg.mix, cfg.keyRange)
			if err != nil {
				return err
			}
			res, err := drive(ctx, w, gen, cfg)
			results[i] = res
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return result{}, err
	}
	elapsed := time.Since(start)

	res := result{
		elapsed: elapsed,
		latency: hdrhistogram.New(minLatency, maxLatency, sigFigs),
	}
	for _, wr := range results {
		res.commits += wr.commits
		res.aborts += wr.aborts
		if dropped := res.latency.Merge(wr.latency); dropped > 0 {
			logger.Warn("latency samples out of range", "dropped", dropped)
		}
	}
	res.stats = g.Stats()
	res.vertices = g.Vertices().GetCardinality()
	res.memory = g.MemoryUsage()

	return res, nil
}

func prepopulate(g *txgraph.Graph, keyRange uint32) error {
	w, err := g.NewWorker()
	if err != nil {
		return err
	}
	for k := uint32(1); k < keyRange; k++ {
		tx, err := w.NewTransaction(1)
		if err != nil {
			return err
		}
		if err := tx.InsertVertex(k); err != nil {
			return err
		}
		if !w.Execute(tx) {
			return fmt.Errorf("prepopulate: insert of vertex %d aborted", k)
		}
	}
	return nil
}

func drive(ctx context.Context, w *txgraph.Worker, gen *testutil.Generator, cfg config) (workerResult, error) {
	res := workerResult{latency: hdrhistogram.New(minLatency, maxLatency, sigFigs)}

	for i := 0; i < cfg.testSize; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		tx, err := w.NewTransaction(cfg.txnSize)
		if err != nil {
			return res, err
		}
		for _, op := range gen.Transaction(cfg.txnSize) {
			if err := tx.Add(op); err != nil {
				return res, err
			}
		}

		start := time.Now()
		ok, err := w.ExecuteContext(ctx, tx)
		if err != nil {
			return res, err
		}
		_ = res.latency.RecordValue(max(int64(time.Since(start)), minLatency))

		if ok {
			res.commits++
		} else {
			res.aborts++
		}
	}
	return res, nil
}
