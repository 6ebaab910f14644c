package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/txgraph"
	"github.com/hupe1980/txgraph/testutil"
)

var errInvalidFlag = errors.New("invalid flag")

type config struct {
	testSize    int
	txnSize     int
	threads     int
	keyRange    uint32
	mix         testutil.Mix
	prepopulate bool
	rate        float64
	seed        int64
	memoryLimit int64
	verbose     bool
}

func defaultConfig() config {
	return config{
		testSize: 10000,
		txnSize:  4,
		threads:  4,
		keyRange: 5000,
		mix:      testutil.DefaultMix,
	}
}

func (c config) validate() error {
	switch {
	case c.testSize <= 0:
		return fmt.Errorf("%w: test-size must be positive, got %d", errInvalidFlag, c.testSize)
	case c.txnSize <= 0 || c.txnSize > txgraph.MaxTransactionSize:
		return fmt.Errorf("%w: txn-size must be in [1, %d], got %d", errInvalidFlag, txgraph.MaxTransactionSize, c.txnSize)
	case c.threads <= 0:
		return fmt.Errorf("%w: threads must be positive, got %d", errInvalidFlag, c.threads)
	case c.keyRange == 0 || c.keyRange == math.MaxUint32:
		return fmt.Errorf("%w: key-range must be in [1, %d), got %d", errInvalidFlag, uint32(math.MaxUint32), c.keyRange)
	case c.rate < 0:
		return fmt.Errorf("%w: rate must not be negative, got %v", errInvalidFlag, c.rate)
	case c.memoryLimit < 0:
		return fmt.Errorf("%w: memory-limit must not be negative, got %d", errInvalidFlag, c.memoryLimit)
	}
	if err := c.mix.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errInvalidFlag, err)
	}
	return nil
}

// opsPerWorker sizes the arenas. Every worker gets the same budget, including
// the one that prepopulates.
func (c config) opsPerWorker() int {
	ops := c.testSize * c.txnSize * 2
	if c.prepopulate {
		ops = max(ops, 2*int(c.keyRange))
	}
	return ops
}

func (c config) workers() int {
	if c.prepopulate {
		return c.threads + 1
	}
	return c.threads
}
