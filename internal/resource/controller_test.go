package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/txgraph/internal/arena"
)

func TestController_Memory(t *testing.T) {
	// Test with limit
	c := NewController(Config{MemoryLimitBytes: 100})

	// Acquire 50
	err := c.AcquireMemory(50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), c.MemoryUsage())

	// Acquire 40
	err = c.AcquireMemory(40)
	require.NoError(t, err)
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Acquire 20 (should fail - limit exceeded)
	err = c.AcquireMemory(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Release 50
	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	// Now Acquire 20 should succeed
	err = c.AcquireMemory(20)
	require.NoError(t, err)
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 0})

	err := c.AcquireMemory(1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_ArenaReservation(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 1 << 16})

	r, err := arena.NewRegion[uint64](arena.Config{Name: "small", Partitions: 2, SlotsPerPartition: 1024, Acquirer: c})
	require.NoError(t, err)
	assert.Equal(t, int64(2*1024*8), c.MemoryUsage())

	_, err = arena.NewRegion[uint64](arena.Config{Name: "large", Partitions: 8, SlotsPerPartition: 1024, Acquirer: c})
	require.ErrorIs(t, err, ErrMemoryLimitExceeded)

	r.Close()
	assert.Zero(t, c.MemoryUsage())
}

func TestController_Inflight(t *testing.T) {
	c := NewController(Config{MaxInflight: 2})

	require.NoError(t, c.AcquireTxn(t.Context()))
	require.NoError(t, c.AcquireTxn(t.Context()))
	assert.Equal(t, int64(2), c.Inflight())

	// Third should not fit
	assert.False(t, c.TryAcquireTxn())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireTxn(ctx), context.DeadlineExceeded)

	c.ReleaseTxn()
	assert.True(t, c.TryAcquireTxn())
	assert.Equal(t, int64(2), c.Inflight())
}

func TestController_TxnRate(t *testing.T) {
	c := NewController(Config{TxnPerSec: 1, TxnBurst: 1})

	require.NoError(t, c.AcquireTxn(t.Context()))
	c.ReleaseTxn()

	// Bucket is empty, the next token is a second away.
	assert.False(t, c.TryAcquireTxn())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireTxn(ctx))

	// Unlimited
	c2 := NewController(Config{})
	for i := 0; i < 100; i++ {
		require.True(t, c2.TryAcquireTxn())
	}
}

func TestController_NilChecks(t *testing.T) {
	var c *Controller
	assert.NoError(t, c.AcquireMemory(10))
	c.ReleaseMemory(10) // Should not panic
	assert.NoError(t, c.AcquireTxn(context.Background()))
	assert.True(t, c.TryAcquireTxn())
	c.ReleaseTxn()
	assert.Zero(t, c.MemoryUsage())
	assert.Zero(t, c.Inflight())
}
