package txgraph

import (
	"errors"
	"fmt"

	"github.com/hupe1980/txgraph/internal/arena"
	"github.com/hupe1980/txgraph/internal/engine"
	"github.com/hupe1980/txgraph/internal/resource"
	"github.com/hupe1980/txgraph/internal/txn"
)

var (
	// ErrInvalidKey is returned when an operator addresses a reserved key.
	ErrInvalidKey = errors.New("invalid key")

	// ErrTransactionFull is returned when adding past a transaction's size.
	ErrTransactionFull = errors.New("transaction is full")

	// ErrTransactionDone is returned when modifying an executed transaction.
	ErrTransactionDone = errors.New("transaction already executed")

	// ErrTooManyWorkers is returned by NewWorker once every partition is claimed.
	ErrTooManyWorkers = errors.New("too many workers")

	// ErrMemoryLimitExceeded is returned by New when the arenas do not fit
	// the configured memory limit.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded

	// ErrClosed is returned when using a closed graph.
	ErrClosed = errors.New("graph is closed")

	// ErrInvalidOptions is the cause wrapped by every ErrInvalidConfig.
	ErrInvalidOptions = engine.ErrInvalidOptions

	// ErrExhausted is the panic cause when a worker exceeds its preallocated budget.
	ErrExhausted = arena.ErrExhausted
)

// ErrInvalidConfig indicates an unusable constructor argument.
//
// It unwraps to ErrInvalidOptions.
type ErrInvalidConfig struct {
	Field string
	Value int
	cause error
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config: %s=%d", e.Field, e.Value)
}

func (e *ErrInvalidConfig) Unwrap() error { return e.cause }

// ErrInvalidTransactionSize indicates a transaction size outside [1, max].
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidTransactionSize struct {
	Size  int
	Max   int
	cause error
}

func (e *ErrInvalidTransactionSize) Error() string {
	return fmt.Sprintf("invalid transaction size: %d (max %d)", e.Size, e.Max)
}

func (e *ErrInvalidTransactionSize) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, engine.ErrInvalidKey) {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if errors.Is(err, txn.ErrFull) {
		return fmt.Errorf("%w: %w", ErrTransactionFull, err)
	}
	if errors.Is(err, arena.ErrNoPartition) {
		return fmt.Errorf("%w: %w", ErrTooManyWorkers, err)
	}
	if errors.Is(err, arena.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	return err
}
