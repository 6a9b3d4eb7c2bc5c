package dist

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// timeoutEnv configures the barrier timeout in minutes.
const (
	timeoutEnv            = "PREFPACK_DATASET_TIMEOUT"
	defaultTimeoutMinutes = 60
)

// DatasetTimeout returns the barrier timeout, read from the environment.
func DatasetTimeout() time.Duration {
	minutes := defaultTimeoutMinutes
	if v := os.Getenv(timeoutEnv); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			minutes = parsed
		}
	}
	return time.Duration(minutes) * time.Minute
}

// Gate ensures dataset construction happens once, on rank 0, with every other
// participant receiving an identical copy over the communicator. A bounded
// barrier precedes the broadcast; a barrier timeout is fatal for all
// participants, never a stall.
type Gate struct {
	comm    Communicator
	timeout time.Duration
	logger  *slog.Logger
}

// NewGate creates a gate with the environment-configured barrier timeout.
func NewGate(comm Communicator, logger *slog.Logger) *Gate {
	return &Gate{
		comm:    comm,
		timeout: DatasetTimeout(),
		logger:  logger,
	}
}

// Materialize runs build exactly once across the process group. In a
// single-process context it is a passthrough. Broadcast values must be
// gob-encodable.
func Materialize[T any](ctx context.Context, g *Gate, build func() (T, error)) (T, error) {
	var zero T

	if g.comm.WorldSize() <= 1 {
		return build()
	}

	var built T
	var payload []byte
	if g.comm.Rank() == 0 {
		v, err := build()
		if err != nil {
			return zero, err
		}
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(v); err != nil {
			return zero, fmt.Errorf("failed to encode dataset for broadcast: %w", err)
		}
		built = v
		payload = buf.Bytes()
	}

	g.logger.Info("Waiting at dataset barrier",
		"rank", g.comm.Rank(),
		"world_size", g.comm.WorldSize(),
		"timeout", g.timeout)

	barrierCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.comm.Barrier(barrierCtx); err != nil {
		return zero, fmt.Errorf("dataset barrier failed on rank %d: %w", g.comm.Rank(), err)
	}

	data, err := g.comm.Broadcast(ctx, payload, 0)
	if err != nil {
		return zero, fmt.Errorf("dataset broadcast failed on rank %d: %w", g.comm.Rank(), err)
	}

	if g.comm.Rank() == 0 {
		return built, nil
	}

	var received T
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&received); err != nil {
		return zero, fmt.Errorf("failed to decode broadcast dataset: %w", err)
	}
	return received, nil
}
