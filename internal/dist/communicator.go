package dist

import "context"

// Communicator abstracts the process-group transport behind the two
// operations the dataset gate needs. Any collective backend that can barrier
// and broadcast bytes from a single source rank can implement it.
type Communicator interface {
	// Rank returns this participant's rank, 0-based.
	Rank() int
	// WorldSize returns the number of participants.
	WorldSize() int
	// Barrier blocks until every participant arrives or ctx expires.
	Barrier(ctx context.Context) error
	// Broadcast distributes payload from sourceRank to all participants.
	// Non-source ranks pass nil and receive the source's payload.
	Broadcast(ctx context.Context, payload []byte, sourceRank int) ([]byte, error)
}

// SingleProcess is the trivial communicator for non-distributed runs.
type SingleProcess struct{}

func (SingleProcess) Rank() int                        { return 0 }
func (SingleProcess) WorldSize() int                   { return 1 }
func (SingleProcess) Barrier(context.Context) error    { return nil }
func (SingleProcess) Broadcast(_ context.Context, payload []byte, _ int) ([]byte, error) {
	return payload, nil
}
