package tx

import (
	"context"
	"sync"

	dErrors "landtrust/pkg/domain-errors"
)

// Snapshotter is implemented by in-memory stores that can take part in a
// MemoryRunner unit of work.
type Snapshotter interface {
	Snapshot() any
	Restore(snapshot any)
}

type memoryTxKey struct{}

// MemoryRunner serializes units of work behind one lock and restores every
// participant's snapshot when fn fails. Restores are whole-store, so a write
// made outside RunInTx while a unit of work is in flight is rolled back with
// it: callers must send every participant write through the runner. It is
// meant for tests and local development only.
type MemoryRunner struct {
	mu           sync.Mutex
	participants []Snapshotter
}

func NewMemoryRunner(participants ...Snapshotter) *MemoryRunner {
	return &MemoryRunner{participants: participants}
}

func (t *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if ctx.Value(memoryTxKey{}) == t {
		return fn(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	snapshots := make([]any, len(t.participants))
	for i, p := range t.participants {
		snapshots[i] = p.Snapshot()
	}

	err := fn(context.WithValue(ctx, memoryTxKey{}, t))
	if err == nil {
		err = ctx.Err()
		if err != nil {
			err = dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
		}
	}
	if err != nil {
		for i, p := range t.participants {
			p.Restore(snapshots[i])
		}
		return err
	}
	return nil
}
