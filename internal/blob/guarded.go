package blob

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"landtrust/pkg/platform/circuit"
)

// ErrUnavailable is returned without calling the backend while the breaker
// is open.
var ErrUnavailable = errors.New("blob store unavailable")

// GuardedStore fails fast when the wrapped store keeps failing, so a blob
// outage does not tie up upload requests until their deadlines.
type GuardedStore struct {
	next    Store
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuardedStore(next Store, breaker *circuit.Breaker, logger *slog.Logger) *GuardedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardedStore{next: next, breaker: breaker, logger: logger}
}

func (g *GuardedStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if !g.breaker.Allow() {
		return "", ErrUnavailable
	}
	url, err := g.next.Put(ctx, key, contentType, body, size)
	if err != nil {
		// A caller giving up says nothing about the backend.
		if ctx.Err() != nil {
			return "", err
		}
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "blob circuit opened", "breaker", g.breaker.Name(), "error", err)
		}
		return "", err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "blob circuit closed", "breaker", g.breaker.Name())
	}
	return url, nil
}

// Delete is only used for cleanup and does not move the breaker.
func (g *GuardedStore) Delete(ctx context.Context, key string) error {
	if g.breaker.IsOpen() {
		return ErrUnavailable
	}
	return g.next.Delete(ctx, key)
}
