package tx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *counter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (c *counter) Snapshot() any { return c.value() }

func (c *counter) Restore(s any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = s.(int)
}

func TestMemoryRunner(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		c := &counter{}
		r := NewMemoryRunner(c)
		require.NoError(t, r.RunInTx(ctx, func(context.Context) error {
			c.inc()
			return nil
		}))
		assert.Equal(t, 1, c.value())
	})

	t.Run("restores every participant on error", func(t *testing.T) {
		a, b := &counter{}, &counter{}
		r := NewMemoryRunner(a, b)
		err := r.RunInTx(ctx, func(context.Context) error {
			a.inc()
			b.inc()
			return errors.New("audit write failed")
		})
		require.Error(t, err)
		assert.Equal(t, 0, a.value())
		assert.Equal(t, 0, b.value())
	})

	t.Run("nested calls join the outer unit", func(t *testing.T) {
		c := &counter{}
		r := NewMemoryRunner(c)
		err := r.RunInTx(ctx, func(ctx context.Context) error {
			require.NoError(t, r.RunInTx(ctx, func(context.Context) error {
				c.inc()
				return nil
			}))
			return errors.New("outer fails")
		})
		require.Error(t, err)
		assert.Equal(t, 0, c.value())
	})

	t.Run("cancelled context aborts before running", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		r := NewMemoryRunner()
		ran := false
		err := r.RunInTx(cctx, func(context.Context) error {
			ran = true
			return nil
		})
		require.Error(t, err)
		assert.False(t, ran)
	})
}
