package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/solarprep/pkg/types"
)

type funcRunner func(ctx context.Context, inst types.Installation) (Result, error)

func (f funcRunner) Run(ctx context.Context, inst types.Installation) (Result, error) {
	return f(ctx, inst)
}

func installations(ids ...string) []types.Installation {
	out := make([]types.Installation, len(ids))
	for i, id := range ids {
		out[i] = types.Installation{ID: id, Timezone: "America/Chicago"}
	}
	return out
}

func TestBatch(t *testing.T) {
	outcomes := map[string]error{
		"ok1":       nil,
		"ok2":       nil,
		"missing":   fmt.Errorf("%w: none", types.ErrMissingFile),
		"excluded":  fmt.Errorf("%w: 1", ErrExcluded),
		"malformed": fmt.Errorf("wrapped: %w", types.ErrMalformedRecord),
		"storage":   errors.New("storing series: disk full"),
	}
	runner := funcRunner(func(ctx context.Context, inst types.Installation) (Result, error) {
		return Result{InstallationID: inst.ID}, outcomes[inst.ID]
	})

	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("Concurrency%d", concurrency), func(t *testing.T) {
			summary, err := NewBatch(runner, concurrency).Run(context.Background(),
				installations("ok1", "missing", "storage", "excluded", "ok2", "malformed"))
			require.NoError(t, err)
			assert.NotEmpty(t, summary.RunID)
			assert.Equal(t, 2, summary.Processed)
			assert.Equal(t, 3, summary.Skipped)
			assert.Equal(t, 1, summary.Failed)
			assert.Len(t, summary.Results, 2)
		})
	}

	t.Run("SequentialOrder", func(t *testing.T) {
		var order []string
		r := funcRunner(func(ctx context.Context, inst types.Installation) (Result, error) {
			order = append(order, inst.ID)
			return Result{}, nil
		})
		_, err := NewBatch(r, 1).Run(context.Background(), installations("c", "a", "b"))
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a", "b"}, order)
	})

	t.Run("BoundedConcurrency", func(t *testing.T) {
		var running, peak int32
		release := make(chan struct{})
		r := funcRunner(func(ctx context.Context, inst types.Installation) (Result, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&running, -1)
			return Result{}, nil
		})
		done := make(chan Summary)
		go func() {
			s, _ := NewBatch(r, 2).Run(context.Background(), installations("a", "b", "c", "d", "e"))
			done <- s
		}()
		for i := 0; i < 5; i++ {
			release <- struct{}{}
		}
		s := <-done
		assert.Equal(t, 5, s.Processed)
		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		r := funcRunner(func(ctx context.Context, inst types.Installation) (Result, error) {
			if inst.ID == "b" {
				cancel()
				return Result{}, ctx.Err()
			}
			return Result{}, nil
		})
		summary, err := NewBatch(r, 1).Run(ctx, installations("a", "b", "c"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, summary.Processed)
		assert.Equal(t, 0, summary.Failed)
	})
}
