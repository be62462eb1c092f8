package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/levenlabs/go-lflag"
	"golang.org/x/sync/errgroup"

	"github.com/raterudder/solarprep/pkg/log"
	"github.com/raterudder/solarprep/pkg/types"
)

// Runner processes a single installation.
type Runner interface {
	Run(ctx context.Context, inst types.Installation) (Result, error)
}

// Summary counts the outcomes of a batch.
type Summary struct {
	RunID     string
	Processed int
	Skipped   int
	Failed    int
	Results   []Result
}

// Batch runs installations through a Runner with bounded concurrency.
type Batch struct {
	runner      Runner
	concurrency int
}

// ConfiguredBatch sets up flags for the Batch and returns the instance.
func ConfiguredBatch(runner Runner) *Batch {
	concurrency := lflag.String("concurrency", "1", "Number of installations processed at once")

	b := &Batch{runner: runner}
	lflag.Do(func() {
		n, err := strconv.Atoi(*concurrency)
		if err != nil || n < 1 {
			panic(fmt.Sprintf("invalid concurrency: %q", *concurrency))
		}
		b.concurrency = n
	})
	return b
}

// NewBatch returns a Batch that doesn't depend on flags.
func NewBatch(runner Runner, concurrency int) *Batch {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Batch{runner: runner, concurrency: concurrency}
}

// Run processes every installation. Installations that fail are counted and
// logged without stopping the others; only cancellation of ctx ends the
// batch early, in which case the partial summary is returned with the
// context's error.
func (b *Batch) Run(ctx context.Context, installations []types.Installation) (Summary, error) {
	summary := Summary{RunID: uuid.New().String()}
	ctx = log.WithAttrs(ctx, slog.String("runID", summary.RunID))
	log.Ctx(ctx).InfoContext(ctx, "starting batch", slog.Int("installations", len(installations)), slog.Int("concurrency", b.concurrency))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, inst := range installations {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := b.runner.Run(gctx, inst)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				summary.Processed++
				summary.Results = append(summary.Results, res)
			case gctx.Err() != nil:
				return gctx.Err()
			case errors.Is(err, types.ErrMissingFile),
				errors.Is(err, types.ErrMalformedRecord),
				errors.Is(err, ErrExcluded):
				summary.Skipped++
				log.Ctx(gctx).InfoContext(gctx, "skipped installation", slog.String("installationID", inst.ID), slog.Any("error", err))
			default:
				summary.Failed++
				log.Ctx(gctx).ErrorContext(gctx, "failed installation", slog.String("installationID", inst.ID), slog.Any("error", err))
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	log.Ctx(ctx).InfoContext(ctx, "finished batch",
		slog.Int("processed", summary.Processed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
	)
	return summary, err
}
