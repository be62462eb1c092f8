package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/raterudder/solarprep/pkg/log"
	"github.com/raterudder/solarprep/pkg/pipeline"
	"github.com/raterudder/solarprep/pkg/source"
	"github.com/raterudder/solarprep/pkg/storage"
	"github.com/raterudder/solarprep/pkg/suntimes"
	"github.com/raterudder/solarprep/pkg/types"

	"github.com/levenlabs/go-lflag"
)

func main() {
	// init packages
	finder := source.Configured()
	installations := source.ConfiguredInstallations()
	resolver := suntimes.Configured()
	s := storage.Configured()

	// init pipeline
	p := pipeline.Configured(finder, source.FileReader{}, resolver, s)
	batch := pipeline.ConfiguredBatch(p)

	// parse flags
	lflag.Configure()
	log.ConfigureFromFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	code := run(ctx, installations, batch, p.Config().Channel, s)
	cancel()
	os.Exit(code)
}

// run processes every installation and closes s before returning the exit
// code: 0 when everything succeeded or was skipped, 1 when the batch couldn't
// start or was interrupted, 2 when any installation failed.
func run(ctx context.Context, installations *source.InstallationSet, batch *pipeline.Batch, channel types.Channel, s storage.Database) int {
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	insts, err := installations.Load()
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load installations", "error", err)
		return 1
	}

	summary, err := batch.Run(ctx, insts)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "batch interrupted", "error", err)
		return 1
	}
	log.Ctx(ctx).InfoContext(ctx, "preprocessing finished",
		slog.String("runID", summary.RunID),
		slog.String("channel", string(channel)),
		slog.Int("processed", summary.Processed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
	)
	if summary.Failed > 0 {
		return 2
	}
	return 0
}
