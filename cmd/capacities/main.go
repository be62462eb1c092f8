package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/raterudder/solarprep/pkg/capacity"
	"github.com/raterudder/solarprep/pkg/log"
	"github.com/raterudder/solarprep/pkg/source"
	"github.com/raterudder/solarprep/pkg/storage"

	"github.com/levenlabs/go-lflag"
)

func main() {
	finder := source.Configured()
	installations := source.ConfiguredInstallations()
	s := storage.Configured()
	estimator := capacity.Configured(finder, source.FileReader{}, s)

	summaryFile := lflag.String("summary-file", "data/capacities_summary.yaml", "Path the YAML cluster summary is written to")
	excludeFile := lflag.String("exclude-file", "data/small_capacities.csv", "Path the list of installations excluded from clustering is written to")

	lflag.Configure()
	log.ConfigureFromFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runID := uuid.New().String()
	ctx = log.WithAttrs(ctx, slog.String("runID", runID))
	code := run(ctx, runID, installations, estimator, s, *summaryFile, *excludeFile)
	cancel()
	os.Exit(code)
}

// run estimates each installation's solar capacity, clusters them and writes
// the summary report and the list of installations too small to cluster. s is
// closed before the exit code is returned.
func run(ctx context.Context, runID string, installations *source.InstallationSet, estimator *capacity.Estimator, s storage.Database, summaryFile, excludeFile string) int {
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
	ids := make([]string, len(insts))
	for i, inst := range insts {
		ids[i] = inst.ID
	}

	res, err := estimator.Run(ctx, ids)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to estimate capacities", "error", err)
		return 1
	}

	res.Summary.RunID = runID
	if err := capacity.WriteSummary(summaryFile, res.Summary); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write summary", "error", err)
		return 1
	}
	if err := source.WriteInstallationIDs(excludeFile, res.Excluded()); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write exclusion list", "error", err)
		return 1
	}
	log.Ctx(ctx).InfoContext(ctx, "capacities written",
		slog.Int("installations", len(res.Capacities)),
		slog.Int("excluded", len(res.Excluded())),
		slog.String("summary", summaryFile),
	)
	return 0
}
