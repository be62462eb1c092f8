package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/raterudder/solarprep/pkg/log"
	"github.com/raterudder/solarprep/pkg/source"

	"github.com/levenlabs/go-lflag"
)

func main() {
	os.Exit(run())
}

// run writes the list of installations that have solar files in the study
// years and returns the process exit code.
func run() int {
	finder := source.Configured()
	installations := source.ConfiguredInstallations()

	lflag.Configure()
	log.ConfigureFromFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := installations.InstallationsFile()
	if out == "" {
		log.Ctx(ctx).ErrorContext(ctx, "--installations-file is required")
		return 1
	}

	// the table, not the list being written, is the candidate set
	all, err := source.LoadInstallations(installations.TimezonesFile())
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load timezone table", "error", err)
		return 1
	}
	ids := make([]string, len(all))
	for i, inst := range all {
		ids[i] = inst.ID
	}

	found, err := finder.FindInstallationsWithSolar(ctx, ids)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to discover installations", "error", err)
		return 1
	}
	if err := source.WriteInstallationIDs(out, found); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write installations", "error", err)
		return 1
	}
	log.Ctx(ctx).InfoContext(ctx, "discovered installations with solar",
		slog.Int("candidates", len(ids)),
		slog.Int("found", len(found)),
		slog.String("path", out),
	)
	return 0
}
