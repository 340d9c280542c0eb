package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/serverscout/serverscout/internal/catalog"
	"github.com/serverscout/serverscout/internal/constants"
	"github.com/serverscout/serverscout/internal/fileutils"
	"github.com/serverscout/serverscout/internal/generator"
	"github.com/serverscout/serverscout/internal/hardware"
	"github.com/serverscout/serverscout/internal/report"
	"github.com/serverscout/serverscout/internal/search"
	"github.com/spf13/cobra"
)

func (a *App) installSearch() {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the catalog for the best servers per dollar",
		Long:  "Draw random systems from the parts catalog round after round, rank the feasible ones on turbo GFLOPS per dollar and report the leaderboard after every round. Without --rounds the search runs until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("min-memory-per-thread") {
				n, err := fileutils.ParseSize(a.minMemory)
				if err != nil {
					return fmt.Errorf("invalid minimum memory per thread: %v", err)
				}
				a.config.Search.MinBytesPerThread = n
			}
			return a.runSearch()
		},
	}

	cmd.Flags().IntVar(&a.config.Search.BatchSize, "batch-size", constants.DefaultBatchSize, "number of candidate systems drawn per round")
	cmd.Flags().IntVar(&a.config.Search.LeaderboardSize, "leaderboard-size", constants.DefaultLeaderboardSize, "number of best systems kept between rounds")
	cmd.Flags().Float64Var(&a.config.Search.MaxPrice, "max-price", constants.DefaultMaxPrice, "price ceiling for a candidate system, in USD")
	cmd.Flags().StringVar(&a.minMemory, "min-memory-per-thread", hardware.ByteSize(constants.DefaultMinBytesPerThread).String(), "memory floor per hardware thread, for example 4GiB")
	cmd.Flags().IntVar(&a.config.Search.Workers, "workers", constants.DefaultWorkers, "number of goroutines drawing candidates")
	cmd.Flags().IntVar(&a.config.Search.Rounds, "rounds", 0, "number of rounds to run, 0 runs until interrupted")
	cmd.Flags().Uint64Var(&a.config.Search.Seed, "seed", 0, "seed for the random source, 0 picks one at random")
	cmd.Flags().StringVar(&a.config.ReportsDir, "reports-dir", constants.ReportsDirName, "directory to write the round reports to")
	cmd.Flags().BoolVar(&a.config.Watch, "watch", false, "reload the catalog when its files change")

	err := cmd.MarkFlagDirname("reports-dir")
	if err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark reports-dir flag as dirname: %v", err))
	}

	a.cmd.AddCommand(cmd)
}

func (a *App) runSearch() (err error) {
	l := slog.Default()
	a.config.Search.Sanitize(l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.stop = cancel
	close(a.ready)

	m := catalog.NewManager(l, a.config.CatalogDir)
	if err := m.Load(); err != nil {
		return err
	}

	var changes <-chan struct{}
	if a.config.Watch {
		ch, errs, err := m.Watch(ctx)
		if err != nil {
			return fmt.Errorf("could not watch the catalog: %v", err)
		}
		changes = ch
		go func() {
			for err := range errs {
				l.Error("Catalog watcher failed", "err", err)
			}
		}()
	}

	// Sanitize has already resolved a zero seed, so the run is reproducible
	// from the logged value.
	gen := generator.New(l, m.Catalog(), generator.WithSeed(a.config.Search.Seed))

	run := uuid.NewString()
	reporter, err := report.New(l, a.config.ReportsDir, run)
	if err != nil {
		return err
	}

	opts := []search.Options{search.WithRunID(run)}
	if changes != nil {
		opts = append(opts, search.WithCatalogRefresh(changes, func() {
			gen.SetCatalog(m.Catalog())
		}))
	}

	s, err := search.New(l, gen, reporter, a.config.Search, opts...)
	if err != nil {
		return err
	}

	// An interrupt cancels the context: that is the normal way to end an
	// unbounded search, not a failure.
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
