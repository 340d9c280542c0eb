package search_test

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/serverscout/serverscout/internal/constants"
	"github.com/serverscout/serverscout/internal/hardware"
	"github.com/serverscout/serverscout/internal/search"
	"github.com/serverscout/serverscout/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		nilSource   bool
		nilReporter bool
		loneRefresh bool
		runID       string

		wantErr bool
	}{
		"Defaults": {},
		"Overridden run ID": {
			runID: "fixed-id",
		},

		"Error on nil source": {
			nilSource: true,
			wantErr:   true,
		},
		"Error on nil reporter": {
			nilReporter: true,
			wantErr:     true,
		},
		"Error on refresh without a callback": {
			loneRefresh: true,
			wantErr:     true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			h := testutils.NewMockHandler(slog.LevelWarn)
			l := slog.New(&h)

			var source search.Source
			if !tc.nilSource {
				source = &listSource{}
			}
			var reporter search.Reporter
			if !tc.nilReporter {
				reporter = &recordingReporter{}
			}

			var args []search.Options
			if tc.loneRefresh {
				args = append(args, search.WithCatalogRefresh(make(chan struct{}), nil))
			}
			if tc.runID != "" {
				args = append(args, search.WithRunID(tc.runID))
			}

			s, err := search.New(l, source, reporter, testConfig(), args...)
			if tc.wantErr {
				require.Error(t, err, "New should refuse the given arguments")
				return
			}
			require.NoError(t, err, "New should accept the given arguments")

			if tc.runID != "" {
				assert.Equal(t, tc.runID, s.RunID(), "New should keep the run ID it was given")
				return
			}
			_, err = uuid.Parse(s.RunID())
			assert.NoError(t, err, "Generated run IDs should be UUIDs")
		})
	}
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		config search.Config

		want search.Config
		logs map[slog.Level]uint
	}{
		"Zero config receives every default": {
			config: search.Config{},
			want: search.Config{
				BatchSize:         constants.DefaultBatchSize,
				LeaderboardSize:   constants.DefaultLeaderboardSize,
				MaxPrice:          constants.DefaultMaxPrice,
				MinBytesPerThread: constants.DefaultMinBytesPerThread,
				Workers:           constants.DefaultWorkers,
			},
			logs: map[slog.Level]uint{
				slog.LevelInfo: 6,
			},
		},

		"Complete config passes through untouched": {
			config: search.Config{
				BatchSize:         10,
				LeaderboardSize:   3,
				MaxPrice:          5000,
				MinBytesPerThread: 1024,
				Workers:           2,
				Rounds:            4,
				Seed:              7,
			},
			want: search.Config{
				BatchSize:         10,
				LeaderboardSize:   3,
				MaxPrice:          5000,
				MinBytesPerThread: 1024,
				Workers:           2,
				Rounds:            4,
				Seed:              7,
			},
		},

		"Negative values are replaced": {
			config: search.Config{
				BatchSize:         -1,
				LeaderboardSize:   -5,
				MaxPrice:          -3,
				MinBytesPerThread: 512,
				Workers:           -2,
				Rounds:            -7,
				Seed:              9,
			},
			want: search.Config{
				BatchSize:         constants.DefaultBatchSize,
				LeaderboardSize:   constants.DefaultLeaderboardSize,
				MaxPrice:          constants.DefaultMaxPrice,
				MinBytesPerThread: 512,
				Workers:           constants.DefaultWorkers,
				Rounds:            0,
				Seed:              9,
			},
			logs: map[slog.Level]uint{
				slog.LevelInfo: 5,
			},
		},

		"NaN price ceiling is replaced": {
			config: search.Config{
				BatchSize:         10,
				LeaderboardSize:   3,
				MaxPrice:          math.NaN(),
				MinBytesPerThread: 1024,
				Workers:           2,
				Rounds:            4,
				Seed:              7,
			},
			want: search.Config{
				BatchSize:         10,
				LeaderboardSize:   3,
				MaxPrice:          constants.DefaultMaxPrice,
				MinBytesPerThread: 1024,
				Workers:           2,
				Rounds:            4,
				Seed:              7,
			},
			logs: map[slog.Level]uint{
				slog.LevelInfo: 1,
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			h := testutils.NewMockHandler(slog.LevelDebug)
			l := slog.New(&h)

			got := tc.config
			got.Sanitize(l)

			want := tc.want
			if want.Seed == 0 {
				require.NotZero(t, got.Seed, "Sanitize should draw a seed when none was provided")
				want.Seed = got.Seed
			}
			assert.Equal(t, want, got, "Sanitized config should match expectations")
			h.AssertLevels(t, tc.logs)
		})
	}
}

func TestRunRanksAndTruncates(t *testing.T) {
	t.Parallel()
	h := testutils.NewMockHandler(slog.LevelWarn)
	l := slog.New(&h)

	// Per-dollar turbo ratios: premium 0.384, budget 1.024, sweetspot
	// 2.048, flagship 0.2048, value 1.28. With three leaderboard slots the
	// two most expensive machines are the ones to go.
	source := &listSource{systems: []hardware.System{
		buildSystem("premium", 8000, 3.0),
		buildSystem("budget", 1000, 1.0),
		buildSystem("sweetspot", 1500, 3.0),
		buildSystem("flagship", 16000, 3.2),
		buildSystem("value", 2000, 2.5),
	}}
	reporter := &recordingReporter{}

	cfg := testConfig()
	cfg.BatchSize = 7
	cfg.LeaderboardSize = 3

	s, err := search.New(l, source, reporter, cfg)
	require.NoError(t, err, "Setup: New should not fail")
	require.NoError(t, s.Run(context.Background()), "Run should complete its single round")

	require.Equal(t, 1, reporter.count(), "Reporter should be called once per round")
	entries := reporter.last()
	require.Len(t, entries, 3, "Leaderboard should be truncated to its configured size")

	for i, want := range []string{"budget", "value", "sweetspot"} {
		assert.Equal(t, want, entries[i].System.Model, "Leaderboard should rank ascending by turbo ratio")
		assert.Equal(t, i, entries[i].Rank, "Ranks should be leaderboard positions")
	}
	assert.True(t, slices.IsSortedFunc(entries, func(a, b search.Entry) int {
		return cmp.Compare(a.TurboRatio, b.TurboRatio)
	}), "Reported entries should be sorted by turbo ratio")

	budget := entries[0]
	assert.Equal(t, 1000.0, budget.Price, "Entry should carry the total system price")
	assert.Equal(t, uint32(16), budget.Cores, "Entry should carry the core count")
	assert.Equal(t, uint32(32), budget.Threads, "Entry should carry the thread count")
	assert.Equal(t, hardware.ByteSize(128*1024*1024*1024), budget.Memory, "Entry should carry the installed memory")
	assert.Equal(t, 1024.0, budget.TurboGflops, "16 cores at 1 GHz with two FMA units are 1024 GFLOPS")
	assert.Equal(t, 512.0, budget.BaseGflops, "Base throughput runs at half the turbo clock here")
	assert.Equal(t, 1.024, budget.TurboRatio, "Turbo ratio should be GFLOPS over price")
	assert.Equal(t, 0.512, budget.BaseRatio, "Base ratio should be GFLOPS over price")

	h.AssertLevels(t, nil)
}

func TestRunFilters(t *testing.T) {
	t.Parallel()

	underFloor := buildSystem("under-floor", 1000, 1.0)
	underFloor.Blades[0].Motherboard.Memory[0].Size--

	noThreads := buildSystem("no-threads", 1000, 1.0)
	noThreads.Blades[0].Motherboard.Processors[0].Cores = 0
	noThreads.Blades[0].Motherboard.Processors[0].Threads = 0

	headless := buildSystem("headless", 1000, 1.0)
	headless.Blades[0].Motherboard = nil

	tests := map[string]struct {
		sys hardware.System

		wantKept  bool
		wantWarns uint
	}{
		"System at the price ceiling is kept": {
			sys:      buildSystem("edge-price", 35000, 1.0),
			wantKept: true,
		},
		"System over the price ceiling is dropped": {
			sys: buildSystem("over-price", 35001, 1.0),
		},
		"System at the memory floor is kept": {
			sys:      buildSystem("at-floor", 1000, 1.0),
			wantKept: true,
		},
		"System one byte under the memory floor is dropped": {
			sys: underFloor,
		},
		"System without threads is dropped": {
			sys: noThreads,
		},
		"Invalid system is dropped with a warning": {
			sys:       headless,
			wantWarns: 1,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			h := testutils.NewMockHandler(slog.LevelWarn)
			l := slog.New(&h)

			source := &listSource{systems: []hardware.System{tc.sys}}
			reporter := &recordingReporter{}

			cfg := testConfig()
			cfg.BatchSize = 1

			s, err := search.New(l, source, reporter, cfg)
			require.NoError(t, err, "Setup: New should not fail")
			require.NoError(t, s.Run(context.Background()), "Run should complete its single round")

			require.Equal(t, 1, reporter.count(), "Reporter should be called even for an empty round")
			entries := reporter.last()
			if tc.wantKept {
				require.Len(t, entries, 1, "The candidate should have passed the filters")
				assert.Equal(t, tc.sys.Model, entries[0].System.Model, "The reported system should be the drawn one")
			} else {
				assert.Empty(t, entries, "The candidate should have been filtered out")
			}

			var logs map[slog.Level]uint
			if tc.wantWarns > 0 {
				logs = map[slog.Level]uint{slog.LevelWarn: tc.wantWarns}
			}
			h.AssertLevels(t, logs)
		})
	}
}

func TestRunDeduplicates(t *testing.T) {
	t.Parallel()
	h := testutils.NewMockHandler(slog.LevelWarn)
	l := slog.New(&h)

	source := &listSource{
		systems: []hardware.System{buildSystem("repeat", 1000, 1.0)},
		loop:    true,
	}
	reporter := &recordingReporter{}

	cfg := testConfig()
	cfg.BatchSize = 4
	cfg.Rounds = 3

	s, err := search.New(l, source, reporter, cfg)
	require.NoError(t, err, "Setup: New should not fail")
	require.NoError(t, s.Run(context.Background()), "Run should complete its rounds")

	require.Equal(t, []int{0, 1, 2}, reporter.roundNumbers(), "Reporter should see every round in order")
	for i := range 3 {
		board := reporter.board(i)
		require.Len(t, board, 1, "The same system drawn again should be admitted only once")
		assert.Equal(t, "repeat", board[0].System.Model, "The single entry should be the repeated system")
		assert.Equal(t, 0, board[0].Rank, "A lone entry ranks first")
	}
}

func TestRunReadmitsEvictedSystems(t *testing.T) {
	t.Parallel()
	h := testutils.NewMockHandler(slog.LevelWarn)
	l := slog.New(&h)

	low := buildSystem("low", 4000, 1.0)
	mid := buildSystem("mid", 2000, 1.0)
	high := buildSystem("high", 1000, 1.0)

	// Round one draws all three and evicts low; round two draws low again.
	// Eviction must have forgotten it, and the second admission must lose
	// the ranking the same way the first did.
	source := &listSource{systems: []hardware.System{low, mid, high, low}}
	reporter := &recordingReporter{}

	cfg := testConfig()
	cfg.BatchSize = 3
	cfg.LeaderboardSize = 2
	cfg.Rounds = 2

	s, err := search.New(l, source, reporter, cfg)
	require.NoError(t, err, "Setup: New should not fail")
	require.NoError(t, s.Run(context.Background()), "Run should complete its rounds")

	require.Equal(t, 2, reporter.count(), "Reporter should be called once per round")
	for i := range 2 {
		board := reporter.board(i)
		require.Len(t, board, 2, "Leaderboard should hold its two slots")
		assert.Equal(t, "mid", board[0].System.Model, "The cheaper systems should outrank the expensive one")
		assert.Equal(t, "high", board[1].System.Model, "The cheapest system should rank best")
	}
	h.AssertLevels(t, nil)
}

func TestRunWorkers(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		workers int
		draws   int
	}{
		"Several workers merge a full batch": {
			workers: 4,
			draws:   10,
		},
		"More workers than draws": {
			workers: 8,
			draws:   3,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			h := testutils.NewMockHandler(slog.LevelWarn)
			l := slog.New(&h)

			var systems []hardware.System
			var wantModels []string
			for i := range tc.draws {
				model := "w" + string(rune('0'+i))
				systems = append(systems, buildSystem(model, 1000+float64(i)*200, 2.0))
				wantModels = append(wantModels, model)
			}
			slices.Sort(wantModels)

			source := &listSource{systems: systems}
			reporter := &recordingReporter{}

			cfg := testConfig()
			cfg.BatchSize = tc.draws
			cfg.LeaderboardSize = tc.draws
			cfg.Workers = tc.workers

			s, err := search.New(l, source, reporter, cfg)
			require.NoError(t, err, "Setup: New should not fail")
			require.NoError(t, s.Run(context.Background()), "Run should complete its single round")

			entries := reporter.last()
			require.Len(t, entries, tc.draws, "Every drawn system should survive the merge")

			var models []string
			for _, e := range entries {
				models = append(models, e.System.Model)
			}
			slices.Sort(models)
			assert.Equal(t, wantModels, models, "Workers should each contribute their partition")

			assert.True(t, slices.IsSortedFunc(entries, func(a, b search.Entry) int {
				return cmp.Compare(a.TurboRatio, b.TurboRatio)
			}), "The merged leaderboard should still rank ascending")
			h.AssertLevels(t, nil)
		})
	}
}

func TestRunReporterFailures(t *testing.T) {
	t.Parallel()
	h := testutils.NewMockHandler(slog.LevelWarn)
	l := slog.New(&h)

	source := &listSource{
		systems: []hardware.System{buildSystem("survivor", 1000, 1.0)},
		loop:    true,
	}
	reporter := &recordingReporter{err: errors.New("disk full")}

	cfg := testConfig()
	cfg.BatchSize = 2
	cfg.Rounds = 3

	s, err := search.New(l, source, reporter, cfg)
	require.NoError(t, err, "Setup: New should not fail")
	require.NoError(t, s.Run(context.Background()), "A failing reporter should not abort the search")

	assert.Equal(t, 3, reporter.count(), "Reporter should still be tried every round")
	h.AssertLevels(t, map[slog.Level]uint{slog.LevelError: 3})
}

func TestRunCatalogRefresh(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		closed bool

		wantApplied int
	}{
		"A change signal applies the swap once": {
			wantApplied: 1,
		},
		"A closed channel stops refreshing": {
			closed: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			h := testutils.NewMockHandler(slog.LevelWarn)
			l := slog.New(&h)

			changes := make(chan struct{}, 1)
			if tc.closed {
				close(changes)
			} else {
				changes <- struct{}{}
			}

			applied := 0
			source := &listSource{
				systems: []hardware.System{buildSystem("steady", 1000, 1.0)},
				loop:    true,
			}
			reporter := &recordingReporter{}

			cfg := testConfig()
			cfg.BatchSize = 1
			cfg.Rounds = 2

			s, err := search.New(l, source, reporter, cfg,
				search.WithCatalogRefresh(changes, func() { applied++ }))
			require.NoError(t, err, "Setup: New should not fail")
			require.NoError(t, s.Run(context.Background()), "Run should complete its rounds")

			assert.Equal(t, tc.wantApplied, applied, "Catalog swaps should follow the change signals")
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	h := testutils.NewMockHandler(slog.LevelWarn)
	l := slog.New(&h)

	source := &listSource{
		systems: []hardware.System{buildSystem("steady", 1000, 1.0)},
		loop:    true,
	}
	reporter := &recordingReporter{}

	cfg := testConfig()
	cfg.BatchSize = 5
	cfg.Rounds = 0

	s, err := search.New(l, source, reporter, cfg)
	require.NoError(t, err, "Setup: New should not fail")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return reporter.count() >= 2 },
		5*time.Second, 10*time.Millisecond, "An unbounded run should keep producing rounds")
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled, "Run should return the context error")
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

// buildSystem assembles a valid standalone system with 16 cores, 32 threads,
// two FMA units per core and 128GiB of memory, which is exactly 4GiB per
// thread. The whole price sits on the chassis and the AVX-512 base clock is
// half the turbo clock, keeping expected metrics easy to read.
func buildSystem(model string, price, turboGHz float64) hardware.System {
	base := turboGHz / 2
	fma := uint8(2)

	return hardware.System{
		Manufacturer: "Supermicro",
		Model:        model,
		Price:        price,
		BladeType:    hardware.BladeNone,
		MaxBlades:    1,
		Blades: []hardware.Blade{{
			Manufacturer: "Supermicro",
			Model:        model + "-node",
			Type:         hardware.BladeNone,
			FormFactors:  []hardware.MotherboardFormFactor{hardware.X11OPi},
			Motherboard: &hardware.Motherboard{
				Manufacturer:     "Supermicro",
				Model:            model + "-board",
				FormFactor:       hardware.X11OPi,
				ProcessorSupport: hardware.XeonW2066,
				Sockets:          1,
				MemorySlots:      8,
				DIMMsPerChannel:  2,
				Processors: []hardware.Processor{{
					Manufacturer:    "Intel",
					Model:           model + "-cpu",
					ClockRate:       2.0,
					AVX512Rate:      &base,
					AVX512TurboRate: &turboGHz,
					Cores:           16,
					Threads:         32,
					AVX512FMAUnits:  &fma,
					Type:            hardware.XeonW2066,
					Scalability:     1,
					MemorySupport:   hardware.DDR42667,
					MemoryChannels:  4,
				}},
				Memory: []hardware.Memory{{
					Manufacturer: "Samsung",
					Model:        model + "-dimm",
					Type:         hardware.DDR42667,
					Size:         128 * 1024 * 1024 * 1024,
				}},
			},
		}},
	}
}

func testConfig() search.Config {
	return search.Config{
		BatchSize:         4,
		LeaderboardSize:   5,
		MaxPrice:          35000,
		MinBytesPerThread: 4 * 1024 * 1024 * 1024,
		Workers:           1,
		Rounds:            1,
		Seed:              1,
	}
}

// listSource serves systems in order, then reports empty draws, or loops
// from the start when loop is set.
type listSource struct {
	mu      sync.Mutex
	systems []hardware.System
	next    int
	loop    bool
}

func (s *listSource) RandomSystem() (hardware.System, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.systems) == 0 {
		return hardware.System{}, false
	}
	if s.next >= len(s.systems) {
		if !s.loop {
			return hardware.System{}, false
		}
		s.next = 0
	}
	sys := s.systems[s.next]
	s.next++
	return sys, true
}

// recordingReporter keeps a copy of every reported leaderboard and returns
// err from every call.
type recordingReporter struct {
	mu     sync.Mutex
	err    error
	rounds []int
	boards [][]search.Entry
}

func (r *recordingReporter) WriteRound(round int, entries []search.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, round)
	r.boards = append(r.boards, slices.Clone(entries))
	return r.err
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boards)
}

func (r *recordingReporter) roundNumbers() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.rounds)
}

func (r *recordingReporter) board(i int) []search.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.boards[i]
}

func (r *recordingReporter) last() []search.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.boards) == 0 {
		return nil
	}
	return r.boards[len(r.boards)-1]
}
