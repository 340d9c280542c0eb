// Package search is responsible for the sampling loop at the heart of the
// tool: draw candidate systems from a source, filter them for feasibility,
// and carry a bounded leaderboard of the best price performers from round
// to round.
package search

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/serverscout/serverscout/internal/constants"
	"github.com/serverscout/serverscout/internal/hardware"
)

// Source produces assembled candidate systems. Implementations must be safe
// for concurrent use when the search runs more than one worker.
type Source interface {
	// RandomSystem returns one fully assembled candidate, or ok=false when
	// this draw yields nothing. It never returns a partially built system.
	RandomSystem() (sys hardware.System, ok bool)
}

// Reporter consumes the ranked leaderboard after every round, worst kept
// entry first. The slice belongs to the searcher; implementations must not
// modify it or hold on to it past the call.
type Reporter interface {
	WriteRound(round int, entries []Entry) error
}

// Config holds the tunables of a search run. The zero value is usable:
// Sanitize replaces anything unusable with the defaults in constants.
type Config struct {
	// BatchSize is the number of candidate draws per round.
	BatchSize int

	// LeaderboardSize is the number of top systems kept between rounds.
	LeaderboardSize int

	// MaxPrice is the feasibility ceiling on total system price, in USD.
	MaxPrice float64

	// MinBytesPerThread is the feasibility floor on installed memory per
	// hardware thread.
	MinBytesPerThread uint64

	// Workers is the number of goroutines sampling each round.
	Workers int

	// Rounds bounds the run. 0 runs until the context is canceled.
	Rounds int

	// Seed seeds the candidate source. 0 draws a random seed.
	Seed uint64
}

// Sanitize replaces config values that would make a run impossible with
// their defaults, logging each substitution. It may safely be called more
// than once.
func (c *Config) Sanitize(l *slog.Logger) {
	if c.BatchSize <= 0 {
		c.BatchSize = constants.DefaultBatchSize
		l.Info("No usable batch size provided, defaulting", "batchSize", c.BatchSize)
	}
	if c.LeaderboardSize <= 0 {
		c.LeaderboardSize = constants.DefaultLeaderboardSize
		l.Info("No usable leaderboard size provided, defaulting", "leaderboardSize", c.LeaderboardSize)
	}
	if c.MaxPrice <= 0 || math.IsNaN(c.MaxPrice) {
		c.MaxPrice = constants.DefaultMaxPrice
		l.Info("No usable price ceiling provided, defaulting", "maxPrice", c.MaxPrice)
	}
	if c.MinBytesPerThread == 0 {
		c.MinBytesPerThread = constants.DefaultMinBytesPerThread
		l.Info("No memory floor provided, defaulting", "minBytesPerThread", c.MinBytesPerThread)
	}
	if c.Workers <= 0 {
		c.Workers = constants.DefaultWorkers
		l.Info("No usable worker count provided, defaulting", "workers", c.Workers)
	}
	if c.Rounds < 0 {
		c.Rounds = 0
		l.Info("Negative round count provided, running until canceled")
	}
	if c.Seed == 0 {
		c.Seed = rand.Uint64()
		l.Info("No seed provided, generated one", "seed", c.Seed)
	}
}

// Entry is one leaderboard row: a system together with the metrics it was
// admitted under. Systems never change once assembled, so the metrics are
// computed exactly once.
type Entry struct {
	// Rank is the position in the reported leaderboard, 0 being the worst
	// kept entry.
	Rank int `yaml:"rank"`

	// Price is the total system price in USD.
	Price float64 `yaml:"price_usd"`

	// Memory is the installed RAM.
	Memory hardware.ByteSize `yaml:"memory"`

	// Cores and Threads count over all processors in the system.
	Cores   uint32 `yaml:"cores"`
	Threads uint32 `yaml:"threads"`

	// BaseGflops and TurboGflops are the AVX-512 FMA throughput figures.
	BaseGflops  float64 `yaml:"base_gflops"`
	TurboGflops float64 `yaml:"turbo_gflops"`

	// BaseRatio and TurboRatio are GFLOPS per dollar. TurboRatio is the
	// ranking key.
	BaseRatio  float64 `yaml:"base_gflops_per_usd"`
	TurboRatio float64 `yaml:"turbo_gflops_per_usd"`

	// System is the full assembled tree.
	System hardware.System `yaml:"system"`

	fingerprint uint64
}

func newEntry(sys hardware.System) Entry {
	price := sys.TotalPrice()
	base := sys.BaseFMAGflops()
	turbo := sys.TurboFMAGflops()

	return Entry{
		Price:       price,
		Memory:      hardware.ByteSize(sys.TotalMemoryBytes()),
		Cores:       sys.TotalCores(),
		Threads:     sys.TotalThreads(),
		BaseGflops:  base,
		TurboGflops: turbo,
		BaseRatio:   ratio(base, price),
		TurboRatio:  ratio(turbo, price),
		System:      sys,

		fingerprint: sys.Fingerprint(),
	}
}

// ratio is per-dollar throughput, defined for zero prices so the sort never
// sees a NaN.
func ratio(gflops, price float64) float64 {
	if price == 0 {
		if gflops == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return gflops / price
}

type options struct {
	runID   string
	changes <-chan struct{}
	apply   func()
}

// Options is the variadic options available to New.
type Options func(*options)

// WithRunID overrides the generated run identifier, letting a caller share
// one identifier between the searcher and its reporter.
func WithRunID(id string) Options {
	return func(o *options) {
		o.runID = id
	}
}

// WithCatalogRefresh makes the searcher call apply between rounds whenever
// changes signals, so long runs pick up catalog edits. Closing the channel
// stops further refreshes without stopping the search.
func WithCatalogRefresh(changes <-chan struct{}, apply func()) Options {
	return func(o *options) {
		o.changes = changes
		o.apply = apply
	}
}

// Searcher draws candidates from a source round after round, keeps the best
// price performers in a bounded pool, and hands each round's ranking to a
// reporter.
//
// A Searcher is not safe for concurrent use: Run owns all state until it
// returns.
type Searcher struct {
	source   Source
	reporter Reporter
	cfg      Config
	runID    string

	changes <-chan struct{}
	apply   func()

	pool  []Entry
	index map[uint64][]int

	log *slog.Logger
}

// New returns a Searcher ready to run.
//
// The config is sanitized. Sanitizing beforehand is safe and lets the
// caller see the effective values, the drawn seed in particular.
func New(l *slog.Logger, source Source, reporter Reporter, cfg Config, args ...Options) (*Searcher, error) {
	l.Debug("Creating new searcher")

	if source == nil {
		return nil, errors.New("candidate source cannot be nil")
	}
	if reporter == nil {
		return nil, errors.New("reporter cannot be nil")
	}

	opts := options{
		runID: uuid.NewString(),
	}
	for _, opt := range args {
		opt(&opts)
	}
	if opts.changes != nil && opts.apply == nil {
		return nil, errors.New("catalog refresh requires an apply callback")
	}

	cfg.Sanitize(l)

	return &Searcher{
		source:   source,
		reporter: reporter,
		cfg:      cfg,
		runID:    opts.runID,
		changes:  opts.changes,
		apply:    opts.apply,
		index:    make(map[uint64][]int),
		log:      l,
	}, nil
}

// RunID identifies this searcher's rounds in logs and reports.
func (s *Searcher) RunID() string {
	return s.runID
}

// Run executes search rounds until the configured round count completes,
// returning nil, or until ctx is canceled, returning the context error. The
// leaderboard carries over between rounds; a canceled round is abandoned
// without reporting.
func (s *Searcher) Run(ctx context.Context) error {
	s.log.Info("Search starting", "run", s.runID,
		"batchSize", s.cfg.BatchSize, "leaderboardSize", s.cfg.LeaderboardSize,
		"workers", s.cfg.Workers, "seed", s.cfg.Seed)

	for round := 0; s.cfg.Rounds == 0 || round < s.cfg.Rounds; round++ {
		if err := s.round(ctx, round); err != nil {
			s.log.Info("Search stopped", "run", s.runID, "completedRounds", round)
			return err
		}
		s.refresh()
	}

	s.log.Info("Search finished", "run", s.runID, "completedRounds", s.cfg.Rounds)
	return nil
}

// round draws one batch, folds the survivors into the pool and reports the
// new ranking. It returns an error only when ctx was canceled mid-batch.
func (s *Searcher) round(ctx context.Context, round int) error {
	start := time.Now()

	survivors := s.sample(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	admitted := 0
	for _, e := range survivors {
		if s.admit(e) {
			admitted++
		}
	}

	slices.SortStableFunc(s.pool, func(a, b Entry) int {
		return cmp.Compare(a.TurboRatio, b.TurboRatio)
	})
	if excess := len(s.pool) - s.cfg.LeaderboardSize; excess > 0 {
		s.pool = slices.Delete(s.pool, 0, excess)
	}
	s.rebuildIndex()
	for i := range s.pool {
		s.pool[i].Rank = i
	}

	s.log.Debug("Round complete", "run", s.runID, "round", round,
		"feasible", len(survivors), "admitted", admitted, "pool", len(s.pool),
		"duration", time.Since(start))

	if err := s.reporter.WriteRound(round, s.pool); err != nil {
		s.log.Error("Could not report round results", "run", s.runID, "round", round, "err", err)
	}
	return nil
}

// sample draws the full batch, partitioned over the configured workers.
// Each worker fills its own slot and the merge concatenates in worker
// order. Workers race on the shared source, so a multi-worker batch has no
// single draw order; a one-worker batch keeps plain draw order.
func (s *Searcher) sample(ctx context.Context) []Entry {
	workers := min(s.cfg.Workers, s.cfg.BatchSize)
	if workers == 1 {
		return s.drawN(ctx, s.cfg.BatchSize)
	}

	chunk := (s.cfg.BatchSize + workers - 1) / workers
	parts := make([][]Entry, workers)
	var wg sync.WaitGroup
	for w := range workers {
		n := min(chunk, s.cfg.BatchSize-w*chunk)
		if n <= 0 {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			parts[w] = s.drawN(ctx, n)
		}()
	}
	wg.Wait()

	var survivors []Entry
	for _, p := range parts {
		survivors = append(survivors, p...)
	}
	return survivors
}

func (s *Searcher) drawN(ctx context.Context, n int) []Entry {
	var kept []Entry
	for range n {
		if ctx.Err() != nil {
			break
		}
		e, ok := s.draw()
		if !ok {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// draw pulls one candidate and runs it through the feasibility filters:
// a contract check on the assembled tree, the memory density floor and the
// price ceiling.
func (s *Searcher) draw() (Entry, bool) {
	sys, ok := s.source.RandomSystem()
	if !ok {
		return Entry{}, false
	}
	if err := sys.Validate(); err != nil {
		s.log.Warn("Discarding invalid candidate", "run", s.runID, "err", err)
		return Entry{}, false
	}

	// Whole bytes per thread; zero threads can never meet the floor.
	threads := sys.TotalThreads()
	if threads == 0 {
		return Entry{}, false
	}
	if sys.TotalMemoryBytes()/uint64(threads) < s.cfg.MinBytesPerThread {
		return Entry{}, false
	}

	if sys.TotalPrice() > s.cfg.MaxPrice {
		return Entry{}, false
	}

	return newEntry(sys), true
}

// admit appends e to the pool unless an equal system is already in it.
// The fingerprint index narrows the candidates; Equal confirms, so a hash
// collision can never drop a genuinely new system.
func (s *Searcher) admit(e Entry) bool {
	for _, i := range s.index[e.fingerprint] {
		if s.pool[i].System.Equal(e.System) {
			return false
		}
	}
	s.index[e.fingerprint] = append(s.index[e.fingerprint], len(s.pool))
	s.pool = append(s.pool, e)
	return true
}

// rebuildIndex resyncs the fingerprint index after sorting and truncation
// moved pool entries around. Keeping the index strictly mirrored on the
// pool is what bounds memory: evicted systems are forgotten and may be
// admitted again later.
func (s *Searcher) rebuildIndex() {
	clear(s.index)
	for i, e := range s.pool {
		s.index[e.fingerprint] = append(s.index[e.fingerprint], i)
	}
}

// refresh applies at most one pending catalog change between rounds.
func (s *Searcher) refresh() {
	if s.changes == nil {
		return
	}
	select {
	case _, ok := <-s.changes:
		if !ok {
			s.log.Debug("Catalog change channel closed, no further refreshes", "run", s.runID)
			s.changes = nil
			return
		}
		s.apply()
		s.log.Info("Applied catalog change between rounds", "run", s.runID)
	default:
	}
}
