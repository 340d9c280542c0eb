// Package generator composes random candidate systems from a catalog.
//
// A draw walks the composition top down: chassis, blade model, motherboard,
// processor model, DIMM model and count, picking uniformly among the
// catalog parts compatible with what is already assembled. Some picks have
// no compatible continuation; such draws return ok=false and cost the
// caller nothing but the attempt.
package generator

import (
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/serverscout/serverscout/internal/catalog"
	"github.com/serverscout/serverscout/internal/hardware"
)

// Generator draws random systems from a catalog. It is safe for
// concurrent use; draws are serialized, so a fixed seed yields a fixed
// draw sequence as long as the catalog does not change.
type Generator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	catalog catalog.Catalog

	log *slog.Logger
}

type options struct {
	source rand.Source
}

// Options is the variadic options available to New.
type Options func(*options)

// WithSeed makes the generator deterministic for the given seed.
func WithSeed(seed uint64) Options {
	return func(o *options) {
		o.source = rand.NewPCG(seed, seed)
	}
}

// New returns a generator drawing from the given catalog, randomly seeded
// unless WithSeed is given.
func New(l *slog.Logger, c catalog.Catalog, args ...Options) *Generator {
	opts := options{
		source: rand.NewPCG(rand.Uint64(), rand.Uint64()),
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Generator{
		rng:     rand.New(opts.source),
		catalog: c,
		log:     l,
	}
}

// SetCatalog swaps the catalog future draws compose from.
func (g *Generator) SetCatalog(c catalog.Catalog) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.catalog = c
	g.log.Debug("Generator catalog swapped", "chassis", len(c.Chassis), "processors", len(c.Processors))
}

// RandomSystem returns one fully assembled, valid system, or ok=false
// when the draw reaches a pick with no compatible continuation. It never
// returns a partially built system.
//
// Bladed chassis are filled with 1 to MaxBlades copies of one composed
// blade configuration. Mixed-blade assemblies would mostly rank as
// permutation twins of each other, so the generator does not draw them.
func (g *Generator) RandomSystem() (hardware.System, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c := g.catalog
	if len(c.Chassis) == 0 {
		return hardware.System{}, false
	}
	sys := c.Chassis[g.rng.IntN(len(c.Chassis))]

	blade, ok := g.composeBlade(c, sys.BladeType)
	if !ok {
		return hardware.System{}, false
	}

	count := 1
	if sys.BladeType != hardware.BladeNone {
		count = 1 + g.rng.IntN(int(sys.MaxBlades))
	}

	sys.Blades = make([]hardware.Blade, count)
	for i := range sys.Blades {
		b := blade
		mb := *blade.Motherboard
		b.Motherboard = &mb
		sys.Blades[i] = b
	}
	return sys, true
}

// composeBlade assembles one blade of the given type: a blade model, a
// motherboard it can mount, a full set of identical processors and a
// channel-balanced set of identical DIMMs.
func (g *Generator) composeBlade(c catalog.Catalog, typ hardware.BladeType) (hardware.Blade, bool) {
	blade, ok := pick(g.rng, c.Blades, func(b hardware.Blade) bool {
		return b.Type == typ
	})
	if !ok {
		return hardware.Blade{}, false
	}

	board, ok := pick(g.rng, c.Motherboards, func(m hardware.Motherboard) bool {
		return slices.Contains(blade.FormFactors, m.FormFactor)
	})
	if !ok {
		return hardware.Blade{}, false
	}

	proc, ok := pick(g.rng, c.Processors, func(p hardware.Processor) bool {
		return p.Type == board.ProcessorSupport && p.Scalability >= board.Sockets
	})
	if !ok {
		return hardware.Blade{}, false
	}

	dimm, ok := pick(g.rng, c.Memory, func(m hardware.Memory) bool {
		return m.Type.Class() == proc.MemorySupport.Class() && m.Type <= proc.MemorySupport
	})
	if !ok {
		return hardware.Blade{}, false
	}

	// DIMMs go in channel-balanced waves: every channel holds the same
	// number of DIMMs, capped by the board's slots and per-channel depth.
	channels := int(board.Sockets) * int(proc.MemoryChannels)
	waves := min(int(board.DIMMsPerChannel), int(board.MemorySlots)/channels)
	if waves == 0 {
		return hardware.Blade{}, false
	}

	board.Processors = make([]hardware.Processor, board.Sockets)
	for i := range board.Processors {
		board.Processors[i] = proc
	}
	board.Memory = make([]hardware.Memory, channels*(1+g.rng.IntN(waves)))
	for i := range board.Memory {
		board.Memory[i] = dimm
	}

	blade.Motherboard = &board
	return blade, true
}

// pick returns a uniformly chosen element of parts satisfying fits,
// sampled in one pass.
func pick[T any](rng *rand.Rand, parts []T, fits func(T) bool) (chosen T, ok bool) {
	n := 0
	for _, p := range parts {
		if !fits(p) {
			continue
		}
		n++
		if rng.IntN(n) == 0 {
			chosen = p
			ok = true
		}
	}
	return chosen, ok
}
