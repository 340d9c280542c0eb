package hardware

import (
	"fmt"
	"slices"
)

// MotherboardFormFactor identifies the physical board layout, which decides
// the blades or chassis a board can be mounted in.
type MotherboardFormFactor string

// Known motherboard form factors.
const (
	X11OPi  MotherboardFormFactor = "X11OPi"
	B11SRE  MotherboardFormFactor = "B11SRE"
	B11SPE  MotherboardFormFactor = "B11SPE"
	B11DPE  MotherboardFormFactor = "B11DPE"
	X11QPHp MotherboardFormFactor = "X11QPHp"
)

// KnownMotherboardFormFactors lists every form factor the catalog accepts.
var KnownMotherboardFormFactors = []MotherboardFormFactor{
	X11OPi,
	B11SRE,
	B11SPE,
	B11DPE,
	X11QPHp,
}

// Valid reports whether f is a known form factor.
func (f MotherboardFormFactor) Valid() bool {
	return slices.Contains(KnownMotherboardFormFactors, f)
}

// Motherboard is a board, optionally populated with processors and memory.
// The catalog carries bare boards; the generator returns populated ones.
type Motherboard struct {
	// Manufacturer of the hardware.
	Manufacturer string `toml:"manufacturer" yaml:"manufacturer"`

	// Model is the part name or model number.
	Model string `toml:"model" yaml:"model"`

	// Price in USD, for the bare board.
	Price float64 `toml:"price" yaml:"price"`

	// FormFactor decides which blades can mount this board.
	FormFactor MotherboardFormFactor `toml:"form_factor" yaml:"form_factor"`

	// ProcessorSupport is the one processor type this board sockets.
	ProcessorSupport ProcessorType `toml:"processor_support" yaml:"processor_support"`

	// Sockets is the number of processor sockets.
	Sockets uint8 `toml:"sockets" yaml:"sockets"`

	// MemorySlots is the number of DIMM slots, distributed uniformly
	// between the sockets.
	MemorySlots uint8 `toml:"memory_slots" yaml:"memory_slots"`

	// DIMMsPerChannel is the number of DIMM slots wired to each memory
	// channel.
	DIMMsPerChannel uint8 `toml:"dimms_per_channel" yaml:"dimms_per_channel"`

	// Processors socketed into the board. All sockets carry the same model.
	Processors []Processor `toml:"processors,omitempty" yaml:"processors,omitempty"`

	// Memory holds the DIMMs populated into the board.
	Memory []Memory `toml:"memory,omitempty" yaml:"memory,omitempty"`
}

// Equal reports whether two boards carry the same parts at the same prices.
func (m Motherboard) Equal(o Motherboard) bool {
	if m.Manufacturer != o.Manufacturer ||
		m.Model != o.Model ||
		m.Price != o.Price ||
		m.FormFactor != o.FormFactor ||
		m.ProcessorSupport != o.ProcessorSupport ||
		m.Sockets != o.Sockets ||
		m.MemorySlots != o.MemorySlots ||
		m.DIMMsPerChannel != o.DIMMsPerChannel {
		return false
	}

	if !slices.EqualFunc(m.Processors, o.Processors, Processor.Equal) {
		return false
	}
	return slices.EqualFunc(m.Memory, o.Memory, Memory.Equal)
}

// validate checks a populated board: known tags, socket and slot counts
// respected, homogeneous parts, and memory the processors can drive.
func (m Motherboard) validate() error {
	if !m.FormFactor.Valid() {
		return fmt.Errorf("unknown form factor %q", m.FormFactor)
	}
	if !m.ProcessorSupport.Valid() {
		return fmt.Errorf("unknown supported processor type %q", m.ProcessorSupport)
	}

	if len(m.Processors) == 0 {
		return fmt.Errorf("board %q has no processors", m.Model)
	}
	if len(m.Processors) > int(m.Sockets) {
		return fmt.Errorf("board %q has %d processors for %d sockets", m.Model, len(m.Processors), m.Sockets)
	}

	first := m.Processors[0]
	for _, p := range m.Processors {
		if p.Type != m.ProcessorSupport {
			return fmt.Errorf("processor %q is %q, board %q sockets %q", p.Model, p.Type, m.Model, m.ProcessorSupport)
		}
		if uint8(len(m.Processors)) > p.Scalability {
			return fmt.Errorf("processor %q scales to %d sockets, board %q has %d populated", p.Model, p.Scalability, m.Model, len(m.Processors))
		}
		if p.Threads < p.Cores {
			return fmt.Errorf("processor %q has fewer threads than cores", p.Model)
		}
		if !p.Equal(first) {
			return fmt.Errorf("board %q mixes processor models %q and %q", m.Model, first.Model, p.Model)
		}
	}

	if len(m.Memory) > int(m.MemorySlots) {
		return fmt.Errorf("board %q has %d DIMMs for %d slots", m.Model, len(m.Memory), m.MemorySlots)
	}
	for _, dimm := range m.Memory {
		if !dimm.Type.Valid() {
			return fmt.Errorf("unknown memory type %q on DIMM %q", dimm.Type, dimm.Model)
		}
		if dimm.Size == 0 {
			return fmt.Errorf("DIMM %q has zero size", dimm.Model)
		}
		if dimm.Type.Class() != first.MemorySupport.Class() {
			return fmt.Errorf("DIMM %q is %v, processor %q drives %v", dimm.Model, dimm.Type.Class(), first.Model, first.MemorySupport.Class())
		}
		if dimm.Type > first.MemorySupport {
			return fmt.Errorf("DIMM %q at %d MT/s outruns processor %q at %d MT/s", dimm.Model, dimm.Type.Speed(), first.Model, first.MemorySupport.Speed())
		}
		if !dimm.Equal(m.Memory[0]) {
			return fmt.Errorf("board %q mixes DIMM models %q and %q", m.Model, m.Memory[0].Model, dimm.Model)
		}
	}

	return nil
}
