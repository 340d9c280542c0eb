// Package hardware defines the immutable component model for rack servers
// and the derived metrics the search ranks assemblies by.
//
// Components form a strict ownership tree, System over Blade over
// Motherboard over Processor and Memory, with no back references. Values
// are never mutated once assembled; every metric is recomputed from the
// tree on demand. Closed part vocabularies are typed strings (or speeds)
// validated at the catalog boundary and again by System.Validate.
package hardware

import (
	"fmt"
	"slices"
)

// System is a complete machine: a chassis holding one or more assembled
// blades. A standalone server is a System of type BladeNone holding exactly
// one unit.
type System struct {
	// Manufacturer of the hardware.
	Manufacturer string `toml:"manufacturer" yaml:"manufacturer"`

	// Model is the part name or model number.
	Model string `toml:"model" yaml:"model"`

	// Price in USD, for the bare chassis.
	Price float64 `toml:"price" yaml:"price"`

	// BladeType is the one blade type this chassis accepts.
	BladeType BladeType `toml:"blade_type" yaml:"blade_type"`

	// MaxBlades is the number of blade slots in the chassis.
	MaxBlades uint8 `toml:"max_blades" yaml:"max_blades"`

	// Blades slotted into the chassis.
	Blades []Blade `toml:"blades,omitempty" yaml:"blades,omitempty"`
}

// TotalPrice is the price of the assembled system: chassis, blades, boards,
// processors and DIMMs summed.
func (s System) TotalPrice() float64 {
	price := s.Price

	for _, b := range s.Blades {
		price += b.Price

		if b.Motherboard == nil {
			continue
		}
		price += b.Motherboard.Price

		for _, p := range b.Motherboard.Processors {
			price += p.Price
		}
		for _, m := range b.Motherboard.Memory {
			price += m.Price
		}
	}

	return price
}

// TotalMemoryBytes is the installed RAM in bytes.
func (s System) TotalMemoryBytes() uint64 {
	var acc uint64
	for _, b := range s.Blades {
		if b.Motherboard == nil {
			continue
		}
		for _, m := range b.Motherboard.Memory {
			acc += uint64(m.Size)
		}
	}
	return acc
}

// TotalCores is the number of physical cores across all processors.
func (s System) TotalCores() uint32 {
	var acc uint32
	for _, b := range s.Blades {
		if b.Motherboard == nil {
			continue
		}
		for _, p := range b.Motherboard.Processors {
			acc += p.Cores
		}
	}
	return acc
}

// TotalThreads is the number of hardware threads across all processors.
func (s System) TotalThreads() uint32 {
	var acc uint32
	for _, b := range s.Blades {
		if b.Motherboard == nil {
			continue
		}
		for _, p := range b.Motherboard.Processors {
			acc += p.Threads
		}
	}
	return acc
}

// AggregateClock is the core-weighted sum of base clocks in GHz, a rough
// scalar throughput figure.
func (s System) AggregateClock() float64 {
	acc := 0.0
	for _, b := range s.Blades {
		if b.Motherboard == nil {
			continue
		}
		for _, p := range b.Motherboard.Processors {
			acc += p.ClockRate * float64(p.Cores)
		}
	}
	return acc
}

// BaseFMAGflops is the peak single-precision AVX-512 FMA throughput in
// GFLOPS at sustained AVX-512 clocks. Processors without published AVX-512
// data contribute zero.
func (s System) BaseFMAGflops() float64 {
	acc := 0.0
	for _, b := range s.Blades {
		if b.Motherboard == nil {
			continue
		}
		for _, p := range b.Motherboard.Processors {
			acc += p.baseFMAGflops()
		}
	}
	return acc
}

// TurboFMAGflops is like BaseFMAGflops at all-core AVX-512 turbo clocks.
func (s System) TurboFMAGflops() float64 {
	acc := 0.0
	for _, b := range s.Blades {
		if b.Motherboard == nil {
			continue
		}
		for _, p := range b.Motherboard.Processors {
			acc += p.turboFMAGflops()
		}
	}
	return acc
}

// Validate checks the invariants of a fully assembled system: a known blade
// type, between one and MaxBlades blades all of the chassis type, and every
// blade carrying a valid populated motherboard. Candidates that fail are
// rejected by the search rather than ranked with misleading metrics.
func (s System) Validate() error {
	if !s.BladeType.Valid() {
		return fmt.Errorf("unknown blade type %q", s.BladeType)
	}

	if len(s.Blades) == 0 {
		return fmt.Errorf("system %q has no blades", s.Model)
	}
	if len(s.Blades) > int(s.MaxBlades) {
		return fmt.Errorf("system %q has %d blades for %d slots", s.Model, len(s.Blades), s.MaxBlades)
	}

	for _, b := range s.Blades {
		if b.Type != s.BladeType {
			return fmt.Errorf("blade %q is type %q, system %q takes %q", b.Model, b.Type, s.Model, s.BladeType)
		}
		if err := b.validate(); err != nil {
			return err
		}
	}

	return nil
}

// Equal reports whether two systems are assembled from the same parts at
// the same prices. Two systems differing only in assembly order are not
// equal; the generator builds in catalog order, so equal part choices
// produce equal trees.
func (s System) Equal(o System) bool {
	if s.Manufacturer != o.Manufacturer ||
		s.Model != o.Model ||
		s.Price != o.Price ||
		s.BladeType != o.BladeType ||
		s.MaxBlades != o.MaxBlades {
		return false
	}
	return slices.EqualFunc(s.Blades, o.Blades, Blade.Equal)
}
