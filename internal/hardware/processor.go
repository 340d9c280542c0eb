package hardware

import "slices"

// ProcessorType identifies the processor family together with its socket or
// BGA layout. A processor fits a motherboard only if the board supports the
// exact same type, so the tag has to be fine-grained enough to capture both
// firmware compatibility and the physical package.
type ProcessorType string

// Known processor types.
const (
	XeonScalable   ProcessorType = "XeonScalable-FCLGA3647"
	XeonScalableV2 ProcessorType = "XeonScalableV2-FCLGA3647"
	XeonW3647      ProcessorType = "XeonW-FCLGA3647"
	XeonW2066      ProcessorType = "XeonW-FCLGA2066"
	XeonD2518      ProcessorType = "XeonD-FCBGA2518"
)

// KnownProcessorTypes lists every processor type the catalog accepts.
var KnownProcessorTypes = []ProcessorType{
	XeonScalable,
	XeonScalableV2,
	XeonW3647,
	XeonW2066,
	XeonD2518,
}

// Valid reports whether t is one of the known processor types.
func (t ProcessorType) Valid() bool {
	return slices.Contains(KnownProcessorTypes, t)
}

const (
	// avx512Lanes is the number of single-precision lanes in a 512 bit vector.
	avx512Lanes = 16

	// fmaOpsPerLane counts a fused multiply-add as two floating point operations.
	fmaOpsPerLane = 2
)

// Processor is a single CPU as sold, before it is socketed anywhere.
//
// The four pointer fields model data sheets that genuinely omit a value:
// not every part publishes all-core turbo or AVX-512 rates, and parts
// without AVX-512 FMA units have no rate to publish at all. An absent field
// contributes zero to the throughput formulas and nothing else ever reads
// it, so callers never need to substitute defaults themselves.
type Processor struct {
	// Manufacturer of the hardware.
	Manufacturer string `toml:"manufacturer" yaml:"manufacturer"`

	// Model is the part name or model number.
	Model string `toml:"model" yaml:"model"`

	// Price in USD.
	Price float64 `toml:"price" yaml:"price"`

	// ClockRate is the base clock in GHz.
	ClockRate float64 `toml:"clock_rate" yaml:"clock_rate"`

	// TurboRate is the maximum all-core turbo in GHz, if published.
	TurboRate *float64 `toml:"turbo_rate,omitempty" yaml:"turbo_rate,omitempty"`

	// AVX512Rate is the minimum AVX-512 clock in GHz, if published.
	AVX512Rate *float64 `toml:"avx512_rate,omitempty" yaml:"avx512_rate,omitempty"`

	// AVX512TurboRate is the maximum all-core AVX-512 turbo in GHz, if published.
	AVX512TurboRate *float64 `toml:"avx512_turbo_rate,omitempty" yaml:"avx512_turbo_rate,omitempty"`

	// Cores is the number of physical cores.
	Cores uint32 `toml:"cores" yaml:"cores"`

	// Threads is the number of hardware threads. At least Cores.
	Threads uint32 `toml:"threads" yaml:"threads"`

	// AVX512FMAUnits is the number of AVX-512 FMA units per core, if any.
	AVX512FMAUnits *uint8 `toml:"avx512_fma_units,omitempty" yaml:"avx512_fma_units,omitempty"`

	// Type decides which motherboards can socket this processor.
	Type ProcessorType `toml:"type" yaml:"type"`

	// Scalability is the largest number of these processors that can share
	// a board, given the board supports it. One of 1, 2, 4 or 8.
	Scalability uint8 `toml:"scalability" yaml:"scalability"`

	// MemorySupport is the fastest memory type this processor drives.
	MemorySupport MemoryType `toml:"memory_support" yaml:"memory_support"`

	// MemoryChannels is the number of memory channels per processor.
	MemoryChannels uint8 `toml:"memory_channels" yaml:"memory_channels"`
}

// baseFMAGflops is the peak single-precision AVX-512 FMA throughput of one
// processor in GFLOPS at the sustained base AVX-512 clock.
func (p Processor) baseFMAGflops() float64 {
	return float64(p.Cores) * deref(p.AVX512Rate) * avx512Lanes * fmaOpsPerLane * float64(deref(p.AVX512FMAUnits))
}

// turboFMAGflops is like baseFMAGflops at the all-core AVX-512 turbo clock.
func (p Processor) turboFMAGflops() float64 {
	return float64(p.Cores) * deref(p.AVX512TurboRate) * avx512Lanes * fmaOpsPerLane * float64(deref(p.AVX512FMAUnits))
}

// Equal reports whether two processors are the same part at the same price.
func (p Processor) Equal(o Processor) bool {
	return p.Manufacturer == o.Manufacturer &&
		p.Model == o.Model &&
		p.Price == o.Price &&
		p.ClockRate == o.ClockRate &&
		eqPtr(p.TurboRate, o.TurboRate) &&
		eqPtr(p.AVX512Rate, o.AVX512Rate) &&
		eqPtr(p.AVX512TurboRate, o.AVX512TurboRate) &&
		p.Cores == o.Cores &&
		p.Threads == o.Threads &&
		eqPtr(p.AVX512FMAUnits, o.AVX512FMAUnits) &&
		p.Type == o.Type &&
		p.Scalability == o.Scalability &&
		p.MemorySupport == o.MemorySupport &&
		p.MemoryChannels == o.MemoryChannels
}

// deref returns the value v points to, or the zero value when v is nil.
func deref[T int | uint8 | float64](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// eqPtr compares two optional values, treating nil as distinct from any
// present value.
func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
