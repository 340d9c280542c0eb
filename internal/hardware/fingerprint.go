package hardware

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
)

// Fingerprint returns a 64-bit FNV-1a digest over a canonical walk of the
// assembled tree. Equal systems always fingerprint identically, so the
// search can index its seen set by fingerprint and fall back to Equal only
// on collision.
func (s System) Fingerprint() uint64 {
	h := fnv.New64a()
	hashSystem(h, s)
	return h.Sum64()
}

// The walk writes every field in declaration order, length-prefixing
// strings and tagging optionals with a presence byte so that field
// boundaries can never be confused.

func hashSystem(h hash.Hash64, s System) {
	hashString(h, s.Manufacturer)
	hashString(h, s.Model)
	hashFloat(h, s.Price)
	hashString(h, string(s.BladeType))
	hashUint(h, uint64(s.MaxBlades))

	hashUint(h, uint64(len(s.Blades)))
	for _, b := range s.Blades {
		hashBlade(h, b)
	}
}

func hashBlade(h hash.Hash64, b Blade) {
	hashString(h, b.Manufacturer)
	hashString(h, b.Model)
	hashFloat(h, b.Price)
	hashString(h, string(b.Type))

	hashUint(h, uint64(len(b.FormFactors)))
	for _, f := range b.FormFactors {
		hashString(h, string(f))
	}

	if b.Motherboard == nil {
		h.Write([]byte{0})
		return
	}
	h.Write([]byte{1})
	hashMotherboard(h, *b.Motherboard)
}

func hashMotherboard(h hash.Hash64, m Motherboard) {
	hashString(h, m.Manufacturer)
	hashString(h, m.Model)
	hashFloat(h, m.Price)
	hashString(h, string(m.FormFactor))
	hashString(h, string(m.ProcessorSupport))
	hashUint(h, uint64(m.Sockets))
	hashUint(h, uint64(m.MemorySlots))
	hashUint(h, uint64(m.DIMMsPerChannel))

	hashUint(h, uint64(len(m.Processors)))
	for _, p := range m.Processors {
		hashProcessor(h, p)
	}

	hashUint(h, uint64(len(m.Memory)))
	for _, mem := range m.Memory {
		hashMemory(h, mem)
	}
}

func hashProcessor(h hash.Hash64, p Processor) {
	hashString(h, p.Manufacturer)
	hashString(h, p.Model)
	hashFloat(h, p.Price)
	hashFloat(h, p.ClockRate)
	hashFloatPtr(h, p.TurboRate)
	hashFloatPtr(h, p.AVX512Rate)
	hashFloatPtr(h, p.AVX512TurboRate)
	hashUint(h, uint64(p.Cores))
	hashUint(h, uint64(p.Threads))
	hashUintPtr(h, p.AVX512FMAUnits)
	hashString(h, string(p.Type))
	hashUint(h, uint64(p.Scalability))
	hashUint(h, uint64(p.MemorySupport))
	hashUint(h, uint64(p.MemoryChannels))
}

func hashMemory(h hash.Hash64, m Memory) {
	hashString(h, m.Manufacturer)
	hashString(h, m.Model)
	hashFloat(h, m.Price)
	hashUint(h, uint64(m.Type))
	hashUint(h, uint64(m.Size))
}

func hashString(h hash.Hash64, s string) {
	hashUint(h, uint64(len(s)))
	h.Write([]byte(s))
}

func hashUint(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func hashFloat(h hash.Hash64, v float64) {
	hashUint(h, math.Float64bits(v))
}

func hashFloatPtr(h hash.Hash64, v *float64) {
	if v == nil {
		h.Write([]byte{0})
		return
	}
	h.Write([]byte{1})
	hashFloat(h, *v)
}

func hashUintPtr(h hash.Hash64, v *uint8) {
	if v == nil {
		h.Write([]byte{0})
		return
	}
	h.Write([]byte{1, *v})
}
