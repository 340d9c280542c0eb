package hardware

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MemoryClass is a DRAM generation. Mixing classes in one machine is never
// possible, whatever the speeds involved.
type MemoryClass string

// DDR4 is the only memory class currently cataloged.
const DDR4 MemoryClass = "DDR4"

// KnownMemoryClasses lists every memory class the catalog accepts.
var KnownMemoryClasses = []MemoryClass{DDR4}

// Valid reports whether c is a known memory class.
func (c MemoryClass) Valid() bool {
	for _, k := range KnownMemoryClasses {
		if c == k {
			return true
		}
	}
	return false
}

// MemoryType is a memory class at a specific transfer rate. Its numeric
// value is the rate in MT/s, so ordinary comparisons order types by speed
// and Speed never needs a lookup table.
type MemoryType uint32

// Known memory types.
const (
	// DDR42133 is DDR4 at 2133 MT/s.
	DDR42133 MemoryType = 2133
	// DDR42400 is DDR4 at 2400 MT/s.
	DDR42400 MemoryType = 2400
	// DDR42667 is DDR4 at 2667 MT/s.
	DDR42667 MemoryType = 2667
	// DDR42933 is DDR4 at 2933 MT/s.
	DDR42933 MemoryType = 2933
)

// KnownMemoryTypes lists every memory type the catalog accepts, slowest
// first.
var KnownMemoryTypes = []MemoryType{DDR42133, DDR42400, DDR42667, DDR42933}

// Valid reports whether t is a known memory type.
func (t MemoryType) Valid() bool {
	return t.Class().Valid()
}

// Class returns the DRAM generation of this memory type, or the empty class
// when t is unknown.
func (t MemoryType) Class() MemoryClass {
	switch t {
	case DDR42133, DDR42400, DDR42667, DDR42933:
		return DDR4
	}
	return ""
}

// Speed returns the transfer rate in MT/s.
func (t MemoryType) Speed() uint32 {
	return uint32(t)
}

// String renders the type as class-speed, for example "DDR4-2933".
func (t MemoryType) String() string {
	return fmt.Sprintf("%s-%d", t.Class(), t.Speed())
}

// MarshalText implements encoding.TextMarshaler for catalog and report files.
func (t MemoryType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown memory type %d", t.Speed())
	}
	return []byte(t.String()), nil
}

// UnmarshalText parses the class-speed form produced by MarshalText.
func (t *MemoryType) UnmarshalText(text []byte) error {
	class, speed, ok := strings.Cut(string(text), "-")
	if !ok {
		return fmt.Errorf("invalid memory type %q: want class-speed, like DDR4-2933", text)
	}

	n, err := strconv.ParseUint(speed, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid memory type %q: %v", text, err)
	}

	parsed := MemoryType(n)
	if !parsed.Valid() || parsed.Class() != MemoryClass(class) {
		return fmt.Errorf("unknown memory type %q", text)
	}

	*t = parsed
	return nil
}

// UnmarshalYAML accepts the same class-speed form from YAML documents.
func (t *MemoryType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid memory type: %v", err)
	}
	return t.UnmarshalText([]byte(s))
}

// Memory is a single DIMM as sold.
type Memory struct {
	// Manufacturer of the hardware.
	Manufacturer string `toml:"manufacturer" yaml:"manufacturer"`

	// Model is the part name or model number.
	Model string `toml:"model" yaml:"model"`

	// Price in USD.
	Price float64 `toml:"price" yaml:"price"`

	// Type is the memory class and speed of the DIMM.
	Type MemoryType `toml:"type" yaml:"type"`

	// Size of the DIMM in bytes.
	Size ByteSize `toml:"size" yaml:"size"`
}

// Equal reports whether two DIMMs are the same part at the same price.
func (m Memory) Equal(o Memory) bool {
	return m == o
}
