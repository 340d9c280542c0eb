package hardware

import (
	"fmt"
	"slices"
)

// BladeType identifies which chassis a blade slots into. BladeNone marks a
// self-contained unit, such as a complete 1U server, that is not a blade
// at all.
type BladeType string

// Known blade types.
const (
	BladeNone BladeType = "none"
	SBE614E   BladeType = "SBE614E"
	SBE610J   BladeType = "SBE610J"
)

// KnownBladeTypes lists every blade type the catalog accepts.
var KnownBladeTypes = []BladeType{BladeNone, SBE614E, SBE610J}

// Valid reports whether t is a known blade type.
func (t BladeType) Valid() bool {
	return slices.Contains(KnownBladeTypes, t)
}

// Blade is one unit of a larger blade server, or a complete standalone
// enclosure when Type is BladeNone. The catalog carries empty blades; the
// generator sockets a motherboard into them.
type Blade struct {
	// Manufacturer of the hardware.
	Manufacturer string `toml:"manufacturer" yaml:"manufacturer"`

	// Model is the part name or model number.
	Model string `toml:"model" yaml:"model"`

	// Price in USD, for the empty blade.
	Price float64 `toml:"price" yaml:"price"`

	// Type decides which chassis this blade slots into.
	Type BladeType `toml:"type" yaml:"type"`

	// FormFactors lists the motherboard form factors this blade can mount,
	// sorted and without duplicates.
	FormFactors []MotherboardFormFactor `toml:"form_factors" yaml:"form_factors"`

	// Motherboard socketed into the blade, if any.
	Motherboard *Motherboard `toml:"motherboard,omitempty" yaml:"motherboard,omitempty"`
}

// Equal reports whether two blades carry the same parts at the same prices.
func (b Blade) Equal(o Blade) bool {
	if b.Manufacturer != o.Manufacturer ||
		b.Model != o.Model ||
		b.Price != o.Price ||
		b.Type != o.Type {
		return false
	}

	if !slices.Equal(b.FormFactors, o.FormFactors) {
		return false
	}

	if b.Motherboard == nil || o.Motherboard == nil {
		return b.Motherboard == o.Motherboard
	}
	return b.Motherboard.Equal(*o.Motherboard)
}

// validate checks an assembled blade: known type, a socketed motherboard of
// a form factor the blade can mount, and a valid board below it.
func (b Blade) validate() error {
	if !b.Type.Valid() {
		return fmt.Errorf("unknown blade type %q", b.Type)
	}

	if b.Motherboard == nil {
		return fmt.Errorf("blade %q has no motherboard", b.Model)
	}
	if !slices.Contains(b.FormFactors, b.Motherboard.FormFactor) {
		return fmt.Errorf("blade %q cannot mount form factor %q", b.Model, b.Motherboard.FormFactor)
	}

	if err := b.Motherboard.validate(); err != nil {
		return fmt.Errorf("blade %q: %v", b.Model, err)
	}
	return nil
}
