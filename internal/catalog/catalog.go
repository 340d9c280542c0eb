// Package catalog loads the parts bin the generator draws from: TOML files
// describing processors, memory, motherboards, blades and chassis, with an
// optional INI file of per-model price overrides on top.
//
// All tag and compatibility validation happens here, at the data entry
// boundary. A catalog that loads is safe to compose from.
package catalog

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/serverscout/serverscout/internal/hardware"
	"github.com/ubuntu/decorate"
)

// Catalog file names inside a catalog directory.
const (
	ProcessorsFile   = "processors.toml"
	MemoryFile       = "memory.toml"
	MotherboardsFile = "motherboards.toml"
	BladesFile       = "blades.toml"
	ChassisFile      = "chassis.toml"

	// PriceOverridesFile is the optional INI file of per-model price overrides.
	PriceOverridesFile = "prices.ini"
)

// Catalog holds the validated parts available to compose systems from.
// Chassis are bare templates with no blades slotted; boards and blades are
// likewise unpopulated. Callers must treat the slices as read-only.
type Catalog struct {
	Processors   []hardware.Processor   `yaml:"processors"`
	Memory       []hardware.Memory      `yaml:"memory"`
	Motherboards []hardware.Motherboard `yaml:"motherboards"`
	Blades       []hardware.Blade       `yaml:"blades"`
	Chassis      []hardware.System      `yaml:"chassis"`
}

// Load reads and validates the catalog files in dir, applying price
// overrides if present. Every part kind must be present and non-empty;
// any invalid part fails the whole load.
func Load(l *slog.Logger, dir string) (c Catalog, err error) {
	defer decorate.OnError(&err, "could not load catalog from %s", dir)

	var procs struct {
		Processors []hardware.Processor `toml:"processor"`
	}
	if err := decodeFile(l, filepath.Join(dir, ProcessorsFile), &procs); err != nil {
		return Catalog{}, err
	}
	c.Processors = procs.Processors

	var mem struct {
		Memory []hardware.Memory `toml:"memory"`
	}
	if err := decodeFile(l, filepath.Join(dir, MemoryFile), &mem); err != nil {
		return Catalog{}, err
	}
	c.Memory = mem.Memory

	var boards struct {
		Motherboards []hardware.Motherboard `toml:"motherboard"`
	}
	if err := decodeFile(l, filepath.Join(dir, MotherboardsFile), &boards); err != nil {
		return Catalog{}, err
	}
	c.Motherboards = boards.Motherboards

	var blades struct {
		Blades []hardware.Blade `toml:"blade"`
	}
	if err := decodeFile(l, filepath.Join(dir, BladesFile), &blades); err != nil {
		return Catalog{}, err
	}
	c.Blades = blades.Blades

	var chassis struct {
		Chassis []hardware.System `toml:"chassis"`
	}
	if err := decodeFile(l, filepath.Join(dir, ChassisFile), &chassis); err != nil {
		return Catalog{}, err
	}
	c.Chassis = chassis.Chassis

	if err := c.validate(); err != nil {
		return Catalog{}, err
	}

	if err := c.applyPriceOverrides(l, filepath.Join(dir, PriceOverridesFile)); err != nil {
		return Catalog{}, err
	}

	l.Debug("Loaded catalog", "dir", dir,
		"processors", len(c.Processors), "memory", len(c.Memory),
		"motherboards", len(c.Motherboards), "blades", len(c.Blades),
		"chassis", len(c.Chassis))
	return c, nil
}

// decodeFile decodes one TOML catalog file into out, warning about keys the
// model does not know so typos do not silently drop data.
func decodeFile(l *slog.Logger, path string, out any) error {
	md, err := toml.DecodeFile(path, out)
	if err != nil {
		return fmt.Errorf("%s: %v", filepath.Base(path), err)
	}

	for _, key := range md.Undecoded() {
		l.Warn("Unknown key in catalog file", "file", filepath.Base(path), "key", key.String())
	}
	return nil
}

// validate checks every part and canonicalizes what needs a stable order.
func (c *Catalog) validate() error {
	if err := c.validateProcessors(); err != nil {
		return err
	}
	if err := c.validateMemory(); err != nil {
		return err
	}
	if err := c.validateMotherboards(); err != nil {
		return err
	}
	if err := c.validateBlades(); err != nil {
		return err
	}
	return c.validateChassis()
}

func (c *Catalog) validateProcessors() error {
	if len(c.Processors) == 0 {
		return fmt.Errorf("%s has no processors", ProcessorsFile)
	}

	seen := make(map[string]bool, len(c.Processors))
	for _, p := range c.Processors {
		if err := validatePart(seen, p.Manufacturer, p.Model, p.Price); err != nil {
			return fmt.Errorf("processor: %v", err)
		}
		if !validRate(p.ClockRate) {
			return fmt.Errorf("processor %q: clock rate must be positive", p.Model)
		}
		if p.TurboRate != nil && !validRate(*p.TurboRate) {
			return fmt.Errorf("processor %q: turbo rate must be positive when given", p.Model)
		}
		if p.AVX512Rate != nil && !validRate(*p.AVX512Rate) {
			return fmt.Errorf("processor %q: AVX-512 rate must be positive when given", p.Model)
		}
		if p.AVX512TurboRate != nil && !validRate(*p.AVX512TurboRate) {
			return fmt.Errorf("processor %q: AVX-512 turbo rate must be positive when given", p.Model)
		}
		if p.Cores == 0 {
			return fmt.Errorf("processor %q: no cores", p.Model)
		}
		if p.Threads < p.Cores {
			return fmt.Errorf("processor %q: fewer threads than cores", p.Model)
		}
		if !p.Type.Valid() {
			return fmt.Errorf("processor %q: unknown type %q", p.Model, p.Type)
		}
		switch p.Scalability {
		case 1, 2, 4, 8:
		default:
			return fmt.Errorf("processor %q: scalability %d is not 1, 2, 4 or 8", p.Model, p.Scalability)
		}
		if !p.MemorySupport.Valid() {
			return fmt.Errorf("processor %q: unknown memory support %q", p.Model, p.MemorySupport)
		}
		if p.MemoryChannels == 0 {
			return fmt.Errorf("processor %q: no memory channels", p.Model)
		}
	}
	return nil
}

func (c *Catalog) validateMemory() error {
	if len(c.Memory) == 0 {
		return fmt.Errorf("%s has no memory", MemoryFile)
	}

	seen := make(map[string]bool, len(c.Memory))
	for _, m := range c.Memory {
		if err := validatePart(seen, m.Manufacturer, m.Model, m.Price); err != nil {
			return fmt.Errorf("memory: %v", err)
		}
		if !m.Type.Valid() {
			return fmt.Errorf("DIMM %q: unknown memory type %q", m.Model, m.Type)
		}
		if m.Size == 0 {
			return fmt.Errorf("DIMM %q: zero size", m.Model)
		}
	}
	return nil
}

func (c *Catalog) validateMotherboards() error {
	if len(c.Motherboards) == 0 {
		return fmt.Errorf("%s has no motherboards", MotherboardsFile)
	}

	seen := make(map[string]bool, len(c.Motherboards))
	for _, mb := range c.Motherboards {
		if err := validatePart(seen, mb.Manufacturer, mb.Model, mb.Price); err != nil {
			return fmt.Errorf("motherboard: %v", err)
		}
		if !mb.FormFactor.Valid() {
			return fmt.Errorf("motherboard %q: unknown form factor %q", mb.Model, mb.FormFactor)
		}
		if !mb.ProcessorSupport.Valid() {
			return fmt.Errorf("motherboard %q: unknown processor support %q", mb.Model, mb.ProcessorSupport)
		}
		if mb.Sockets == 0 {
			return fmt.Errorf("motherboard %q: no sockets", mb.Model)
		}
		if mb.MemorySlots == 0 || mb.MemorySlots%mb.Sockets != 0 {
			return fmt.Errorf("motherboard %q: %d memory slots do not distribute over %d sockets", mb.Model, mb.MemorySlots, mb.Sockets)
		}
		if mb.DIMMsPerChannel == 0 {
			return fmt.Errorf("motherboard %q: no DIMM slots per channel", mb.Model)
		}
		if len(mb.Processors) > 0 || len(mb.Memory) > 0 {
			return fmt.Errorf("motherboard %q: catalog boards must be bare", mb.Model)
		}
	}
	return nil
}

func (c *Catalog) validateBlades() error {
	if len(c.Blades) == 0 {
		return fmt.Errorf("%s has no blades", BladesFile)
	}

	seen := make(map[string]bool, len(c.Blades))
	for i := range c.Blades {
		b := &c.Blades[i]
		if err := validatePart(seen, b.Manufacturer, b.Model, b.Price); err != nil {
			return fmt.Errorf("blade: %v", err)
		}
		if !b.Type.Valid() {
			return fmt.Errorf("blade %q: unknown blade type %q", b.Model, b.Type)
		}
		if len(b.FormFactors) == 0 {
			return fmt.Errorf("blade %q: no supported form factors", b.Model)
		}
		for _, f := range b.FormFactors {
			if !f.Valid() {
				return fmt.Errorf("blade %q: unknown form factor %q", b.Model, f)
			}
		}
		if b.Motherboard != nil {
			return fmt.Errorf("blade %q: catalog blades must be bare", b.Model)
		}

		// Canonical order, so assembled blades compare and fingerprint stably.
		slices.Sort(b.FormFactors)
		b.FormFactors = slices.Compact(b.FormFactors)
	}
	return nil
}

func (c *Catalog) validateChassis() error {
	if len(c.Chassis) == 0 {
		return fmt.Errorf("%s has no chassis", ChassisFile)
	}

	seen := make(map[string]bool, len(c.Chassis))
	for _, s := range c.Chassis {
		if err := validatePart(seen, s.Manufacturer, s.Model, s.Price); err != nil {
			return fmt.Errorf("chassis: %v", err)
		}
		if !s.BladeType.Valid() {
			return fmt.Errorf("chassis %q: unknown blade type %q", s.Model, s.BladeType)
		}
		if s.MaxBlades == 0 {
			return fmt.Errorf("chassis %q: no blade slots", s.Model)
		}
		if s.BladeType == hardware.BladeNone && s.MaxBlades != 1 {
			return fmt.Errorf("chassis %q: a standalone chassis holds exactly one unit", s.Model)
		}
		if len(s.Blades) > 0 {
			return fmt.Errorf("chassis %q: catalog chassis must be bare", s.Model)
		}
	}
	return nil
}

// validatePart checks the fields every part shares and records the model in
// seen to reject duplicates, since overrides address parts by model.
func validatePart(seen map[string]bool, manufacturer, model string, price float64) error {
	if model == "" {
		return fmt.Errorf("part without a model name")
	}
	if manufacturer == "" {
		return fmt.Errorf("%q: no manufacturer", model)
	}
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("%q: price %v is not a valid amount", model, price)
	}
	if seen[model] {
		return fmt.Errorf("%q: duplicate model", model)
	}
	seen[model] = true

	return nil
}

// validRate reports whether r is usable as a clock rate in GHz. NaN fails
// the comparison, so rates the search would turn into NaN metrics never
// load.
func validRate(r float64) bool {
	return r > 0 && !math.IsInf(r, 0)
}

// Exists reports whether dir contains a catalog, without validating it.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ProcessorsFile))
	return err == nil
}
