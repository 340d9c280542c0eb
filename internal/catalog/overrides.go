package catalog

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/ini.v1"
)

// Override sections, one per part kind, each holding model = price pairs.
const (
	processorSection   = "processor"
	memorySection      = "memory"
	motherboardSection = "motherboard"
	bladeSection       = "blade"
	chassisSection     = "chassis"
)

// applyPriceOverrides patches part prices from the INI file at path, meant
// for tracking street prices without editing the generated catalog files.
// A missing file is fine. Overrides naming unknown models or sections are
// logged and skipped; unparsable prices fail the load.
func (c *Catalog) applyPriceOverrides(l *slog.Logger, path string) error {
	cfg, err := ini.Load(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %v", PriceOverridesFile, err)
	}

	for _, section := range cfg.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			if len(section.Keys()) > 0 {
				l.Warn("Price overrides outside a part section are ignored", "file", PriceOverridesFile)
			}
			continue
		}

		for _, key := range section.Keys() {
			price, err := key.Float64()
			if err != nil {
				return fmt.Errorf("%s: [%s] %s: %v", PriceOverridesFile, name, key.Name(), err)
			}
			if price < 0 {
				return fmt.Errorf("%s: [%s] %s: price must not be negative", PriceOverridesFile, name, key.Name())
			}

			if !c.overridePrice(name, key.Name(), price) {
				l.Warn("Price override does not match a cataloged part", "section", name, "model", key.Name())
				continue
			}
			l.Debug("Price override applied", "section", name, "model", key.Name(), "price", price)
		}
	}

	return nil
}

// overridePrice sets the price of the named model within the given part
// kind, reporting whether a part matched.
func (c *Catalog) overridePrice(kind, model string, price float64) bool {
	switch kind {
	case processorSection:
		for i := range c.Processors {
			if c.Processors[i].Model == model {
				c.Processors[i].Price = price
				return true
			}
		}
	case memorySection:
		for i := range c.Memory {
			if c.Memory[i].Model == model {
				c.Memory[i].Price = price
				return true
			}
		}
	case motherboardSection:
		for i := range c.Motherboards {
			if c.Motherboards[i].Model == model {
				c.Motherboards[i].Price = price
				return true
			}
		}
	case bladeSection:
		for i := range c.Blades {
			if c.Blades[i].Model == model {
				c.Blades[i].Price = price
				return true
			}
		}
	case chassisSection:
		for i := range c.Chassis {
			if c.Chassis[i].Model == model {
				c.Chassis[i].Price = price
				return true
			}
		}
	}
	return false
}
