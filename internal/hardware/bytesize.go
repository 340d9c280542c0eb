package hardware

import (
	"fmt"
	"strconv"

	"github.com/serverscout/serverscout/internal/fileutils"
	"gopkg.in/yaml.v3"
)

// ByteSize is a capacity in bytes that reads and writes as a human unit
// string, so catalog files can say "32GiB" instead of 34359738368.
type ByteSize uint64

var byteUnits = []struct {
	name string
	size ByteSize
}{
	{"TiB", 1 << 40},
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
}

// String renders the size with the largest binary unit that divides it
// evenly, falling back to a plain byte count.
func (b ByteSize) String() string {
	if b == 0 {
		return "0"
	}

	for _, u := range byteUnits {
		if b%u.size == 0 {
			return fmt.Sprintf("%d%s", b/u.size, u.name)
		}
	}
	return strconv.FormatUint(uint64(b), 10)
}

// MarshalText implements encoding.TextMarshaler for catalog and report files.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText parses a byte count with an optional binary or decimal unit
// suffix, such as "34359738368", "32GiB" or "4096 MB".
func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := fileutils.ParseSize(string(text))
	if err != nil {
		return err
	}

	*b = ByteSize(n)
	return nil
}

// UnmarshalYAML accepts either the unit string form or a raw byte count.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid byte size: %v", err)
	}
	return b.UnmarshalText([]byte(s))
}
