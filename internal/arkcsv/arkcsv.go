// Package arkcsv imports processors from Intel ARK comparison exports.
//
// ARK's compare page exports semicolon-separated CSV, one product per row.
// Windows saves those exports UTF-16 with a byte order mark. Only the
// columns the catalog needs are read; the rest of the export is ignored.
package arkcsv

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/serverscout/serverscout/internal/hardware"
	"github.com/ubuntu/decorate"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Columns read from an export. ARK renames these rarely, but when it does
// the import fails loudly rather than guessing.
const (
	colName        = "Name"
	colCollection  = "Product Collection"
	colPrice       = "Recommended Customer Price"
	colBaseFreq    = "Processor Base Frequency"
	colCores       = "# of Cores"
	colThreads     = "# of Threads"
	colFMAUnits    = "# of AVX-512 FMA Units"
	colScalability = "Scalability"
	colMaxMemSpeed = "Maximum Memory Speed"
	colMemTypes    = "Memory Types"
	colMemChannels = "Max # of Memory Channels"
	colSockets     = "Sockets Supported"
)

var (
	priceRe  = regexp.MustCompile(`\$([0-9]+\.[0-9]{2})`)
	ghzRe    = regexp.MustCompile(`([0-9]+\.[0-9]{2}) GHz`)
	numberRe = regexp.MustCompile(`[0-9]+`)
)

// Import parses the given ARK exports and returns the processors they
// list, in file order. Rows without a list price or socket data are
// skipped with a warning; a model appearing twice across the exports, or
// a row with unparsable product data, fails the import.
//
// ARK does not publish turbo or AVX-512 clocks, so those fields come back
// absent and are meant to be filled in by hand afterwards.
func Import(l *slog.Logger, paths ...string) (procs []hardware.Processor, err error) {
	defer decorate.OnError(&err, "could not import ARK export")

	seen := make(map[string]bool)
	for _, path := range paths {
		p, err := importFile(l, path, seen)
		if err != nil {
			return nil, err
		}
		procs = append(procs, p...)
	}

	if len(procs) == 0 {
		return nil, fmt.Errorf("no processors in %s", strings.Join(paths, ", "))
	}
	return procs, nil
}

func importFile(l *slog.Logger, path string, seen map[string]bool) (procs []hardware.Processor, err error) {
	defer decorate.OnError(&err, "%s", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	rows, err := readRows(raw)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no product rows")
	}

	header := rows[0]
	for _, cells := range rows[1:] {
		p, ok, err := parseRow(l, zipRow(header, cells))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if seen[p.Model] {
			return nil, fmt.Errorf("duplicate processor %q", p.Model)
		}
		seen[p.Model] = true
		procs = append(procs, p)
	}
	return procs, nil
}

// readRows decodes raw if Windows encoded it and parses the result as
// semicolon-separated CSV.
func readRows(raw []byte) ([][]string, error) {
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})

	var r io.Reader = bytes.NewReader(raw)
	if bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) || bytes.HasPrefix(raw, []byte{0xFE, 0xFF}) {
		r = transform.NewReader(r, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder())
	}

	c := csv.NewReader(r)
	c.Comma = ';'
	c.FieldsPerRecord = -1
	c.LazyQuotes = true
	return c.ReadAll()
}

// row is one product of an export, keyed by column name.
type row map[string]string

func zipRow(header, cells []string) row {
	r := make(row, len(header))
	for i, name := range header {
		if i >= len(cells) {
			break
		}
		r[strings.TrimSpace(name)] = strings.TrimSpace(cells[i])
	}
	return r
}

// parseRow converts one product row into a catalog processor. It reports
// ok=false for the rows ARK exports without the data a price search needs.
func parseRow(l *slog.Logger, r row) (p hardware.Processor, ok bool, err error) {
	model := r[colName]
	if model == "" {
		return p, false, fmt.Errorf("product row without a name")
	}
	defer decorate.OnError(&err, "%q", model)

	price, found := matchFloat(priceRe, r[colPrice])
	if !found {
		l.Warn("Skipping processor without a list price", "model", model)
		return p, false, nil
	}
	if r[colSockets] == "" {
		l.Warn("Skipping processor without socket data", "model", model)
		return p, false, nil
	}

	family, known := collectionFamily(r[colCollection])
	if !known {
		return p, false, fmt.Errorf("unknown product collection %q", r[colCollection])
	}
	typ := hardware.ProcessorType(family + "-" + r[colSockets])
	if !typ.Valid() {
		return p, false, fmt.Errorf("unknown processor type %q", typ)
	}

	clock, found := matchFloat(ghzRe, r[colBaseFreq])
	if !found {
		return p, false, fmt.Errorf("no base frequency in %q", r[colBaseFreq])
	}

	cores, err := strconv.ParseUint(r[colCores], 10, 32)
	if err != nil {
		return p, false, fmt.Errorf("cores: %v", err)
	}
	threads, err := strconv.ParseUint(r[colThreads], 10, 32)
	if err != nil {
		return p, false, fmt.Errorf("threads: %v", err)
	}
	fma, err := strconv.ParseUint(r[colFMAUnits], 10, 8)
	if err != nil {
		return p, false, fmt.Errorf("AVX-512 FMA units: %v", err)
	}

	scale, found := firstNumber(r[colScalability])
	if !found {
		return p, false, fmt.Errorf("no scalability in %q", r[colScalability])
	}
	switch scale {
	case 1, 2, 4, 8:
	default:
		return p, false, fmt.Errorf("scalability %d is not 1, 2, 4 or 8", scale)
	}

	// The speed hides in either column, ARK is not consistent about it.
	speed, found := maxNumber(r[colMaxMemSpeed] + " " + r[colMemTypes])
	if !found {
		return p, false, fmt.Errorf("no memory speed")
	}
	if speed == 2666 {
		// ARK rounds DDR4-2667 down.
		speed = 2667
	}
	memType := hardware.MemoryType(speed)
	if !memType.Valid() {
		return p, false, fmt.Errorf("unsupported memory speed %d", speed)
	}

	channels, err := strconv.ParseUint(r[colMemChannels], 10, 8)
	if err != nil {
		return p, false, fmt.Errorf("memory channels: %v", err)
	}

	units := uint8(fma)
	return hardware.Processor{
		Manufacturer:   "Intel",
		Model:          model,
		Price:          price,
		ClockRate:      clock,
		Cores:          uint32(cores),
		Threads:        uint32(threads),
		AVX512FMAUnits: &units,
		Type:           typ,
		Scalability:    uint8(scale),
		MemorySupport:  memType,
		MemoryChannels: uint8(channels),
	}, true, nil
}

// collectionFamily maps ARK's marketing collection names to the family
// half of a processor type tag.
func collectionFamily(collection string) (string, bool) {
	switch collection {
	case "Intel® Xeon® Scalable Processors":
		return "XeonScalable", true
	case "2nd Generation Intel® Xeon® Scalable Processors":
		return "XeonScalableV2", true
	case "Intel® Xeon® W Processor":
		return "XeonW", true
	case "Intel® Xeon® D Processor":
		return "XeonD", true
	}
	return "", false
}

// matchFloat returns the first capture of re in s as a float.
func matchFloat(re *regexp.Regexp, s string) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// firstNumber returns the first unsigned integer in s.
func firstNumber(s string) (int, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// maxNumber returns the largest unsigned integer in s.
func maxNumber(s string) (int, bool) {
	best, found := 0, false
	for _, m := range numberRe.FindAllString(s, -1) {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if !found || n > best {
			best, found = n, true
		}
	}
	return best, found
}
