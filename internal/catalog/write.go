package catalog

import (
	"bytes"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/serverscout/serverscout/internal/fileutils"
	"github.com/serverscout/serverscout/internal/hardware"
	"github.com/ubuntu/decorate"
)

// WriteProcessors writes procs to path in the processors file format,
// atomically. Processors that would not load back are refused, so an
// import can never leave a catalog directory broken.
func WriteProcessors(path string, procs []hardware.Processor) (err error) {
	defer decorate.OnError(&err, "could not write %s", filepath.Base(path))

	c := Catalog{Processors: procs}
	if err := c.validateProcessors(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(struct {
		Processors []hardware.Processor `toml:"processor"`
	}{procs}); err != nil {
		return err
	}
	return fileutils.AtomicWrite(path, buf.Bytes())
}
