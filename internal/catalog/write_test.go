package catalog_test

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/serverscout/serverscout/internal/catalog"
	"github.com/serverscout/serverscout/internal/hardware"
	"github.com/serverscout/serverscout/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteProcessors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, testutils.CopyDir(t, filepath.Join("testdata", "catalog"), dir), "Setup: could not copy catalog fixture")

	l := testutils.NewMockHandler(slog.LevelDebug)
	orig, err := catalog.Load(slog.New(&l), dir)
	require.NoError(t, err, "Setup: could not load the fixture catalog")

	path := filepath.Join(dir, catalog.ProcessorsFile)
	require.NoError(t, catalog.WriteProcessors(path, orig.Processors), "WriteProcessors should write the fixture processors")

	reloaded, err := catalog.Load(slog.New(&l), dir)
	require.NoError(t, err, "The written processors file should load back")
	assert.Equal(t, orig.Processors, reloaded.Processors, "Processors should round-trip through the file, absent fields included")
}

func TestWriteProcessorsRefusesBrokenParts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), catalog.ProcessorsFile)

	err := catalog.WriteProcessors(path, nil)
	require.Error(t, err, "WriteProcessors should refuse an empty part list")

	err = catalog.WriteProcessors(path, []hardware.Processor{{Manufacturer: "Intel"}})
	require.Error(t, err, "WriteProcessors should refuse a processor that would not load back")
	assert.NoFileExists(t, path, "Nothing should be written for refused parts")
}
