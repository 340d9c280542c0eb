package commands_test

import (
	"path/filepath"
	"testing"

	"github.com/serverscout/serverscout/cmd/serverscout/commands"
	"github.com/stretchr/testify/require"
)

func TestCatalogValidates(t *testing.T) {
	t.Parallel()

	catalogDir := copyCatalog(t)

	a, err := commands.New()
	require.NoError(t, err, "Setup: New should not return an error")
	a.SetArgs("catalog", "--catalog-dir", catalogDir)

	err = a.Run()
	require.NoError(t, err, "Run should not return an error on a valid catalog")
}

func TestCatalogBadDirErrors(t *testing.T) {
	t.Parallel()

	a, err := commands.New()
	require.NoError(t, err, "Setup: New should not return an error")
	a.SetArgs("catalog", "--catalog-dir", filepath.Join(t.TempDir(), "missing"))

	err = a.Run()
	require.Error(t, err, "Run should return an error on a missing catalog")
}
