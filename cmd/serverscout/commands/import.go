package commands

import (
	"fmt"
	"log/slog"

	"github.com/serverscout/serverscout/internal/arkcsv"
	"github.com/serverscout/serverscout/internal/catalog"
	"github.com/spf13/cobra"
)

func (a *App) installImport() {
	cmd := &cobra.Command{
		Use:   "import CSV [CSV...]",
		Short: "Import processors from Intel ARK CSV exports into a catalog file",
		Long:  "Parse one or more CSV files exported from the Intel ARK product comparison page and write the recognized processors to a catalog file. Rows without a list price or socket data are skipped.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runImport(args)
		},
	}

	cmd.Flags().StringVarP(&a.importOut, "out", "o", catalog.ProcessorsFile, "file to write the imported processors to")

	err := cmd.MarkFlagFilename("out", "toml")
	if err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark out flag as filename: %v", err))
	}

	a.cmd.AddCommand(cmd)
}

func (a *App) runImport(paths []string) error {
	close(a.ready)

	procs, err := arkcsv.Import(slog.Default(), paths...)
	if err != nil {
		return err
	}
	if err := catalog.WriteProcessors(a.importOut, procs); err != nil {
		return err
	}

	fmt.Printf("Wrote %d processors to %s\n", len(procs), a.importOut)
	return nil
}
