package commands

import (
	"fmt"
	"log/slog"

	"github.com/serverscout/serverscout/internal/catalog"
	"github.com/spf13/cobra"
)

func (a *App) installCatalog() {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate the parts catalog and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCatalog()
		},
	}
	a.cmd.AddCommand(cmd)
}

func (a *App) runCatalog() error {
	close(a.ready)

	c, err := catalog.Load(slog.Default(), a.config.CatalogDir)
	if err != nil {
		return err
	}

	fmt.Printf("Catalog in %s is valid\n", a.config.CatalogDir)
	fmt.Printf("%4d processors\n", len(c.Processors))
	fmt.Printf("%4d memory modules\n", len(c.Memory))
	fmt.Printf("%4d motherboards\n", len(c.Motherboards))
	fmt.Printf("%4d blades\n", len(c.Blades))
	fmt.Printf("%4d chassis\n", len(c.Chassis))
	return nil
}
