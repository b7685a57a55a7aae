package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/signcheck/internal/assessment"
)

// NewCatalogCmd creates the 'catalog' command group.
func NewCatalogCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect lesson catalogs",
	}
	cmd.AddCommand(newCatalogValidateCmd(load))
	return cmd
}

func newCatalogValidateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a catalog file and list its assessments",
		Long: `Validate a YAML or JSON lesson catalog against the catalog schema.
Without a path the configured catalog_path is used, or the built-in course.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var catalog *assessment.Catalog
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := load(cmd.Context())
				if err != nil {
					return err
				}
				path = cfg.CatalogPath
			}

			if path == "" {
				catalog = assessment.DefaultCatalog()
				path = "(built-in)"
			} else {
				c, err := assessment.LoadCatalog(path)
				if err != nil {
					return err
				}
				catalog = c
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d lessons\n", path, len(catalog.Lessons()))
			for _, l := range catalog.Lessons() {
				def, err := catalog.Definition(l.ID)
				if err != nil {
					fmt.Fprintf(out, "  %d  %s  (no assessment: %v)\n", l.ID, l.Title, err)
					continue
				}
				fmt.Fprintf(out, "  %d  %s  %d tasks in %s\n", l.ID, def.Title, len(def.Tasks), def.TimeWindow)
			}
			return nil
		},
	}
}
