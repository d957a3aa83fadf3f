package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"icp-pipeline/internal/export"
)

// ExportCmd turns a saved results file into CSV.
func ExportCmd(env *Env) *cobra.Command {
	var (
		input string
		kind  string
		dir   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export saved results as companies or leads CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := loadResults(input)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = env.Config.Export.OutputDir
			}
			path, err := export.WriteFile(dir, export.Kind(kind), now(), res.Companies, res.Leads)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", kind, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Results file written by --save")
	cmd.Flags().StringVar(&kind, "kind", string(export.KindCompanies), "What to export: companies or leads")
	cmd.Flags().StringVar(&dir, "out", "", "Output directory (default from config)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
