package commands

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"icp-pipeline/pkg/registry"
)

// ActivitiesCmd lists the Zeebe task types the worker manager serves, from
// the compiled-in registry or a registry file, after validating it.
func ActivitiesCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "activities",
		Short: "List and validate the worker activity registry",
		// No backend or config needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				reg *registry.ActivityRegistry
				err error
			)
			if path != "" {
				reg, err = registry.LoadRegistry(path)
			} else {
				reg, err = registry.Default()
			}
			if err != nil {
				return err
			}
			if err := reg.Validate(); err != nil {
				return fmt.Errorf("invalid registry: %w", err)
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("TASK TYPE", "CATEGORY", "TIMEOUT", "NAME")
			for _, a := range reg.Activities {
				t.Row(a.TaskType, a.Category, a.Timeout, a.DisplayName)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Registry file to check instead of the built-in one")
	return cmd
}
