package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func HealthCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the search service is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := env.API.Health(cmd.Context())
			if err != nil {
				return err
			}
			msg := resp.Message
			if resp.Status != "" {
				msg = fmt.Sprintf("%s (%s)", msg, resp.Status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Render("ok"), msg)
			return nil
		},
	}
}
