// Package cli is the interactive front end: a conversation on stdin/stdout
// followed by company and lead search.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"icp-pipeline/internal/cli/commands"
	apperrors "icp-pipeline/internal/common/errors"
)

func Execute() error {
	root := NewRoot()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), commands.ErrorStyle.Render(errorText(err)))
	}
	return err
}

func NewRoot() *cobra.Command {
	env := &commands.Env{}
	root := &cobra.Command{
		Use:           "icp-chat",
		Short:         "Turn a description of your ideal customer into companies and leads",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.Init()
		},
	}
	root.PersistentFlags().StringVar(&env.ConfigPath, "config", "", "Config file (default configs/config.yaml)")
	root.PersistentFlags().StringVar(&env.BackendURL, "backend-url", os.Getenv("BACKEND_BASE_URL"), "Base URL of the search service")
	root.PersistentFlags().StringVar(&env.LogLevel, "log-level", "error", "Log level: debug, info, warn or error")

	root.AddCommand(
		commands.ChatCmd(env),
		commands.RunCmd(env),
		commands.ExportCmd(env),
		commands.HealthCmd(env),
		commands.ActivitiesCmd(),
	)
	return root
}

func errorText(err error) string {
	if _, ok := apperrors.AsStandard(err); ok {
		return apperrors.UserMessage(err)
	}
	return err.Error()
}
