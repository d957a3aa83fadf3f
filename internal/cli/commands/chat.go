package commands

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperrors "icp-pipeline/internal/common/errors"
	"icp-pipeline/internal/conversation"
	"icp-pipeline/internal/models"
	"icp-pipeline/internal/pipeline"
	"icp-pipeline/internal/session"
)

var errInputClosed = errors.New("input closed before the ICP was complete")

func ChatCmd(env *Env) *cobra.Command {
	var (
		mode      string
		maxTurns  int
		noSearch  bool
		showICP   bool
		saveTo    string
		exportDir string
	)
	cmd := &cobra.Command{
		Use:   "chat [description]",
		Short: "Describe your ideal customer, answer follow-up questions, then search",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			in := bufio.NewScanner(cmd.InOrStdin())

			orch := conversation.New(env.API, session.NewMemoryStore(), conversation.Options{
				DefaultMode:     models.ConversationMode(env.Config.Pipeline.Mode),
				DefaultMaxTurns: env.Config.Pipeline.MaxTurns,
			}, env.Logger)

			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				fmt.Fprint(out, promptStyle.Render("Describe your ideal customer:")+" ")
				if !in.Scan() {
					return errInputClosed
				}
				text = in.Text()
			}

			fmt.Fprintln(out, stageLine(pipeline.ConversingStage()))
			turn, err := orch.Start(cmd.Context(), text, models.ConversationMode(mode), maxTurns)
			if err != nil {
				return err
			}
			for turn.Outcome != conversation.Complete {
				fmt.Fprintf(out, "\n%s\n%s ", promptStyle.Render(turn.Prompt), stageStyle.Render(progressText(turn)))
				if !in.Scan() {
					return errInputClosed
				}
				next, err := orch.Respond(cmd.Context(), turn.ConversationID, in.Text())
				if err != nil {
					if apperrors.IsValidation(err) {
						fmt.Fprintln(out, noticeStyle.Render(apperrors.UserMessage(err)))
						continue
					}
					return err
				}
				turn = next
			}

			fmt.Fprintf(out, "\n%s\n", okStyle.Render(turn.Prompt))
			if turn.Warning != "" {
				fmt.Fprintln(out, noticeStyle.Render(turn.Warning))
			}
			if showICP {
				data, err := json.MarshalIndent(turn.ICPConfig, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			}
			if noSearch {
				return nil
			}

			fmt.Fprintln(out)
			return runSearch(cmd, env, turn.ICPConfig, turn.SessionID, searchOptions{
				ConversationID: turn.ConversationID,
				SaveTo:         saveTo,
				ExportDir:      exportDir,
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "Conversation mode: auto, conversational or quick (default from config)")
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "Maximum follow-up questions, 1 to 7 (default from config)")
	cmd.Flags().BoolVar(&noSearch, "no-search", false, "Stop once the ICP is complete")
	cmd.Flags().BoolVar(&showICP, "show-icp", false, "Print the finished ICP configuration as JSON")
	cmd.Flags().StringVar(&saveTo, "save", "", "Write results as JSON to this file")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "Write companies and leads CSV files to this directory")
	return cmd
}

func progressText(t *conversation.Turn) string {
	return fmt.Sprintf("[%d/%d, %.0f%%] >", t.State.TurnCount, t.State.MaxTurns, t.Progress)
}
