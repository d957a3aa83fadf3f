package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	apperrors "icp-pipeline/internal/common/errors"
	"icp-pipeline/internal/export"
	"icp-pipeline/internal/models"
	"icp-pipeline/internal/pipeline"
)

// Results is the file written by --save and read back by the export command.
type Results struct {
	SessionID  string           `json:"session_id"`
	Status     string           `json:"status"`
	Companies  []models.Company `json:"companies"`
	ApolloOnly []models.Company `json:"apollo_only_companies,omitempty"`
	Leads      []models.Lead    `json:"leads"`
	TotalLeads int              `json:"total_leads"`
	UsedMock   bool             `json:"used_mock"`
	ErrorCode  string           `json:"error_code,omitempty"`
	Message    string           `json:"message,omitempty"`
}

type searchOptions struct {
	ConversationID string
	SaveTo         string
	ExportDir      string
}

var now = time.Now

// runSearch runs company then lead search, prints what was found and writes
// the optional results file and CSV exports. Companies are still shown and
// saved when lead search fails.
func runSearch(cmd *cobra.Command, env *Env, icp *models.ICPConfig, sessionID string, opts searchOptions) error {
	out := cmd.OutOrStdout()
	runner := pipeline.NewRunner(env.API, env.Logger)

	result, err := runner.Run(cmd.Context(), icp, sessionID, pipeline.RunOptions{
		ConversationID:     opts.ConversationID,
		CompanyLimit:       env.Config.Pipeline.CompanyLimit,
		MaxLeadsPerCompany: env.Config.Pipeline.MaxLeadsPerCompany,
		Observer: func(s pipeline.Stage) {
			if s.Kind() != pipeline.Failed {
				fmt.Fprintln(out, stageLine(s))
			}
		},
	})
	if result == nil {
		return err
	}

	if result.MockDataNotice != "" {
		fmt.Fprintln(out, noticeStyle.Render(result.MockDataNotice))
	}
	printCompanies(out, result.Companies)
	printLeads(out, result.Leads)

	if opts.SaveTo != "" {
		if saveErr := saveResults(opts.SaveTo, toResults(result, err)); saveErr != nil {
			return saveErr
		}
		fmt.Fprintf(out, "\nResults saved to %s\n", opts.SaveTo)
	}
	if opts.ExportDir != "" {
		exportAll(cmd, opts.ExportDir, result.Companies, result.Leads)
	}
	return err
}

func toResults(r *pipeline.Result, runErr error) Results {
	res := Results{
		SessionID:  r.SessionID,
		Status:     string(models.RunStatusCompleted),
		Companies:  r.Companies,
		ApolloOnly: r.ApolloOnly,
		Leads:      r.Leads,
		TotalLeads: r.TotalLeads,
		UsedMock:   r.UsedMock,
	}
	if runErr != nil {
		res.Status = string(models.RunStatusFailed)
		if apperrors.IsPartialData(runErr) {
			res.Status = string(models.RunStatusPartial)
		}
		res.ErrorCode = string(apperrors.CodeOf(runErr))
		res.Message = apperrors.UserMessage(runErr)
	}
	return res
}

func saveResults(path string, res Results) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	return nil
}

func loadResults(path string) (*Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	var res Results
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse results %s: %w", path, err)
	}
	return &res, nil
}

// exportAll writes whichever CSV files have rows. An empty kind is skipped.
func exportAll(cmd *cobra.Command, dir string, companies []models.Company, leads []models.Lead) {
	for _, kind := range []export.Kind{export.KindCompanies, export.KindLeads} {
		path, err := export.WriteFile(dir, kind, now(), companies, leads)
		if err != nil {
			if !apperrors.IsEmptyResult(err) {
				fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render(apperrors.UserMessage(err)))
			}
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", kind, path)
	}
}
