package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	apperrors "icp-pipeline/internal/common/errors"
	"icp-pipeline/internal/common/validation"
	"icp-pipeline/internal/models"
)

// RunCmd searches with an ICP configuration read from a file, skipping the
// conversation.
func RunCmd(env *Env) *cobra.Command {
	var (
		icpFile   string
		sessionID string
		saveTo    string
		exportDir string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Search companies and leads for a saved ICP configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			icp, err := readICP(icpFile)
			if err != nil {
				return err
			}
			return runSearch(cmd, env, icp, sessionID, searchOptions{
				SaveTo:    saveTo,
				ExportDir: exportDir,
			})
		},
	}
	cmd.Flags().StringVar(&icpFile, "icp-file", "", "JSON file holding the ICP configuration")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session to run under (generated when empty)")
	cmd.Flags().StringVar(&saveTo, "save", "", "Write results as JSON to this file")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "Write companies and leads CSV files to this directory")
	_ = cmd.MarkFlagRequired("icp-file")
	return cmd
}

func readICP(path string) (*models.ICPConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read icp file: %w", err)
	}
	var icp models.ICPConfig
	if err := json.Unmarshal(data, &icp); err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("%s is not a valid ICP configuration: %v", path, err))
	}
	result, err := validation.ValidateICPConfig(&icp)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, apperrors.NewValidationError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return &icp, nil
}
