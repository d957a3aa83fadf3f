// Package history stores one journey row per pipeline run in PostgreSQL.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "icp-pipeline/internal/common/errors"
	"icp-pipeline/internal/common/logger"
	"icp-pipeline/internal/models"
)

// Repository implements models.RunRepository over database/sql.
type Repository struct {
	db     *sql.DB
	logger logger.Logger
}

var _ models.RunRepository = (*Repository)(nil)

func NewRepository(db *sql.DB, log logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "run-history"}),
	}
}

func (r *Repository) Save(ctx context.Context, run *models.RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	icpJSON, err := json.Marshal(run.ICPConfig)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("marshal icp config: %w", err))
	}
	metadataJSON, err := json.Marshal(run.Metadata)
	if err != nil {
		r.logger.Warn("failed to marshal run metadata", map[string]interface{}{
			"runId": run.ID,
			"error": err,
		})
		metadataJSON = []byte("{}")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (
			id, session_id, conversation_id, status, error_code, error_message,
			companies_found, coresignal_enriched, leads_found, used_mock,
			icp_config, metadata, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		run.ID,
		run.SessionID,
		run.ConversationID,
		string(run.Status),
		run.ErrorCode,
		run.ErrorMessage,
		run.CompaniesFound,
		run.CoresignalEnriched,
		run.LeadsFound,
		run.UsedMock,
		icpJSON,
		metadataJSON,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}

	r.logger.Info("run recorded", map[string]interface{}{
		"runId":          run.ID,
		"sessionId":      run.SessionID,
		"status":         run.Status,
		"processingTime": run.ProcessingTime().String(),
	})
	return nil
}

// FindBySession returns the runs of a session, newest first.
func (r *Repository) FindBySession(ctx context.Context, sessionID string) ([]*models.RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, conversation_id, status, error_code, error_message,
			companies_found, coresignal_enriched, leads_found, used_mock,
			icp_config, metadata, started_at, finished_at
		FROM pipeline_runs
		WHERE session_id = $1
		ORDER BY started_at DESC`, sessionID)
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer rows.Close()

	var runs []*models.RunRecord
	for rows.Next() {
		var (
			run                       models.RunRecord
			status                    string
			conversationID, code, msg sql.NullString
			icpJSON, metadataJSON     []byte
			startedAt, finishedAt     time.Time
		)
		if err := rows.Scan(
			&run.ID, &run.SessionID, &conversationID, &status, &code, &msg,
			&run.CompaniesFound, &run.CoresignalEnriched, &run.LeadsFound, &run.UsedMock,
			&icpJSON, &metadataJSON, &startedAt, &finishedAt,
		); err != nil {
			return nil, apperrors.NewDatabaseConnectionFailedError(fmt.Errorf("scan run: %w", err))
		}

		run.Status = models.RunStatus(status)
		run.ConversationID = conversationID.String
		run.ErrorCode = code.String
		run.ErrorMessage = msg.String
		run.StartedAt = startedAt
		run.FinishedAt = finishedAt

		if len(icpJSON) > 0 && string(icpJSON) != "null" {
			var cfg models.ICPConfig
			if err := json.Unmarshal(icpJSON, &cfg); err == nil {
				run.ICPConfig = &cfg
			}
		}
		if len(metadataJSON) > 0 {
			_ = json.Unmarshal(metadataJSON, &run.Metadata)
		}

		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}
	return runs, nil
}
