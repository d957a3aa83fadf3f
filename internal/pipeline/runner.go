// Package pipeline runs company search followed by lead search for a finished
// ICP conversation.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"icp-pipeline/internal/common/config"
	apperrors "icp-pipeline/internal/common/errors"
	"icp-pipeline/internal/common/logger"
	"icp-pipeline/internal/common/metrics"
	"icp-pipeline/internal/common/observability"
	"icp-pipeline/internal/models"
)

const (
	msgNoCompanies = "No companies found matching your criteria"
	msgNoLeads     = "No leads found for the selected companies"
	msgNoInput     = "No companies to search for leads"

	// MockDataNotice is shown whenever the backend served placeholder data.
	MockDataNotice = "Showing sample data: the company search provider is unavailable."
)

// SearchAPI is the part of the backend client the runner calls.
type SearchAPI interface {
	SearchCompanies(ctx context.Context, req models.CompaniesRequest) (*models.CompaniesResponse, error)
	SearchLeads(ctx context.Context, req models.LeadsRequest) (*models.LeadsResponse, error)
}

// Claimer gives cross-process exclusion for a session's run.
type Claimer interface {
	Claim(ctx context.Context, sessionID string) (bool, error)
	Finish(ctx context.Context, sessionID string, succeeded bool) error
}

// Recorder persists the journey of a run.
type Recorder interface {
	Save(ctx context.Context, run *models.RunRecord) error
}

// Indexer makes the results of a run searchable.
type Indexer interface {
	IndexRun(ctx context.Context, sessionID string, companies []models.Company, leads []models.Lead) error
}

type CompanyResult struct {
	Companies      []models.Company
	ApolloOnly     []models.Company
	UsedMock       bool
	ResponseCount  int
	RequestPayload map[string]interface{}
}

type LeadResult struct {
	Leads              []models.Lead
	TotalLeads         int
	CompaniesProcessed int
}

// Result is what a run produced. Companies are kept even when lead search
// fails afterwards.
type Result struct {
	RunID              string
	SessionID          string
	Companies          []models.Company
	ApolloOnly         []models.Company
	Leads              []models.Lead
	TotalLeads         int
	CompaniesProcessed int
	UsedMock           bool
	MockDataNotice     string
	Stage              Stage
	Duration           time.Duration
}

type RunOptions struct {
	ConversationID     string
	CompanyLimit       int
	MaxLeadsPerCompany int
	Observer           StageObserver
}

// Option customizes a Runner.
type Option func(*Runner)

func WithClaimer(c Claimer) Option     { return func(r *Runner) { r.claimer = c } }
func WithRecorder(rec Recorder) Option { return func(r *Runner) { r.recorder = rec } }
func WithIndexer(idx Indexer) Option   { return func(r *Runner) { r.indexer = idx } }

func WithObservability(obs *observability.Observability) Option {
	return func(r *Runner) { r.obs = obs }
}

type Runner struct {
	api      SearchAPI
	claimer  Claimer
	recorder Recorder
	indexer  Indexer
	obs      *observability.Observability
	logger   logger.Logger
	now      func() time.Time

	mu            sync.Mutex
	lastProcessed string
	inFlight      map[string]struct{}
}

func NewRunner(api SearchAPI, log logger.Logger, opts ...Option) *Runner {
	r := &Runner{
		api:      api,
		logger:   log.WithFields(map[string]interface{}{"component": "pipeline"}),
		now:      func() time.Time { return time.Now().UTC() },
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ==========================
// Stages
// ==========================

// SearchCompanies finds companies matching cfg. limit defaults to 10 and is
// clamped to 1..50.
func (r *Runner) SearchCompanies(ctx context.Context, cfg *models.ICPConfig, limit int, sessionID string) (*CompanyResult, error) {
	if cfg == nil {
		return nil, apperrors.NewValidationError("An ICP configuration is required to search for companies.")
	}
	limit = clamp(limit, config.DefaultCompanyLimit, 1, config.MaxCompanyLimit)

	start := time.Now()
	resp, err := r.api.SearchCompanies(ctx, models.CompaniesRequest{
		ICPConfig: cfg,
		Limit:     limit,
		SessionID: sessionID,
	})
	metrics.PipelineStageDuration.WithLabelValues(SearchingCompanies.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, apperrors.NewBackendReportedError("company search", resp.Error)
	}
	if len(resp.Companies) == 0 {
		return nil, apperrors.NewEmptyResultError(msgNoCompanies)
	}

	if resp.UsedMock {
		r.logger.Warn("company search served mock data", map[string]interface{}{"sessionId": sessionID})
	}
	return &CompanyResult{
		Companies:      resp.Companies,
		ApolloOnly:     resp.ApolloOnlyCompanies,
		UsedMock:       resp.UsedMock,
		ResponseCount:  resp.ResponseCount,
		RequestPayload: resp.RequestPayload,
	}, nil
}

// SearchLeads finds persona-matched contacts at the given companies.
// maxLeadsPerCompany defaults to 25 and is clamped to 1..25.
func (r *Runner) SearchLeads(ctx context.Context, companies []models.Company, personas []models.Persona, maxLeadsPerCompany int, sessionID string) (*LeadResult, error) {
	if len(companies) == 0 {
		return nil, apperrors.NewEmptyResultError(msgNoInput)
	}
	maxLeadsPerCompany = clamp(maxLeadsPerCompany, config.DefaultMaxLeadsPerCompany, 1, config.DefaultMaxLeadsPerCompany)

	simple := make([]models.SimpleCompany, 0, len(companies))
	for _, c := range companies {
		simple = append(simple, c.Simple())
	}

	start := time.Now()
	resp, err := r.api.SearchLeads(ctx, models.LeadsRequest{
		Companies:          simple,
		Personas:           personas,
		MaxLeadsPerCompany: maxLeadsPerCompany,
		SessionID:          sessionID,
	})
	metrics.PipelineStageDuration.WithLabelValues(SearchingLeads.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, apperrors.NewBackendReportedError("lead search", resp.Error)
	}

	total := resp.TotalLeads
	if total == 0 {
		total = len(resp.Leads)
	}
	return &LeadResult{
		Leads:              resp.Leads,
		TotalLeads:         total,
		CompaniesProcessed: resp.CompaniesProcessed,
	}, nil
}

// ==========================
// Run
// ==========================

// Run executes company search then lead search for a completed conversation.
// A session runs at most once: a repeat, or a concurrent call, returns a
// DUPLICATE_RUN error without touching the backend.
func (r *Runner) Run(ctx context.Context, cfg *models.ICPConfig, sessionID string, opts RunOptions) (*Result, error) {
	if cfg == nil {
		return nil, apperrors.NewConversationIncompleteError(opts.ConversationID)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if err := r.acquire(ctx, sessionID); err != nil {
		return nil, err
	}

	startedAt := r.now()
	result := &Result{RunID: uuid.NewString(), SessionID: sessionID, Stage: IdleStage()}
	notify := func(s Stage) {
		result.Stage = s
		if opts.Observer != nil {
			opts.Observer(s)
		}
	}

	runErr := r.run(ctx, cfg, sessionID, opts, result, notify)
	result.Duration = r.now().Sub(startedAt)

	r.release(ctx, sessionID, runErr == nil)
	r.finishRun(ctx, cfg, opts, result, startedAt, runErr)

	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

func (r *Runner) run(ctx context.Context, cfg *models.ICPConfig, sessionID string, opts RunOptions, result *Result, notify StageObserver) error {
	log := r.logger.WithFields(map[string]interface{}{"sessionId": sessionID})

	notify(SearchingCompaniesStage())
	log.Info(SearchingCompaniesStage().Message(), nil)

	companies, err := r.SearchCompanies(ctx, cfg, opts.CompanyLimit, sessionID)
	if err != nil {
		log.Error("company search failed", map[string]interface{}{"error": err.Error()})
		notify(FailedStage(err))
		return err
	}
	result.Companies = companies.Companies
	result.ApolloOnly = companies.ApolloOnly
	result.UsedMock = companies.UsedMock
	if companies.UsedMock {
		result.MockDataNotice = MockDataNotice
	}

	notify(SearchingLeadsStage(len(companies.Companies)))
	log.Info(result.Stage.Message(), nil)

	leads, err := r.SearchLeads(ctx, companies.Companies, cfg.Personas, opts.MaxLeadsPerCompany, sessionID)
	if err != nil {
		partial := apperrors.NewPartialDataError(len(companies.Companies), err)
		log.Error("lead search failed", map[string]interface{}{"error": err.Error()})
		notify(FailedStage(partial))
		return partial
	}
	result.Leads = leads.Leads
	result.TotalLeads = leads.TotalLeads
	result.CompaniesProcessed = leads.CompaniesProcessed

	if len(leads.Leads) == 0 {
		empty := apperrors.NewEmptyResultError(msgNoLeads)
		notify(FailedStage(empty))
		return empty
	}

	notify(CompletedStage(len(result.Companies), len(result.Leads)))
	log.Info(result.Stage.Message(), map[string]interface{}{"usedMock": result.UsedMock})
	return nil
}

func (r *Runner) acquire(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	_, running := r.inFlight[sessionID]
	if running || sessionID == r.lastProcessed {
		r.mu.Unlock()
		r.logger.Warn("duplicate run rejected", map[string]interface{}{"sessionId": sessionID})
		return apperrors.NewDuplicateRunError(sessionID)
	}
	r.inFlight[sessionID] = struct{}{}
	r.mu.Unlock()

	if r.claimer == nil {
		return nil
	}
	ok, err := r.claimer.Claim(ctx, sessionID)
	if err == nil && !ok {
		err = apperrors.NewDuplicateRunError(sessionID)
		r.logger.Warn("session claimed elsewhere", map[string]interface{}{"sessionId": sessionID})
	}
	if err != nil {
		r.mu.Lock()
		delete(r.inFlight, sessionID)
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *Runner) release(ctx context.Context, sessionID string, succeeded bool) {
	r.mu.Lock()
	delete(r.inFlight, sessionID)
	if succeeded {
		r.lastProcessed = sessionID
	}
	r.mu.Unlock()

	if r.claimer == nil {
		return
	}
	if err := r.claimer.Finish(context.WithoutCancel(ctx), sessionID, succeeded); err != nil {
		r.logger.Warn("failed to release run claim", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
	}
}

// finishRun writes metrics, history and the search index. None of these can
// fail the run.
func (r *Runner) finishRun(ctx context.Context, cfg *models.ICPConfig, opts RunOptions, result *Result, startedAt time.Time, runErr error) {
	ctx = context.WithoutCancel(ctx)

	status := models.RunStatusCompleted
	code := ""
	msg := ""
	if runErr != nil {
		status = models.RunStatusFailed
		if apperrors.IsPartialData(runErr) {
			status = models.RunStatusPartial
		}
		code = string(apperrors.CodeOf(runErr))
		msg = apperrors.UserMessage(runErr)
	}

	metrics.PipelineRunsTotal.WithLabelValues(result.Stage.Kind().String(), code).Inc()
	r.obs.RecordRun(ctx, string(status), result.Duration, len(result.Leads))

	if r.recorder != nil {
		enriched := 0
		for _, c := range result.Companies {
			if c.CoresignalEnriched {
				enriched++
			}
		}
		record := &models.RunRecord{
			ID:                 result.RunID,
			SessionID:          result.SessionID,
			ConversationID:     opts.ConversationID,
			Status:             status,
			ErrorCode:          code,
			ErrorMessage:       msg,
			CompaniesFound:     len(result.Companies),
			CoresignalEnriched: enriched,
			LeadsFound:         len(result.Leads),
			UsedMock:           result.UsedMock,
			ICPConfig:          cfg,
			StartedAt:          startedAt,
			FinishedAt:         startedAt.Add(result.Duration),
			Metadata: map[string]interface{}{
				"apolloOnlyCompanies": len(result.ApolloOnly),
				"companiesProcessed":  result.CompaniesProcessed,
				"totalLeads":          result.TotalLeads,
				"stage":               result.Stage.Kind().String(),
			},
		}
		if err := r.recorder.Save(ctx, record); err != nil {
			r.logger.Warn("failed to record run history", map[string]interface{}{
				"sessionId": result.SessionID,
				"error":     err.Error(),
			})
		}
	}

	if r.indexer != nil && len(result.Companies) > 0 {
		if err := r.indexer.IndexRun(ctx, result.SessionID, result.Companies, result.Leads); err != nil {
			r.logger.Warn("failed to index run results", map[string]interface{}{
				"sessionId": result.SessionID,
				"error":     err.Error(),
			})
		}
	}
}

func clamp(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
