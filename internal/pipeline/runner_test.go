package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "icp-pipeline/internal/common/errors"
	"icp-pipeline/internal/common/logger"
	"icp-pipeline/internal/models"
	"icp-pipeline/internal/session"
)

// ==========================
// Mocks
// ==========================

type MockSearchAPI struct {
	mock.Mock
}

func (m *MockSearchAPI) SearchCompanies(ctx context.Context, req models.CompaniesRequest) (*models.CompaniesResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CompaniesResponse), args.Error(1)
}

func (m *MockSearchAPI) SearchLeads(ctx context.Context, req models.LeadsRequest) (*models.LeadsResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LeadsResponse), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Save(ctx context.Context, run *models.RunRecord) error {
	return m.Called(ctx, run).Error(0)
}

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) IndexRun(ctx context.Context, sessionID string, companies []models.Company, leads []models.Lead) error {
	return m.Called(ctx, sessionID, companies, leads).Error(0)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestICPConfig() *models.ICPConfig {
	return &models.ICPConfig{
		Personas:       []models.Persona{{Name: "CTO", Seniority: []string{"c_suite"}}},
		CompanyFilters: &models.CompanyFilters{Industries: []string{"SaaS"}},
	}
}

func twoCompanies() []models.Company {
	return []models.Company{
		{ID: "1", Name: "Acme", Domain: "acme.io", Industry: "SaaS", CoresignalEnriched: true,
			Contacts: []models.Contact{{Email: "ceo@acme.io"}}},
		{ID: "2", Name: "Globex", Domain: "globex.com"},
	}
}

func oneLead() []models.Lead {
	return []models.Lead{{FirstName: "Jane", Email: "jane@acme.io", MatchedPersona: "CTO"}}
}

func stageRecorder() (StageObserver, func() []StageKind) {
	var mu sync.Mutex
	var kinds []StageKind
	return func(s Stage) {
			mu.Lock()
			kinds = append(kinds, s.Kind())
			mu.Unlock()
		}, func() []StageKind {
			mu.Lock()
			defer mu.Unlock()
			return append([]StageKind(nil), kinds...)
		}
}

// ==========================
// SearchCompanies Tests
// ==========================

func TestSearchCompanies_LimitClamping(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "default", limit: 0, want: 10},
		{name: "within range", limit: 25, want: 25},
		{name: "above max", limit: 500, want: 50},
		{name: "negative", limit: -3, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &MockSearchAPI{}
			runner := NewRunner(api, logger.NewNoOpLogger())
			api.On("SearchCompanies", mock.Anything, mock.MatchedBy(func(req models.CompaniesRequest) bool {
				return req.Limit == tt.want && req.SessionID == "s1"
			})).Return(&models.CompaniesResponse{Success: true, Companies: twoCompanies()}, nil)

			res, err := runner.SearchCompanies(context.Background(), createTestICPConfig(), tt.limit, "s1")

			require.NoError(t, err)
			assert.Len(t, res.Companies, 2)
			api.AssertExpectations(t)
		})
	}
}

func TestSearchCompanies_BackendReportedFailure(t *testing.T) {
	api := &MockSearchAPI{}
	runner := NewRunner(api, logger.NewNoOpLogger())
	api.On("SearchCompanies", mock.Anything, mock.Anything).
		Return(&models.CompaniesResponse{Success: false, Error: "No companies found"}, nil)

	_, err := runner.SearchCompanies(context.Background(), createTestICPConfig(), 10, "s1")

	require.Error(t, err)
	assert.True(t, apperrors.IsBackendReported(err))
	assert.Equal(t, "No companies found", apperrors.UserMessage(err))
}

func TestSearchCompanies_EmptySuccess(t *testing.T) {
	api := &MockSearchAPI{}
	runner := NewRunner(api, logger.NewNoOpLogger())
	api.On("SearchCompanies", mock.Anything, mock.Anything).
		Return(&models.CompaniesResponse{Success: true, Companies: []models.Company{}}, nil)

	_, err := runner.SearchCompanies(context.Background(), createTestICPConfig(), 10, "s1")

	assert.True(t, apperrors.IsEmptyResult(err))
	assert.Equal(t, "No companies found matching your criteria", apperrors.UserMessage(err))
}

// ==========================
// SearchLeads Tests
// ==========================

func TestSearchLeads_EmptyCompaniesSkipsBackend(t *testing.T) {
	api := &MockSearchAPI{}
	runner := NewRunner(api, logger.NewNoOpLogger())

	_, err := runner.SearchLeads(context.Background(), nil, nil, 25, "s1")

	assert.True(t, apperrors.IsEmptyResult(err))
	api.AssertNotCalled(t, "SearchLeads", mock.Anything, mock.Anything)
}

func TestSearchLeads_ReducesCompaniesAndClamps(t *testing.T) {
	api := &MockSearchAPI{}
	runner := NewRunner(api, logger.NewNoOpLogger())
	api.On("SearchLeads", mock.Anything, mock.MatchedBy(func(req models.LeadsRequest) bool {
		return req.MaxLeadsPerCompany == 25 &&
			len(req.Companies) == 2 &&
			req.Companies[0].ID == "1" &&
			req.Companies[0].Domain == "acme.io" &&
			len(req.Companies[0].Contacts) == 1 &&
			len(req.Personas) == 1
	})).Return(&models.LeadsResponse{Success: true, Leads: oneLead(), CompaniesProcessed: 2}, nil)

	res, err := runner.SearchLeads(context.Background(), twoCompanies(), createTestICPConfig().Personas, 100, "s1")

	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalLeads)
	assert.Equal(t, 2, res.CompaniesProcessed)
	api.AssertExpectations(t)
}

// ==========================
// Run Tests
// ==========================

func TestRun_Success(t *testing.T) {
	api := &MockSearchAPI{}
	recorder := &MockRecorder{}
	indexer := &MockIndexer{}
	runner := NewRunner(api, logger.NewTestLogger(t), WithRecorder(recorder), WithIndexer(indexer))

	api.On("SearchCompanies", mock.Anything, mock.Anything).
		Return(&models.CompaniesResponse{Success: true, Companies: twoCompanies()}, nil)
	api.On("SearchLeads", mock.Anything, mock.Anything).
		Return(&models.LeadsResponse{Success: true, Leads: oneLead(), TotalLeads: 1}, nil)
	recorder.On("Save", mock.Anything, mock.MatchedBy(func(run *models.RunRecord) bool {
		return run.Status == models.RunStatusCompleted &&
			run.CompaniesFound == 2 &&
			run.CoresignalEnriched == 1 &&
			run.LeadsFound == 1 &&
			run.ConversationID == "conv-1"
	})).Return(nil)
	indexer.On("IndexRun", mock.Anything, "s1", mock.Anything, mock.Anything).Return(nil)

	observer, seen := stageRecorder()
	res, err := runner.Run(context.Background(), createTestICPConfig(), "s1", RunOptions{
		ConversationID: "conv-1",
		Observer:       observer,
	})

	require.NoError(t, err)
	assert.Equal(t, Completed, res.Stage.Kind())
	assert.Equal(t, "Complete! Found 2 companies and 1 leads", res.Stage.Message())
	assert.Equal(t, []StageKind{SearchingCompanies, SearchingLeads, Completed}, seen())
	assert.Empty(t, res.MockDataNotice)
	recorder.AssertExpectations(t)
	indexer.AssertExpectations(t)
}

func TestRun_RefusesWithoutConfig(t *testing.T) {
	api := &MockSearchAPI{}
	runner := NewRunner(api, logger.NewNoOpLogger())

	_, err := runner.Run(context.Background(), nil, "s1", RunOptions{ConversationID: "conv-1"})

	assert.Equal(t, apperrors.ErrCodeConversationIncomplete, apperrors.CodeOf(err))
	api.AssertNotCalled(t, "SearchCompanies", mock.Anything, mock.Anything)
}

func TestRun_BackendFailureNeverCallsLeads(t *testing.T) {
	api := &MockSearchAPI{}
	runner := NewRunner(api, logger.NewNoOpLogger())
	api.On("SearchCompanies", mock.Anything, mock.Anything).
		Return(&models.CompaniesResponse{Success: false, Error: "No companies found"}, nil)

	observer, seen := stageRecorder()
	res, err := runner.Run(context.Background(), createTestICPConfig(), "s1", RunOptions{Observer: observer})

	require.Error(t, err)
	assert.Equal(t, "No companies found", apperrors.UserMessage(err))
	assert.Equal(t, Failed, res.Stage.Kind())
	assert.Equal(t, "No companies found", res.Stage.Message())
	assert.Equal(t, []StageKind{SearchingCompanies, Failed}, seen())
	api.AssertNotCalled(t, "SearchLeads", mock.Anything, mock.Anything)
}

func TestRun_LeadFailureKeepsCompanies(t *testing.T) {
	api := &MockSearchAPI{}
	recorder := &MockRecorder{}
	runner := NewRunner(api, logger.NewNoOpLogger(), WithRecorder(recorder))
	api.On("SearchCompanies", mock.Anything, mock.Anything).
		Return(&models.CompaniesResponse{Success: true, Companies: twoCompanies()}, nil)
	api.On("SearchLeads", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewHTTPStatusError(500, "hunter quota exceeded"))
	recorder.On("Save", mock.Anything, mock.MatchedBy(func(run *models.RunRecord) bool {
		return run.Status == models.RunStatusPartial && run.ErrorCode == string(apperrors.ErrCodePartialData)
	})).Return(nil)

	res, err := runner.Run(context.Background(), createTestICPConfig(), "s1", RunOptions{})

	require.Error(t, err)
	assert.True(t, apperrors.IsPartialData(err))
	assert.True(t, apperrors.IsTransport(err), "cause stays reachable")
	assert.Len(t, res.Companies, 2)
	assert.Empty(t, res.Leads)
	recorder.AssertExpectations(t)
}

func TestRun_ZeroLeads(t *testing.T) {
	api := &MockSearchAPI{}
	runner := NewRunner(api, logger.NewNoOpLogger())
	api.On("SearchCompanies", mock.Anything, mock.Anything).
		Return(&models.CompaniesResponse{Success: true, Companies: twoCompanies()}, nil)
	api.On("SearchLeads", mock.Anything, mock.Anything).
		Return(&models.LeadsResponse{Success: true, Leads: []models.Lead{}}, nil)

	res, err := runner.Run(context.Background(), createTestICPConfig(), "s1", RunOptions{})

	assert.True(t, apperrors.IsEmptyResult(err))
	assert.Len(t, res.Companies, 2)
}

func TestRun_MockDataNotice(t *testing.T) {
	api := &MockSearchAPI{}
	runner := NewRunner(api, logger.NewNoOpLogger())
	api.On("SearchCompanies", mock.Anything, mock.Anything).
		Return(&models.CompaniesResponse{Success: true, UsedMock: true, Companies: twoCompanies()}, nil)
	api.On("SearchLeads", mock.Anything, mock.Anything).
		Return(&models.LeadsResponse{Success: true, Leads: oneLead()}, nil)

	res, err := runner.Run(context.Background(), createTestICPConfig(), "s1", RunOptions{})

	require.NoError(t, err)
	assert.True(t, res.UsedMock)
	assert.Equal(t, MockDataNotice, res.MockDataNotice)
}

func TestRun_SideChannelFailuresDoNotFailRun(t *testing.T) {
	api := &MockSearchAPI{}
	recorder := &MockRecorder{}
	indexer := &MockIndexer{}
	runner := NewRunner(api, logger.NewNoOpLogger(), WithRecorder(recorder), WithIndexer(indexer))
	api.On("SearchCompanies", mock.Anything, mock.Anything).
		Return(&models.CompaniesResponse{Success: true, Companies: twoCompanies()}, nil)
	api.On("SearchLeads", mock.Anything, mock.Anything).
		Return(&models.LeadsResponse{Success: true, Leads: oneLead()}, nil)
	recorder.On("Save", mock.Anything, mock.Anything).Return(apperrors.NewDatabaseInsertFailedError(errors.New("disk full")))
	indexer.On("IndexRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("es down"))

	_, err := runner.Run(context.Background(), createTestICPConfig(), "s1", RunOptions{})

	assert.NoError(t, err)
}

// ==========================
// Single-Flight Tests
// ==========================

func TestRun_SameSessionRunsOnce(t *testing.T) {
	api := &MockSearchAPI{}
	runner := NewRunner(api, logger.NewNoOpLogger())
	api.On("SearchCompanies", mock.Anything, mock.Anything).
		Return(&models.CompaniesResponse{Success: true, Companies: twoCompanies()}, nil).Once()
	api.On("SearchLeads", mock.Anything, mock.Anything).
		Return(&models.LeadsResponse{Success: true, Leads: oneLead()}, nil).Once()

	_, err := runner.Run(context.Background(), createTestICPConfig(), "s1", RunOptions{})
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), createTestICPConfig(), "s1", RunOptions{})
	assert.True(t, apperrors.IsDuplicateRun(err))
	api.AssertNumberOfCalls(t, "SearchCompanies", 1)
}

func TestRun_ConcurrentCallsForSameSession(t *testing.T) {
	api := &MockSearchAPI{}
	runner := NewRunner(api, logger.NewNoOpLogger())
	release := make(chan struct{})
	api.On("SearchCompanies", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&models.CompaniesResponse{Success: true, Companies: twoCompanies()}, nil)
	api.On("SearchLeads", mock.Anything, mock.Anything).
		Return(&models.LeadsResponse{Success: true, Leads: oneLead()}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(context.Background(), createTestICPConfig(), "s1", RunOptions{})
		done <- err
	}()

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		_, ok := runner.inFlight["s1"]
		return ok
	}, time.Second, 5*time.Millisecond)

	_, err := runner.Run(context.Background(), createTestICPConfig(), "s1", RunOptions{})
	assert.True(t, apperrors.IsDuplicateRun(err))

	close(release)
	assert.NoError(t, <-done)
	api.AssertNumberOfCalls(t, "SearchCompanies", 1)
}

func TestRun_FailedRunCanBeRetried(t *testing.T) {
	api := &MockSearchAPI{}
	store := session.NewMemoryStore()
	runner := NewRunner(api, logger.NewNoOpLogger(), WithClaimer(store))
	api.On("SearchCompanies", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewTransportError(errors.New("connection refused"))).Once()
	api.On("SearchCompanies", mock.Anything, mock.Anything).
		Return(&models.CompaniesResponse{Success: true, Companies: twoCompanies()}, nil).Once()
	api.On("SearchLeads", mock.Anything, mock.Anything).
		Return(&models.LeadsResponse{Success: true, Leads: oneLead()}, nil)

	_, err := runner.Run(context.Background(), createTestICPConfig(), "s1", RunOptions{})
	require.True(t, apperrors.IsTransport(err))

	_, err = runner.Run(context.Background(), createTestICPConfig(), "s1", RunOptions{})
	require.NoError(t, err)
}

func TestRun_ClaimHeldByAnotherProcess(t *testing.T) {
	api := &MockSearchAPI{}
	store := session.NewMemoryStore()
	ok, err := store.Claim(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, ok)

	runner := NewRunner(api, logger.NewNoOpLogger(), WithClaimer(store))
	_, err = runner.Run(context.Background(), createTestICPConfig(), "s1", RunOptions{})

	assert.True(t, apperrors.IsDuplicateRun(err))
	api.AssertNotCalled(t, "SearchCompanies", mock.Anything, mock.Anything)

	// the local guard must not stay stuck after a rejected claim
	runner.mu.Lock()
	assert.Empty(t, runner.inFlight)
	runner.mu.Unlock()
}

// ==========================
// Stage Tests
// ==========================

func TestStageMessages(t *testing.T) {
	assert.Equal(t, "Searching for companies...", SearchingCompaniesStage().Message())
	assert.Equal(t, "Found 3 companies. Generating leads...", SearchingLeadsStage(3).Message())
	assert.Equal(t, "Complete! Found 3 companies and 7 leads", CompletedStage(3, 7).Message())
	assert.False(t, SearchingLeadsStage(3).Done())
	assert.True(t, FailedStage(errors.New("x")).Done())
	assert.Nil(t, CompletedStage(1, 1).Reason())
	assert.Equal(t, "searching_leads", SearchingLeads.String())
	assert.Equal(t, "Building your ICP...", ConversingStage().Message())
	assert.Equal(t, Idle, IdleStage().Kind())
	assert.Empty(t, IdleStage().Message())
}
