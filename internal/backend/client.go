// Package backend is the typed client for the remote ICP conversation,
// company search and lead search service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "icp-pipeline/internal/common/errors"
	httpclient "icp-pipeline/internal/common/http"
	"icp-pipeline/internal/common/logger"
	"icp-pipeline/internal/common/metrics"
	"icp-pipeline/internal/models"
)

const (
	endpointStart     = "/icp/conversation/start"
	endpointRespond   = "/icp/conversation/{id}/respond"
	endpointStatus    = "/icp/conversation/{id}/status"
	endpointFinalize  = "/icp/conversation/{id}/finalize"
	endpointCompanies = "/companies"
	endpointLeads     = "/leads"
	endpointHealth    = "/health"
)

// Doer is satisfied by the throttled client and by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL string
	http    Doer
	logger  logger.Logger
}

// NewClient builds a client for baseURL. The throttled transport is created
// here so every caller shares the same in-flight cap.
func NewClient(baseURL string, timeout time.Duration, maxInFlight int, log logger.Logger) *Client {
	return NewClientWithDoer(baseURL,
		httpclient.NewClient(timeout, httpclient.WithMaxInFlight(maxInFlight)),
		log)
}

func NewClientWithDoer(baseURL string, doer Doer, log logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		logger:  log.WithFields(map[string]interface{}{"component": "backend"}),
	}
}

func (c *Client) StartConversation(ctx context.Context, req models.ConversationStartRequest) (*models.ConversationStartResponse, error) {
	var out models.ConversationStartResponse
	if err := c.call(ctx, http.MethodPost, endpointStart, endpointStart, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RespondConversation(ctx context.Context, conversationID, answer string) (*models.ConversationRespondResponse, error) {
	var out models.ConversationRespondResponse
	path := conversationPath(endpointRespond, conversationID)
	if err := c.call(ctx, http.MethodPost, path, endpointRespond, models.ConversationRespondRequest{Answer: answer}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ConversationStatus(ctx context.Context, conversationID string) (*models.ConversationStatusResponse, error) {
	var out models.ConversationStatusResponse
	path := conversationPath(endpointStatus, conversationID)
	if err := c.call(ctx, http.MethodGet, path, endpointStatus, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FinalizeConversation(ctx context.Context, conversationID string, force bool) (*models.ConversationFinalizeResponse, error) {
	var out models.ConversationFinalizeResponse
	path := conversationPath(endpointFinalize, conversationID)
	if err := c.call(ctx, http.MethodPost, path, endpointFinalize, models.ConversationFinalizeRequest{ForceComplete: force}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchCompanies posts to /companies. A 2xx body with success=false is
// returned as-is; interpreting it is the caller's job.
func (c *Client) SearchCompanies(ctx context.Context, req models.CompaniesRequest) (*models.CompaniesResponse, error) {
	var out models.CompaniesResponse
	if err := c.call(ctx, http.MethodPost, endpointCompanies, endpointCompanies, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchLeads(ctx context.Context, req models.LeadsRequest) (*models.LeadsResponse, error) {
	var out models.LeadsResponse
	if err := c.call(ctx, http.MethodPost, endpointLeads, endpointLeads, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	var out models.HealthResponse
	if err := c.call(ctx, http.MethodGet, endpointHealth, endpointHealth, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func conversationPath(template, conversationID string) string {
	return strings.Replace(template, "{id}", url.PathEscape(conversationID), 1)
}

func (c *Client) call(ctx context.Context, method, path, endpoint string, body, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(apperrors.CodeOf(err))
		}
		metrics.BackendRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
		c.logger.Debug("backend call finished", map[string]interface{}{
			"endpoint":   endpoint,
			"outcome":    outcome,
			"durationMs": time.Since(start).Milliseconds(),
		})
	}()

	var reader io.Reader
	if body != nil {
		payload, mErr := json.Marshal(body)
		if mErr != nil {
			return apperrors.NewInternalError(fmt.Errorf("encode %s request: %w", endpoint, mErr))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("build %s request: %w", endpoint, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.NewTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return apperrors.NewHTTPStatusError(resp.StatusCode, string(text))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewMalformedResponseError(endpoint, err)
	}
	return nil
}
