// Package resultindex writes the companies and leads of a run to
// Elasticsearch so past sessions can be searched.
package resultindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	apperrors "icp-pipeline/internal/common/errors"
	"icp-pipeline/internal/common/logger"
	"icp-pipeline/internal/models"
)

const (
	DocTypeCompany = "company"
	DocTypeLead    = "lead"
)

// Mapping is applied when the index does not exist yet.
const Mapping = `{
  "mappings": {
    "properties": {
      "session_id":   {"type": "keyword"},
      "doc_type":     {"type": "keyword"},
      "indexed_at":   {"type": "date"},
      "name":         {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "domain":       {"type": "keyword"},
      "industry":     {"type": "keyword"},
      "technologies": {"type": "keyword"},
      "intent_score": {"type": "float"},
      "title":        {"type": "text"},
      "email":        {"type": "keyword"},
      "company":      {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "persona":      {"type": "keyword"}
    }
  }
}`

// Document is one indexed row. Company and lead fields share the index and
// are told apart by doc_type.
type Document struct {
	SessionID    string    `json:"session_id"`
	DocType      string    `json:"doc_type"`
	IndexedAt    time.Time `json:"indexed_at"`
	Name         string    `json:"name,omitempty"`
	Domain       string    `json:"domain,omitempty"`
	Industry     string    `json:"industry,omitempty"`
	Technologies []string  `json:"technologies,omitempty"`
	IntentScore  *float64  `json:"intent_score,omitempty"`
	Title        string    `json:"title,omitempty"`
	Email        string    `json:"email,omitempty"`
	Company      string    `json:"company,omitempty"`
	Persona      string    `json:"persona,omitempty"`
}

type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
	now    func() time.Time
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	if index == "" {
		index = "icp-results"
	}
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "result-index", "index": index}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// IndexRun bulk-indexes every company and lead of a session. Document ids are
// derived from the session so re-indexing a session overwrites it.
func (i *Indexer) IndexRun(ctx context.Context, sessionID string, companies []models.Company, leads []models.Lead) error {
	if len(companies) == 0 && len(leads) == 0 {
		return nil
	}

	body, err := i.bulkBody(sessionID, companies, leads)
	if err != nil {
		return apperrors.NewIndexFailedError(i.index, err.Error())
	}

	res, err := i.client.Bulk(bytes.NewReader(body),
		i.client.Bulk.WithContext(ctx),
		i.client.Bulk.WithIndex(i.index),
		i.client.Bulk.WithRefresh("false"),
	)
	if err != nil {
		return apperrors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return apperrors.NewIndexFailedError(i.index, fmt.Sprintf("%s: %s", res.Status(), strings.TrimSpace(string(raw))))
	}

	var summary struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  *struct {
				Reason string `json:"reason"`
			} `json:"error,omitempty"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&summary); err != nil {
		return apperrors.NewIndexFailedError(i.index, fmt.Sprintf("decode bulk response: %v", err))
	}
	if summary.Errors {
		failed := 0
		reason := ""
		for _, item := range summary.Items {
			for _, op := range item {
				if op.Error != nil {
					failed++
					if reason == "" {
						reason = op.Error.Reason
					}
				}
			}
		}
		return apperrors.NewIndexFailedError(i.index, fmt.Sprintf("%d documents rejected: %s", failed, reason))
	}

	i.logger.Info("run indexed", map[string]interface{}{
		"sessionId": sessionID,
		"companies": len(companies),
		"leads":     len(leads),
	})
	return nil
}

func (i *Indexer) bulkBody(sessionID string, companies []models.Company, leads []models.Lead) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	now := i.now()

	write := func(id string, doc Document) error {
		meta := map[string]map[string]string{"index": {"_id": id}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		return enc.Encode(doc)
	}

	for n, c := range companies {
		key := c.Key()
		if key == "" {
			key = fmt.Sprintf("%d", n)
		}
		err := write(fmt.Sprintf("%s:company:%s", sessionID, key), Document{
			SessionID:    sessionID,
			DocType:      DocTypeCompany,
			IndexedAt:    now,
			Name:         c.Name,
			Domain:       c.Domain,
			Industry:     c.Industry,
			Technologies: c.Technologies,
			IntentScore:  c.IntentScore,
		})
		if err != nil {
			return nil, err
		}
	}

	for n, l := range leads {
		key := l.Email
		if key == "" {
			key = fmt.Sprintf("%d", n)
		}
		err := write(fmt.Sprintf("%s:lead:%s", sessionID, key), Document{
			SessionID: sessionID,
			DocType:   DocTypeLead,
			IndexedAt: now,
			Name:      l.FullName(),
			Title:     l.Title,
			Email:     l.Email,
			Company:   l.Company,
			Persona:   l.MatchedPersona,
		})
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
