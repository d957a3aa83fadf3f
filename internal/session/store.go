// Package session keeps conversation snapshots and pipeline run claims in
// Redis so that job workers on different hosts see the same state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "icp-pipeline/internal/common/errors"
	"icp-pipeline/internal/common/logger"
	"icp-pipeline/internal/models"
)

// ErrNotFound is returned when no snapshot exists for a conversation.
var ErrNotFound = errors.New("session: conversation not found")

// Snapshot is everything the orchestrator needs to resume a conversation.
type Snapshot struct {
	ConversationID string                       `json:"conversationId"`
	SessionID      string                       `json:"sessionId"`
	Mode           models.ConversationMode      `json:"mode"`
	MaxTurns       int                          `json:"maxTurns"`
	State          models.ConversationState     `json:"state"`
	Complete       bool                         `json:"complete"`
	ICPConfig      *models.ICPConfig            `json:"icpConfig,omitempty"`
	Transcript     []models.ConversationMessage `json:"transcript"`
	UpdatedAt      time.Time                    `json:"updatedAt"`
}

// RedisStore persists snapshots as JSON strings under <prefix>:conv:<id>.
type RedisStore struct {
	client   redis.Cmdable
	prefix   string
	ttl      time.Duration
	claimTTL time.Duration
	logger   logger.Logger
}

func NewRedisStore(client redis.Cmdable, prefix string, ttl, claimTTL time.Duration, log logger.Logger) *RedisStore {
	if prefix == "" {
		prefix = "icp"
	}
	return &RedisStore{
		client:   client,
		prefix:   prefix,
		ttl:      ttl,
		claimTTL: claimTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "session-store"}),
	}
}

func (s *RedisStore) conversationKey(id string) string {
	return fmt.Sprintf("%s:conv:%s", s.prefix, id)
}

func (s *RedisStore) runKey(sessionID string) string {
	return fmt.Sprintf("%s:run:%s", s.prefix, sessionID)
}

func (s *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	snap.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(snap)
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("encode snapshot: %w", err))
	}
	if err := s.client.Set(ctx, s.conversationKey(snap.ConversationID), data, s.ttl).Err(); err != nil {
		return apperrors.NewSessionStoreError(err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, conversationID string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, s.conversationKey(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewSessionStoreError(err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("discarding unreadable snapshot", map[string]interface{}{
			"conversationId": conversationID,
			"error":          err.Error(),
		})
		return nil, ErrNotFound
	}
	return &snap, nil
}

func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, s.conversationKey(conversationID)).Err(); err != nil {
		return apperrors.NewSessionStoreError(err)
	}
	return nil
}

const (
	runStateRunning = "running"
	runStateDone    = "done"
)

// Claim takes the run slot for sessionID. It returns false when another
// process is running, or has already finished, a pipeline for that session.
func (s *RedisStore) Claim(ctx context.Context, sessionID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.runKey(sessionID), runStateRunning, s.claimTTL).Result()
	if err != nil {
		return false, apperrors.NewSessionStoreError(err)
	}
	return ok, nil
}

// Finish marks the session processed. Failed runs release the claim instead
// so the user can retry.
func (s *RedisStore) Finish(ctx context.Context, sessionID string, succeeded bool) error {
	var err error
	if succeeded {
		err = s.client.Set(ctx, s.runKey(sessionID), runStateDone, s.ttl).Err()
	} else {
		err = s.client.Del(ctx, s.runKey(sessionID)).Err()
	}
	if err != nil {
		return apperrors.NewSessionStoreError(err)
	}
	return nil
}

// MemoryStore is a process-local store for the CLI and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]Snapshot
	runs  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snaps: make(map[string]Snapshot),
		runs:  make(map[string]string),
	}
}

func (m *MemoryStore) Save(_ context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.UpdatedAt = time.Now().UTC()
	cp := *snap
	cp.Transcript = append([]models.ConversationMessage(nil), snap.Transcript...)
	m.snaps[snap.ConversationID] = cp
	return nil
}

func (m *MemoryStore) Load(_ context.Context, conversationID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	snap.Transcript = append([]models.ConversationMessage(nil), snap.Transcript...)
	return &snap, nil
}

func (m *MemoryStore) Delete(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, conversationID)
	return nil
}

func (m *MemoryStore) Claim(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.runs[sessionID]; taken {
		return false, nil
	}
	m.runs[sessionID] = runStateRunning
	return true, nil
}

func (m *MemoryStore) Finish(_ context.Context, sessionID string, succeeded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if succeeded {
		m.runs[sessionID] = runStateDone
	} else {
		delete(m.runs, sessionID)
	}
	return nil
}
