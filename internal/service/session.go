// Package service provides the business logic of the FAS chat dashboard.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/isdb-fas/fasdesk/internal/attachment"
	"github.com/isdb-fas/fasdesk/internal/chat"
	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/pkg/logger"
	"github.com/isdb-fas/fasdesk/pkg/metrics"
)

// EventPublisher forwards store events outside the process.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev model.Event) error
}

// Session is the volatile state of one dashboard user.
type Session struct {
	ID      string
	Store   *chat.Store
	Uploads *attachment.Registry

	mu    sync.RWMutex
	prefs model.Preferences

	lastSeen atomic.Int64
}

func (s *Session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

func (s *Session) seen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// Preferences returns the session's display preferences.
func (s *Session) Preferences() model.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// SetPreferences replaces the session's display preferences.
func (s *Session) SetPreferences(p model.Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.prefs = p
	s.mu.Unlock()
	return nil
}

// SessionManager creates sessions on first use. Sessions live until they sit idle longer
// than the idle TTL or are pushed out by the session cap; both limits are off when zero.
type SessionManager struct {
	blobs       attachment.BlobStore
	publisher   EventPublisher
	seed        bool
	now         func() time.Time
	idleTTL     time.Duration
	maxSessions int
	logger      *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithPublisher forwards every store event to p.
func WithPublisher(p EventPublisher) SessionOption {
	return func(m *SessionManager) { m.publisher = p }
}

// WithSampleConversations seeds new sessions with the demonstration conversations.
func WithSampleConversations(seed bool) SessionOption {
	return func(m *SessionManager) { m.seed = seed }
}

// WithSessionClock sets the time source of new stores and of idle tracking.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) { m.now = now }
}

// WithIdleTTL makes EvictIdle drop sessions unused for longer than ttl.
func WithIdleTTL(ttl time.Duration) SessionOption {
	return func(m *SessionManager) { m.idleTTL = ttl }
}

// WithMaxSessions caps the live sessions. Creating one more evicts the least recently
// used session.
func WithMaxSessions(n int) SessionOption {
	return func(m *SessionManager) { m.maxSessions = n }
}

// NewSessionManager creates an empty session manager.
func NewSessionManager(blobs attachment.BlobStore, log *logger.Logger, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		blobs:    blobs,
		now:      time.Now,
		logger:   log,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the session with the given ID, creating it if needed.
func (m *SessionManager) Get(id string) *Session {
	now := m.now()

	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		sess.touch(now)
		return sess
	}

	m.mu.Lock()
	if sess, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		sess.touch(now)
		return sess
	}

	var evicted *Session
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		evicted = m.oldestLocked()
		delete(m.sessions, evicted.ID)
	}

	opts := []chat.Option{
		chat.WithSessionID(id),
		chat.WithClock(m.now),
		chat.WithDefaults(chat.WelcomeMessages(now)),
	}
	if m.seed {
		opts = append(opts, chat.WithConversations(chat.SampleConversations(now)))
	}

	sess = &Session{
		ID:      id,
		Store:   chat.NewStore(opts...),
		Uploads: attachment.NewRegistry(m.blobs),
		prefs:   model.DefaultPreferences(),
	}
	sess.touch(now)
	sess.Store.Subscribe(m.observe)
	m.sessions[id] = sess
	m.mu.Unlock()

	m.logger.Debug("session created", zap.String("session_id", id))
	if evicted != nil {
		m.release(context.Background(), evicted, "session cap reached")
	}
	return sess
}

// EvictIdle drops the sessions unused for longer than the idle TTL and deletes their
// pending uploads. It returns how many sessions were dropped.
func (m *SessionManager) EvictIdle(ctx context.Context) int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var idle []*Session
	for id, sess := range m.sessions {
		if sess.seen().Before(cutoff) {
			idle = append(idle, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range idle {
		m.release(ctx, sess, "idle")
	}
	return len(idle)
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *SessionManager) oldestLocked() *Session {
	var oldest *Session
	for _, sess := range m.sessions {
		if oldest == nil || sess.seen().Before(oldest.seen()) {
			oldest = sess
		}
	}
	return oldest
}

func (m *SessionManager) release(ctx context.Context, sess *Session, reason string) {
	if err := sess.Uploads.Clear(ctx); err != nil {
		m.logger.Warn("failed to delete uploads of evicted session",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
	m.logger.Info("session evicted", zap.String("session_id", sess.ID), zap.String("reason", reason))
}

func (m *SessionManager) observe(ev model.Event) {
	switch ev.Type {
	case model.EventConversationCreated:
		metrics.RecordConversation(ev.Category.Slug())
		if ev.Message != nil {
			metrics.RecordMessage(ev.Category.Slug(), string(ev.Message.Sender))
		}
	case model.EventMessageAppended:
		metrics.RecordMessage(ev.Category.Slug(), string(ev.Message.Sender))
	}

	if m.publisher != nil {
		if err := m.publisher.PublishEvent(context.Background(), ev); err != nil {
			m.logger.Warn("failed to publish event",
				zap.String("session_id", ev.SessionID),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		}
	}
}
