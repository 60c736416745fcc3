package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	DefaultSessionTTL      = 30 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
)

// ServiceConfig configures the session registry.
type ServiceConfig struct {
	Session         SessionConfig
	TTL             time.Duration
	CleanupInterval time.Duration
	Logger          *zap.Logger
}

// Service keeps live sessions in memory. A session that is not accessed for
// TTL is evicted and closed.
type Service struct {
	sessions *cache.Cache
	cfg      SessionConfig
	logger   *zap.Logger
}

// NewService bootstraps the in-memory session registry.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sessionCfg := cfg.Session
	if sessionCfg.Logger == nil {
		sessionCfg.Logger = logger
	}

	s := &Service{
		sessions: cache.New(ttl, interval),
		cfg:      sessionCfg,
		logger:   logger,
	}
	s.sessions.OnEvicted(func(id string, v interface{}) {
		if sess, ok := v.(*Session); ok {
			sess.Close()
		}
		logger.Debug("session evicted", zap.String("session_id", id))
	})
	return s
}

// CreateSession provisions an anonymous session.
func (s *Service) CreateSession(_ context.Context) (*Session, error) {
	sess, err := NewSession(uuid.NewString(), s.cfg)
	if err != nil {
		return nil, err
	}
	s.sessions.SetDefault(sess.ID(), sess)
	s.logger.Info("session created", zap.String("session_id", sess.ID()))
	return sess, nil
}

// GetSession retrieves a live session and refreshes its expiry.
func (s *Service) GetSession(_ context.Context, sessionID string) (*Session, error) {
	v, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess := v.(*Session)
	if sess.Closed() {
		s.sessions.Delete(sessionID)
		return nil, ErrSessionNotFound
	}
	s.sessions.SetDefault(sessionID, sess)
	return sess, nil
}

// CloseSession removes and closes a session.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	if _, ok := s.sessions.Get(sessionID); !ok {
		return ErrSessionNotFound
	}
	s.sessions.Delete(sessionID)
	return nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	return s.sessions.ItemCount()
}

// Shutdown closes every live session.
func (s *Service) Shutdown() {
	for id := range s.sessions.Items() {
		s.sessions.Delete(id)
	}
}
