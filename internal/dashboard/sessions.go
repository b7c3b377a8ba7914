package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mall-dashboard/internal/metrics"
	"mall-dashboard/internal/urlstate"
)

// Session is one browser tab: its URL and the controller driving it.
type Session struct {
	ID         string
	Controller *Controller
	Location   *urlstate.Query

	lastSeen time.Time
	streams  int
}

// Sessions owns the live tabs. A session with no open stream is dropped once
// it has been idle for the TTL.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session

	source  Source
	cfg     Config
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewSessions(source Source, cfg Config, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Sessions{
		sessions: make(map[string]*Session),
		source:   source,
		cfg:      cfg,
		ttl:      ttl,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Open starts a session for a tab that loaded path?rawQuery.
func (s *Sessions) Open(path, rawQuery string) *Session {
	loc := urlstate.ParseQuery(path, rawQuery)
	sess := &Session{
		ID:       uuid.NewString(),
		Location: loc,
	}
	sess.Controller = New(loc, s.source, s.cfg, s.logger.With("session_id", sess.ID))

	s.mu.Lock()
	sess.lastSeen = s.now()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetSessions(n)
	s.logger.Debug("session opened", "session_id", sess.ID, "url", loc.URL())
	return sess
}

// Get returns the session and marks it as seen.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.lastSeen = s.now()
	}
	return sess, ok
}

// Acquire pins a session for the life of a stream. The returned func
// releases it.
func (s *Sessions) Acquire(id string) (*Session, func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil, false
	}
	sess.streams++
	sess.lastSeen = s.now()

	var once sync.Once
	return sess, func() {
		once.Do(func() {
			s.mu.Lock()
			sess.streams--
			sess.lastSeen = s.now()
			s.mu.Unlock()
		})
	}, true
}

// Sweep closes idle sessions and reports how many went.
func (s *Sessions) Sweep(now time.Time) int {
	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.streams == 0 && now.Sub(sess.lastSeen) > s.ttl {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Controller.Close()
	}
	if len(expired) > 0 {
		s.metrics.SetSessions(n)
		s.logger.Debug("expired idle sessions", "count", len(expired), "remaining", n)
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done.
func (s *Sessions) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close shuts every session down.
func (s *Sessions) Close(ctx context.Context) error {
	s.mu.Lock()
	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		sess.Controller.Close()
	}
	s.metrics.SetSessions(0)
	return nil
}
