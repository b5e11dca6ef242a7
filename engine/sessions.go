package engine

import (
	"sync"
	"time"

	"github.com/drummonds/godjvu/djvu"
)

type session struct {
	ctx      *djvu.Context
	lastUsed time.Time
}

// SessionStore keeps one loaded document context per catalogued document,
// keyed by the document ULID
type SessionStore struct {
	mu       sync.Mutex
	cfg      djvu.Config
	sessions map[string]*session
	now      func() time.Time
}

// NewSessionStore creates an empty store whose contexts use cfg
func NewSessionStore(cfg djvu.Config) *SessionStore {
	return &SessionStore{
		cfg:      cfg,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Config returns the context configuration sessions are created with
func (s *SessionStore) Config() djvu.Config {
	return s.cfg
}

// NewContext creates a context outside the store, eg for export workers
func (s *SessionStore) NewContext(path string) (*djvu.Context, error) {
	ctx, err := djvu.NewContext(s.cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Load(path); err != nil {
		ctx.Close()
		return nil, err
	}
	return ctx, nil
}

// Open returns the session for id, loading path into a new context when none
// is open yet
func (s *SessionStore) Open(id, path string) (*djvu.Context, error) {
	if ctx, ok := s.Get(id); ok {
		return ctx, nil
	}

	// Loading can be slow so it happens without the store lock
	ctx, err := s.NewContext(path)
	if err != nil {
		return nil, err
	}
	return s.Adopt(id, ctx), nil
}

// Adopt stores an already loaded context under id. If another caller opened
// the same id first, ctx is closed and the existing context is returned.
func (s *SessionStore) Adopt(id string, ctx *djvu.Context) *djvu.Context {
	s.mu.Lock()
	if existing, ok := s.sessions[id]; ok {
		existing.lastUsed = s.now()
		s.mu.Unlock()
		ctx.Close()
		return existing.ctx
	}
	s.sessions[id] = &session{ctx: ctx, lastUsed: s.now()}
	s.mu.Unlock()

	Logger.Debug("Opened document session", "id", id, "path", ctx.Path())
	return ctx
}

// Get returns the open context for id and marks it used
func (s *SessionStore) Get(id string) (*djvu.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastUsed = s.now()
	return sess.ctx, true
}

// Close closes and forgets the session for id
func (s *SessionStore) Close(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.ctx.Close()
		Logger.Debug("Closed document session", "id", id)
	}
	return ok
}

// CloseIf closes the session for id only while it still holds ctx, so a
// caller with a stale context cannot close one another caller just opened
func (s *SessionStore) CloseIf(id string, ctx *djvu.Context) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	ok = ok && sess.ctx == ctx
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if ok {
		sess.ctx.Close()
		Logger.Debug("Closed document session", "id", id)
	}
	return ok
}

// EvictIdle closes sessions unused for longer than maxIdle and returns how
// many were closed
func (s *SessionStore) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	var idle []*session
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.ctx.Close()
	}
	if len(idle) > 0 {
		Logger.Info("Evicted idle document sessions", "count", len(idle))
	}
	return len(idle)
}

// CloseAll closes every session
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.ctx.Close()
	}
}

// Len returns the number of open sessions
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
