// Package session keeps the server-side state of each browser.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coursematch/coursematch-web/internal/card"
	"github.com/coursematch/coursematch-web/internal/ctxutil"
	"github.com/coursematch/coursematch-web/internal/debounce"
	"github.com/coursematch/coursematch-web/internal/i18n"
	"github.com/coursematch/coursematch-web/internal/logger"
	"github.com/coursematch/coursematch-web/internal/metrics"
	"github.com/coursematch/coursematch-web/internal/notify"
	"github.com/coursematch/coursematch-web/internal/search"
)

// Backend is the API surface a session calls.
type Backend interface {
	search.Matcher
	card.Sender
}

// Deps are shared by every session.
type Deps struct {
	Backend         Backend
	Ledger          card.Ledger // optional
	Capture         notify.CaptureFunc
	Debounce        time.Duration
	DebounceOptions []debounce.Option
	Metrics         *metrics.Metrics
	Logger          *logger.Logger
}

// Session is the state of one browser.
type Session struct {
	ID      string
	Flow    *search.Flow
	Cards   *card.Board
	Locale  *i18n.Store
	Errors  *notify.Reporter
	Confirm *notify.Confirmer

	mu       sync.Mutex
	lastSeen time.Time
}

func newSession(id string, locale i18n.Locale, deps Deps, now time.Time) *Session {
	ctx := ctxutil.WithSessionID(context.Background(), id)

	var log *logger.Logger
	if deps.Logger != nil {
		log = deps.Logger.WithField("session_id", id)
	}

	errs := notify.NewReporter(notify.ReporterOptions{Logger: log, Capture: deps.Capture})
	return &Session{
		ID: id,
		Flow: search.NewFlow(ctx, deps.Backend, errs, search.Options{
			Debounce:        deps.Debounce,
			DebounceOptions: deps.DebounceOptions,
			Metrics:         deps.Metrics,
			Logger:          log,
		}),
		Cards: card.NewBoard(deps.Backend, errs, card.Options{
			Ledger:  deps.Ledger,
			Metrics: deps.Metrics,
			Logger:  log,
		}),
		Locale:   i18n.NewStore(locale),
		Errors:   errs,
		Confirm:  notify.NewConfirmer(),
		lastSeen: now,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

func (s *Session) close() {
	s.Flow.Close()
}

// Options configures a Store.
type Options struct {
	TTL           time.Duration // idle time after which a session is dropped
	SweepInterval time.Duration
	MaxSessions   int // 0 = no cap; when full, Create evicts the least recently seen
}

// Store holds live sessions by ID.
type Store struct {
	deps Deps
	opts Options
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewStore creates an empty store.
func NewStore(deps Deps, opts Options) *Store {
	return &Store{
		deps:     deps,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the live session id and marks it as used.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	sess.touch(s.now())
	return sess, true
}

// Create starts a new session showing locale. A full store evicts its least
// recently seen session first.
func (s *Store) Create(locale i18n.Locale) *Session {
	now := s.now()
	sess := newSession(uuid.NewString(), locale, s.deps, now)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sess.close()
		return sess
	}
	var evicted *Session
	if s.opts.MaxSessions > 0 && len(s.sessions) >= s.opts.MaxSessions {
		evicted = s.oldestLocked(now)
		delete(s.sessions, evicted.ID)
	}
	s.sessions[sess.ID] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	if evicted != nil {
		evicted.close()
		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordSessionEvicted()
		}
		if s.deps.Logger != nil {
			s.deps.Logger.WithModule("session").Debug("Session evicted at capacity",
				"session_id", evicted.ID, "max", s.opts.MaxSessions)
		}
	}
	s.report(count)
	return sess
}

func (s *Store) oldestLocked(now time.Time) *Session {
	var oldest *Session
	var longest time.Duration
	for _, sess := range s.sessions {
		if idle := sess.idleSince(now); oldest == nil || idle > longest {
			oldest, longest = sess, idle
		}
	}
	return oldest
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Store) Sweep() int {
	now := s.now()
	var expired []*Session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.idleSince(now) > s.opts.TTL {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		sess.close()
	}
	s.report(count)

	if len(expired) > 0 && s.deps.Logger != nil {
		s.deps.Logger.WithModule("session").Debug("Expired sessions swept",
			"removed", len(expired), "remaining", count)
	}
	return len(expired)
}

// Run sweeps expired sessions every SweepInterval until ctx is done.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Close closes every session. Later Creates return closed sessions that are
// not stored.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Go(sess.close)
	}
	wg.Wait()
	s.report(0)
}

func (s *Store) report(count int) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.SetActiveSessions(count)
	}
}
