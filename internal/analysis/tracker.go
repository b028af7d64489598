package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"AlphaPulse/internal/model"

	"github.com/google/uuid"
)

// ErrSuperseded means a newer request for the same session was issued
// before this one finished; its result must be discarded.
var ErrSuperseded = errors.New("analysis superseded by a newer request")

// Default session limits.
const (
	DefaultSessionTTL  = 30 * time.Minute
	DefaultMaxSessions = 10000
)

type session struct {
	token    string
	cancel   context.CancelFunc
	current  string
	status   model.Status
	lastSeen time.Time
}

// busy reports whether a request of the session is still in flight.
func (s *session) busy() bool { return s.cancel != nil }

// Tracker correlates analysis requests per session key. Only the latest
// request of a session may publish its result; starting a new one cancels
// the previous in-flight context.
//
// Sessions idle for longer than the TTL are forgotten, and the map never
// holds more than the configured maximum of idle sessions.
type Tracker struct {
	mu          sync.Mutex
	sessions    map[string]*session
	ttl         time.Duration
	maxSessions int
	now         func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithSessionTTL sets how long an idle session is remembered. Zero or less
// keeps the default.
func WithSessionTTL(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.ttl = d
		}
	}
}

// WithMaxSessions caps the number of remembered sessions.
func WithMaxSessions(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.maxSessions = n
		}
	}
}

// WithTrackerClock overrides the time source.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		sessions:    make(map[string]*session),
		ttl:         DefaultSessionTTL,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Len reports the number of remembered sessions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// prune drops idle sessions past the TTL, then the least recently seen idle
// sessions while the map is at capacity. Callers hold t.mu.
func (t *Tracker) prune(now time.Time) {
	for k, s := range t.sessions {
		if !s.busy() && now.Sub(s.lastSeen) > t.ttl {
			delete(t.sessions, k)
		}
	}
	for len(t.sessions) >= t.maxSessions {
		oldest, found := "", false
		var at time.Time
		for k, s := range t.sessions {
			if s.busy() {
				continue
			}
			if !found || s.lastSeen.Before(at) {
				oldest, at, found = k, s.lastSeen, true
			}
		}
		if !found {
			return
		}
		delete(t.sessions, oldest)
	}
}

// Begin issues a new request token for key and returns a context that is
// cancelled when a newer request begins.
func (t *Tracker) Begin(ctx context.Context, key string) (context.Context, string) {
	ctx, cancel := context.WithCancel(ctx)
	token := uuid.NewString()

	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	s, ok := t.sessions[key]
	if !ok {
		t.prune(now)
		s = &session{}
		t.sessions[key] = s
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.token = token
	s.cancel = cancel
	s.lastSeen = now
	return ctx, token
}

// Finish publishes res as the session's current result if token is still
// the latest. It reports false for a stale token, leaving state untouched.
func (t *Tracker) Finish(key, token string, res *model.AnalysisResult) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[key]
	if !ok || s.token != token {
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.current = res.Symbol
	s.status = res.Status
	s.lastSeen = t.now()
	return true
}

// Current returns the symbol of the session's last published result.
// ok is false when there is none or it was not a Found result.
func (t *Tracker) Current(key string) (symbol string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, exists := t.sessions[key]
	if !exists || s.status != model.StatusFound || t.expired(s) {
		return "", false
	}
	return s.current, true
}

// Latest reports the most recently issued token for key.
func (t *Tracker) Latest(key string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[key]; ok && !t.expired(s) {
		return s.token
	}
	return ""
}

// expired reports whether s would be dropped by the next prune.
func (t *Tracker) expired(s *session) bool {
	return !s.busy() && t.now().Sub(s.lastSeen) > t.ttl
}
