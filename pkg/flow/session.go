package flow

import (
	"sync"

	"github.com/go-rod/rod"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tokenrelay/tokenrelay/pkg/types"
)

// Session owns one browser and one page for the duration of a single login
// request. It is never shared between requests and is closed on every exit
// path, success or failure.
type Session struct {
	id      string
	logger  zerolog.Logger
	browser *rod.Browser
	page    *rod.Page
	release func()

	// storageDump reads one storage area as key/value pairs. Defaults to
	// evaluating on the session page; replaceable in tests.
	storageDump func(area string) ([][2]string, error)

	// ownsBrowser is true in launcher mode, where the whole Chrome process
	// belongs to this session. In remote mode the session holds a private
	// incognito context on a shared Chrome: cookies and storage are still
	// ours alone, but the target list spans every context.
	ownsBrowser bool

	mu      sync.Mutex
	token   *types.CapturedToken
	cleaned bool
	closed  bool
}

func newSession(logger zerolog.Logger, browser *rod.Browser, release func(), ownsBrowser bool) *Session {
	id := uuid.NewString()
	return &Session{
		id:          id,
		logger:      logger.With().Str("session_id", id).Logger(),
		browser:     browser,
		release:     release,
		ownsBrowser: ownsBrowser,
	}
}

// ID is the correlation id used in logs for this session.
func (s *Session) ID() string { return s.id }

// SetToken records a captured token. The slot is single-assignment: the
// first writer wins and later observations are ignored. Reports whether the
// value was stored.
func (s *Session) SetToken(value string, source types.TokenSource) bool {
	if value == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil {
		return false
	}
	s.token = &types.CapturedToken{Value: value, Source: source}
	s.logger.Info().Str("source", string(source)).Msg("token captured")
	return true
}

// Token returns the captured token, or nil if none was observed.
func (s *Session) Token() *types.CapturedToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Cleanup removes authentication artifacts from the browser before it is
// closed: cookies, both storage areas, and any secondary pages opened
// during the flow. It is best-effort and idempotent; failures are logged
// and swallowed, never escalated.
func (s *Session) Cleanup() {
	s.mu.Lock()
	if s.cleaned || s.closed {
		s.mu.Unlock()
		return
	}
	s.cleaned = true
	s.mu.Unlock()

	if s.page == nil {
		return
	}

	s.logger.Info().Msg("cleaning up session artifacts")

	// The cookie wipe is scoped to this session's browser: the whole process
	// in launcher mode, its own incognito context in remote mode.
	if cookies, err := s.page.Cookies(nil); err != nil {
		s.logger.Warn().Err(err).Msg("cleanup: failed to list cookies")
	} else if len(cookies) > 0 {
		if err := s.browser.SetCookies(nil); err != nil {
			s.logger.Warn().Err(err).Msg("cleanup: failed to clear cookies")
		}
	}

	if _, err := s.page.Eval(`() => { localStorage.clear(); sessionStorage.clear(); }`); err != nil {
		s.logger.Warn().Err(err).Msg("cleanup: failed to clear storage")
	}

	// Other pages may belong to concurrent sessions on a shared remote
	// Chrome, so only prune them when this session owns the process.
	if s.ownsBrowser {
		pages, err := s.browser.Pages()
		if err != nil {
			s.logger.Warn().Err(err).Msg("cleanup: failed to list pages")
			return
		}
		for _, p := range pages {
			if p.TargetID == s.page.TargetID {
				continue
			}
			if err := p.Close(); err != nil {
				s.logger.Warn().Err(err).Msg("cleanup: failed to close secondary page")
			}
		}
	}
}

// Close tears the session down. Safe to call more than once; only the
// first call does anything.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.page != nil && !s.ownsBrowser {
		if err := s.page.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("error closing page")
		}
	}
	if s.release != nil {
		s.release()
	}
	s.logger.Info().Msg("session closed")
}
