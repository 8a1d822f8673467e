package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fanliga/internal/cache"
	"fanliga/internal/gateway"
)

// Session binds a browser cookie to a state machine and the backend token.
type Session struct {
	ID      string
	Machine *Machine
	Token   gateway.Token
}

// Context returns ctx carrying the session's access token when signed in.
func (s *Session) Context(ctx context.Context) context.Context {
	if s == nil || !s.Machine.State().SignedIn() {
		return ctx
	}
	return gateway.WithAccessToken(ctx, s.Token.AccessToken)
}

// Store keeps signed-in sessions until their token or TTL expires.
type Store struct {
	auth     gateway.Authenticator
	sessions *cache.LRUCache[*Session]
	ttl      time.Duration
	observer Observer
	now      func() time.Time
}

const maxSessions = 1024

// NewStore returns a store signing in through auth. observer, when non-nil,
// is subscribed to every session the store creates.
func NewStore(auth gateway.Authenticator, ttl time.Duration, observer Observer) *Store {
	// Sessions dropped by expiry or capacity sign out so observers see it.
	sessions := cache.NewLRUCache[*Session](maxSessions, ttl).
		OnEvict(func(_ string, sess *Session) { sess.Machine.SignOut() })
	return &Store{
		auth:     auth,
		sessions: sessions,
		ttl:      ttl,
		observer: observer,
		now:      time.Now,
	}
}

// Cache exposes the underlying cache for periodic cleanup.
func (s *Store) Cache() cache.Cleaner { return s.sessions }

// SignIn drives a new session through Authenticating to Authenticated or
// Failed. Failed sessions are returned but not stored.
func (s *Store) SignIn(ctx context.Context, email, password string) (*Session, error) {
	sess := &Session{ID: uuid.NewString(), Machine: NewMachine()}
	if s.observer != nil {
		sess.Machine.Subscribe(s.observer)
	}
	if err := sess.Machine.Begin(); err != nil {
		return nil, err
	}

	profile, tok, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		_ = sess.Machine.Fail(err)
		slog.WarnContext(ctx, "Sign-in failed", "email", email, "error", err)
		return sess, fmt.Errorf("sign in: %w", err)
	}
	if !tok.Valid(s.now()) {
		err := fmt.Errorf("sign in: %w: expired token", gateway.ErrUnauthorized)
		_ = sess.Machine.Fail(err)
		return sess, err
	}
	if err := sess.Machine.Succeed(profile); err != nil {
		return nil, err
	}
	sess.Token = tok

	expires := s.now().Add(s.ttl)
	if !tok.ExpiresAt.IsZero() && tok.ExpiresAt.Before(expires) {
		expires = tok.ExpiresAt
	}
	s.sessions.SetUntil(sess.ID, sess, expires)
	slog.InfoContext(ctx, "Signed in", "user_id", profile.UserID, "admin", profile.Admin)
	return sess, nil
}

// Get returns a live session, or nil when the id is unknown or expired.
func (s *Store) Get(id string) *Session {
	if id == "" {
		return nil
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil
	}
	if !sess.Token.Valid(s.now()) {
		s.sessions.Delete(id)
		sess.Machine.SignOut()
		return nil
	}
	return sess
}

// SignOut drops the session and moves its machine back to Anonymous.
func (s *Store) SignOut(id string) {
	sess, ok := s.sessions.Get(id)
	s.sessions.Delete(id)
	if ok {
		sess.Machine.SignOut()
	}
}

// StateOf returns the state for id, Anonymous when there is no session.
func (s *Store) StateOf(id string) State {
	if sess := s.Get(id); sess != nil {
		return sess.Machine.State()
	}
	return State{Kind: Anonymous}
}
