package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "finvera:sess:"

// SessionManager stores sessions in Redis and ties them to a browser
// cookie. Handlers mutate the Session in memory; the middleware commits
// it back exactly once per request.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	secret     []byte
	ttl        time.Duration
	secure     bool
}

func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		secret:     []byte(secret),
		ttl:        ttl,
		secure:     secure,
	}
}

// Session is the per-request view of one stored session. The identity
// pair (user, company) is kept apart from free-form values so guards
// never depend on string keys.
type Session struct {
	ID string

	userID    string
	companyID string
	values    map[string]string

	fresh     bool
	dirty     bool
	destroyed bool
}

type sessionRecord struct {
	UserID    string            `json:"user_id"`
	CompanyID string            `json:"company_id"`
	Values    map[string]string `json:"values,omitempty"`
}

// Load resolves the session referenced by the request cookie. A missing
// cookie or an expired Redis record both yield a fresh session, so
// callers never see an error for the anonymous case.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return sm.blank(""), nil
	}
	if err != nil {
		return nil, err
	}

	raw, err := sm.client.Get(ctx, sessionKeyPrefix+cookie.Value).Bytes()
	if errors.Is(err, redis.Nil) {
		return sm.blank(cookie.Value), nil
	}
	if err != nil {
		return nil, err
	}

	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	sess := sm.blank(cookie.Value)
	sess.fresh = false
	sess.dirty = false
	sess.userID = rec.UserID
	sess.companyID = rec.CompanyID
	if rec.Values != nil {
		sess.values = rec.Values
	}
	return sess, nil
}

// Commit writes the session back to Redis and emits the matching
// Set-Cookie header. Destroyed sessions are deleted and the cookie is
// expired instead.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if err := sm.client.Del(ctx, sessionKeyPrefix+sess.ID).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, sm.cookie("", -1, time.Time{}))
		return nil
	}

	if sess.dirty || sess.fresh {
		raw, err := json.Marshal(sessionRecord{
			UserID:    sess.userID,
			CompanyID: sess.companyID,
			Values:    sess.values,
		})
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sessionKeyPrefix+sess.ID, raw, sm.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
	}

	http.SetCookie(w, sm.cookie(sess.ID, 0, time.Now().Add(sm.ttl)))
	return nil
}

// Destroy marks the session for removal at commit time.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess != nil {
		sess.destroyed = true
	}
}

func (sm *SessionManager) TTL() time.Duration { return sm.ttl }

func (sm *SessionManager) CookieName() string { return sm.cookieName }

func (sm *SessionManager) blank(id string) *Session {
	if id == "" {
		id = newSessionID()
	}
	return &Session{
		ID:     id,
		values: make(map[string]string),
		fresh:  true,
		dirty:  true,
	}
}

func (sm *SessionManager) cookie(value string, maxAge int, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  expires,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// SetIdentity binds the session to an authenticated user and their
// company scope.
func (s *Session) SetIdentity(userID, companyID string) {
	s.userID = userID
	s.companyID = companyID
	s.dirty = true
}

// User returns the authenticated user ID, empty for anonymous sessions.
func (s *Session) User() string { return s.userID }

// Company returns the company scope bound at login.
func (s *Session) Company() string { return s.companyID }

// Set stores an arbitrary string value on the session.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get returns a stored value, empty when absent.
func (s *Session) Get(key string) string {
	return s.values[key]
}

// Delete removes a stored value.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

func newSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
