package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager orchestrates cookie based sessions backed by Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
	onDestroy  []func(id string)
}

// Session holds per-request session data.
type Session struct {
	ID        string
	values    map[string]string
	userID    string
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionPayload struct {
	Values map[string]string `json:"values"`
	UserID string            `json:"user_id"`
}

// NewSessionManager constructs a SessionManager. Cookie values are signed
// with secret.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// OnDestroy registers a callback run after a session is destroyed.
func (sm *SessionManager) OnDestroy(fn func(id string)) {
	sm.onDestroy = append(sm.onDestroy, fn)
}

// Load loads or creates a new session for request.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}
	id, ok := sm.verify(cookie.Value)
	if !ok {
		return sm.newSession(), nil
	}

	payload, err := sm.client.Get(ctx, sm.redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}
	sess := &Session{ID: id, values: stored.Values, userID: stored.UserID}
	if sess.values == nil {
		sess.values = make(map[string]string)
	}
	return sess, nil
}

// Commit persists the session and writes cookie headers as needed. Existing
// sessions get their TTL refreshed on every request.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if err := sm.client.Del(ctx, sm.redisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
		})
		for _, fn := range sm.onDestroy {
			fn(sess.ID)
		}
		return nil
	}

	if sess.dirty || sess.isNew {
		data, err := json.Marshal(sessionPayload{Values: sess.values, UserID: sess.userID})
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
		sess.isNew = false
	} else if err := sm.client.Expire(ctx, sm.redisKey(sess.ID), sm.ttl).Err(); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sm.sign(sess.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(sm.ttl),
	})
	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	if s.values == nil {
		return ""
	}
	return s.values[key]
}

// SetUser associates the session with a user ID.
func (s *Session) SetUser(id string) {
	s.userID = id
	s.dirty = true
}

// User returns the current user ID.
func (s *Session) User() string {
	return s.userID
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:     uuid.NewString(),
		values: make(map[string]string),
		isNew:  true,
		dirty:  true,
	}
}

func (sm *SessionManager) redisKey(id string) string {
	return "billdesk:session:" + id
}

func (sm *SessionManager) sign(id string) string {
	mac := hmac.New(sha256.New, sm.secret)
	_, _ = mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (sm *SessionManager) verify(value string) (string, bool) {
	id, _, found := strings.Cut(value, ".")
	if !found {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	if !hmac.Equal([]byte(sm.sign(id)), []byte(value)) {
		return "", false
	}
	return id, true
}
