package shared

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const (
	// CSRFSessionKey is the key used to persist tokens in the session store.
	CSRFSessionKey = "csrf_token"
	// CSRFHeader carries the token on unsafe requests.
	CSRFHeader = "X-CSRF-Token"
)

// CSRFManager issues and verifies CSRF tokens bound to a session.
type CSRFManager struct {
	secret []byte
}

// NewCSRFManager returns a CSRFManager using the provided secret key.
func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// EnsureToken retrieves or generates a CSRF token for the session.
func (m *CSRFManager) EnsureToken(ctx context.Context, sess *Session) (string, error) {
	if sess == nil {
		return "", errors.New("session missing")
	}
	if token := sess.Get(CSRFSessionKey); token != "" {
		return token, nil
	}
	token, err := m.generateToken(sess.ID)
	if err != nil {
		return "", err
	}
	sess.Set(CSRFSessionKey, token)
	return token, nil
}

// VerifyToken compares the supplied token with the session token.
func (m *CSRFManager) VerifyToken(ctx context.Context, sess *Session, token string) error {
	if sess == nil || token == "" {
		return ErrCSRFTokenMissing
	}
	expected := sess.Get(CSRFSessionKey)
	if expected == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

func (m *CSRFManager) generateToken(sessionID string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte(sessionID))
	_, _ = mac.Write([]byte{'|'})
	_, _ = mac.Write(nonce)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}
