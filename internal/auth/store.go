package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 24 * time.Hour

var (
	ErrUnknownToken = errors.New("unknown token")
	ErrExpiredToken = errors.New("expired token")
)

// Session is an issued API token.
type Session struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore handles token persistence in SQLite.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a store backed by the given SQL database.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Issue creates and persists a new session for subject. A non-positive ttl
// falls back to DefaultTTL.
func (s *SessionStore) Issue(subject string, ttl time.Duration) (*Session, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &Session{
		Token:     token,
		Subject:   subject,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (token, subject, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
		sess.Token, sess.Subject, sess.CreatedAt.UnixNano(), sess.ExpiresAt.UnixNano())
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate looks up a token and checks expiry. Expired tokens are removed.
func (s *SessionStore) Validate(token string) (*Session, error) {
	var sess Session
	var created, expires int64
	err := s.db.QueryRow(`
		SELECT token, subject, created_at, expires_at
		FROM sessions WHERE token = ?`, token).
		Scan(&sess.Token, &sess.Subject, &created, &expires)
	if err == sql.ErrNoRows {
		return nil, ErrUnknownToken
	}
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = time.Unix(0, created).UTC()
	sess.ExpiresAt = time.Unix(0, expires).UTC()

	if time.Now().After(sess.ExpiresAt) {
		s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
		return nil, ErrExpiredToken
	}
	return &sess, nil
}

// Revoke deletes a token. Revoking an unknown token is not an error.
func (s *SessionStore) Revoke(token string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// PurgeExpired removes all expired sessions and reports how many were dropped.
func (s *SessionStore) PurgeExpired() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at < ?`, time.Now().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
