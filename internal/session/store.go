// Package session persists the API credential used to reach the remote
// meal planning backend.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoCredential is returned when no token has been stored.
	ErrNoCredential = errors.New("no api credential stored, run the login command")
	// ErrExpired is returned when the stored token is past its exp claim.
	ErrExpired = errors.New("stored api credential has expired")
)

const defaultName = "api"

// Credential is a stored bearer token.
type Credential struct {
	Token     string
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

// Expired reports whether the credential is past its expiry at now.
func (c Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Store keeps the API credential in SQLite and serves it to the REST client.
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu     sync.Mutex
	cached *Credential
}

// NewStore creates a new credential Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Save stores token, replacing any previous one. Tokens that look like JWTs
// have their exp claim recorded; opaque tokens never expire.
func (s *Store) Save(ctx context.Context, token string) (Credential, error) {
	if token == "" {
		return Credential{}, errors.New("token is empty")
	}

	c := Credential{
		Token:     token,
		ExpiresAt: expiryOf(token),
		UpdatedAt: s.now().UTC(),
	}
	if c.Expired(s.now()) {
		return Credential{}, ErrExpired
	}

	var expires sql.NullInt64
	if c.ExpiresAt != nil {
		expires = sql.NullInt64{Int64: c.ExpiresAt.Unix(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (name, token, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			token = excluded.token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		defaultName, c.Token, expires, c.UpdatedAt.UnixMilli())
	if err != nil {
		return Credential{}, fmt.Errorf("failed to save credential: %w", err)
	}

	s.mu.Lock()
	s.cached = &c
	s.mu.Unlock()

	log.Info().Bool("expires", c.ExpiresAt != nil).Msg("api credential saved")
	return c, nil
}

// Get returns the stored credential, or nil when there is none.
func (s *Store) Get(ctx context.Context) (*Credential, error) {
	s.mu.Lock()
	if s.cached != nil {
		c := *s.cached
		s.mu.Unlock()
		return &c, nil
	}
	s.mu.Unlock()

	var (
		c         Credential
		expires   sql.NullInt64
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT token, expires_at, updated_at FROM credentials WHERE name = ?`, defaultName,
	).Scan(&c.Token, &expires, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	if expires.Valid {
		t := time.Unix(expires.Int64, 0).UTC()
		c.ExpiresAt = &t
	}
	c.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	s.mu.Lock()
	s.cached = &c
	s.mu.Unlock()
	return &c, nil
}

// Token implements remote.TokenSource.
func (s *Store) Token(ctx context.Context) (string, error) {
	c, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", ErrNoCredential
	}
	if c.Expired(s.now()) {
		return "", ErrExpired
	}
	return c.Token, nil
}

// Bootstrap saves token when nothing usable is stored yet. It is how the
// MEALSYNC_API_TOKEN environment variable seeds a fresh database.
func (s *Store) Bootstrap(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	c, err := s.Get(ctx)
	if err != nil {
		return err
	}
	if c != nil && c.Token == token {
		return nil
	}
	if c != nil && !c.Expired(s.now()) {
		log.Debug().Msg("keeping stored api credential over environment token")
		return nil
	}

	_, err = s.Save(ctx, token)
	return err
}

// Clear removes the stored credential.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE name = ?`, defaultName); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
	return nil
}

// expiryOf reads the exp claim without verifying the signature; the backend
// is the one that verifies it.
func expiryOf(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time.UTC()
	return &t
}
