// Package auth resolves the active owner identity from the stored ID token.
// Sign-in flows and token refresh happen elsewhere; this package only reads,
// replaces and clears the credential handed to it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lexipath/lexisync/internal/model"
	"github.com/lexipath/lexisync/pkg/credman/keyring"
)

// Claims are the ID token claims lexisync reads.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Owner returns the stable identity of the token holder.
func (c *Claims) Owner() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// Session exposes the current credential to the remote client and the
// current owner to the jobs.
type Session struct {
	store keyring.Store
	now   func() time.Time
}

func NewSession(store keyring.Store) *Session {
	return &Session{store: store, now: time.Now}
}

// ParseToken decodes the claims of an ID token without verifying its
// signature. The backend verifies it; lexisync only needs the owner and expiry.
func ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}
	if claims.Owner() == "" {
		return nil, errors.New("id token has no subject")
	}
	return claims, nil
}

func (s *Session) claims() (string, *Claims, error) {
	token, err := s.store.Get()
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	claims, err := ParseToken(token)
	if err != nil {
		return "", nil, err
	}
	if claims.ExpiresAt != nil && !s.now().Before(claims.ExpiresAt.Time) {
		return "", nil, nil
	}
	return token, claims, nil
}

// Token returns the bearer token, or "" when nobody is signed in or the
// stored token has expired.
func (s *Session) Token(ctx context.Context) (string, error) {
	token, _, err := s.claims()
	return token, err
}

// Owner returns the active owner id, or a KindNotAuthenticated error.
func (s *Session) Owner(ctx context.Context) (string, error) {
	_, claims, err := s.claims()
	if err != nil {
		return "", model.E(model.KindNotAuthenticated, "auth.owner", err)
	}
	if claims == nil {
		return "", model.NotAuthenticated("auth.owner")
	}
	return claims.Owner(), nil
}

// SignIn stores token after checking that it names an owner.
func (s *Session) SignIn(token string) (string, error) {
	claims, err := ParseToken(token)
	if err != nil {
		return "", err
	}
	if err := s.store.Set(token); err != nil {
		return "", fmt.Errorf("store id token: %w", err)
	}
	return claims.Owner(), nil
}

// SignOut forgets the stored token.
func (s *Session) SignOut() error {
	return s.store.Delete()
}
