package client

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials resolves the bearer token for one call
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token
type StaticToken string

// Token returns the token, or ErrSessionExpired when it is empty or past its expiry
func (t StaticToken) Token(ctx context.Context) (string, error) {
	raw := strings.TrimSpace(string(t))
	if err := checkExpiry(raw, time.Now()); err != nil {
		return "", err
	}
	return raw, nil
}

// TokenFile stores the token issued at login on disk
type TokenFile struct {
	path string
}

// NewTokenFile uses the token stored at path
func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

// Token reads the stored token; absence is an expired session
func (f *TokenFile) Token(ctx context.Context) (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("no stored token: %w", ErrSessionExpired)
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return StaticToken(data).Token(ctx)
}

// Save stores a token readable only by the current user
func (f *TokenFile) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(token), 0600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Clear removes the stored token
func (f *TokenFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// checkExpiry reads the exp claim without verifying the signature;
// the server still verifies every request.
func checkExpiry(raw string, now time.Time) error {
	if raw == "" {
		return fmt.Errorf("no token: %w", ErrSessionExpired)
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return fmt.Errorf("malformed token: %w", ErrSessionExpired)
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return fmt.Errorf("token expired at %s: %w", claims.ExpiresAt.Format(time.RFC3339), ErrSessionExpired)
	}
	return nil
}
