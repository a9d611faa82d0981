// Package auth validates the bearer tokens and api keys presented to the hosted api.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Scopes granted to workout log clients.
const (
	ScopeWorkoutsRead  = "workouts:read"
	ScopeWorkoutsWrite = "workouts:write"
)

// Config holds token verification parameters.
type Config struct {
	Secret string
	Issuer string
	// APIKey, when set, must be echoed in the apikey header of every request.
	APIKey string
}

// Claims represents the payload extracted from a JWT. Subject owns the logs.
type Claims struct {
	Subject   string
	Scopes    map[string]struct{}
	ExpiresAt time.Time
}

var (
	// ErrMissingToken is returned when the Authorization header is absent.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken wraps parsing and validation errors.
	ErrInvalidToken = errors.New("invalid bearer token")
	// ErrInvalidAPIKey is returned when the apikey header does not match.
	ErrInvalidAPIKey = errors.New("invalid api key")
)

// RoleAuthenticated is the role hosted auth providers put on signed-in user tokens. Such
// tokens carry no scope claim and get read and write access to their own logs.
const RoleAuthenticated = "authenticated"

// tokenClaims is the accepted JWT payload. Scopes may arrive as a "scopes" list, a
// space-separated "scopes" string or an OAuth style "scope" string.
type tokenClaims struct {
	Scopes scopeList `json:"scopes,omitempty"`
	Scope  string    `json:"scope,omitempty"`
	Role   string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("scopes must be a string or a list of strings")
	}
	*s = strings.Fields(joined)
	return nil
}

// Parse validates an HS256 token and returns normalized claims.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(tc.Subject) == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	out := &Claims{Subject: tc.Subject, Scopes: scopeSet(tc)}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.Time
	}
	return out, nil
}

func scopeSet(tc tokenClaims) map[string]struct{} {
	out := make(map[string]struct{})
	for _, scope := range append([]string(tc.Scopes), strings.Fields(tc.Scope)...) {
		if scope = strings.TrimSpace(scope); scope != "" {
			out[scope] = struct{}{}
		}
	}
	if len(out) == 0 && tc.Role == RoleAuthenticated {
		out[ScopeWorkoutsRead] = struct{}{}
		out[ScopeWorkoutsWrite] = struct{}{}
	}
	return out
}

// HasScope reports whether the claim set includes scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Scopes[scope]
	return ok
}

type contextKey string

const claimsKey contextKey = "fitlog-auth-claims"

// WithClaims stores claims on the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// FromContext retrieves claims stored by WithClaims.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}
