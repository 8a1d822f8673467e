package gateway

import (
	"context"
	"time"
)

// Token is the bearer credential issued by the backend on sign-in.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether the token is set and not yet expired at now.
func (t Token) Valid(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.IsZero() || now.Before(t.ExpiresAt)
}

type tokenKey struct{}

// WithAccessToken attaches the caller's access token to ctx. Writes require it.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// AccessToken returns the token attached by WithAccessToken.
func AccessToken(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok && tok != ""
}
