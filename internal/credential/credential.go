// Package credential carries the caller's bearer token through a turn's
// context so nested outbound calls can authenticate without explicit
// parameter threading.
//
// The token rides on context.Context, so concurrent turns for different
// users are isolated by construction. Reads never fail: an absent token
// yields the empty string and outbound calls simply go unauthenticated.
package credential

import "context"

type contextKey struct{}

// WithToken returns a context carrying the given bearer token. Passing an
// empty token is allowed and yields an anonymous scope.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKey{}, token)
}

// Token returns the bearer token for this scope, or "" when none is set.
func Token(ctx context.Context) string {
	tok, _ := ctx.Value(contextKey{}).(string)
	return tok
}
