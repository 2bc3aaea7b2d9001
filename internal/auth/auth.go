// Package auth verifies client bearer tokens and extracts the user identity.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/concierge-ai/concierge/internal/credential"
)

var (
	// ErrMissingToken means no bearer token was supplied.
	ErrMissingToken = errors.New("auth: missing token")
	// ErrExpiredToken means the token's exp claim has passed.
	ErrExpiredToken = errors.New("auth: token expired")
	// ErrInvalidToken covers malformed tokens, bad signatures, and tokens
	// without a usable identity claim.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Verifier parses HS512-signed JWTs issued by the account backend.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier with the shared signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// UserID validates the token and returns the user identity from the first
// present of the userId, sub, or id claims.
func (v *Verifier) UserID(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS512"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	for _, key := range []string{"userId", "sub", "id"} {
		if id := claimString(claims, key); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no identity claim", ErrInvalidToken)
}

// claimString renders a claim as a string; numeric ids are common in tokens
// minted by the account backend.
func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

// Middleware guards REST endpoints: it requires a valid Authorization bearer
// header, stores the raw token in the credential context, and exposes the
// user id to handlers via UserFromContext.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		userID, err := v.UserID(token)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintf(w, `{"code":401,"message":%q}`, err.Error())
			return
		}

		ctx := credential.WithToken(r.Context(), token)
		ctx = withUser(ctx, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}
