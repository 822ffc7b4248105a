/*
Package auth resolves the authenticated caller for every request.

PURPOSE:
  The ledger engine trusts an externally issued identity; it never mints
  one. This package is that boundary: it validates the Bearer JWT on each
  request, extracts the subject as the opaque ledger.Identity, and injects
  it into the request context. Handlers read it back with FromContext.

TOKEN FORMAT:
  HS256-signed JWT. The "sub" claim is the identity token. No other claims
  are interpreted; roles live in the ledger, not in the token, so a stale
  token can never smuggle a revoked role past the service.

SEE ALSO:
  - api/server.go: Mounts Middleware on the /api tree
*/
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/caffeinepub/banana-earn/ledger"
)

var (
	// ErrMissingToken is returned when the Authorization header is absent
	// or not a Bearer scheme.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned for tokens that fail validation.
	ErrInvalidToken = errors.New("invalid token")
)

type identityKey struct{}

// WithIdentity stores the identity in the context. Exposed for tests and
// for embedding the service behind other transports.
func WithIdentity(ctx context.Context, id ledger.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the authenticated identity, if any.
func FromContext(ctx context.Context) (ledger.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(ledger.Identity)
	return id, ok
}

// ParseBearer validates an "Authorization: Bearer ..." header value and
// returns the identity carried in the token's subject.
func ParseBearer(header, secret string) (ledger.Identity, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMissingToken
	}
	return parseJWT(strings.TrimSpace(parts[1]), secret)
}

func parseJWT(tokenStr, secret string) (ledger.Identity, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}

	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return "", ErrInvalidToken
	}

	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return ledger.Identity(sub), nil
}

// Middleware authenticates every request and rejects those without a valid
// identity. 401 is strictly "who are you"; role decisions (403) belong to
// the service.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := ParseBearer(r.Header.Get("Authorization"), secret)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"authentication required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// SignToken mints an HS256 token for an identity. Used by tests and the
// local dev tooling; production identities come from the real issuer.
func SignToken(id ledger.Identity, secret string) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: string(id),
	})
	return tok.SignedString([]byte(secret))
}
