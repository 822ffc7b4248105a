package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caffeinepub/banana-earn/auth"
	"github.com/caffeinepub/banana-earn/ledger"
)

const secret = "test-secret"

func TestParseBearer_RoundtripSubject(t *testing.T) {
	token, err := auth.SignToken("identity-42", secret)
	require.NoError(t, err)

	id, err := auth.ParseBearer("Bearer "+token, secret)
	require.NoError(t, err)
	assert.Equal(t, ledger.Identity("identity-42"), id)
}

func TestParseBearer_MissingOrMalformedHeader(t *testing.T) {
	for _, header := range []string{"", "Bearer", "Basic abc", "token-without-scheme"} {
		_, err := auth.ParseBearer(header, secret)
		assert.ErrorIs(t, err, auth.ErrMissingToken, "header %q", header)
	}
}

func TestParseBearer_WrongSecretRejected(t *testing.T) {
	token, err := auth.SignToken("identity-42", secret)
	require.NoError(t, err)

	_, err = auth.ParseBearer("Bearer "+token, "other-secret")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestParseBearer_WrongAlgorithmRejected(t *testing.T) {
	// An unsigned token must not pass however its header spells the alg.
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "identity-42"})
	raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = auth.ParseBearer("Bearer "+raw, secret)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestParseBearer_EmptySubjectRejected(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{})
	raw, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = auth.ParseBearer("Bearer "+raw, secret)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestMiddleware_InjectsIdentity(t *testing.T) {
	var seen ledger.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		require.True(t, ok)
		seen = id
	})

	token, err := auth.SignToken("identity-42", secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	auth.Middleware(secret)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ledger.Identity("identity-42"), seen)
}

func TestMiddleware_RejectsAnonymous(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for anonymous requests")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	auth.Middleware(secret)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
