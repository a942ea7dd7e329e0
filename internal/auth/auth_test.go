package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJWT = NewJWT("test-signing-key", "gemdrive", "gemdrive-clients")

func TestMintAndValidate(t *testing.T) {
	tok, err := testJWT.Mint("u1", time.Hour)
	require.NoError(t, err)

	claims, err := testJWT.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "gemdrive", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)

	p, err := testJWT.Authenticate(tok)
	require.NoError(t, err)
	assert.Equal(t, Principal{ID: "u1"}, p)
}

func TestValidateRejects(t *testing.T) {
	expired, err := testJWT.Mint("u1", -time.Hour)
	require.NoError(t, err)
	_, err = testJWT.Validate(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	other := NewJWT("other-key", "gemdrive", "gemdrive-clients")
	foreign, err := other.Mint("u1", time.Hour)
	require.NoError(t, err)
	_, err = testJWT.Validate(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongAud := NewJWT("test-signing-key", "gemdrive", "someone-else")
	tok, err := wrongAud.Mint("u1", time.Hour)
	require.NoError(t, err)
	_, err = testJWT.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = testJWT.Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = testJWT.Authenticate("")
	assert.ErrorIs(t, err, ErrNoAuth)
	_, err = testJWT.Mint("", time.Hour)
	assert.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?access_token=q", nil)
	assert.Equal(t, "q", TokenFromRequest(r, true))
	assert.Equal(t, "", TokenFromRequest(r, false))

	r.Header.Set("Authorization", "bearer h")
	assert.Equal(t, "h", TokenFromRequest(r, true))

	_, ok := BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
}

func TestMiddleware(t *testing.T) {
	var owner string
	h := Middleware(testJWT, true, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner = OwnerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notes.txt", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No auth", rec.Body.String())

	tok, err := testJWT.Mint("u1", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/notes.txt", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", owner)
}

func TestAnonymous(t *testing.T) {
	h := Middleware(Anonymous{ID: "local"}, false, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "local", p.ID)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
