package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/task-backend/internal/errs"
)

func TestExtractToken(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := ExtractToken(r)
	assert.False(t, ok)

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	tok, ok := ExtractToken(r)
	assert.True(t, ok)
	assert.Equal(t, "from-cookie", tok)

	r.Header.Set("Authorization", "Bearer from-header")
	tok, _ = ExtractToken(r)
	assert.Equal(t, "from-header", tok, "header wins over cookie")

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	tok, _ = ExtractToken(r)
	assert.Equal(t, "from-cookie", tok, "non-bearer header falls through")

	r.Header.Set("Authorization", "Bearer ")
	tok, _ = ExtractToken(r)
	assert.Equal(t, "from-cookie", tok)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	c := NewTokenCodec([]byte("secret"))
	u := testUser()
	tok, _, err := c.Issue(u)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = Authenticate(r, c)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	r.Header.Set("Authorization", "Bearer nope")
	_, err = Authenticate(r, c)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	r.Header.Set("Authorization", "Bearer "+tok)
	claims, err := Authenticate(r, c)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Owner())
}

func TestTokenCookie(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	SetTokenCookie(w, "abc", true)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "abc", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, 7*24*60*60, c.MaxAge)

	w = httptest.NewRecorder()
	SetTokenCookie(w, "abc", false)
	assert.False(t, w.Result().Cookies()[0].Secure)

	w = httptest.NewRecorder()
	ClearTokenCookie(w, false)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestClaimsContext(t *testing.T) {
	t.Parallel()

	_, ok := ClaimsFromCtx(context.Background())
	assert.False(t, ok)

	want := &Claims{UserID: "x"}
	got, ok := ClaimsFromCtx(WithClaims(context.Background(), want))
	assert.True(t, ok)
	assert.Same(t, want, got)
}
