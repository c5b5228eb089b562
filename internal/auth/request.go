package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/Tomlord1122/task-backend/internal/errs"
)

// CookieName is the cookie that carries the credential for browser clients.
const CookieName = "token"

// ExtractToken looks for "Authorization: Bearer <token>" first and then the
// token cookie. The first non-empty match wins.
func ExtractToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); tok != "" {
			return tok, true
		}
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// Authenticate resolves the request credential. Absent and invalid
// credentials both yield errs.ErrUnauthorized.
func Authenticate(r *http.Request, v Verifier) (*Claims, error) {
	tok, ok := ExtractToken(r)
	if !ok {
		return nil, errs.ErrUnauthorized
	}
	claims, err := v.Verify(tok)
	if err != nil {
		return nil, errs.ErrUnauthorized
	}
	return claims, nil
}

// SetTokenCookie stores token in an HTTP-only, same-site strict cookie that
// lives as long as the credential. secure adds the Secure flag.
func SetTokenCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearTokenCookie expires the token cookie.
func ClearTokenCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

type ctxKey string

const claimsKey ctxKey = "auth.claims"

// WithClaims stores authenticated claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromCtx fetches claims stored by WithClaims.
func ClaimsFromCtx(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}
