package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/task-backend/internal/domain"
)

func testUser() domain.User {
	return domain.User{ID: uuid.Must(uuid.NewV4()), Email: "a@example.com", Name: "Alice"}
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	c := NewTokenCodec([]byte("secret"))
	u := testUser()

	tok, exp, err := c.Issue(u)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), exp, time.Minute)

	claims, err := c.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.UserID)
	assert.Equal(t, u.ID, claims.Owner())
	assert.Equal(t, u.Email, claims.Email)
	assert.Equal(t, u.Name, claims.Name)
	assert.Equal(t, u.ID.String(), claims.Subject)
}

func TestTokenCodec_Rejects(t *testing.T) {
	t.Parallel()

	c := NewTokenCodec([]byte("secret"))
	u := testUser()
	good, _, err := c.Issue(u)
	require.NoError(t, err)

	expired := NewTokenCodec([]byte("secret"))
	expired.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	old, _, err := expired.Issue(u)
	require.NoError(t, err)

	other, _, err := NewTokenCodec([]byte("other")).Issue(u)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: u.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: u.ID.String()}).SignedString([]byte("secret"))
	require.NoError(t, err)

	badID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "42",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tampered := good[:strings.LastIndex(good, ".")+1] + "AAAA"

	for name, tok := range map[string]string{
		"empty":     "",
		"garbage":   "not.a.jwt",
		"expired":   old,
		"wrong key": other,
		"alg none":  unsigned,
		"no exp":    noExp,
		"bad id":    badID,
		"tampered":  tampered,
	} {
		_, err := c.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}
