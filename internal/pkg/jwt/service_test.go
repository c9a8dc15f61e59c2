package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	s := NewHMACService("secret", time.Hour, "jobpilot")
	id := uuid.New()

	tok, err := s.GenerateToken(id, "me@example.com")
	require.NoError(t, err)

	c, err := s.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, id, c.UserID)
	assert.Equal(t, "me@example.com", c.Email)
	assert.Equal(t, "jobpilot", c.Issuer)
}

func TestValidateRejectsOtherSecret(t *testing.T) {
	tok, err := NewHMACService("one", time.Hour, "").GenerateToken(uuid.New(), "")
	require.NoError(t, err)

	_, err = NewHMACService("two", time.Hour, "").ValidateToken(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateExpired(t *testing.T) {
	s := NewHMACService("secret", time.Minute, "")
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, err := s.GenerateToken(uuid.New(), "")
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateRejectsOtherAlgorithm(t *testing.T) {
	c := Claims{UserID: uuid.New(), TokenType: TokenTypeAccess}
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS512, c).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewHMACService("secret", time.Hour, "").ValidateToken(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestMissingSecret(t *testing.T) {
	s := NewHMACService("", time.Hour, "")
	_, err := s.GenerateToken(uuid.New(), "")
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = s.ValidateToken("x")
	assert.ErrorIs(t, err, ErrNoSecret)
}
