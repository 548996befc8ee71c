package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomrelay/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var testIdentity = domain.Identity{
	UserID: "550e8400-e29b-41d4-a716-446655440001",
	OrgID:  "550e8400-e29b-41d4-a716-446655440000",
	Email:  "smoke-test@example.com",
	Name:   "Smoke Test User",
}

func newTestVerifier(t *testing.T) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(testSecret, 0)
	require.NoError(t, err)
	return v
}

func TestNewJWTVerifier_ShortSecret(t *testing.T) {
	_, err := NewJWTVerifier("short", 0)
	assert.Error(t, err)
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := newTestVerifier(t)

	token, err := v.Sign(testIdentity, time.Minute)
	require.NoError(t, err)

	got, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, testIdentity, got)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	sign := func(method jwt.SigningMethod, key any, claims Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := Claims{
		OrgID: testIdentity.OrgID,
		Email: testIdentity.Email,
		Name:  testIdentity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testIdentity.UserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noExpiry := valid
	noExpiry.ExpiresAt = nil

	badOrg := valid
	badOrg.OrgID = "org1"

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: sign(jwt.SigningMethodHS256, []byte("ffffffffffffffffffffffffffffffff"), valid)},
		{name: "wrong algorithm", token: sign(jwt.SigningMethodHS512, []byte(testSecret), valid)},
		{name: "unsigned", token: sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid)},
		{name: "expired", token: sign(jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{name: "no expiry", token: sign(jwt.SigningMethodHS256, []byte(testSecret), noExpiry)},
		{name: "org not a uuid", token: sign(jwt.SigningMethodHS256, []byte(testSecret), badOrg)},
	}

	v := newTestVerifier(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			assert.ErrorIs(t, err, domain.ErrInvalidToken)
		})
	}
}

func TestDevToken_RoundTrip(t *testing.T) {
	token, err := EncodeDevToken(testIdentity)
	require.NoError(t, err)
	assert.True(t, len(token) > len(DevTokenPrefix))

	got, err := DecodeDevToken(token)
	require.NoError(t, err)
	assert.Equal(t, testIdentity, got)
}

func TestDecodeDevToken_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "no prefix", token: "eyJ1c2VySWQiOiJ4In0="},
		{name: "not base64", token: "dev_%%%"},
		{name: "not json", token: "dev_bm90IGpzb24="},
		{name: "missing fields", token: "dev_e30="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDevToken(tt.token)
			assert.ErrorIs(t, err, domain.ErrInvalidToken)
		})
	}
}

func TestChain(t *testing.T) {
	v := newTestVerifier(t)
	devToken, err := EncodeDevToken(testIdentity)
	require.NoError(t, err)
	jwtToken, err := v.Sign(testIdentity, time.Minute)
	require.NoError(t, err)

	t.Run("dev tokens disabled", func(t *testing.T) {
		c := NewChain(v, false)

		_, err := c.Verify(context.Background(), devToken)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)

		got, err := c.Verify(context.Background(), jwtToken)
		require.NoError(t, err)
		assert.Equal(t, testIdentity, got)
	})

	t.Run("dev tokens enabled", func(t *testing.T) {
		c := NewChain(v, true)

		got, err := c.Verify(context.Background(), devToken)
		require.NoError(t, err)
		assert.Equal(t, testIdentity, got)

		got, err = c.Verify(context.Background(), jwtToken)
		require.NoError(t, err)
		assert.Equal(t, testIdentity, got)
	})
}
