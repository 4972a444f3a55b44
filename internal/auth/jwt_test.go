package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "test-idp"
)

func signToken(t *testing.T, key, issuer, subject, email string, ttl time.Duration) string {
	t.Helper()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func TestJWTVerifierValid(t *testing.T) {
	v := NewJWTVerifier(testKey, testIssuer)
	token := signToken(t, testKey, testIssuer, "u1", "u1@example.com", time.Hour)

	ident, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "u1", ident.SubjectID)
	require.Equal(t, "u1@example.com", ident.Email)
	require.Empty(t, ident.Role)
}

func TestJWTVerifierFailures(t *testing.T) {
	v := NewJWTVerifier(testKey, testIssuer)

	cases := map[string]string{
		"garbage":      "not-a-token",
		"expired":      signToken(t, testKey, testIssuer, "u1", "", -time.Minute),
		"wrong key":    signToken(t, "other-key", testIssuer, "u1", "", time.Hour),
		"wrong issuer": signToken(t, testKey, "someone-else", "u1", "", time.Hour),
		"no subject":   signToken(t, testKey, testIssuer, "", "", time.Hour),
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			require.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestJWTVerifierRejectsUnexpectedMethod(t *testing.T) {
	v := NewJWTVerifier(testKey, testIssuer)

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    testIssuer,
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testKey))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrUnauthenticated)
}
