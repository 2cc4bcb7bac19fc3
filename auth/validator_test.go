package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestValidator(t *testing.T, issuer, audience string) *HMACValidator {
	t.Helper()
	v, err := NewHMACValidator(Config{Secret: testSecret, Issuer: issuer, Audience: audience})
	require.NoError(t, err)
	return v
}

func TestNewHMACValidator_RequiresSecret(t *testing.T) {
	_, err := NewHMACValidator(Config{})
	assert.Error(t, err)
}

func TestValidateToken_Valid(t *testing.T) {
	v := newTestValidator(t, "crm-idp", "leads-guard")

	token, err := SignToken(testSecret, 42, "crm-idp", "leads-guard", time.Hour)
	require.NoError(t, err)

	claims, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
	assert.False(t, claims.IssuedAt.IsZero())
}

func TestValidateToken_Errors(t *testing.T) {
	v := newTestValidator(t, "crm-idp", "leads-guard")

	sign := func(claims jwt.Claims, method jwt.SigningMethod, key interface{}) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	registered := func(sub, iss, aud string, exp time.Duration) jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    iss,
			Audience:  jwt.ClaimStrings{aud},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(exp)),
		}
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{
			name:  "expired",
			token: sign(registered("42", "crm-idp", "leads-guard", -time.Minute), jwt.SigningMethodHS256, []byte(testSecret)),
			want:  ErrTokenExpired,
		},
		{
			name:  "wrong secret",
			token: sign(registered("42", "crm-idp", "leads-guard", time.Hour), jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx")),
			want:  ErrInvalidToken,
		},
		{
			name:  "wrong algorithm",
			token: sign(registered("42", "crm-idp", "leads-guard", time.Hour), jwt.SigningMethodHS512, []byte(testSecret)),
			want:  ErrInvalidToken,
		},
		{
			name:  "wrong issuer",
			token: sign(registered("42", "someone-else", "leads-guard", time.Hour), jwt.SigningMethodHS256, []byte(testSecret)),
			want:  ErrInvalidIssuer,
		},
		{
			name:  "wrong audience",
			token: sign(registered("42", "crm-idp", "billing", time.Hour), jwt.SigningMethodHS256, []byte(testSecret)),
			want:  ErrInvalidAudience,
		},
		{
			name:  "non numeric subject",
			token: sign(registered("alice", "crm-idp", "leads-guard", time.Hour), jwt.SigningMethodHS256, []byte(testSecret)),
			want:  ErrInvalidSubject,
		},
		{
			name:  "missing expiry",
			token: sign(jwt.RegisteredClaims{Subject: "42", Issuer: "crm-idp", Audience: jwt.ClaimStrings{"leads-guard"}}, jwt.SigningMethodHS256, []byte(testSecret)),
			want:  ErrInvalidToken,
		},
		{
			name:  "garbage",
			token: "not.a.token",
			want:  ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.ValidateToken(context.Background(), tt.token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateToken_OptionalIssuerAndAudience(t *testing.T) {
	v := newTestValidator(t, "", "")

	token, err := SignToken(testSecret, 7, "anyone", "", time.Hour)
	require.NoError(t, err)

	claims, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
}

func TestValidateToken_CancelledContext(t *testing.T) {
	v := newTestValidator(t, "", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.ValidateToken(ctx, "whatever")
	assert.ErrorIs(t, err, context.Canceled)
}
