package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/config"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:   "test-secret-key-at-least-32-chars",
		Issuer:   "storefront-identity",
		Audience: "storefront",
	})
}

func signRaw(t *testing.T, claims jwt.Claims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestValidate_RoundTrip(t *testing.T) {
	svc := newTestJWTService()
	p := shared.Principal{UserID: uuid.New(), Roles: []string{shared.RoleAdmin}}

	token, err := svc.Issue(p, time.Hour)
	require.NoError(t, err)

	got, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, p.UserID, got.UserID)
	assert.True(t, got.IsAdmin())
}

func TestValidate_NoRoles(t *testing.T) {
	svc := newTestJWTService()
	token, err := svc.Issue(shared.Principal{UserID: uuid.New()}, time.Hour)
	require.NoError(t, err)

	got, err := svc.Validate(token)
	require.NoError(t, err)
	assert.False(t, got.IsAdmin())
	assert.Empty(t, got.Roles)
}

func TestValidate_Expired(t *testing.T) {
	svc := newTestJWTService()
	token, err := svc.Issue(shared.Principal{UserID: uuid.New()}, -time.Hour)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidate_Rejections(t *testing.T) {
	svc := newTestJWTService()
	secret := []byte("test-secret-key-at-least-32-chars")
	now := time.Now()
	valid := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Issuer:    "storefront-identity",
			Audience:  jwt.ClaimStrings{"storefront"},
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		}
	}

	tests := []struct {
		name   string
		token  func() string
		expect error
	}{
		{
			name:   "garbage",
			token:  func() string { return "not-a-token" },
			expect: ErrInvalidToken,
		},
		{
			name: "wrong secret",
			token: func() string {
				return signRaw(t, &Claims{RegisteredClaims: valid()}, jwt.SigningMethodHS256, []byte("another-secret"))
			},
			expect: ErrInvalidToken,
		},
		{
			name: "wrong algorithm",
			token: func() string {
				return signRaw(t, &Claims{RegisteredClaims: valid()}, jwt.SigningMethodHS512, secret)
			},
			expect: ErrInvalidToken,
		},
		{
			name: "wrong issuer",
			token: func() string {
				rc := valid()
				rc.Issuer = "someone-else"
				return signRaw(t, &Claims{RegisteredClaims: rc}, jwt.SigningMethodHS256, secret)
			},
			expect: ErrInvalidClaims,
		},
		{
			name: "wrong audience",
			token: func() string {
				rc := valid()
				rc.Audience = jwt.ClaimStrings{"billing"}
				return signRaw(t, &Claims{RegisteredClaims: rc}, jwt.SigningMethodHS256, secret)
			},
			expect: ErrInvalidClaims,
		},
		{
			name: "missing subject",
			token: func() string {
				rc := valid()
				rc.Subject = ""
				return signRaw(t, &Claims{RegisteredClaims: rc}, jwt.SigningMethodHS256, secret)
			},
			expect: ErrMissingUserID,
		},
		{
			name: "non uuid subject",
			token: func() string {
				rc := valid()
				rc.Subject = "user-42"
				return signRaw(t, &Claims{RegisteredClaims: rc}, jwt.SigningMethodHS256, secret)
			},
			expect: ErrMissingUserID,
		},
		{
			name: "no expiry",
			token: func() string {
				rc := valid()
				rc.ExpiresAt = nil
				return signRaw(t, &Claims{RegisteredClaims: rc}, jwt.SigningMethodHS256, secret)
			},
			expect: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(tt.token())
			assert.ErrorIs(t, err, tt.expect)
		})
	}
}

func TestValidate_AudienceOptional(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "s3cret", Issuer: "storefront-identity"})
	token, err := svc.Issue(shared.Principal{UserID: uuid.New()}, time.Minute)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.NoError(t, err)
}
