package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/storefront/pkg/config"
)

func newTestIssuer(t *testing.T, minutes int) *Issuer {
	t.Helper()
	iss, err := NewIssuer(config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: minutes})
	require.NoError(t, err)
	return iss
}

func TestMintAndVerify(t *testing.T) {
	iss := newTestIssuer(t, 30)
	now := time.Now().UTC()
	subject := uuid.New()

	token, err := iss.Mint(now, subject, "jti-1")
	require.NoError(t, err)

	claims, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, subject, claims.UserID)
	assert.Equal(t, subject.String(), claims.Subject)
	assert.Equal(t, "jti-1", claims.ID)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestNewIssuerRejectsIncompleteConfig(t *testing.T) {
	for name, cfg := range map[string]config.JWTConfig{
		"secret": {Issuer: "i", ExpirationMinutes: 1},
		"issuer": {Secret: "s", ExpirationMinutes: 1},
		"ttl":    {Secret: "s", Issuer: "i"},
	} {
		_, err := NewIssuer(cfg)
		assert.Error(t, err, name)
	}
}

func TestMintRequiresSubjectAndAccessID(t *testing.T) {
	iss := newTestIssuer(t, 5)
	_, err := iss.Mint(time.Now(), uuid.Nil, "jti")
	assert.Error(t, err)
	_, err = iss.Mint(time.Now(), uuid.New(), " ")
	assert.Error(t, err)
}

func TestVerifyClassifiesFailures(t *testing.T) {
	iss := newTestIssuer(t, 15)
	token, err := iss.Mint(time.Now().Add(-time.Hour), uuid.New(), "old")
	require.NoError(t, err)

	_, err = iss.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	claims, err := iss.VerifyIgnoringExpiry(token)
	require.NoError(t, err)
	assert.Equal(t, "old", claims.ID)

	_, err = iss.Verify(token + "x")
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = iss.VerifyIgnoringExpiry(token + "x")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsForeignIssuerAndAlgorithm(t *testing.T) {
	iss := newTestIssuer(t, 15)
	other, err := NewIssuer(config.JWTConfig{Secret: "secret", Issuer: "elsewhere", ExpirationMinutes: 15})
	require.NoError(t, err)
	foreign, err := other.Mint(time.Now(), uuid.New(), "jti")
	require.NoError(t, err)

	_, err = iss.Verify(foreign)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = iss.VerifyIgnoringExpiry(foreign)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	subject := uuid.New()
	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: subject, RegisteredClaims: jwt.RegisteredClaims{
		Issuer: "storefront", Subject: subject.String(), ID: "jti",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Verify(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsMismatchedSubject(t *testing.T) {
	iss := newTestIssuer(t, 15)
	claims := Claims{UserID: uuid.New(), RegisteredClaims: jwt.RegisteredClaims{
		Issuer: "storefront", Subject: uuid.NewString(), ID: "jti",
		IssuedAt: jwt.NewNumericDate(time.Now()), ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = iss.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header, token string
		ok            bool
	}{
		"valid":        {"Bearer abc", "abc", true},
		"lowercase":    {"bearer abc", "abc", true},
		"empty":        {"", "", false},
		"wrong scheme": {"Basic abc", "", false},
		"no token":     {"Bearer   ", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			token, ok := BearerToken(tc.header)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.token, token)
		})
	}
}
