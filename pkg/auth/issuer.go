package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/storefront-labs/storefront/pkg/config"
)

var (
	ErrTokenExpired = errors.New("access token expired")
	ErrTokenInvalid = errors.New("access token invalid")
)

// clockSkew tolerates small clock drift between replicas.
const clockSkew = 5 * time.Second

type Issuer struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	strict  *jwt.Parser
	lenient *jwt.Parser
}

func NewIssuer(cfg config.JWTConfig) (*Issuer, error) {
	switch {
	case cfg.Secret == "":
		return nil, errors.New("jwt secret is required")
	case strings.TrimSpace(cfg.Issuer) == "":
		return nil, errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return nil, errors.New("jwt expiration minutes must be positive")
	}
	methods := jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})
	return &Issuer{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    time.Duration(cfg.ExpirationMinutes) * time.Minute,
		strict: jwt.NewParser(methods, jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(), jwt.WithIssuedAt(), jwt.WithLeeway(clockSkew)),
		// refresh needs the jti of a token that may already be past exp
		lenient: jwt.NewParser(methods, jwt.WithoutClaimsValidation()),
	}, nil
}

func (i *Issuer) TTL() time.Duration { return i.ttl }

// Mint signs a token for subject bound to accessID, valid from now for TTL.
func (i *Issuer) Mint(now time.Time, subject uuid.UUID, accessID string) (string, error) {
	if subject == uuid.Nil {
		return "", errors.New("mint: subject is required")
	}
	if strings.TrimSpace(accessID) == "" {
		return "", errors.New("mint: access id is required")
	}
	claims := Claims{
		UserID: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject.String(),
			ID:        accessID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and lifetime. Failures wrap ErrTokenExpired
// or ErrTokenInvalid.
func (i *Issuer) Verify(token string) (*Claims, error) {
	return i.parse(i.strict, token)
}

// VerifyIgnoringExpiry checks signature and issuer but not lifetime.
func (i *Issuer) VerifyIgnoringExpiry(token string) (*Claims, error) {
	claims, err := i.parse(i.lenient, token)
	if err != nil {
		return nil, err
	}
	if claims.Issuer != i.issuer {
		return nil, fmt.Errorf("%w: issuer %q", ErrTokenInvalid, claims.Issuer)
	}
	if err := claims.Validate(); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *Issuer) parse(p *jwt.Parser, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := p.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}

// BearerToken extracts the credential from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
