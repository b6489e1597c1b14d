package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/storefront-labs/storefront/pkg/auth"
	"github.com/storefront-labs/storefront/pkg/auth/session"
	"github.com/storefront-labs/storefront/pkg/config"
)

// TokenSessionProvider proves a session from a signed access token whose jti
// is still registered to the same subject in the session store.
type TokenSessionProvider struct {
	tokens   *auth.Issuer
	sessions session.Lookup
}

// NewTokenSessionProvider wires JWT verification to the session registry.
func NewTokenSessionProvider(cfg config.JWTConfig, sessions session.Lookup) (*TokenSessionProvider, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session checker is required")
	}
	tokens, err := auth.NewIssuer(cfg)
	if err != nil {
		return nil, err
	}
	return &TokenSessionProvider{tokens: tokens, sessions: sessions}, nil
}

// GetSession returns nil without error for missing, invalid, expired and
// revoked tokens.
func (p *TokenSessionProvider) GetSession(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	claims, err := p.tokens.Verify(token)
	if err != nil {
		// expired and forged tokens both read as anonymous
		return nil, nil
	}
	subject := claims.UserID.String()
	registered, active, err := p.sessions.SubjectFor(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !active || registered != subject {
		return nil, nil
	}
	return &Session{SubjectID: subject, AccessID: claims.ID}, nil
}
