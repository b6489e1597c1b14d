// Package session keeps the server-side registry of live sessions. Each
// access token's jti maps to a record naming its subject and the hash of the
// refresh token that may rotate it.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/storefront-labs/storefront/pkg/config"
	redisclient "github.com/storefront-labs/storefront/pkg/redis"
)

const refreshTokenBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

type record struct {
	Subject     string `json:"sub"`
	RefreshHash string `json:"rt"`
	IssuedAt    int64  `json:"iat"`
}

// Lookup is the read side used by the route guard.
type Lookup interface {
	SubjectFor(ctx context.Context, accessID string) (string, bool, error)
}

// Manager issues, rotates and revokes sessions in Redis.
type Manager struct {
	store store
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	if accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute; ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}
	return &Manager{store: client, ttl: ttl, now: time.Now}, nil
}

// Generate registers accessID for subjectID and returns the refresh token.
// Only the token's hash is stored.
func (m *Manager) Generate(ctx context.Context, subjectID, accessID string) (string, error) {
	if strings.TrimSpace(subjectID) == "" || strings.TrimSpace(accessID) == "" {
		return "", fmt.Errorf("subject and access id are required")
	}
	token, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.put(ctx, accessID, record{Subject: subjectID, RefreshHash: hashToken(token), IssuedAt: m.now().Unix()}); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate trades a refresh token for a new access id and refresh token. The
// old session is removed; a token presented for another subject is rejected.
func (m *Manager) Rotate(ctx context.Context, subjectID, oldAccessID, provided string) (string, string, error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(provided) == "" {
		return "", "", ErrInvalidRefreshToken
	}
	rec, found, err := m.get(ctx, oldAccessID)
	if err != nil {
		return "", "", err
	}
	if !found || rec.Subject != subjectID {
		return "", "", ErrInvalidRefreshToken
	}
	if subtle.ConstantTimeCompare([]byte(rec.RefreshHash), []byte(hashToken(provided))) != 1 {
		return "", "", ErrInvalidRefreshToken
	}
	if err := m.store.Del(ctx, m.store.AccessSessionKey(oldAccessID)); err != nil {
		return "", "", err
	}
	newAccessID := NewAccessID()
	token, err := m.Generate(ctx, subjectID, newAccessID)
	if err != nil {
		return "", "", err
	}
	return newAccessID, token, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// SubjectFor returns the subject registered for accessID.
func (m *Manager) SubjectFor(ctx context.Context, accessID string) (string, bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", false, nil
	}
	rec, found, err := m.get(ctx, accessID)
	if err != nil || !found {
		return "", false, err
	}
	return rec.Subject, true, nil
}

// NewAccessID returns a fresh jti.
func NewAccessID() string {
	return uuid.NewString()
}

func (m *Manager) put(ctx context.Context, accessID string, rec record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return m.store.Set(ctx, m.store.AccessSessionKey(accessID), payload, m.ttl)
}

func (m *Manager) get(ctx context.Context, accessID string) (record, bool, error) {
	raw, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	if errors.Is(err, redislib.Nil) {
		return record{}, false, nil
	}
	if err != nil {
		return record{}, false, err
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// unreadable records are treated as gone
		return record{}, false, nil
	}
	return rec, true, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
