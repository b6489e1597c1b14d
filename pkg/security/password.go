// Package security hashes profile passwords with Argon2id in the PHC string
// format: $argon2id$v=19$m=<kib>,t=<passes>,p=<lanes>$<salt>$<key>.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/storefront-labs/storefront/pkg/config"
)

var (
	ErrInvalidHash   = errors.New("invalid argon2id hash")
	ErrEmptyPassword = errors.New("password cannot be empty")
)

// Params are the Argon2id cost settings.
type Params struct {
	MemoryKiB   uint32
	Passes      uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// ParamsFromConfig clamps configured values to safe bounds.
func ParamsFromConfig(cfg config.PasswordConfig) Params {
	return Params{
		MemoryKiB:   uint32(clamp(cfg.ArgonMemoryKB, 8, 512*1024)),
		Passes:      uint32(clamp(cfg.ArgonTime, 1, 10)),
		Parallelism: uint8(clamp(cfg.ArgonParallelism, 1, 255)),
		SaltLen:     uint32(clamp(cfg.ArgonSaltLen, 8, 64)),
		KeyLen:      uint32(clamp(cfg.ArgonKeyLen, 16, 64)),
	}
}

// Hasher hashes with one parameter set and verifies hashes made with any.
type Hasher struct {
	params Params
	dummy  string
}

func NewHasher(cfg config.PasswordConfig) (*Hasher, error) {
	h := &Hasher{params: ParamsFromConfig(cfg)}
	dummy, err := h.Hash("storefront-timing-equalizer")
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := derive(password, salt, h.params)
	return encode(h.params, salt, key), nil
}

// Verify reports whether password matches encoded, and whether the hash was
// made with parameters other than the current ones and should be replaced.
func (h *Hasher) Verify(password, encoded string) (ok, stale bool, err error) {
	params, salt, key, err := decode(encoded)
	if err != nil {
		return false, false, err
	}
	if subtle.ConstantTimeCompare(key, derive(password, salt, params)) != 1 {
		return false, false, nil
	}
	return true, params != h.params, nil
}

// Burn performs a verification against a throwaway hash so that lookups for
// unknown accounts cost the same as real ones.
func (h *Hasher) Burn(password string) {
	_, _, _ = h.Verify(password, h.dummy)
}

func derive(password string, salt []byte, p Params) []byte {
	return argon2.IDKey([]byte(password), salt, p.Passes, p.MemoryKiB, p.Parallelism, p.KeyLen)
}

func encode(p Params, salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Passes, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Params{}, nil, nil, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Params{}, nil, nil, ErrInvalidHash
	}
	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Passes, &p.Parallelism); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Params{}, nil, nil, ErrInvalidHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Params{}, nil, nil, ErrInvalidHash
	}
	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))
	return p, salt, key, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
