package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/storefront/pkg/config"
	"github.com/storefront-labs/storefront/pkg/security"
)

var cheap = config.PasswordConfig{
	ArgonMemoryKB:    8 * 1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestHashAndVerify(t *testing.T) {
	h, err := security.NewHasher(cheap)
	require.NoError(t, err)

	hash, err := h.Hash("correct-horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"))

	ok, stale, err := h.Verify("correct-horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, stale)

	ok, _, err = h.Verify("wrong-horse", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := h.Hash("correct-horse")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salts differ per hash")
}

func TestVerifyFlagsHashesFromOldParams(t *testing.T) {
	old, err := security.NewHasher(cheap)
	require.NoError(t, err)
	hash, err := old.Hash("correct-horse")
	require.NoError(t, err)

	stronger := cheap
	stronger.ArgonTime = 2
	current, err := security.NewHasher(stronger)
	require.NoError(t, err)

	ok, stale, err := current.Verify("correct-horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, stale)

	_, stale, _ = current.Verify("wrong-horse", hash)
	assert.False(t, stale, "only verified passwords are flagged")
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	h, err := security.NewHasher(cheap)
	require.NoError(t, err)
	for _, bad := range []string{
		"not-a-hash",
		"$bcrypt$v=19$m=8,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=16$m=8,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$garbage$c2FsdA$a2V5",
		"$argon2id$v=19$m=8,t=1,p=1$!!$a2V5",
	} {
		_, _, err := h.Verify("pw", bad)
		assert.ErrorIs(t, err, security.ErrInvalidHash, bad)
	}
}

func TestHashRejectsEmptyAndClampsWeakParams(t *testing.T) {
	h, err := security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 1, ArgonSaltLen: 1, ArgonKeyLen: 1})
	require.NoError(t, err)

	_, err = h.Hash("")
	assert.ErrorIs(t, err, security.ErrEmptyPassword)

	hash, err := h.Hash("pw")
	require.NoError(t, err)
	assert.Contains(t, hash, "$m=8,t=1,p=1$")
	h.Burn("pw")
}
