package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cheap = Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(cheap)

	encoded, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := h.Verify("correct horse", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("battery staple", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher(cheap)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	h := NewHasher(cheap)

	for _, encoded := range []string{"", "plain", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", "$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA"} {
		_, err := h.Verify("x", encoded)
		assert.Error(t, err, encoded)
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, err := NewHasher(cheap).Hash("pw")
	require.NoError(t, err)

	assert.True(t, NewHasher(Params{Memory: 2048, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}).NeedsRehash(weak))
	assert.False(t, NewHasher(cheap).NeedsRehash(weak))
	assert.True(t, NewHasher(cheap).NeedsRehash("garbage"))
}
