package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "didlab/pkg/domain-errors"
)

func TestGenerate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, KeyPrefix))
	assert.Len(t, a, len(KeyPrefix)+43)
	assert.NotEqual(t, a, b)
}

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("dlk_secret")
	require.NoError(t, err)
	assert.True(t, IsHash(hash))

	assert.NoError(t, Verify("dlk_secret", hash))

	err = Verify("dlk_other", hash)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestHash_Empty(t *testing.T) {
	_, err := Hash("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestIsHash(t *testing.T) {
	assert.False(t, IsHash("plain-key"))
	assert.False(t, IsHash(""))
	assert.True(t, IsHash("$2a$10$abcdefghijklmnopqrstuv"))
}
