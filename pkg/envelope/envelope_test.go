package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Low iteration count keeps the suite fast; the format is identical.
const testIterations = 1000

func TestSealOpen(t *testing.T) {
	doc := []byte(`{ "status": "ATIVO", "curso": "PGCOMP" }`)

	env, err := Seal(doc, "correct horse", testIterations)
	require.NoError(t, err)
	assert.Equal(t, Version, env.Version)
	assert.Equal(t, Alg, env.Alg)
	assert.Equal(t, KDF, env.KDF)
	assert.Equal(t, testIterations, env.Iterations)

	t.Run("opens with the right passphrase", func(t *testing.T) {
		plaintext, err := Open(env, "correct horse")
		require.NoError(t, err)
		assert.JSONEq(t, string(doc), string(plaintext))
	})

	t.Run("rejects the wrong passphrase", func(t *testing.T) {
		_, err := Open(env, "wrong")
		assert.ErrorIs(t, err, ErrDecrypt)
	})

	t.Run("survives marshal and parse", func(t *testing.T) {
		raw, err := env.Marshal()
		require.NoError(t, err)
		parsed, err := Parse([]byte(raw))
		require.NoError(t, err)
		plaintext, err := Open(parsed, "correct horse")
		require.NoError(t, err)
		assert.JSONEq(t, string(doc), string(plaintext))
	})
}

func TestSeal_RandomizesIVAndSalt(t *testing.T) {
	doc := []byte(`{"a":1}`)
	a, err := Seal(doc, "pw", testIterations)
	require.NoError(t, err)
	b, err := Seal(doc, "pw", testIterations)
	require.NoError(t, err)
	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestSeal_Errors(t *testing.T) {
	_, err := Seal([]byte(`{"a":1}`), "", testIterations)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)

	_, err = Seal([]byte("not json"), "pw", testIterations)
	assert.Error(t, err)
}

func TestOpen_RejectsUnsupported(t *testing.T) {
	env, err := Seal([]byte(`{"a":1}`), "pw", testIterations)
	require.NoError(t, err)

	tampered := *env
	tampered.Alg = "AES-CBC"
	_, err = Open(&tampered, "pw")
	assert.ErrorIs(t, err, ErrUnsupported)

	tampered = *env
	tampered.IV = "not base64!"
	_, err = Open(&tampered, "pw")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Open(nil, "pw")
	assert.ErrorIs(t, err, ErrUnsupported)
}
