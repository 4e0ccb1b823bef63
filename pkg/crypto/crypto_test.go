package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyToken(t *testing.T) {
	hash, err := HashToken("super-secret-token")
	require.NoError(t, err)
	require.NotEqual(t, "super-secret-token", hash)

	require.True(t, VerifyToken(hash, "super-secret-token"))
	require.False(t, VerifyToken(hash, "wrong-token"))
}

func TestSignIsDeterministicPerSecret(t *testing.T) {
	payload := []byte(`{"sortBy":"published_at"}`)

	first := Sign(payload, []byte("secret-a"), 16)
	second := Sign(payload, []byte("secret-a"), 16)
	other := Sign(payload, []byte("secret-b"), 16)

	require.Equal(t, first, second)
	require.NotEqual(t, first, other)
	require.Len(t, first, 16)
}

func TestSignWithoutTruncation(t *testing.T) {
	sig := Sign([]byte("payload"), []byte("secret"), 0)
	// full hex encoded sha256
	require.Len(t, sig, 64)
}

func TestVerifySignature(t *testing.T) {
	payload := []byte("payload")
	sig := Sign(payload, []byte("secret"), 16)

	require.True(t, VerifySignature(payload, []byte("secret"), sig, 16))
	require.False(t, VerifySignature(payload, []byte("secret"), sig+"0", 16))
	require.False(t, VerifySignature(payload, []byte("other"), sig, 16))
	require.False(t, VerifySignature([]byte("tampered"), []byte("secret"), sig, 16))
}

func TestGenerateTokenLengthAndUniqueness(t *testing.T) {
	one, err := GenerateToken(32)
	require.NoError(t, err)
	two, err := GenerateToken(32)
	require.NoError(t, err)

	require.NotEmpty(t, one)
	require.NotEqual(t, one, two)
}
