package crypto

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digest(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}

// TestSchnorr_Correctness is spec §8 property 3: verify(xG, m, sign(x, m)).
func TestSchnorr_Correctness(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	m := digest("hello world")

	sig, err := Sign(kp.Priv, m)
	require.NoError(t, err)
	assert.True(t, Verify(kp.Pub, m, sig))
}

func TestSchnorr_RejectsWrongMessage(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	sig, err := Sign(kp.Priv, digest("message A"))
	require.NoError(t, err)
	assert.False(t, Verify(kp.Pub, digest("message B"), sig))
}

func TestSchnorr_RejectsWrongKey(t *testing.T) {
	kp1, err := GenerateKeyPair()
	require.NoError(t, err)
	kp2, err := GenerateKeyPair()
	require.NoError(t, err)
	m := digest("shared message")
	sig, err := Sign(kp1.Priv, m)
	require.NoError(t, err)
	assert.False(t, Verify(kp2.Pub, m, sig))
}

func TestSchnorr_RejectsTamperedS(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	m := digest("tamper test")
	sig, err := Sign(kp.Priv, m)
	require.NoError(t, err)

	tampered := sig
	tampered.S = sig.S.Add(ScalarFromHash([]byte("x")))
	assert.False(t, Verify(kp.Pub, m, tampered))
}

func TestSchnorr_SignatureBytesRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	m := digest("serialise me")
	sig, err := Sign(kp.Priv, m)
	require.NoError(t, err)

	raw := sig.Bytes()
	parsed, err := ParseSignature(raw[:])
	require.NoError(t, err)
	assert.True(t, Verify(kp.Pub, m, parsed))
}

func TestSchnorr_OddYPubkeyStillVerifies(t *testing.T) {
	// Construct a keypair whose *caller-held* pubkey is deliberately the
	// odd-y twin; per spec §4.D's even-y lift rule, verification must still
	// succeed because only the x-coordinate is significant.
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	oddPub := kp.Pub.Negate()
	require.False(t, oddPub.IsEvenY())

	m := digest("parity independence")
	sig, err := Sign(kp.Priv, m)
	require.NoError(t, err)
	assert.True(t, Verify(oddPub, m, sig))
}
