package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAdaptor_Soundness is spec §8 property 4: for x, t, m: let sigma =
// adaptorSign(x, m, t). Then adaptorVerify succeeds, completeVerify
// succeeds, and extract(sigma, complete(sigma, t)) == t.
func TestAdaptor_Soundness(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	t_, T, err := NewAdaptorSecret()
	require.NoError(t, err)
	m := digest("atomic swap message")

	sig, err := AdaptorSign(kp.Priv, m, t_, T)
	require.NoError(t, err)
	require.NoError(t, AdaptorVerify(kp.Pub, m, sig))

	completed, err := Complete(sig, t_.T)
	require.NoError(t, err)
	assert.True(t, Verify(kp.Pub, m, completed))

	extracted, err := Extract(sig, completed)
	require.NoError(t, err)
	assert.True(t, extracted.Equal(t_.T))
}

func TestAdaptor_MismatchRejection(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	t1, T1, err := NewAdaptorSecret()
	require.NoError(t, err)
	t2, T2, err := NewAdaptorSecret()
	require.NoError(t, err)
	m := digest("mismatch test")

	sig, err := AdaptorSign(kp.Priv, m, t1, T1)
	require.NoError(t, err)

	t.Run("wrong pubkey", func(t *testing.T) {
		other, err := GenerateKeyPair()
		require.NoError(t, err)
		assert.Error(t, AdaptorVerify(other.Pub, m, sig))
	})

	t.Run("wrong message", func(t *testing.T) {
		assert.Error(t, AdaptorVerify(kp.Pub, digest("different"), sig))
	})

	t.Run("wrong T", func(t *testing.T) {
		tampered := sig
		tx, err := T2.EncodeXOnly()
		require.NoError(t, err)
		tampered.Tx = tx
		assert.Error(t, AdaptorVerify(kp.Pub, m, tampered))
	})

	t.Run("wrong R", func(t *testing.T) {
		other, err := AdaptorSign(kp.Priv, m, t1, T1)
		require.NoError(t, err)
		tampered := sig
		tampered.Rx = other.Rx
		assert.Error(t, AdaptorVerify(kp.Pub, m, tampered))
	})

	t.Run("complete with wrong t fails precondition", func(t *testing.T) {
		_, err := Complete(sig, t2.T)
		assert.ErrorIs(t, err, ErrAdaptorMismatch)
	})
}

func TestAdaptor_ExtractDetectsRMismatch(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	t_, T, err := NewAdaptorSecret()
	require.NoError(t, err)
	m := digest("R mismatch")

	sig, err := AdaptorSign(kp.Priv, m, t_, T)
	require.NoError(t, err)

	otherSig, err := Sign(kp.Priv, m)
	require.NoError(t, err)

	_, err = Extract(sig, otherSig)
	assert.Error(t, err)
}
