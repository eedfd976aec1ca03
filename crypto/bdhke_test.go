package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBDHKE_RoundTrip is spec §8 property 2: for secret, blinding factor r,
// mint keypair (k, K): Y = hashToCurve(secret), B_ = Y + r*G, C_ = k*B_,
// C = C_ - r*K. Then C == k*Y.
func TestBDHKE_RoundTrip(t *testing.T) {
	secret := []byte("a bearer token secret")

	k, err := RandomScalar()
	require.NoError(t, err)
	K := BasePointMul(k)

	bm, err := CreateBlindedMessage(secret)
	require.NoError(t, err)

	cPrime := bm.B_.Mul(k)

	c, err := Unblind(cPrime, bm.R, K)
	require.NoError(t, err)

	want := bm.Y.Mul(k)
	assert.True(t, c.Equal(want))
}

func TestBDHKE_DifferentSecretsYieldDifferentY(t *testing.T) {
	bm1, err := CreateBlindedMessage([]byte("secret-one"))
	require.NoError(t, err)
	bm2, err := CreateBlindedMessage([]byte("secret-two"))
	require.NoError(t, err)
	assert.False(t, bm1.Y.Equal(bm2.Y))
}

func TestUnblind_RejectsInfinity(t *testing.T) {
	k, err := RandomScalar()
	require.NoError(t, err)
	K := BasePointMul(k)

	_, err = Unblind(Point{}, k, K)
	assert.ErrorIs(t, err, ErrInvalidPoint)
}
