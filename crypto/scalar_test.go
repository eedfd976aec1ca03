package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScalarFromBytes_RejectsZero(t *testing.T) {
	var zero [32]byte
	_, err := NewScalarFromBytes(zero[:])
	assert.ErrorIs(t, err, ErrInvalidScalar)
}

func TestNewScalarFromBytes_RejectsWrongLength(t *testing.T) {
	_, err := NewScalarFromBytes([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidScalar)
}

func TestNewScalarFromBytes_RejectsOverflow(t *testing.T) {
	// group order n = FFFFFFFF FFFFFFFF FFFFFFFF FFFFFFFE BAAEDCE6 AF48A03B BFD25E8C D0364141
	overflow := []byte{
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	}
	_, err := NewScalarFromBytes(overflow)
	assert.ErrorIs(t, err, ErrInvalidScalar)
}

func TestRandomScalar_IsInRange(t *testing.T) {
	for i := 0; i < 32; i++ {
		s, err := RandomScalar()
		require.NoError(t, err)
		assert.False(t, s.IsZero())
	}
}

func TestScalarArithmetic_AddSubInverse(t *testing.T) {
	a, err := RandomScalar()
	require.NoError(t, err)
	b, err := RandomScalar()
	require.NoError(t, err)

	sum := a.Add(b)
	back := sum.Sub(b)
	assert.True(t, back.Equal(a))
}

func TestScalarNegate_Involution(t *testing.T) {
	a, err := RandomScalar()
	require.NoError(t, err)
	negNeg := a.Negate().Negate()
	assert.True(t, negNeg.Equal(a))
}
