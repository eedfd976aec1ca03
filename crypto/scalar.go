package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Scalar is an element of Z_n, n the secp256k1 group order, always held in
// [0, n-1]. NewScalarFromBytes and RandomScalar reject the zero value,
// matching spec's invariant that zero and out-of-range values are rejected
// at every boundary; ScalarFromHash (challenge derivation) and the zero
// value Scalar{} can hold zero.
type Scalar struct {
	v secp256k1.ModNScalar
}

// NewScalarFromBytes decodes a 32-byte big-endian integer, rejecting
// out-of-range (reduced) and zero values.
func NewScalarFromBytes(b []byte) (Scalar, error) {
	if len(b) != 32 {
		return Scalar{}, fmt.Errorf("%w: scalar must be 32 bytes, got %d", ErrInvalidScalar, len(b))
	}
	var s secp256k1.ModNScalar
	overflow := s.SetByteSlice(b)
	if overflow {
		return Scalar{}, fmt.Errorf("%w: value >= group order", ErrInvalidScalar)
	}
	if s.IsZero() {
		return Scalar{}, fmt.Errorf("%w: zero scalar", ErrInvalidScalar)
	}
	return Scalar{v: s}, nil
}

// RandomScalar rejection-samples a uniformly random scalar in [1, n-1].
func RandomScalar() (Scalar, error) {
	for {
		var buf [32]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return Scalar{}, fmt.Errorf("crypto: reading randomness: %w", err)
		}
		s, err := NewScalarFromBytes(buf[:])
		if err != nil {
			// Out-of-range or zero draw; resample. Never occurs in practice.
			continue
		}
		return s, nil
	}
}

// ScalarFromHash reduces an arbitrary-length hash digest mod n. Unlike
// NewScalarFromBytes this never rejects a value: challenge scalars (e) are
// derived this way and are not required to be non-zero or in range prior to
// reduction, only after.
func ScalarFromHash(digest []byte) Scalar {
	var s secp256k1.ModNScalar
	s.SetByteSlice(digest)
	return Scalar{v: s}
}

// Bytes returns the 32-byte big-endian encoding.
func (s Scalar) Bytes() [32]byte {
	return s.v.Bytes()
}

// IsZero reports whether s is the additive identity.
func (s Scalar) IsZero() bool {
	return s.v.IsZero()
}

// Equal reports whether s and other encode the same value.
func (s Scalar) Equal(other Scalar) bool {
	return s.v.Equals(&other.v)
}

// Add returns s + other mod n.
func (s Scalar) Add(other Scalar) Scalar {
	out := s.v
	out.Add(&other.v)
	return Scalar{v: out}
}

// Sub returns s - other mod n.
func (s Scalar) Sub(other Scalar) Scalar {
	neg := other.v
	neg.Negate()
	out := s.v
	out.Add(&neg)
	return Scalar{v: out}
}

// Mul returns s * other mod n.
func (s Scalar) Mul(other Scalar) Scalar {
	out := s.v
	out.Mul(&other.v)
	return Scalar{v: out}
}

// Negate returns n - s mod n (0 maps to 0).
func (s Scalar) Negate() Scalar {
	out := s.v
	out.Negate()
	return Scalar{v: out}
}

// Point returns s*G.
func (s Scalar) Point() Point {
	var result secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&s.v, &result)
	return pointFromJacobian(result)
}

// modNScalar exposes the underlying library type to sibling files in this
// package (point.go's scalar multiplication) without widening the public
// API.
func (s Scalar) modNScalar() *secp256k1.ModNScalar {
	return &s.v
}

func scalarFromModN(v secp256k1.ModNScalar) Scalar {
	return Scalar{v: v}
}
