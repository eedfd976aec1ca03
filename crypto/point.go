package crypto

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Point is a secp256k1 group element. It intentionally exposes only the two
// wire encodings the spec allows (compressed 33-byte, x-only 32-byte) and
// never lets a caller cross them implicitly: EncodeCompressed/DecodeCompressed
// are the only pair that round-trip a full point, EncodeXOnly/LiftXOnly are
// the only pair that round-trip an even-y x-only point.
type Point struct {
	pk *secp256k1.PublicKey
}

// pointFromJacobian converts a (possibly non-affine) Jacobian point into a
// Point, erroring the caller's flow by returning the zero Point when the
// input is the point at infinity. Call sites that can reach infinity must
// check IsInfinity.
func pointFromJacobian(j secp256k1.JacobianPoint) Point {
	if j.Z.IsZero() {
		return Point{}
	}
	j.ToAffine()
	return Point{pk: secp256k1.NewPublicKey(&j.X, &j.Y)}
}

// IsInfinity reports whether this Point is the zero value (no curve point).
func (p Point) IsInfinity() bool {
	return p.pk == nil
}

// BasePointMul returns s*G.
func BasePointMul(s Scalar) Point {
	return s.Point()
}

// Add returns p+q. Returns ErrPointAtInfinity if the sum is the identity.
func (p Point) Add(q Point) (Point, error) {
	if p.IsInfinity() || q.IsInfinity() {
		return Point{}, fmt.Errorf("%w: operand is infinity", ErrPointAtInfinity)
	}
	var pj, qj, sum secp256k1.JacobianPoint
	p.pk.AsJacobian(&pj)
	q.pk.AsJacobian(&qj)
	secp256k1.AddNonConst(&pj, &qj, &sum)
	if sum.Z.IsZero() {
		return Point{}, fmt.Errorf("%w: p+q", ErrPointAtInfinity)
	}
	return pointFromJacobian(sum), nil
}

// Negate returns -p.
func (p Point) Negate() Point {
	if p.IsInfinity() {
		return Point{}
	}
	var pj secp256k1.JacobianPoint
	p.pk.AsJacobian(&pj)
	pj.Y.Negate(1)
	pj.Y.Normalize()
	return pointFromJacobian(pj)
}

// Mul returns s*p.
func (p Point) Mul(s Scalar) Point {
	if p.IsInfinity() {
		return Point{}
	}
	var pj, result secp256k1.JacobianPoint
	p.pk.AsJacobian(&pj)
	secp256k1.ScalarMultNonConst(s.modNScalar(), &pj, &result)
	return pointFromJacobian(result)
}

// Equal reports whether p and q encode the same curve point.
func (p Point) Equal(q Point) bool {
	if p.IsInfinity() || q.IsInfinity() {
		return p.IsInfinity() == q.IsInfinity()
	}
	pc, qc := p.pk.SerializeCompressed(), q.pk.SerializeCompressed()
	if len(pc) != len(qc) {
		return false
	}
	for i := range pc {
		if pc[i] != qc[i] {
			return false
		}
	}
	return true
}

// IsEvenY reports whether p's y-coordinate is even. Infinity is not even.
func (p Point) IsEvenY() bool {
	if p.IsInfinity() {
		return false
	}
	return p.EncodeCompressed()[0] == 0x02
}

// EncodeCompressed returns the 33-byte SEC1 compressed encoding.
func (p Point) EncodeCompressed() [33]byte {
	var out [33]byte
	if p.IsInfinity() {
		return out
	}
	copy(out[:], p.pk.SerializeCompressed())
	return out
}

// EncodeXOnly returns the 32-byte x-coordinate encoding. Per spec, this
// encoding is only ever used for even-y points (R, T); callers must
// canonicalise before calling this.
func (p Point) EncodeXOnly() ([32]byte, error) {
	var out [32]byte
	if p.IsInfinity() {
		return out, fmt.Errorf("%w", ErrPointAtInfinity)
	}
	if !p.IsEvenY() {
		return out, fmt.Errorf("%w", ErrOddYOnXOnlyLift)
	}
	comp := p.EncodeCompressed()
	copy(out[:], comp[1:])
	return out, nil
}

// DecodeCompressed parses a 33-byte SEC1 compressed point, rejecting
// off-curve or malformed input.
func DecodeCompressed(b []byte) (Point, error) {
	if len(b) != 33 {
		return Point{}, fmt.Errorf("%w: compressed point must be 33 bytes, got %d", ErrInvalidPoint, len(b))
	}
	pk, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	return Point{pk: pk}, nil
}

// LiftXOnly lifts a 32-byte x-coordinate to its even-y point, per spec's
// x-only lift contract ("assumes even y"). Fails if x is not on the curve.
func LiftXOnly(x [32]byte) (Point, error) {
	buf := make([]byte, 33)
	buf[0] = 0x02
	copy(buf[1:], x[:])
	return DecodeCompressed(buf)
}
