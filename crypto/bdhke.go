package crypto

import "fmt"

// BlindedMessage is the output of CreateBlindedMessage: the point sent to the
// mint (B_) plus the two values the minting party must retain until
// unblinding (r, Y). The mint never sees r or Y directly.
type BlindedMessage struct {
	B_ Point
	R  Scalar
	Y  Point
}

// CreateBlindedMessage implements the BDHKE blinding step:
// Y = hashToCurve(secret), r random, B_ = Y + r*G.
func CreateBlindedMessage(secret []byte) (BlindedMessage, error) {
	y, err := HashToCurve(secret)
	if err != nil {
		return BlindedMessage{}, fmt.Errorf("bdhke: hash secret to curve: %w", err)
	}
	r, err := RandomScalar()
	if err != nil {
		return BlindedMessage{}, fmt.Errorf("bdhke: sample blinding factor: %w", err)
	}
	bPrime, err := y.Add(BasePointMul(r))
	if err != nil {
		return BlindedMessage{}, fmt.Errorf("bdhke: Y + r*G: %w", err)
	}
	return BlindedMessage{B_: bPrime, R: r, Y: y}, nil
}

// Unblind implements the BDHKE unblinding step: given the mint's blind
// signature C_, the blinding factor r, and the mint's per-denomination
// public key K, computes C = C_ - r*K. For an honest mint with private key
// k, C == k*Y.
func Unblind(cPrime Point, r Scalar, k Point) (Point, error) {
	if cPrime.IsInfinity() {
		return Point{}, fmt.Errorf("%w: C_ is infinity", ErrInvalidPoint)
	}
	if k.IsInfinity() {
		return Point{}, fmt.Errorf("%w: K is infinity", ErrInvalidPoint)
	}
	rK := k.Mul(r)
	c, err := cPrime.Add(rK.Negate())
	if err != nil {
		return Point{}, fmt.Errorf("bdhke: C_ - r*K: %w", err)
	}
	return c, nil
}
