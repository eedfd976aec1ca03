package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// KeyPair is a canonicalised (privateScalar, publicPoint) pair: Pub always
// has even y, per this package's canonicalisation rule (if x*G has odd y,
// replace x with n-x). There is no raw-key path in this package.
type KeyPair struct {
	Priv Scalar
	Pub  Point
}

// canonicalizeEvenY negates s if s*G has odd y, returning the possibly
// negated scalar and its (even-y) point.
func canonicalizeEvenY(s Scalar) (Scalar, Point) {
	p := s.Point()
	if p.IsEvenY() {
		return s, p
	}
	negS := s.Negate()
	return negS, negS.Point()
}

// GenerateKeyPair samples a random canonicalised keypair.
func GenerateKeyPair() (KeyPair, error) {
	raw, err := RandomScalar()
	if err != nil {
		return KeyPair{}, fmt.Errorf("schnorr: generate keypair: %w", err)
	}
	priv, pub := canonicalizeEvenY(raw)
	return KeyPair{Priv: priv, Pub: pub}, nil
}

// NewKeyPairFromScalar canonicalises a caller-supplied private scalar.
func NewKeyPairFromScalar(raw Scalar) KeyPair {
	priv, pub := canonicalizeEvenY(raw)
	return KeyPair{Priv: priv, Pub: pub}
}

// Signature is a BIP-340-shaped but non-tagged Schnorr signature: (s, R_x),
// serialised as 64 bytes R_x‖s.
type Signature struct {
	Rx [32]byte
	S  Scalar
}

// Bytes serialises the signature as R_x‖s (64 bytes).
func (sig Signature) Bytes() [64]byte {
	var out [64]byte
	copy(out[:32], sig.Rx[:])
	sBytes := sig.S.Bytes()
	copy(out[32:], sBytes[:])
	return out
}

// ParseSignature decodes a 64-byte R_x‖s signature. An s >= n is rejected
// here with ErrInvalidScalar, because Scalar holds values reduced mod n and
// Verify could not tell such an s from its reduction; s == 0 is left for
// Verify to reject.
func ParseSignature(b []byte) (Signature, error) {
	if len(b) != 64 {
		return Signature{}, fmt.Errorf("%w: signature must be 64 bytes, got %d", ErrInvalidScalar, len(b))
	}
	var sig Signature
	copy(sig.Rx[:], b[:32])
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(b[32:]); overflow {
		return Signature{}, fmt.Errorf("%w: signature s >= group order", ErrInvalidScalar)
	}
	sig.S = scalarFromModN(s)
	return sig, nil
}

// challenge computes e = SHA256(P_x ‖ R_x ‖ m), deliberately not
// BIP-340-tagged, to match the reference mint's verifier.
func challenge(px, rx [32]byte, m [32]byte) Scalar {
	h := sha256.New()
	h.Write(px[:])
	h.Write(rx[:])
	h.Write(m[:])
	return ScalarFromHash(h.Sum(nil))
}

// Sign produces a Schnorr signature over digest m using canonicalised priv.
// Priv and the fresh nonce are canonicalised to even-y independently.
func Sign(priv Scalar, m [32]byte) (Signature, error) {
	x, pub := canonicalizeEvenY(priv)

	for {
		rawR, err := RandomScalar()
		if err != nil {
			return Signature{}, fmt.Errorf("schnorr: sample nonce: %w", err)
		}
		r, rPoint := canonicalizeEvenY(rawR)
		if rPoint.IsInfinity() {
			// Never occurs in practice; fail closed by resampling.
			continue
		}
		rx, err := rPoint.EncodeXOnly()
		if err != nil {
			continue
		}
		px, err := pub.EncodeXOnly()
		if err != nil {
			return Signature{}, fmt.Errorf("schnorr: canonicalised pubkey must be even-y: %w", err)
		}
		e := challenge(px, rx, m)
		s := r.Add(e.Mul(x))
		return Signature{Rx: rx, S: s}, nil
	}
}

// Verify checks sig against pub and digest m. P and R are decoded via
// even-y lift before the verification equation is evaluated: the caller's
// pub may carry either y-parity (e.g. a raw P2PK compressed key); only its
// x-coordinate is significant.
func Verify(pub Point, m [32]byte, sig Signature) bool {
	if sig.S.IsZero() {
		return false
	}
	sBytes := sig.S.Bytes()
	// Reject s outside [1, n-1]: sig.S is held reduced mod n (ParseSignature
	// rejects encodings >= n), and NewScalarFromBytes enforces exactly that
	// range, so a round-trip failure means sig.S was out of range.
	if _, err := NewScalarFromBytes(sBytes[:]); err != nil {
		return false
	}
	if pub.IsInfinity() {
		return false
	}
	pxFull := pub.EncodeCompressed()
	var px [32]byte
	copy(px[:], pxFull[1:])
	pEven, err := LiftXOnly(px)
	if err != nil {
		return false
	}
	rEven, err := LiftXOnly(sig.Rx)
	if err != nil {
		return false
	}

	e := challenge(px, sig.Rx, m)
	lhs := BasePointMul(sig.S)
	rhs, err := rEven.Add(pEven.Mul(e))
	if err != nil {
		return false
	}
	return lhs.Equal(rhs)
}
