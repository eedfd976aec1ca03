package crypto

import "fmt"

// AdaptorSecret is a canonical scalar t whose point T = t*G has even y
// (negated at generation time if the resulting T would have odd y). It is
// the single secret an atomic swap hinges on; callers must zeroise it (best
// effort) once the swap reaches a terminal state.
type AdaptorSecret struct {
	T Scalar
}

// NewAdaptorSecret samples a fresh canonical adaptor secret and its point.
func NewAdaptorSecret() (AdaptorSecret, Point, error) {
	raw, err := RandomScalar()
	if err != nil {
		return AdaptorSecret{}, Point{}, fmt.Errorf("adaptor: generate secret: %w", err)
	}
	t, point := canonicalizeEvenY(raw)
	return AdaptorSecret{T: t}, point, nil
}

// AdaptorSignature is the triple (s', R, T): a signature-like object that
// becomes a valid Schnorr signature once completed with t.
type AdaptorSignature struct {
	SPrime Scalar
	Rx     [32]byte
	Tx     [32]byte
}

// AdaptorSign computes s' = r + t + e*x mod n and returns (s', R_x, T_x).
// priv and the fresh nonce are canonicalised independently; adaptorPoint is
// not canonicalised here: it must already be even-y (as NewAdaptorSecret
// produces), and an odd-y adaptorPoint is rejected with ErrInvalidPoint.
func AdaptorSign(priv Scalar, m [32]byte, t AdaptorSecret, adaptorPoint Point) (AdaptorSignature, error) {
	if !adaptorPoint.IsEvenY() {
		return AdaptorSignature{}, fmt.Errorf("%w: adaptor point must be even-y", ErrInvalidPoint)
	}
	tx, err := adaptorPoint.EncodeXOnly()
	if err != nil {
		return AdaptorSignature{}, fmt.Errorf("adaptor: encode T: %w", err)
	}

	x, pub := canonicalizeEvenY(priv)
	for {
		rawR, err := RandomScalar()
		if err != nil {
			return AdaptorSignature{}, fmt.Errorf("adaptor: sample nonce: %w", err)
		}
		r, rPoint := canonicalizeEvenY(rawR)
		if rPoint.IsInfinity() {
			continue
		}
		rx, err := rPoint.EncodeXOnly()
		if err != nil {
			continue
		}
		px, err := pub.EncodeXOnly()
		if err != nil {
			return AdaptorSignature{}, fmt.Errorf("adaptor: canonicalised pubkey must be even-y: %w", err)
		}
		e := challenge(px, rx, m)
		sPrime := r.Add(t.T).Add(e.Mul(x))
		return AdaptorSignature{SPrime: sPrime, Rx: rx, Tx: tx}, nil
	}
}

// AdaptorVerify checks s'·G == R + T + e·P. pub may carry either y-parity;
// only its x-coordinate is significant (same even-y lift rule as Verify).
func AdaptorVerify(pub Point, m [32]byte, sig AdaptorSignature) error {
	pxFull := pub.EncodeCompressed()
	if pub.IsInfinity() {
		return fmt.Errorf("%w: pubkey is infinity", ErrInvalidPoint)
	}
	var px [32]byte
	copy(px[:], pxFull[1:])
	pEven, err := LiftXOnly(px)
	if err != nil {
		return fmt.Errorf("adaptor: lift P: %w", err)
	}
	rEven, err := LiftXOnly(sig.Rx)
	if err != nil {
		return fmt.Errorf("adaptor: lift R: %w", err)
	}
	tEven, err := LiftXOnly(sig.Tx)
	if err != nil {
		return fmt.Errorf("adaptor: lift T: %w", err)
	}

	e := challenge(px, sig.Rx, m)
	lhs := BasePointMul(sig.SPrime)

	rPlusT, err := rEven.Add(tEven)
	if err != nil {
		return fmt.Errorf("adaptor: R+T: %w", err)
	}
	rhs, err := rPlusT.Add(pEven.Mul(e))
	if err != nil {
		return fmt.Errorf("adaptor: R+T+eP: %w", err)
	}
	if !lhs.Equal(rhs) {
		return fmt.Errorf("%w", ErrAdaptorInvalid)
	}
	return nil
}

// Complete turns an adaptor signature into a standard signature given the
// scalar t satisfying t*G == T. Fails closed if the precondition does not
// hold.
func Complete(sig AdaptorSignature, t Scalar) (Signature, error) {
	tPoint, err := LiftXOnly(sig.Tx)
	if err != nil {
		return Signature{}, fmt.Errorf("adaptor: lift T: %w", err)
	}
	if !t.Point().Equal(tPoint) {
		return Signature{}, fmt.Errorf("%w: t*G != T", ErrAdaptorMismatch)
	}
	return Signature{Rx: sig.Rx, S: sig.SPrime.Sub(t)}, nil
}

// Extract recovers t = s' - s mod n from an adaptor signature and the
// completed signature sharing the same R, verifying t*G == T before
// returning it. This is the atomicity-enforcing primitive: once a
// completed signature is observable on a mint, any holder of the adaptor
// signature can recover t.
func Extract(sig AdaptorSignature, completed Signature) (Scalar, error) {
	if sig.Rx != completed.Rx {
		return Scalar{}, fmt.Errorf("adaptor: R mismatch between adaptor and completed signature")
	}
	t := sig.SPrime.Sub(completed.S)
	tPoint, err := LiftXOnly(sig.Tx)
	if err != nil {
		return Scalar{}, fmt.Errorf("adaptor: lift T: %w", err)
	}
	if !t.Point().Equal(tPoint) {
		return Scalar{}, fmt.Errorf("%w", ErrAdaptorMismatch)
	}
	return t, nil
}
