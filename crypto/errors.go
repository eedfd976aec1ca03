package crypto

import "errors"

// Sentinel errors for the scalar/point/signature boundary. Callers that need
// to distinguish a crypto failure from a transport or state failure should
// use errors.Is against these.
var (
	ErrInvalidScalar    = errors.New("crypto: scalar out of range or malformed")
	ErrInvalidPoint     = errors.New("crypto: point not on curve or malformed")
	ErrPointAtInfinity  = errors.New("crypto: point at infinity")
	ErrOddYOnXOnlyLift  = errors.New("crypto: x-only lift requires even-y, got odd")
	ErrHashToCurveFail  = errors.New("crypto: hash-to-curve exhausted counter space")
	ErrSignatureInvalid = errors.New("crypto: signature verification failed")
	ErrAdaptorInvalid   = errors.New("crypto: adaptor relation does not hold")
	ErrAdaptorMismatch  = errors.New("crypto: extracted adaptor secret does not match T")
)
