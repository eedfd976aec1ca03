package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// hashToCurveDomain is the NUT-style domain separator. It must never change:
// every implementation of this algorithm, in any language, must hash the
// same prefix to land on the same point for the same message.
const hashToCurveDomain = "Secp256k1_HashToCurve_Cashu_"

// HashToCurve deterministically maps arbitrary bytes to a curve point. The
// output is byte-identical across runs and across language ports:
// SHA-256(domain‖msg), then SHA-256(h‖counter_le) reattempted with an
// incrementing little-endian u32 counter until a valid compressed point
// (0x02-prefixed) is found.
func HashToCurve(msg []byte) (Point, error) {
	h := sha256.Sum256(append([]byte(hashToCurveDomain), msg...))

	var counter uint32
	for {
		var counterLE [4]byte
		binary.LittleEndian.PutUint32(counterLE[:], counter)

		candidate := sha256.Sum256(append(h[:], counterLE[:]...))

		buf := make([]byte, 33)
		buf[0] = 0x02
		copy(buf[1:], candidate[:])

		if p, err := DecodeCompressed(buf); err == nil {
			return p, nil
		}

		if counter == ^uint32(0) {
			return Point{}, fmt.Errorf("%w", ErrHashToCurveFail)
		}
		counter++
	}
}
