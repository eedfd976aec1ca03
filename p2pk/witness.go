package p2pk

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Witness is the P2PK witness attached to a spent Proof:
// {signatures: [hex], preimage?: hex}. Each signature is exactly 128 hex
// characters (64 raw bytes, R‖s).
type Witness struct {
	Signatures []string
	Preimage   *string
}

// NewWitness validates and wraps a set of 64-byte signatures already
// hex-encoded by the caller (crypto.Signature.Bytes()).
func NewWitness(sigHex ...string) (*Witness, error) {
	for _, s := range sigHex {
		if err := validateSigHex(s); err != nil {
			return nil, err
		}
	}
	return &Witness{Signatures: append([]string(nil), sigHex...)}, nil
}

func validateSigHex(s string) error {
	if len(s) != 128 {
		return fmt.Errorf("p2pk: signature must be 128 hex chars (64 bytes), got %d", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return fmt.Errorf("p2pk: signature is not valid hex: %w", err)
	}
	return nil
}

// Serialize emits the canonical compact JSON witness object.
func (w *Witness) Serialize() (string, error) {
	type wire struct {
		Signatures []string `json:"signatures"`
		Preimage   *string  `json:"preimage,omitempty"`
	}
	b, err := json.Marshal(wire{Signatures: w.Signatures, Preimage: w.Preimage})
	if err != nil {
		return "", fmt.Errorf("p2pk: serialise witness: %w", err)
	}
	return string(b), nil
}

// ParseWitness decodes a witness string attached to a Proof.
func ParseWitness(raw string) (*Witness, error) {
	var wire struct {
		Signatures []string `json:"signatures"`
		Preimage   *string  `json:"preimage"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("p2pk: decode witness: %w", err)
	}
	for _, s := range wire.Signatures {
		if err := validateSigHex(s); err != nil {
			return nil, err
		}
	}
	return &Witness{Signatures: wire.Signatures, Preimage: wire.Preimage}, nil
}

// SigAllMessage computes the message a SIG_ALL witness signs over: SHA256
// of the length-prefixed concatenation of each input's serialised secret
// string, in proof order. A raw concatenation without length prefixes would
// be ambiguous (two different secret sequences could concatenate to the
// same bytes); a fixed-width length prefix per secret removes that
// ambiguity without requiring a separator character that might collide with JSON
// content.
func SigAllMessage(serialisedSecrets []string) [32]byte {
	h := sha256.New()
	for _, s := range serialisedSecrets {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
