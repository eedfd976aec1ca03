// Package p2pk implements the canonical P2PK secret and witness codec: the
// only semantic-sensitive serialisation in the system, because the mint
// signs exactly the bytes this package emits.
package p2pk

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cashubridge/atomicswap/crypto"
)

// SigFlag is the per-input / joint-input authorisation mode.
type SigFlag string

const (
	SigInputs SigFlag = "SIG_INPUTS"
	SigAll    SigFlag = "SIG_ALL"
)

// Tag is a single [key, value] pair embedded in a P2PK secret.
type Tag [2]string

// Secret is the semantic container of a P2PK lock: {nonce, data, tags}.
// Data is always held as a full point internally so the codec can never
// accidentally emit an x-only value where a compressed one belongs, or
// vice versa — encoders and decoders never implicitly cross these
// encodings.
type Secret struct {
	Nonce     [32]byte
	Recipient crypto.Point
	Tags      []Tag
}

// NewSecret builds a P2PK secret locked to recipient with a fresh random
// nonce and the given tags (typically at least a sigflag tag).
func NewSecret(recipient crypto.Point, tags []Tag) (*Secret, error) {
	if recipient.IsInfinity() {
		return nil, fmt.Errorf("p2pk: recipient is point at infinity")
	}
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("p2pk: generate nonce: %w", err)
	}
	return &Secret{Nonce: nonce, Recipient: recipient, Tags: append([]Tag(nil), tags...)}, nil
}

// NewSecretFromXOnly lifts a 32-byte x-only recipient key to a full point
// before building the secret. An x-only key carries no parity, so the lift
// takes the even-y point and the serialised data field carries the 0x02
// prefix.
func NewSecretFromXOnly(xOnly [32]byte, tags []Tag) (*Secret, error) {
	p, err := crypto.LiftXOnly(xOnly)
	if err != nil {
		return nil, fmt.Errorf("p2pk: lift x-only recipient: %w", err)
	}
	return NewSecret(p, tags)
}

// WithSigFlag returns a copy of tags with any existing sigflag tag replaced
// (or appended) by flag.
func WithSigFlag(tags []Tag, flag SigFlag) []Tag {
	out := make([]Tag, 0, len(tags)+1)
	replaced := false
	for _, tg := range tags {
		if tg[0] == "sigflag" {
			out = append(out, Tag{"sigflag", string(flag)})
			replaced = true
			continue
		}
		out = append(out, tg)
	}
	if !replaced {
		out = append(out, Tag{"sigflag", string(flag)})
	}
	return out
}

// SigFlag returns the secret's sigflag tag, defaulting to SIG_INPUTS if
// absent (the conservative, per-input default).
func (s *Secret) SigFlag() SigFlag {
	for _, tg := range s.Tags {
		if tg[0] == "sigflag" {
			return SigFlag(tg[1])
		}
	}
	return SigInputs
}

// jsonString quotes and escapes a single string value with json.Marshal.
// Only leaf strings go through encoding/json; the surrounding array and
// object are written by hand in Serialize, so field order and the absence
// of whitespace do not depend on how Marshal treats structs or maps.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Serialize produces the canonical compact-JSON two-element sequence
// ["P2PK", {"nonce":..., "data":..., "tags":[...]}] with fields in that
// exact order and no added whitespace. This is the only byte sequence the
// mint ever signs over for a P2PK-locked proof, so field order and
// whitespace are part of the contract, not cosmetic.
func (s *Secret) Serialize() (string, error) {
	if s.Recipient.IsInfinity() {
		return "", fmt.Errorf("p2pk: recipient is point at infinity")
	}
	dataComp := s.Recipient.EncodeCompressed()

	var b strings.Builder
	b.WriteString(`["P2PK",{"nonce":`)
	b.WriteString(jsonString(hex.EncodeToString(s.Nonce[:])))
	b.WriteString(`,"data":`)
	b.WriteString(jsonString(hex.EncodeToString(dataComp[:])))
	b.WriteString(`,"tags":[`)
	for i, tg := range s.Tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		b.WriteString(jsonString(tg[0]))
		b.WriteByte(',')
		b.WriteString(jsonString(tg[1]))
		b.WriteByte(']')
	}
	b.WriteString(`]}]`)
	return b.String(), nil
}

// Digest returns SHA256(utf8(serialised)), the message a spending witness
// signs over.
func (s *Secret) Digest() ([32]byte, error) {
	ser, err := s.Serialize()
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256([]byte(ser)), nil
}

// wireSecret mirrors the second element of the ["P2PK", {...}] sequence for
// parsing. Decoding does not need to preserve field order (only encoding
// does), so plain encoding/json unmarshalling is safe here.
type wireSecret struct {
	Nonce string     `json:"nonce"`
	Data  string      `json:"data"`
	Tags  [][2]string `json:"tags"`
}

// Parse decodes a serialised P2PK secret string back into a Secret.
func Parse(raw string) (*Secret, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, fmt.Errorf("p2pk: not a JSON array: %w", err)
	}
	if len(elems) != 2 {
		return nil, fmt.Errorf("p2pk: expected 2-element sequence, got %d", len(elems))
	}
	var kind string
	if err := json.Unmarshal(elems[0], &kind); err != nil || kind != "P2PK" {
		return nil, fmt.Errorf("p2pk: expected literal \"P2PK\" tag")
	}
	var w wireSecret
	if err := json.Unmarshal(elems[1], &w); err != nil {
		return nil, fmt.Errorf("p2pk: decode secret body: %w", err)
	}

	nonceBytes, err := hex.DecodeString(w.Nonce)
	if err != nil || len(nonceBytes) != 32 {
		return nil, fmt.Errorf("p2pk: nonce must be 32-byte hex")
	}
	dataBytes, err := hex.DecodeString(w.Data)
	if err != nil {
		return nil, fmt.Errorf("p2pk: data must be hex: %w", err)
	}
	recipient, err := crypto.DecodeCompressed(dataBytes)
	if err != nil {
		return nil, fmt.Errorf("p2pk: data is not a valid compressed point: %w", err)
	}

	var nonce [32]byte
	copy(nonce[:], nonceBytes)
	tags := make([]Tag, 0, len(w.Tags))
	for _, t := range w.Tags {
		tags = append(tags, Tag{t[0], t[1]})
	}
	return &Secret{Nonce: nonce, Recipient: recipient, Tags: tags}, nil
}
