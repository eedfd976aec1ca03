package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cashubridge/atomicswap/crypto"
	"github.com/cashubridge/atomicswap/internal/logging"
	mintpkg "github.com/cashubridge/atomicswap/mint"
	"github.com/cashubridge/atomicswap/p2pk"
)

// Engine mints and spends proofs against a single mint. It holds no proof
// inventory of its own — that's the ledger's job — and returns freshly
// minted or swapped proofs to the caller.
type Engine struct {
	client *mintpkg.Client
	log    logging.Logger

	// PollInterval governs how often MintTokens re-checks a pending mint
	// quote. Production backends take real Lightning settlement time; test
	// backends mark quotes paid immediately, so the first poll usually
	// succeeds.
	PollInterval time.Duration
}

// New builds an Engine that mints and swaps against client.
func New(client *mintpkg.Client, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Disabled()
	}
	return &Engine{client: client, log: log, PollInterval: 500 * time.Millisecond}
}

// pendingOutput is the per-denomination state the engine must retain
// between building a blinded output and unblinding its signature.
type pendingOutput struct {
	amount uint64
	keyID  string
	r      crypto.Scalar
	secret string // hex for anyone-can-spend, serialised P2PK JSON otherwise
}

// activeKeyset picks the mint's active keyset for unit, returning its ID and
// per-denomination public keys. A keyset is active when the mint explicitly
// says so; if none is explicitly marked active, the first keyset matching
// unit is used instead, since an omitted/false Active field doesn't mean
// the mint has no usable keyset for that unit.
func activeKeyset(resp *mintpkg.KeysResponse, unit string) (*mintpkg.Keyset, error) {
	var firstMatch *mintpkg.Keyset
	for i := range resp.Keysets {
		ks := &resp.Keysets[i]
		if ks.Unit != unit {
			continue
		}
		if ks.Active {
			return ks, nil
		}
		if firstMatch == nil {
			firstMatch = ks
		}
	}
	if firstMatch != nil {
		return firstMatch, nil
	}
	return nil, fmt.Errorf("token: no keyset for unit %q", unit)
}

func randomSecretHex() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("token: generate secret: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// buildOutputs constructs one blinded output per denomination of amount. If
// lockTo is non-nil, every output's secret is a P2PK secret locked to that
// recipient; otherwise secrets are random (anyone-can-spend).
func buildOutputs(amount uint64, keysetID string, lockTo *crypto.Point) ([]mintpkg.BlindedMessage, []pendingOutput, error) {
	denoms := SplitAmount(amount)
	outputs := make([]mintpkg.BlindedMessage, 0, len(denoms))
	pending := make([]pendingOutput, 0, len(denoms))

	for _, d := range denoms {
		var secret string
		if lockTo != nil {
			s, err := p2pk.NewSecret(*lockTo, []p2pk.Tag{{"sigflag", string(p2pk.SigInputs)}})
			if err != nil {
				return nil, nil, fmt.Errorf("token: build P2PK secret: %w", err)
			}
			ser, err := s.Serialize()
			if err != nil {
				return nil, nil, fmt.Errorf("token: serialise P2PK secret: %w", err)
			}
			secret = ser
		} else {
			s, err := randomSecretHex()
			if err != nil {
				return nil, nil, err
			}
			secret = s
		}

		bm, err := crypto.CreateBlindedMessage([]byte(secret))
		if err != nil {
			return nil, nil, fmt.Errorf("token: blind secret: %w", err)
		}
		bComp := bm.B_.EncodeCompressed()

		outputs = append(outputs, mintpkg.BlindedMessage{Amount: d, ID: keysetID, B_: hex.EncodeToString(bComp[:])})
		pending = append(pending, pendingOutput{amount: d, keyID: keysetID, r: bm.R, secret: secret})
	}
	return outputs, pending, nil
}

// unblindSignatures pairs each returned signature with the pending output
// that produced its corresponding blinded message, in order — the order
// of outputs must match the order of signatures — and unblinds it into a
// spendable Proof.
func unblindSignatures(sigs []mintpkg.BlindedSignature, pending []pendingOutput, keys mintpkg.KeysetKeys) ([]mintpkg.Proof, error) {
	if len(sigs) != len(pending) {
		return nil, fmt.Errorf("token: mint returned %d signatures for %d outputs", len(sigs), len(pending))
	}
	proofs := make([]mintpkg.Proof, 0, len(sigs))
	for i, sig := range sigs {
		p := pending[i]
		keyHex, ok := keys[p.amount]
		if !ok {
			return nil, fmt.Errorf("token: mint has no key for denomination %d", p.amount)
		}
		kBytes, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("token: decode mint key for denomination %d: %w", p.amount, err)
		}
		k, err := crypto.DecodeCompressed(kBytes)
		if err != nil {
			return nil, fmt.Errorf("token: parse mint key for denomination %d: %w", p.amount, err)
		}

		cBytes, err := hex.DecodeString(sig.C_)
		if err != nil {
			return nil, fmt.Errorf("token: decode signature: %w", err)
		}
		cPrime, err := crypto.DecodeCompressed(cBytes)
		if err != nil {
			return nil, fmt.Errorf("token: parse signature point: %w", err)
		}

		c, err := crypto.Unblind(cPrime, p.r, k)
		if err != nil {
			return nil, fmt.Errorf("token: unblind denomination %d: %w", p.amount, err)
		}
		cComp := c.EncodeCompressed()

		proofs = append(proofs, mintpkg.Proof{
			Amount: sig.Amount,
			ID:     sig.ID,
			Secret: p.secret,
			C:      hex.EncodeToString(cComp[:]),
		})
	}
	return proofs, nil
}

// MintTokens runs the full mint flow: request a quote, wait for it to be
// paid, build blinded outputs, submit them, and unblind the mint's
// signatures into spendable proofs. If lockTo is non-nil, every resulting
// proof is P2PK-locked to that recipient.
func (e *Engine) MintTokens(ctx context.Context, amount uint64, unit string, lockTo *crypto.Point) ([]mintpkg.Proof, error) {
	quote, err := e.client.RequestMintQuote(ctx, amount, unit)
	if err != nil {
		return nil, fmt.Errorf("token: request mint quote: %w", err)
	}

	for !quote.Paid {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.PollInterval):
		}
		quote, err = e.client.MintQuoteStatus(ctx, quote.Quote)
		if err != nil {
			return nil, fmt.Errorf("token: poll mint quote: %w", err)
		}
	}

	keysResp, err := e.client.Keys(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("token: fetch mint keys: %w", err)
	}
	keyset, err := activeKeyset(keysResp, unit)
	if err != nil {
		return nil, err
	}

	outputs, pending, err := buildOutputs(amount, keyset.ID, lockTo)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Mint(ctx, quote.Quote, outputs)
	if err != nil {
		return nil, fmt.Errorf("token: mint outputs: %w", err)
	}

	proofs, err := unblindSignatures(resp.Signatures, pending, keyset.Keys)
	if err != nil {
		return nil, err
	}
	e.log.Infof("token: minted %d proof(s) totalling %d %s", len(proofs), amount, unit)
	return proofs, nil
}

// SwapSplit spends inputs in a single swap call and produces two disjoint
// sets of fresh outputs from the proceeds: primaryAmount locked to
// primaryLock, and the remainder (inputs total - primaryAmount) locked to
// changeLock (nil for anyone-can-spend). This lets a caller relock exactly
// part of a selected input set to a third party while keeping the rest as
// its own change, in one round trip to the mint rather than two.
func (e *Engine) SwapSplit(ctx context.Context, inputs []mintpkg.Proof, unit string, primaryAmount uint64, primaryLock, changeLock *crypto.Point, sign WitnessSigner) (primary, change []mintpkg.Proof, err error) {
	var total uint64
	for _, p := range inputs {
		total += p.Amount
	}
	if primaryAmount > total {
		return nil, nil, fmt.Errorf("token: primary amount %d exceeds input total %d", primaryAmount, total)
	}
	changeAmount := total - primaryAmount

	keysResp, err := e.client.Keys(ctx, "")
	if err != nil {
		return nil, nil, fmt.Errorf("token: fetch mint keys: %w", err)
	}
	keyset, err := activeKeyset(keysResp, unit)
	if err != nil {
		return nil, nil, err
	}

	witnessed, err := attachWitnesses(inputs, sign)
	if err != nil {
		return nil, nil, err
	}

	primaryOutputs, primaryPending, err := buildOutputs(primaryAmount, keyset.ID, primaryLock)
	if err != nil {
		return nil, nil, err
	}
	var changeOutputs []mintpkg.BlindedMessage
	var changePending []pendingOutput
	if changeAmount > 0 {
		changeOutputs, changePending, err = buildOutputs(changeAmount, keyset.ID, changeLock)
		if err != nil {
			return nil, nil, err
		}
	}

	outputs := append(append([]mintpkg.BlindedMessage(nil), primaryOutputs...), changeOutputs...)
	pending := append(append([]pendingOutput(nil), primaryPending...), changePending...)

	resp, err := e.client.Swap(ctx, witnessed, outputs)
	if err != nil {
		return nil, nil, fmt.Errorf("token: swap: %w", err)
	}

	proofs, err := unblindSignatures(resp.Signatures, pending, keyset.Keys)
	if err != nil {
		return nil, nil, err
	}

	primary = proofs[:len(primaryPending)]
	change = proofs[len(primaryPending):]

	var primaryTotal, changeTotal uint64
	for _, p := range primary {
		primaryTotal += p.Amount
	}
	for _, p := range change {
		changeTotal += p.Amount
	}
	if primaryTotal != primaryAmount || changeTotal != changeAmount {
		return nil, nil, fmt.Errorf("token: swap split totals %d/%d do not match requested %d/%d", primaryTotal, changeTotal, primaryAmount, changeAmount)
	}
	return primary, change, nil
}

// WitnessSigner signs a 32-byte digest and returns the 128-hex-char witness
// signature string, i.e. crypto.Sign followed by Signature.Bytes. Swap takes
// this as a parameter rather than a raw crypto.KeyPair so callers that sign
// through an adaptor-completed signature can satisfy the swap flow's
// witness-attachment step without the engine knowing about adaptors.
type WitnessSigner func(digest [32]byte) (string, error)

// SignWithKeyPair adapts a crypto.KeyPair to a WitnessSigner.
func SignWithKeyPair(kp crypto.KeyPair) WitnessSigner {
	return func(digest [32]byte) (string, error) {
		sig, err := crypto.Sign(kp.Priv, digest)
		if err != nil {
			return "", err
		}
		b := sig.Bytes()
		return hex.EncodeToString(b[:]), nil
	}
}

// attachWitnesses signs a proof set for spending: for SIG_INPUTS every
// proof carries its own witness over its own secret; for SIG_ALL only the
// first proof carries a witness, covering the SigAllMessage of every
// secret.
func attachWitnesses(proofs []mintpkg.Proof, sign WitnessSigner) ([]mintpkg.Proof, error) {
	if sign == nil || len(proofs) == 0 {
		return proofs, nil
	}

	secrets := make([]*p2pk.Secret, len(proofs))
	anySigAll := false
	for i, p := range proofs {
		s, err := p2pk.Parse(p.Secret)
		if err != nil {
			// Anyone-can-spend (non-P2PK) secret; no witness required.
			continue
		}
		secrets[i] = s
		if s.SigFlag() == p2pk.SigAll {
			anySigAll = true
		}
	}

	out := append([]mintpkg.Proof(nil), proofs...)

	if anySigAll {
		serials := make([]string, len(proofs))
		for i, p := range proofs {
			serials[i] = p.Secret
		}
		msg := p2pk.SigAllMessage(serials)
		sigHex, err := sign(msg)
		if err != nil {
			return nil, fmt.Errorf("token: sign SIG_ALL witness: %w", err)
		}
		w, err := p2pk.NewWitness(sigHex)
		if err != nil {
			return nil, err
		}
		ser, err := w.Serialize()
		if err != nil {
			return nil, err
		}
		out[0].Witness = ser
		return out, nil
	}

	for i, s := range secrets {
		if s == nil {
			continue
		}
		digest, err := s.Digest()
		if err != nil {
			return nil, fmt.Errorf("token: digest secret %d: %w", i, err)
		}
		sigHex, err := sign(digest)
		if err != nil {
			return nil, fmt.Errorf("token: sign witness for proof %d: %w", i, err)
		}
		w, err := p2pk.NewWitness(sigHex)
		if err != nil {
			return nil, err
		}
		ser, err := w.Serialize()
		if err != nil {
			return nil, err
		}
		out[i].Witness = ser
	}
	return out, nil
}

// Swap runs the spending flow: attach witnesses to inputs, build fresh
// blinded outputs totalling the same amount, submit to the mint's swap
// endpoint, and unblind the response. sign may be nil for anyone-can-spend
// inputs.
func (e *Engine) Swap(ctx context.Context, inputs []mintpkg.Proof, unit string, lockTo *crypto.Point, sign WitnessSigner) ([]mintpkg.Proof, error) {
	var total uint64
	for _, p := range inputs {
		total += p.Amount
	}

	keysResp, err := e.client.Keys(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("token: fetch mint keys: %w", err)
	}
	keyset, err := activeKeyset(keysResp, unit)
	if err != nil {
		return nil, err
	}

	witnessed, err := attachWitnesses(inputs, sign)
	if err != nil {
		return nil, err
	}

	outputs, pending, err := buildOutputs(total, keyset.ID, lockTo)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Swap(ctx, witnessed, outputs)
	if err != nil {
		return nil, fmt.Errorf("token: swap: %w", err)
	}

	proofs, err := unblindSignatures(resp.Signatures, pending, keyset.Keys)
	if err != nil {
		return nil, err
	}

	var outTotal uint64
	for _, p := range proofs {
		outTotal += p.Amount
	}
	if outTotal != total {
		return nil, fmt.Errorf("token: swap output total %d does not match input total %d", outTotal, total)
	}
	e.log.Infof("token: swapped %d proof(s) for %d proof(s), total %d", len(inputs), len(proofs), total)
	return proofs, nil
}
