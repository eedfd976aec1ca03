package swap

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/cashubridge/atomicswap/crypto"
	"github.com/cashubridge/atomicswap/internal/logging"
	"github.com/cashubridge/atomicswap/mint"
	"github.com/cashubridge/atomicswap/p2pk"
	"github.com/cashubridge/atomicswap/token"
	"golang.org/x/sync/errgroup"
)

// Party is one side of a swap: its public key, optionally its private key
// (nil for a party whose signing happens out of process), the mint it holds
// proofs on, and the amount it brings to the swap.
type Party struct {
	Pubkey  crypto.Point
	Privkey *crypto.Scalar
	MintURL string
	Unit    string
	Amount  uint64
}

// unit defaults Party.Unit to "sat" when unset, since most test and example
// mints in this ecosystem deal exclusively in sats.
func (p Party) unit() string {
	if p.Unit == "" {
		return "sat"
	}
	return p.Unit
}

// Coordinator drives one atomic cross-mint swap through its state machine.
// The initiator's proofs are P2PK-locked to the responder's pubkey (so the
// responder, who generates and therefore knows t, claims first); the
// responder's proofs are locked to the initiator's pubkey (so the initiator
// claims second, after extracting t from the responder's published
// completed signature).
type Coordinator struct {
	mu sync.Mutex

	log logging.Logger

	initiator Party
	responder Party
	fee       uint64
	expiresAt time.Time

	initiatorEngine *token.Engine
	responderEngine *token.Engine

	state  State
	events []Event

	t      crypto.Scalar
	tKnown bool
	T      crypto.Point

	initiatorProofs []mint.Proof
	responderProofs []mint.Proof
	initiatorSecret []*p2pk.Secret // parsed secrets of initiatorProofs, in order
	responderSecret []*p2pk.Secret

	// Each proof carries its own SIG_INPUTS adaptor signature over its own
	// secret's digest, indexed the same as initiatorProofs/responderProofs.
	initiatorAdaptorSigs []crypto.AdaptorSignature // over initiatorSecret[i], signed by responder
	responderAdaptorSigs []crypto.AdaptorSignature // over responderSecret[i], signed by initiator

	responderClaimSig *crypto.Signature // completed signature over initiatorSecret[0], observed once the responder's claim lands on the initiator's mint
}

// New builds a Coordinator for one swap between initiator and responder,
// expiring at expiresAt. initiatorEngine/responderEngine are token engines
// bound to the initiator's and responder's mints respectively.
func New(initiator, responder Party, fee uint64, expiresAt time.Time, initiatorEngine, responderEngine *token.Engine, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.Disabled()
	}
	return &Coordinator{
		log:             log,
		initiator:       initiator,
		responder:       responder,
		fee:             fee,
		expiresAt:       expiresAt,
		initiatorEngine: initiatorEngine,
		responderEngine: responderEngine,
		state:           StateIdle,
	}
}

func (c *Coordinator) emit(step, note string) {
	c.events = append(c.events, Event{State: c.state, Step: step, Note: note})
}

// Events returns a copy of every event emitted so far, oldest first.
func (c *Coordinator) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) require(step string, want State) error {
	if c.state != want {
		return &TransitionError{From: c.state, Want: want, Step: step}
	}
	return nil
}

func (c *Coordinator) fail(step string, err error) error {
	c.state = StateFailed
	c.emit(step, err.Error())
	return fmt.Errorf("swap: %s: %w", step, err)
}

// Initialise is step 1, responder-only: generate the canonical adaptor
// secret t and its point T, and emit a Created event carrying T.
func (c *Coordinator) Initialise() (crypto.Point, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require("Initialise", StateIdle); err != nil {
		return crypto.Point{}, err
	}
	t, T, err := crypto.NewAdaptorSecret()
	if err != nil {
		return crypto.Point{}, c.fail("Initialise", err)
	}
	c.t = t.T
	c.T = T
	c.tKnown = true
	c.state = StateNegotiating
	c.emit("Initialise", "adaptor point generated")
	return T, nil
}

// SetAdaptorPoint lets a coordinator instance running as the initiator
// (i.e. one that did not call Initialise) record T as announced by the
// responder, without learning t.
func (c *Coordinator) SetAdaptorPoint(T crypto.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("SetAdaptorPoint", StateIdle); err != nil {
		return err
	}
	c.T = T
	c.state = StateNegotiating
	c.emit("SetAdaptorPoint", "adaptor point received")
	return nil
}

// parseAndValidateSecrets checks that each proof's secret is a P2PK secret
// locked to expectedRecipient and tagged SIG_INPUTS, the default lock
// produced by token.Engine and the mode this coordinator requires for its
// two-party protocol (each proof carries its own witness, rather than one
// joint witness covering the whole set).
func parseAndValidateSecrets(proofs []mint.Proof, expectedRecipient crypto.Point) ([]*p2pk.Secret, error) {
	out := make([]*p2pk.Secret, 0, len(proofs))
	for i, p := range proofs {
		s, err := p2pk.Parse(p.Secret)
		if err != nil {
			return nil, fmt.Errorf("proof %d: not a P2PK secret: %w", i, err)
		}
		if !s.Recipient.Equal(expectedRecipient) {
			return nil, fmt.Errorf("proof %d: locked to the wrong recipient", i)
		}
		if s.SigFlag() != p2pk.SigInputs {
			return nil, fmt.Errorf("proof %d: expected SIG_INPUTS, got %s", i, s.SigFlag())
		}
		out = append(out, s)
	}
	return out, nil
}

// digests returns each secret's SHA256 digest, in order — the per-proof
// message a SIG_INPUTS witness (and its adaptor signature) signs over.
func digests(secrets []*p2pk.Secret) ([][32]byte, error) {
	out := make([][32]byte, len(secrets))
	for i, s := range secrets {
		d, err := s.Digest()
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// SetLockedProofs is step 2, CreateSecrets: record each side's already-
// minted P2PK-locked proofs (locked to each other's pubkey, SIG_INPUTS) and
// validate the lock shape before any signature is produced.
func (c *Coordinator) SetLockedProofs(initiatorProofs, responderProofs []mint.Proof) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require("SetLockedProofs", StateNegotiating); err != nil {
		return err
	}

	initSecrets, err := parseAndValidateSecrets(initiatorProofs, c.responder.Pubkey)
	if err != nil {
		return c.fail("SetLockedProofs", fmt.Errorf("initiator proofs: %w", err))
	}
	respSecrets, err := parseAndValidateSecrets(responderProofs, c.initiator.Pubkey)
	if err != nil {
		return c.fail("SetLockedProofs", fmt.Errorf("responder proofs: %w", err))
	}

	c.initiatorProofs = initiatorProofs
	c.responderProofs = responderProofs
	c.initiatorSecret = initSecrets
	c.responderSecret = respSecrets
	c.state = StateSecretsCreated
	c.emit("SetLockedProofs", fmt.Sprintf("%d initiator proof(s), %d responder proof(s)", len(initiatorProofs), len(responderProofs)))
	return nil
}

// signEach computes one adaptor signature per digest, all against the same
// shared adaptor point T.
func signEach(privkey crypto.Scalar, msgs [][32]byte, t crypto.AdaptorSecret, T crypto.Point) ([]crypto.AdaptorSignature, error) {
	out := make([]crypto.AdaptorSignature, len(msgs))
	for i, m := range msgs {
		sig, err := crypto.AdaptorSign(privkey, m, t, T)
		if err != nil {
			return nil, fmt.Errorf("proof %d: %w", i, err)
		}
		out[i] = sig
	}
	return out, nil
}

// CreateAdaptorSignatures is step 3: the responder (who matches the
// recipient pubkey baked into the initiator's secrets) signs over each of
// the initiator's per-proof secrets, and the initiator signs over each of
// the responder's, both against the shared adaptor point T — one adaptor
// signature per proof, matching the SIG_INPUTS default rather than one
// joint signature over the whole set. Requires both private keys to be known to this
// coordinator instance — the common case for a single process simulating or
// brokering both sides. A distributed deployment instead calls
// AttachInitiatorAdaptorSignatures / AttachResponderAdaptorSignatures with
// signatures produced out of process.
func (c *Coordinator) CreateAdaptorSignatures() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require("CreateAdaptorSignatures", StateSecretsCreated); err != nil {
		return err
	}
	if c.responder.Privkey == nil || c.initiator.Privkey == nil {
		return c.fail("CreateAdaptorSignatures", fmt.Errorf("both private keys must be known locally; use Attach*AdaptorSignatures otherwise"))
	}

	var sigsOverInitiator, sigsOverResponder []crypto.AdaptorSignature
	g := new(errgroup.Group)
	g.Go(func() error {
		initMsgs, err := digests(c.initiatorSecret)
		if err != nil {
			return err
		}
		sigs, err := signEach(*c.responder.Privkey, initMsgs, crypto.AdaptorSecret{T: c.t}, c.T)
		if err != nil {
			return fmt.Errorf("sign initiator secrets: %w", err)
		}
		sigsOverInitiator = sigs
		return nil
	})
	g.Go(func() error {
		respMsgs, err := digests(c.responderSecret)
		if err != nil {
			return err
		}
		sigs, err := signEach(*c.initiator.Privkey, respMsgs, crypto.AdaptorSecret{T: c.t}, c.T)
		if err != nil {
			return fmt.Errorf("sign responder secrets: %w", err)
		}
		sigsOverResponder = sigs
		return nil
	})
	if err := g.Wait(); err != nil {
		return c.fail("CreateAdaptorSignatures", err)
	}

	c.initiatorAdaptorSigs = sigsOverInitiator
	c.responderAdaptorSigs = sigsOverResponder
	c.state = StateAdaptorSigsExchanged
	c.emit("CreateAdaptorSignatures", "both sides' per-proof adaptor signatures computed")
	return nil
}

// AttachInitiatorAdaptorSignatures records the per-proof adaptor signatures
// over the initiator's secrets, computed elsewhere by the responder.
func (c *Coordinator) AttachInitiatorAdaptorSignatures(sigs []crypto.AdaptorSignature) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSecretsCreated && c.state != StateAdaptorSigsExchanged {
		return &TransitionError{From: c.state, Want: StateSecretsCreated, Step: "AttachInitiatorAdaptorSignatures"}
	}
	c.initiatorAdaptorSigs = sigs
	if c.responderAdaptorSigs != nil {
		c.state = StateAdaptorSigsExchanged
	}
	c.emit("AttachInitiatorAdaptorSignatures", "received")
	return nil
}

// AttachResponderAdaptorSignatures records the per-proof adaptor signatures
// over the responder's secrets, computed elsewhere by the initiator.
func (c *Coordinator) AttachResponderAdaptorSignatures(sigs []crypto.AdaptorSignature) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSecretsCreated && c.state != StateAdaptorSigsExchanged {
		return &TransitionError{From: c.state, Want: StateSecretsCreated, Step: "AttachResponderAdaptorSignatures"}
	}
	c.responderAdaptorSigs = sigs
	if c.initiatorAdaptorSigs != nil {
		c.state = StateAdaptorSigsExchanged
	}
	c.emit("AttachResponderAdaptorSignatures", "received")
	return nil
}

// verifyEach checks that every sig in sigs shares Tx and verifies against
// pubkey over its corresponding digest in msgs.
func verifyEach(pubkey crypto.Point, msgs [][32]byte, sigs []crypto.AdaptorSignature, Tx [32]byte) error {
	if len(sigs) != len(msgs) {
		return fmt.Errorf("got %d adaptor signature(s), want %d", len(sigs), len(msgs))
	}
	for i, sig := range sigs {
		if sig.Tx != Tx {
			return fmt.Errorf("proof %d: adaptor signature does not reference the shared T", i)
		}
		if err := crypto.AdaptorVerify(pubkey, msgs[i], sig); err != nil {
			return fmt.Errorf("proof %d: %w", i, err)
		}
	}
	return nil
}

// VerifyAdaptorSignatures is step 4: check each per-proof adaptor signature
// against its signer's pubkey and its secret, and that all reference the
// same T.
func (c *Coordinator) VerifyAdaptorSignatures() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require("VerifyAdaptorSignatures", StateAdaptorSigsExchanged); err != nil {
		return err
	}
	if c.initiatorAdaptorSigs == nil || c.responderAdaptorSigs == nil {
		return c.fail("VerifyAdaptorSignatures", fmt.Errorf("missing adaptor signatures"))
	}

	Tx, err := c.T.EncodeXOnly()
	if err != nil {
		return c.fail("VerifyAdaptorSignatures", fmt.Errorf("encode T: %w", err))
	}

	initMsgs, err := digests(c.initiatorSecret)
	if err != nil {
		return c.fail("VerifyAdaptorSignatures", err)
	}
	if err := verifyEach(c.responder.Pubkey, initMsgs, c.initiatorAdaptorSigs, Tx); err != nil {
		return c.fail("VerifyAdaptorSignatures", fmt.Errorf("initiator adaptor signatures: %w", err))
	}

	respMsgs, err := digests(c.responderSecret)
	if err != nil {
		return c.fail("VerifyAdaptorSignatures", err)
	}
	if err := verifyEach(c.initiator.Pubkey, respMsgs, c.responderAdaptorSigs, Tx); err != nil {
		return c.fail("VerifyAdaptorSignatures", fmt.Errorf("responder adaptor signatures: %w", err))
	}

	c.state = StateVerified
	c.emit("VerifyAdaptorSignatures", "both sides' per-proof signatures verified")
	return nil
}

func buildWitness(completed crypto.Signature) (string, error) {
	b := completed.Bytes()
	hexSig := hex.EncodeToString(b[:])
	w, err := p2pk.NewWitness(hexSig)
	if err != nil {
		return "", err
	}
	return w.Serialize()
}

// completeAll completes one adaptor signature per proof with the now-known
// t and attaches each as that proof's own SIG_INPUTS witness.
func completeAll(proofs []mint.Proof, sigs []crypto.AdaptorSignature, t crypto.Scalar) ([]mint.Proof, []crypto.Signature, error) {
	out := append([]mint.Proof(nil), proofs...)
	completed := make([]crypto.Signature, len(sigs))
	for i, sig := range sigs {
		full, err := crypto.Complete(sig, t)
		if err != nil {
			return nil, nil, fmt.Errorf("proof %d: complete adaptor signature: %w", i, err)
		}
		witness, err := buildWitness(full)
		if err != nil {
			return nil, nil, fmt.Errorf("proof %d: build witness: %w", i, err)
		}
		out[i].Witness = witness
		completed[i] = full
	}
	return out, completed, nil
}

// ResponderClaim is step 5: the responder, who knows t, completes the
// initiator's adaptor signature into a standard signature for each proof
// and spends the initiator's locked proofs on the initiator's mint.
// Requires the coordinator to know t (either via Initialise, or via a prior
// ExtractSecret in a differently-rooted run).
func (c *Coordinator) ResponderClaim(ctx context.Context) ([]mint.Proof, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require("ResponderClaim", StateVerified); err != nil {
		return nil, err
	}
	if !c.tKnown {
		return nil, c.fail("ResponderClaim", fmt.Errorf("t is not known to this coordinator instance"))
	}

	inputs, completed, err := completeAll(c.initiatorProofs, c.initiatorAdaptorSigs, c.t)
	if err != nil {
		return nil, c.fail("ResponderClaim", err)
	}

	proofs, err := c.initiatorEngine.Swap(ctx, inputs, c.initiator.unit(), nil, nil)
	if err != nil {
		return nil, c.fail("ResponderClaim", fmt.Errorf("swap initiator proofs: %w", err))
	}

	// Any one proof's completed signature is enough for ExtractSecret to
	// recover t (it is shared across every proof), so only the first is
	// retained.
	c.responderClaimSig = &completed[0]
	c.state = StateClaiming
	c.emit("ResponderClaim", "initiator proofs claimed on initiator's mint")
	return proofs, nil
}

// ObserveResponderClaimSignature lets an initiator-side coordinator
// instance, which did not itself run ResponderClaim, record the completed
// signature it saw land on the initiator's mint (e.g. via checkProofStates
// witness inspection), so it can proceed to ExtractSecret.
func (c *Coordinator) ObserveResponderClaimSignature(sig crypto.Signature) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateVerified && c.state != StateClaiming {
		return &TransitionError{From: c.state, Want: StateVerified, Step: "ObserveResponderClaimSignature"}
	}
	c.responderClaimSig = &sig
	c.state = StateClaiming
	c.emit("ObserveResponderClaimSignature", "observed")
	return nil
}

// ExtractSecret is step 6: the initiator computes t = s' - s mod n from the
// responder's published completed signature and verifies t*G == T.
func (c *Coordinator) ExtractSecret() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require("ExtractSecret", StateClaiming); err != nil {
		return err
	}
	if c.responderClaimSig == nil {
		return c.fail("ExtractSecret", fmt.Errorf("no observed responder claim signature"))
	}

	t, err := crypto.Extract(c.initiatorAdaptorSigs[0], *c.responderClaimSig)
	if err != nil {
		return c.fail("ExtractSecret", fmt.Errorf("nonce reuse or protocol violation: %w", err))
	}

	c.t = t
	c.tKnown = true
	c.state = StateExtracting
	c.emit("ExtractSecret", "t extracted and verified")
	return nil
}

// InitiatorClaim is step 7: the initiator completes the responder's
// adaptor signature using the extracted t, for each proof, and spends the
// responder's locked proofs on the responder's mint.
func (c *Coordinator) InitiatorClaim(ctx context.Context) ([]mint.Proof, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require("InitiatorClaim", StateExtracting); err != nil {
		return nil, err
	}
	if !c.tKnown {
		return nil, c.fail("InitiatorClaim", fmt.Errorf("t is not known to this coordinator instance"))
	}

	inputs, _, err := completeAll(c.responderProofs, c.responderAdaptorSigs, c.t)
	if err != nil {
		return nil, c.fail("InitiatorClaim", err)
	}

	proofs, err := c.responderEngine.Swap(ctx, inputs, c.responder.unit(), nil, nil)
	if err != nil {
		return nil, c.fail("InitiatorClaim", fmt.Errorf("swap responder proofs: %w", err))
	}

	c.state = StateCompleted
	c.emit("InitiatorClaim", "responder proofs claimed on responder's mint")
	return proofs, nil
}

// Cancel abandons the swap. This is only allowed before CLAIMING: once the
// responder has claimed, cancellation can no longer prevent the initiator
// from completing, so it is refused instead of leaving the ledger in an
// inconsistent state.
func (c *Coordinator) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateClaiming, StateExtracting, StateCompleted, StateFailed, StateCancelled, StateTimeout:
		return fmt.Errorf("swap: cannot cancel from state %s", c.state)
	}
	c.state = StateCancelled
	c.emit("Cancel", "abandoned before claiming")
	return nil
}

// CheckTimeout transitions the coordinator to TIMEOUT if now is past
// expiresAt and the swap hasn't already reached a terminal state. It never
// rolls back on-mint effects: a timed-out swap may have already claimed one
// side.
func (c *Coordinator) CheckTimeout(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.IsTerminal() {
		return false
	}
	if now.Before(c.expiresAt) {
		return false
	}
	c.state = StateTimeout
	c.emit("CheckTimeout", "expiry reached")
	return true
}
