package broker

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cashubridge/atomicswap/crypto"
	"github.com/cashubridge/atomicswap/internal/logging"
	"github.com/cashubridge/atomicswap/ledger"
	"github.com/cashubridge/atomicswap/mint"
	"github.com/cashubridge/atomicswap/token"
)

// MintRoute is everything the broker needs to act against one mint.
type MintRoute struct {
	Name   string
	Engine *token.Engine
	Unit   string
}

// Limits bounds the amounts the broker will quote.
type Limits struct {
	MinAmount uint64
	MaxAmount uint64
	FeeRateMillis uint64 // thousandths: fee = ceil(amount*FeeRateMillis/1000)
	QuoteTTL  time.Duration
}

// Broker accepts quote requests and drives broker-knows-t swaps between
// mints it has liquidity on.
type Broker struct {
	mu sync.RWMutex

	log    logging.Logger
	ledger *ledger.Ledger
	mints  map[string]MintRoute
	limits Limits

	quotes map[string]*privateQuote
	nextID uint64
}

// New builds a Broker serving the given mint routes, backed by led.
func New(led *ledger.Ledger, mints []MintRoute, limits Limits, log logging.Logger) *Broker {
	if log == nil {
		log = logging.Disabled()
	}
	if limits.QuoteTTL == 0 {
		limits.QuoteTTL = 2 * time.Minute
	}
	m := make(map[string]MintRoute, len(mints))
	for _, r := range mints {
		if r.Unit == "" {
			r.Unit = "sat"
		}
		m[r.Name] = r
		led.InitMint(r.Name)
	}
	return &Broker{
		log:    log,
		ledger: led,
		mints:  m,
		limits: limits,
		quotes: make(map[string]*privateQuote),
	}
}

// ErrUnknownMint is returned when a quote references a mint the broker
// doesn't have a route for.
type ErrUnknownMint struct{ Mint string }

func (e *ErrUnknownMint) Error() string { return fmt.Sprintf("broker: unknown mint %q", e.Mint) }

// ErrAmountOutOfRange is returned when a quote request's amount falls
// outside the broker's configured limits.
type ErrAmountOutOfRange struct {
	Amount, Min, Max uint64
}

func (e *ErrAmountOutOfRange) Error() string {
	return fmt.Sprintf("broker: amount %d outside [%d, %d]", e.Amount, e.Min, e.Max)
}

// ErrQuoteNotFound is returned by AcceptQuote/CompleteSwap/Quote for an
// unknown quote id. An expired quote is still found; AcceptQuote reports it
// with ErrQuoteExpired.
type ErrQuoteNotFound struct{ QuoteID string }

func (e *ErrQuoteNotFound) Error() string { return fmt.Sprintf("broker: quote %q not found", e.QuoteID) }

// ErrWrongQuoteStatus is returned when an operation is attempted against a
// quote that isn't in the state it requires.
type ErrWrongQuoteStatus struct {
	QuoteID string
	Want    QuoteStatus
	Got     QuoteStatus
}

func (e *ErrWrongQuoteStatus) Error() string {
	return fmt.Sprintf("broker: quote %q is %s, need %s", e.QuoteID, e.Got, e.Want)
}

// ErrQuoteExpired is the state error returned by AcceptQuote once a quote's
// TTL has elapsed.
type ErrQuoteExpired struct {
	QuoteID   string
	ExpiredAt time.Time
}

func (e *ErrQuoteExpired) Error() string {
	return fmt.Sprintf("broker: quote %q expired at %s", e.QuoteID, e.ExpiredAt)
}

// fee computes ceil(amount * feeRateMillis / 1000).
func fee(amount, feeRateMillis uint64) uint64 {
	return uint64(math.Ceil(float64(amount) * float64(feeRateMillis) / 1000.0))
}

func newQuoteID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("broker: generate quote id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// RequestQuote validates preconditions, reserves nothing yet (liquidity is
// only actually touched at AcceptQuote/CompleteSwap), and generates the
// broker's session keypair and adaptor secret for this swap.
//
// sourceMint/targetMint accept either name directly; callers decoding an
// external wire request may additionally populate a SwapRequest with the
// original's alternate `from_mint`/`to_mint` field names (see SwapRequest).
func (b *Broker) RequestQuote(sourceMint, targetMint string, amount uint64) (*SwapQuote, error) {
	if sourceMint == targetMint {
		return nil, fmt.Errorf("broker: source and target mint must differ")
	}

	b.mu.RLock()
	_, srcOK := b.mints[sourceMint]
	_, dstOK := b.mints[targetMint]
	limits := b.limits
	b.mu.RUnlock()

	if !srcOK {
		return nil, &ErrUnknownMint{Mint: sourceMint}
	}
	if !dstOK {
		return nil, &ErrUnknownMint{Mint: targetMint}
	}
	if amount < limits.MinAmount || amount > limits.MaxAmount {
		return nil, &ErrAmountOutOfRange{Amount: amount, Min: limits.MinAmount, Max: limits.MaxAmount}
	}

	f := fee(amount, limits.FeeRateMillis)
	if f >= amount {
		return nil, fmt.Errorf("broker: fee %d consumes entire amount %d", f, amount)
	}
	outAmount := amount - f

	if !b.ledger.CanServe(targetMint, outAmount) {
		return nil, &ledger.ErrInsufficientLiquidity{Mint: targetMint, Requested: outAmount, Available: b.ledger.Balance(targetMint)}
	}

	id, err := newQuoteID()
	if err != nil {
		return nil, err
	}

	brokerKP, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("broker: generate session keypair: %w", err)
	}
	t, T, err := crypto.NewAdaptorSecret()
	if err != nil {
		return nil, fmt.Errorf("broker: generate adaptor secret: %w", err)
	}

	now := timeNow()
	pq := &privateQuote{
		quote: SwapQuote{
			ID:         id,
			SourceMint: sourceMint,
			TargetMint: targetMint,
			Amount:     amount,
			Fee:        f,
			OutAmount:  outAmount,
			Status:     QuoteRequested,
			CreatedAt:  now,
			ExpiresAt:  now.Add(limits.QuoteTTL),
			BrokerPub:  brokerKP.Pub,
			T:          T,
		},
		brokerPriv: brokerKP.Priv,
		brokerPub:  brokerKP.Pub,
		t:          t.T,
		T:          T,
	}

	b.mu.Lock()
	b.quotes[id] = pq
	b.mu.Unlock()

	b.log.Infof("broker: quote %s requested %s->%s amount=%d fee=%d", id, sourceMint, targetMint, amount, f)
	public := pq.quote
	return &public, nil
}

// timeNow is a var, not a func, so tests can fast-forward it past a
// quote's expiry without sleeping.
var timeNow = func() time.Time { return time.Now() }

func (b *Broker) lookupQuote(quoteID string) (*privateQuote, error) {
	b.mu.RLock()
	pq, ok := b.quotes[quoteID]
	b.mu.RUnlock()
	if !ok {
		return nil, &ErrQuoteNotFound{QuoteID: quoteID}
	}
	return pq, nil
}

// AcceptQuote tweaks the client's pubkey by T, draws the quoted amount down
// from the broker's existing target-mint liquidity (relocking it to the
// tweaked recipient rather than minting new value out of band), and hands
// the adaptor secret t to the client (the defining trait of the
// broker-knows-t variant) so they can spend immediately.
func (b *Broker) AcceptQuote(ctx context.Context, quoteID string, clientPubkey crypto.Point) ([]mint.Proof, crypto.Scalar, error) {
	pq, err := b.lookupQuote(quoteID)
	if err != nil {
		return nil, crypto.Scalar{}, err
	}

	b.mu.Lock()
	if pq.quote.Status != QuoteRequested {
		status := pq.quote.Status
		b.mu.Unlock()
		return nil, crypto.Scalar{}, &ErrWrongQuoteStatus{QuoteID: quoteID, Want: QuoteRequested, Got: status}
	}
	if timeNow().After(pq.quote.ExpiresAt) {
		pq.quote.Status = QuoteExpired
		expiredAt := pq.quote.ExpiresAt
		b.mu.Unlock()
		b.log.Infof("broker: quote %s expired before acceptQuote", quoteID)
		return nil, crypto.Scalar{}, &ErrQuoteExpired{QuoteID: quoteID, ExpiredAt: expiredAt}
	}
	b.mu.Unlock()

	clientTweaked, err := clientPubkey.Add(pq.T)
	if err != nil {
		return nil, crypto.Scalar{}, fmt.Errorf("broker: tweak client pubkey: %w", err)
	}

	route := b.route(pq.quote.TargetMint)
	if route == nil {
		return nil, crypto.Scalar{}, &ErrUnknownMint{Mint: pq.quote.TargetMint}
	}

	// SelectAndReserve removes the selected proofs from the ledger before
	// returning, so a concurrent AcceptQuote against the same target mint
	// can never select them too. If the mint swap below fails, the
	// selection is restored with AddProofs rather than left reserved
	// forever.
	selected, _, err := b.ledger.SelectAndReserve(pq.quote.TargetMint, pq.quote.OutAmount)
	if err != nil {
		b.mu.Lock()
		pq.quote.Status = QuoteFailed
		b.mu.Unlock()
		return nil, crypto.Scalar{}, fmt.Errorf("broker: select target-mint liquidity: %w", err)
	}

	clientProofs, changeProofs, err := route.Engine.SwapSplit(ctx, selected, route.Unit, pq.quote.OutAmount, &clientTweaked, nil, nil)
	if err != nil {
		b.ledger.AddProofs(pq.quote.TargetMint, selected)
		b.mu.Lock()
		pq.quote.Status = QuoteFailed
		b.mu.Unlock()
		return nil, crypto.Scalar{}, fmt.Errorf("broker: relock target-mint liquidity: %w", err)
	}

	if len(changeProofs) > 0 {
		b.ledger.AddProofs(pq.quote.TargetMint, changeProofs)
	}

	b.mu.Lock()
	pq.clientPubkey = &clientPubkey
	pq.lockedTargetProofs = clientProofs
	pq.quote.Status = QuoteAccepted
	b.mu.Unlock()

	b.log.Infof("broker: quote %s accepted, relocked %d proof(s) on %s", quoteID, len(clientProofs), pq.quote.TargetMint)
	return clientProofs, pq.t, nil
}

// route looks up a MintRoute by name, taking b.mu's read lock around the
// map access itself, so callers must not already hold b.mu.
func (b *Broker) route(name string) *MintRoute {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.mints[name]
	if !ok {
		return nil
	}
	return &r
}

// CompleteSwap is completeSwap(quoteId, clientTokensWithWitness) of spec
// §4.J: using brokerKey+t as the effective private key, sign and spend the
// client's P2PK-locked proofs on the source mint, then credit the
// returned proofs to the ledger. Idempotent: a second call for an
// already-Completed quote is a no-op rather than a re-spend (the
// supplemented idempotency feature).
func (b *Broker) CompleteSwap(ctx context.Context, quoteID string, clientProofs []mint.Proof) error {
	pq, err := b.lookupQuote(quoteID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	switch pq.quote.Status {
	case QuoteCompleted:
		b.mu.Unlock()
		b.log.Debugf("broker: quote %s already completed, ignoring duplicate completeSwap", quoteID)
		return nil
	case QuoteAccepted:
		// proceed
	default:
		status := pq.quote.Status
		b.mu.Unlock()
		return &ErrWrongQuoteStatus{QuoteID: quoteID, Want: QuoteAccepted, Got: status}
	}
	b.mu.Unlock()

	tweakedPriv := pq.brokerPriv.Add(pq.t)
	sign := token.SignWithKeyPair(crypto.NewKeyPairFromScalar(tweakedPriv))

	route := b.route(pq.quote.SourceMint)
	if route == nil {
		return &ErrUnknownMint{Mint: pq.quote.SourceMint}
	}

	proofs, err := route.Engine.Swap(ctx, clientProofs, route.Unit, nil, sign)
	if err != nil {
		b.mu.Lock()
		pq.quote.Status = QuoteFailed
		b.mu.Unlock()
		return fmt.Errorf("broker: swap client proofs on source mint: %w", err)
	}

	b.ledger.AddProofs(pq.quote.SourceMint, proofs)

	now := timeNow()
	b.mu.Lock()
	pq.quote.Status = QuoteCompleted
	pq.quote.CompletedAt = &now
	b.mu.Unlock()

	b.log.Infof("broker: quote %s completed, credited %d proof(s) to %s", quoteID, len(proofs), pq.quote.SourceMint)
	return nil
}

// Quote returns a copy of the public quote state, for status polling.
func (b *Broker) Quote(quoteID string) (*SwapQuote, error) {
	pq, err := b.lookupQuote(quoteID)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	q := pq.quote
	return &q, nil
}

// LiquidityStatus reports the broker's current balance on every configured
// mint (supplemented feature, grounded on the original's liquidity status
// reporting).
func (b *Broker) LiquidityStatus() ([]ledger.MintBalance, uint64) {
	snap := b.ledger.Snapshot()
	var total uint64
	for _, s := range snap {
		total += s.Balance
	}
	return snap, total
}

// InitializeLiquidity mints amount anyone-can-spend tokens on every
// configured mint, concurrently, and credits them to the ledger,
// bootstrapping the broker's working capital (supplemented feature,
// grounded on the original's liquidity initialization helper). Uses the
// anyone-can-spend mint path: no recipient lock.
func (b *Broker) InitializeLiquidity(ctx context.Context, amount uint64) error {
	b.mu.RLock()
	routes := make([]MintRoute, 0, len(b.mints))
	for _, r := range b.mints {
		routes = append(routes, r)
	}
	b.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range routes {
		r := r
		g.Go(func() error {
			proofs, err := r.Engine.MintTokens(gctx, amount, r.Unit, nil)
			if err != nil {
				return fmt.Errorf("broker: initialize liquidity on %s: %w", r.Name, err)
			}
			b.ledger.AddProofs(r.Name, proofs)
			b.log.Infof("broker: initialized %d liquidity on %s", amount, r.Name)
			return nil
		})
	}
	return g.Wait()
}

// SwapRequest is the wire shape of a requestQuote call. It accepts the
// original implementation's alternate field names (from_mint/to_mint) as
// JSON aliases of sourceMint/targetMint, a pure decode-time convenience
// with no behavioral effect beyond which field the caller happened to
// populate.
type SwapRequest struct {
	SourceMint string `json:"sourceMint"`
	TargetMint string `json:"targetMint"`
	FromMint   string `json:"from_mint,omitempty"`
	ToMint     string `json:"to_mint,omitempty"`
	Amount     uint64 `json:"amount"`
}

// Resolve applies the from_mint/to_mint aliases onto SourceMint/TargetMint
// when the latter are empty, and returns the effective (source, target)
// pair.
func (r *SwapRequest) Resolve() (source, target string) {
	source, target = r.SourceMint, r.TargetMint
	if source == "" {
		source = r.FromMint
	}
	if target == "" {
		target = r.ToMint
	}
	return source, target
}
