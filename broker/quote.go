// Package broker orchestrates multi-mint liquidity under the
// broker-knows-t swap variant: the broker itself generates the adaptor
// secret and shares it with the client via the accepted quote, trading the
// peer-to-peer variant's stronger atomicity guarantee for a much simpler
// settlement path built on plain EC key tweaking rather than the full
// adaptor sign/verify/extract machinery of the swap package.
package broker

import (
	"time"

	"github.com/cashubridge/atomicswap/crypto"
	"github.com/cashubridge/atomicswap/mint"
)

// QuoteStatus is the lifecycle state of a SwapQuote.
type QuoteStatus string

const (
	QuoteRequested QuoteStatus = "Requested"
	QuoteAccepted  QuoteStatus = "Accepted"
	QuoteCompleted QuoteStatus = "Completed"
	QuoteFailed    QuoteStatus = "Failed"
	QuoteExpired   QuoteStatus = "Expired"
)

// SwapQuote is the client-visible handle on one broker-mediated swap.
// BrokerPub and T are public from the moment requestQuote returns: the
// client needs brokerPub+T to lock its source-mint tokens before
// completeSwap, and T alone before acceptQuote to derive clientPubkey+T
// when it wants to receive target-mint proceeds.
type SwapQuote struct {
	ID         string
	SourceMint string
	TargetMint string
	Amount     uint64
	Fee        uint64
	OutAmount  uint64
	Status     QuoteStatus
	CreatedAt  time.Time
	ExpiresAt  time.Time
	CompletedAt *time.Time

	BrokerPub crypto.Point
	T         crypto.Point
}

// privateQuote is the broker-side state stored under quote.ID, never
// exposed to the client directly.
type privateQuote struct {
	quote SwapQuote

	brokerPriv crypto.Scalar
	brokerPub  crypto.Point

	t crypto.Scalar
	T crypto.Point

	clientPubkey *crypto.Point // set on acceptQuote

	// lockedTargetProofs are the proofs drawn down from the ledger's
	// existing target-mint inventory at acceptQuote time and relocked to
	// clientPubkey + T. Kept for inspection; completeSwap never touches
	// them, since it spends a disjoint set of source-mint proofs.
	lockedTargetProofs []mint.Proof
}
