// Package ledger tracks per-mint proof inventory and balance for a broker.
// The concurrency discipline — an embedded sync.RWMutex guarding plain maps,
// readers taking RLock, writers taking the exclusive Lock — keeps balance
// reads cheap while making sure nothing observes a half-applied mutation.
package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cashubridge/atomicswap/internal/logging"
	"github.com/cashubridge/atomicswap/mint"
)

// Event is one entry of a Ledger's audit trail: every add/remove is recorded
// so a broker operator can reconstruct how a mint's balance got where it is.
type Event struct {
	Mint   string
	Kind   string // "add" or "remove"
	Amount uint64
	Secret string
}

// Ledger holds the liquidity a broker has available on one or more mints.
type Ledger struct {
	sync.RWMutex

	log logging.Logger

	// proofs maps mint name -> secret -> Proof. A proof's secret is unique
	// by construction, so it doubles as a primary key.
	proofs map[string]map[string]mint.Proof

	events []Event
}

// New builds an empty Ledger.
func New(log logging.Logger) *Ledger {
	if log == nil {
		log = logging.Disabled()
	}
	return &Ledger{
		log:    log,
		proofs: make(map[string]map[string]mint.Proof),
	}
}

// InitMint registers mintName with zero balance, so Balance/Proofs return a
// defined (empty) result even before any proofs are added.
func (l *Ledger) InitMint(mintName string) {
	l.Lock()
	defer l.Unlock()
	if _, ok := l.proofs[mintName]; !ok {
		l.proofs[mintName] = make(map[string]mint.Proof)
	}
}

// AddProofs credits mintName with the given proofs. Duplicate secrets
// (already-held proofs) are silently deduplicated rather than double
// counted, consistent with the "unique-by-secret" invariant.
func (l *Ledger) AddProofs(mintName string, proofs []mint.Proof) {
	l.Lock()
	defer l.Unlock()
	m, ok := l.proofs[mintName]
	if !ok {
		m = make(map[string]mint.Proof)
		l.proofs[mintName] = m
	}
	for _, p := range proofs {
		if _, exists := m[p.Key()]; exists {
			continue
		}
		m[p.Key()] = p
		l.events = append(l.events, Event{Mint: mintName, Kind: "add", Amount: p.Amount, Secret: p.Key()})
	}
	l.log.Debugf("ledger: credited %s with %d proof(s)", mintName, len(proofs))
}

// RemoveProofs debits mintName by the proofs identified by their secrets
// (e.g. once they've been spent in a swap). Missing secrets are ignored.
func (l *Ledger) RemoveProofs(mintName string, secrets []string) {
	l.Lock()
	defer l.Unlock()
	m, ok := l.proofs[mintName]
	if !ok {
		return
	}
	for _, secret := range secrets {
		p, exists := m[secret]
		if !exists {
			continue
		}
		delete(m, secret)
		l.events = append(l.events, Event{Mint: mintName, Kind: "remove", Amount: p.Amount, Secret: secret})
	}
}

// Balance returns the sum of amounts held at mintName.
func (l *Ledger) Balance(mintName string) uint64 {
	l.RLock()
	defer l.RUnlock()
	var total uint64
	for _, p := range l.proofs[mintName] {
		total += p.Amount
	}
	return total
}

// CanServe reports whether mintName currently holds at least amount in
// liquidity, without selecting or reserving anything.
func (l *Ledger) CanServe(mintName string, amount uint64) bool {
	return l.Balance(mintName) >= amount
}

// ErrInsufficientLiquidity is returned by SelectAndReserve when a mint's
// inventory cannot cover the requested amount.
type ErrInsufficientLiquidity struct {
	Mint      string
	Requested uint64
	Available uint64
}

func (e *ErrInsufficientLiquidity) Error() string {
	return fmt.Sprintf("ledger: mint %s has %d available, need %d", e.Mint, e.Available, e.Requested)
}

// SelectAndReserve greedily picks largest-denomination-first proofs from
// mintName summing to at least amount and removes them from the ledger
// before returning, all under the same exclusive lock. Selection and
// removal happen as one atomic step so two concurrent callers racing for
// the same mint's liquidity can never both walk away with the same proof:
// the loser sees ErrInsufficientLiquidity against whatever the winner left
// behind, rather than succeeding here and only failing later at the mint
// with an opaque double-spend error.
//
// The caller owns the returned proofs once this returns. If it can't
// actually spend them (e.g. the mint rejects the swap), it must put them
// back with AddProofs.
func (l *Ledger) SelectAndReserve(mintName string, amount uint64) (selected []mint.Proof, change uint64, err error) {
	l.Lock()
	defer l.Unlock()

	m, ok := l.proofs[mintName]
	if !ok {
		return nil, 0, &ErrInsufficientLiquidity{Mint: mintName, Requested: amount, Available: 0}
	}

	all := make([]mint.Proof, 0, len(m))
	for _, p := range m {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Amount > all[j].Amount })

	var total uint64
	for _, p := range all {
		if total >= amount {
			break
		}
		selected = append(selected, p)
		total += p.Amount
	}
	if total < amount {
		return nil, 0, &ErrInsufficientLiquidity{Mint: mintName, Requested: amount, Available: total}
	}

	for _, p := range selected {
		delete(m, p.Key())
		l.events = append(l.events, Event{Mint: mintName, Kind: "remove", Amount: p.Amount, Secret: p.Key()})
	}
	return selected, total - amount, nil
}

// Events returns a copy of the ledger's audit trail for mintName, oldest
// first. Pass "" to get every mint's events interleaved in recording order.
func (l *Ledger) Events(mintName string) []Event {
	l.RLock()
	defer l.RUnlock()
	if mintName == "" {
		return append([]Event(nil), l.events...)
	}
	out := make([]Event, 0, len(l.events))
	for _, e := range l.events {
		if e.Mint == mintName {
			out = append(out, e)
		}
	}
	return out
}

// MintBalance is one entry of a liquidity snapshot.
type MintBalance struct {
	Mint    string
	Balance uint64
}

// Snapshot returns the current balance of every known mint, sorted by mint
// name, for liquidity status reporting.
func (l *Ledger) Snapshot() []MintBalance {
	l.RLock()
	defer l.RUnlock()
	names := make([]string, 0, len(l.proofs))
	for name := range l.proofs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]MintBalance, 0, len(names))
	for _, name := range names {
		var total uint64
		for _, p := range l.proofs[name] {
			total += p.Amount
		}
		out = append(out, MintBalance{Mint: name, Balance: total})
	}
	return out
}

// Mints returns the names of every mint this ledger knows about, regardless
// of balance.
func (l *Ledger) Mints() []string {
	l.RLock()
	defer l.RUnlock()
	out := make([]string, 0, len(l.proofs))
	for name := range l.proofs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
