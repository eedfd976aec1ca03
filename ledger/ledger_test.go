package ledger

import (
	"testing"

	"github.com/cashubridge/atomicswap/mint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proof(amount uint64, secret string) mint.Proof {
	return mint.Proof{Amount: amount, ID: "00aa", Secret: secret, C: "02bb"}
}

func TestLedger_AddBalanceRemove(t *testing.T) {
	l := New(nil)
	l.AddProofs("alice", []mint.Proof{proof(1, "s1"), proof(4, "s2")})
	assert.Equal(t, uint64(5), l.Balance("alice"))

	l.RemoveProofs("alice", []string{"s1"})
	assert.Equal(t, uint64(4), l.Balance("alice"))
}

func TestLedger_AddProofs_DeduplicatesBySecret(t *testing.T) {
	l := New(nil)
	l.AddProofs("alice", []mint.Proof{proof(1, "dup")})
	l.AddProofs("alice", []mint.Proof{proof(1, "dup")})
	assert.Equal(t, uint64(1), l.Balance("alice"))
}

func TestLedger_CanServe(t *testing.T) {
	l := New(nil)
	l.AddProofs("alice", []mint.Proof{proof(8, "s1")})
	assert.True(t, l.CanServe("alice", 8))
	assert.False(t, l.CanServe("alice", 9))
	assert.False(t, l.CanServe("unknown-mint", 1))
}

func TestLedger_SelectAndReserve_GreedyLargestFirst(t *testing.T) {
	l := New(nil)
	l.AddProofs("alice", []mint.Proof{proof(1, "s1"), proof(2, "s2"), proof(8, "s3"), proof(4, "s4")})

	selected, change, err := l.SelectAndReserve("alice", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), change) // 8 + 4 = 12, need 10
	var total uint64
	for _, p := range selected {
		total += p.Amount
	}
	assert.Equal(t, uint64(12), total)
	assert.Equal(t, uint64(8), selected[0].Amount) // largest first
}

func TestLedger_SelectAndReserve_RemovesSelection(t *testing.T) {
	l := New(nil)
	l.AddProofs("alice", []mint.Proof{proof(8, "s1"), proof(1, "s2")})

	_, _, err := l.SelectAndReserve("alice", 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), l.Balance("alice"))
}

func TestLedger_SelectAndReserve_InsufficientLiquidity(t *testing.T) {
	l := New(nil)
	l.AddProofs("alice", []mint.Proof{proof(1, "s1")})

	_, _, err := l.SelectAndReserve("alice", 100)
	require.Error(t, err)
	var insufficient *ErrInsufficientLiquidity
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, uint64(1), insufficient.Available)
	assert.Equal(t, uint64(1), l.Balance("alice")) // untouched on failure
}

func TestLedger_SelectAndReserve_UnknownMint(t *testing.T) {
	l := New(nil)
	_, _, err := l.SelectAndReserve("nope", 1)
	assert.Error(t, err)
}

func TestLedger_SelectAndReserve_ConcurrentCallersDontDoubleSpend(t *testing.T) {
	l := New(nil)
	l.AddProofs("alice", []mint.Proof{proof(8, "s1")})

	type result struct {
		selected []mint.Proof
		err      error
	}
	results := make(chan result, 2)
	race := func() {
		selected, _, err := l.SelectAndReserve("alice", 8)
		results <- result{selected, err}
	}
	go race()
	go race()

	var wins, losses int
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			var insufficient *ErrInsufficientLiquidity
			require.ErrorAs(t, r.err, &insufficient)
			losses++
			continue
		}
		require.Len(t, r.selected, 1)
		wins++
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
	assert.Equal(t, uint64(0), l.Balance("alice"))
}

func TestLedger_EventsRecordsAddAndRemove(t *testing.T) {
	l := New(nil)
	l.AddProofs("alice", []mint.Proof{proof(1, "s1")})
	l.RemoveProofs("alice", []string{"s1"})

	events := l.Events("alice")
	require.Len(t, events, 2)
	assert.Equal(t, "add", events[0].Kind)
	assert.Equal(t, "remove", events[1].Kind)
	assert.Empty(t, l.Events("bob"))
}

func TestLedger_Snapshot(t *testing.T) {
	l := New(nil)
	l.AddProofs("alice", []mint.Proof{proof(3, "s1")})
	l.AddProofs("bob", []mint.Proof{proof(5, "s2")})

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, MintBalance{Mint: "alice", Balance: 3}, snap[0])
	assert.Equal(t, MintBalance{Mint: "bob", Balance: 5}, snap[1])
}

func TestLedger_InitMintThenMintsListsIt(t *testing.T) {
	l := New(nil)
	l.InitMint("alice")
	assert.Contains(t, l.Mints(), "alice")
	assert.Equal(t, uint64(0), l.Balance("alice"))
}
