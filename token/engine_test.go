package token

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cashubridge/atomicswap/crypto"
	"github.com/cashubridge/atomicswap/internal/logging"
	mintpkg "github.com/cashubridge/atomicswap/mint"
	"github.com/stretchr/testify/require"
)

// fakeMint is a minimal, in-process mint that actually performs the BDHKE
// blind-signing math, so unblinding in the engine under test exercises the
// real cryptographic round trip instead of a canned fixture.
type fakeMint struct {
	keysetID string
	unit     string
	privKeys map[uint64]crypto.Scalar

	// noActiveFlag makes /v1/keys omit the active flag on its one keyset,
	// exercising the fall-back-to-first-in-list path in activeKeyset.
	noActiveFlag bool
}

func newFakeMint(t *testing.T, unit string, denominations []uint64) *fakeMint {
	fm := &fakeMint{keysetID: "00aa", unit: unit, privKeys: map[uint64]crypto.Scalar{}}
	for _, d := range denominations {
		kp, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		fm.privKeys[d] = kp.Priv
	}
	return fm
}

func (fm *fakeMint) keysetKeys() mintpkg.KeysetKeys {
	out := mintpkg.KeysetKeys{}
	for d, priv := range fm.privKeys {
		pub := priv.Point()
		comp := pub.EncodeCompressed()
		out[d] = hex.EncodeToString(comp[:])
	}
	return out
}

func (fm *fakeMint) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/mint/quote/bolt11", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(mintpkg.MintQuoteResponse{Quote: "q1", Request: "lnbc1...", Paid: true})
	})
	mux.HandleFunc("/v1/keys", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(mintpkg.KeysResponse{Keysets: []mintpkg.Keyset{{
			ID: fm.keysetID, Unit: fm.unit, Active: !fm.noActiveFlag, Keys: fm.keysetKeys(),
		}}})
	})
	sign := func(w http.ResponseWriter, outputs []mintpkg.BlindedMessage) {
		sigs := make([]mintpkg.BlindedSignature, 0, len(outputs))
		for _, o := range outputs {
			priv, ok := fm.privKeys[o.Amount]
			require.True(t, ok, "no key for denomination %d", o.Amount)

			bBytes, err := hex.DecodeString(o.B_)
			require.NoError(t, err)
			bPoint, err := crypto.DecodeCompressed(bBytes)
			require.NoError(t, err)

			cPrime := bPoint.Mul(priv)
			comp := cPrime.EncodeCompressed()
			sigs = append(sigs, mintpkg.BlindedSignature{Amount: o.Amount, ID: o.ID, C_: hex.EncodeToString(comp[:])})
		}
		json.NewEncoder(w).Encode(mintpkg.MintResponse{Signatures: sigs})
	}
	mux.HandleFunc("/v1/mint/bolt11", func(w http.ResponseWriter, r *http.Request) {
		var req mintpkg.MintRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		sign(w, req.Outputs)
	})
	mux.HandleFunc("/v1/swap", func(w http.ResponseWriter, r *http.Request) {
		var req mintpkg.SwapRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		sign(w, req.Outputs)
	})
	return mux
}

func TestEngine_MintTokens_RoundTrips(t *testing.T) {
	fm := newFakeMint(t, "sat", []uint64{1, 2, 4, 8, 16})
	srv := httptest.NewServer(fm.handler(t))
	defer srv.Close()

	client := mintpkg.New(srv.URL)
	eng := New(client, logging.Disabled())

	proofs, err := eng.MintTokens(context.Background(), 11, "sat", nil)
	require.NoError(t, err)

	var total uint64
	for _, p := range proofs {
		total += p.Amount
		require.NotEmpty(t, p.Secret)
		require.NotEmpty(t, p.C)
	}
	require.Equal(t, uint64(11), total)
}

func TestEngine_MintTokens_FallsBackToFirstKeysetWhenNoneMarkedActive(t *testing.T) {
	fm := newFakeMint(t, "sat", []uint64{1, 2, 4, 8, 16})
	fm.noActiveFlag = true
	srv := httptest.NewServer(fm.handler(t))
	defer srv.Close()

	client := mintpkg.New(srv.URL)
	eng := New(client, logging.Disabled())

	proofs, err := eng.MintTokens(context.Background(), 11, "sat", nil)
	require.NoError(t, err)

	var total uint64
	for _, p := range proofs {
		total += p.Amount
	}
	require.Equal(t, uint64(11), total)
}

func TestEngine_Swap_PreservesTotal(t *testing.T) {
	fm := newFakeMint(t, "sat", []uint64{1, 2, 4, 8, 16})
	srv := httptest.NewServer(fm.handler(t))
	defer srv.Close()

	client := mintpkg.New(srv.URL)
	eng := New(client, logging.Disabled())

	minted, err := eng.MintTokens(context.Background(), 9, "sat", nil)
	require.NoError(t, err)

	swapped, err := eng.Swap(context.Background(), minted, "sat", nil, nil)
	require.NoError(t, err)

	var total uint64
	for _, p := range swapped {
		total += p.Amount
	}
	require.Equal(t, uint64(9), total)
}

func TestEngine_MintTokens_P2PKLocked(t *testing.T) {
	fm := newFakeMint(t, "sat", []uint64{1, 2, 4})
	srv := httptest.NewServer(fm.handler(t))
	defer srv.Close()

	client := mintpkg.New(srv.URL)
	eng := New(client, logging.Disabled())

	recipient, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	proofs, err := eng.MintTokens(context.Background(), 3, "sat", &recipient.Pub)
	require.NoError(t, err)
	require.NotEmpty(t, proofs)
	for _, p := range proofs {
		require.Contains(t, p.Secret, `"P2PK"`)
	}
}

func TestEngine_SwapSplit_LocksPrimaryAndReturnsChange(t *testing.T) {
	fm := newFakeMint(t, "sat", []uint64{1, 2, 4, 8, 16})
	srv := httptest.NewServer(fm.handler(t))
	defer srv.Close()

	client := mintpkg.New(srv.URL)
	eng := New(client, logging.Disabled())

	minted, err := eng.MintTokens(context.Background(), 20, "sat", nil)
	require.NoError(t, err)

	recipient, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	primary, change, err := eng.SwapSplit(context.Background(), minted, "sat", 13, &recipient.Pub, nil, nil)
	require.NoError(t, err)

	var primaryTotal, changeTotal uint64
	for _, p := range primary {
		primaryTotal += p.Amount
		require.Contains(t, p.Secret, `"P2PK"`)
	}
	for _, p := range change {
		changeTotal += p.Amount
		require.NotContains(t, p.Secret, `"P2PK"`)
	}
	require.Equal(t, uint64(13), primaryTotal)
	require.Equal(t, uint64(7), changeTotal)
}

func TestEngine_Swap_SignsWitnessForLockedInputs(t *testing.T) {
	fm := newFakeMint(t, "sat", []uint64{1, 2, 4})
	srv := httptest.NewServer(fm.handler(t))
	defer srv.Close()

	client := mintpkg.New(srv.URL)
	eng := New(client, logging.Disabled())

	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	minted, err := eng.MintTokens(context.Background(), 3, "sat", &kp.Pub)
	require.NoError(t, err)

	swapped, err := eng.Swap(context.Background(), minted, "sat", nil, SignWithKeyPair(kp))
	require.NoError(t, err)
	var total uint64
	for _, p := range swapped {
		total += p.Amount
	}
	require.Equal(t, uint64(3), total)
}
