package mint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Info(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/info", r.URL.Path)
		json.NewEncoder(w).Encode(InfoResponse{
			Name: "test-mint",
			Nuts: map[string]NutSupport{"11": {Supported: true}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	info, err := c.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-mint", info.Name)
	assert.True(t, info.SupportsP2PK())
	assert.False(t, info.SupportsHTLC())
}

func TestClient_Swap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/swap", r.URL.Path)
		var req SwapRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Inputs, 1)
		json.NewEncoder(w).Encode(SwapResponse{
			Signatures: []BlindedSignature{{Amount: req.Outputs[0].Amount, ID: req.Outputs[0].ID, C_: "02aa"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Swap(context.Background(),
		[]Proof{{Amount: 4, ID: "00aa", Secret: "s", C: "02bb"}},
		[]BlindedMessage{{Amount: 4, ID: "00aa", B_: "02cc"}})
	require.NoError(t, err)
	require.Len(t, resp.Signatures, 1)
	assert.Equal(t, uint64(4), resp.Signatures[0].Amount)
}

func TestClient_NonOKStatusIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"bad request"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Info(context.Background())
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
}

func TestClient_CheckState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req CheckStateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		states := make([]ProofState, len(req.Ys))
		for i, y := range req.Ys {
			states[i] = ProofState{Y: y, State: "UNSPENT"}
		}
		json.NewEncoder(w).Encode(CheckStateResponse{States: states})
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.CheckState(context.Background(), []string{"02aa", "02bb"})
	require.NoError(t, err)
	require.Len(t, resp.States, 2)
	assert.Equal(t, "UNSPENT", resp.States[0].State)
}

func TestClient_RequestMintQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/mint/quote/bolt11", r.URL.Path)
		json.NewEncoder(w).Encode(MintQuoteResponse{Quote: "q1", Request: "lnbc1...", Paid: false})
	}))
	defer srv.Close()

	c := New(srv.URL)
	q, err := c.RequestMintQuote(context.Background(), 100, "sat")
	require.NoError(t, err)
	assert.Equal(t, "q1", q.Quote)
	assert.False(t, q.Paid)
}
