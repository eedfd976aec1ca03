// Package mint is a thin, stateless client for the external mint's wire
// protocol. Field names follow the Cashu wire contract: amount, id, B_,
// C_, secret, C.
package mint

// BlindedMessage is sent to the mint when minting or swapping.
type BlindedMessage struct {
	Amount uint64 `json:"amount"`
	ID     string `json:"id"`
	B_     string `json:"B_"`
}

// BlindedSignature is the mint's response to a BlindedMessage.
type BlindedSignature struct {
	Amount uint64 `json:"amount"`
	ID     string `json:"id"`
	C_     string `json:"C_"`
}

// Proof is a spendable bearer token.
type Proof struct {
	Amount  uint64 `json:"amount"`
	ID      string `json:"id"`
	Secret  string `json:"secret"`
	C       string `json:"C"`
	Witness string `json:"witness,omitempty"`
}

// Key returns a stable identity for deduplication/removal: the secret is
// unique per proof by construction.
func (p Proof) Key() string { return p.Secret }

// KeysetKeys maps denomination (power of two) to the mint's compressed
// public key hex for that denomination, for one keyset.
type KeysetKeys map[uint64]string

// Keyset is one entry of GET /v1/keys.
type Keyset struct {
	ID     string     `json:"id"`
	Unit   string     `json:"unit"`
	Active bool       `json:"active"`
	Keys   KeysetKeys `json:"keys"`
}

// KeysResponse wraps GET /v1/keys.
type KeysResponse struct {
	Keysets []Keyset `json:"keysets"`
}

// KeysetIDsResponse wraps GET /v1/keysets.
type KeysetIDsResponse struct {
	Keysets []struct {
		ID     string `json:"id"`
		Unit   string `json:"unit"`
		Active bool   `json:"active"`
	} `json:"keysets"`
}

// NutSupport describes one entry of the mint's NUT capability table, just
// enough to answer SupportsP2PK/SupportsHTLC.
type NutSupport struct {
	Supported bool `json:"supported"`
}

// InfoResponse wraps GET /v1/info.
type InfoResponse struct {
	Name    string               `json:"name"`
	Pubkey  string               `json:"pubkey"`
	Version string               `json:"version"`
	Nuts    map[string]NutSupport `json:"nuts"`
}

// MintQuoteRequest is the body of POST /v1/mint/quote/bolt11.
type MintQuoteRequest struct {
	Amount uint64 `json:"amount"`
	Unit   string `json:"unit"`
}

// MintQuoteResponse is shared by the POST and GET mint-quote endpoints.
type MintQuoteResponse struct {
	Quote   string `json:"quote"`
	Request string `json:"request"`
	Paid    bool   `json:"paid"`
	Expiry  uint64 `json:"expiry"`
}

// MintRequest is the body of POST /v1/mint/bolt11.
type MintRequest struct {
	Quote   string           `json:"quote"`
	Outputs []BlindedMessage `json:"outputs"`
}

// MintResponse is the response to POST /v1/mint/bolt11.
type MintResponse struct {
	Signatures []BlindedSignature `json:"signatures"`
}

// SwapRequest is the body of POST /v1/swap.
type SwapRequest struct {
	Inputs  []Proof          `json:"inputs"`
	Outputs []BlindedMessage `json:"outputs"`
}

// SwapResponse is the response to POST /v1/swap.
type SwapResponse struct {
	Signatures []BlindedSignature `json:"signatures"`
}

// CheckStateRequest is the body of POST /v1/checkstate.
type CheckStateRequest struct {
	Ys []string `json:"Ys"`
}

// ProofState is one entry of CheckStateResponse.
type ProofState struct {
	Y       string `json:"Y"`
	State   string `json:"state"`
	Witness string `json:"witness,omitempty"`
}

// CheckStateResponse is the response to POST /v1/checkstate.
type CheckStateResponse struct {
	States []ProofState `json:"states"`
}

// MeltQuoteRequest is the body of POST /v1/melt/quote/bolt11.
type MeltQuoteRequest struct {
	Request string `json:"request"`
	Unit    string `json:"unit"`
}

// MeltQuoteResponse is the response to POST /v1/melt/quote/bolt11.
type MeltQuoteResponse struct {
	Quote      string `json:"quote"`
	Amount     uint64 `json:"amount"`
	FeeReserve uint64 `json:"fee_reserve"`
	Paid       bool   `json:"paid"`
	Expiry     uint64 `json:"expiry"`
}
