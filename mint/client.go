package mint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cashubridge/atomicswap/internal/logging"
)

// Client is a stateless HTTP/JSON client for one mint. It holds no token
// state of its own; the caller (token.Engine, ledger.Ledger) owns proofs
// and blinding factors.
type Client struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client, e.g. to set a custom
// transport or timeout policy.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger attaches a subsystem logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New builds a Client for the mint reachable at baseURL (e.g.
// "https://mint.example.com").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logging.Disabled(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("mint: encode request body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), rdr)
	if err != nil {
		return fmt.Errorf("mint: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debugf("mint request %s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mint: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mint: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Path: path, Body: string(respBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("mint: decode response from %s: %w", path, err)
	}
	return nil
}

// StatusError is returned when the mint answers with a non-2xx status.
type StatusError struct {
	Code int
	Path string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mint: %s returned %d: %s", e.Path, e.Code, e.Body)
}

// Info fetches GET /v1/info.
func (c *Client) Info(ctx context.Context) (*InfoResponse, error) {
	var out InfoResponse
	if err := c.do(ctx, http.MethodGet, "/v1/info", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SupportsP2PK reports whether the mint advertises NUT-11 (P2PK) support.
func (i *InfoResponse) SupportsP2PK() bool {
	n, ok := i.Nuts["11"]
	return ok && n.Supported
}

// SupportsHTLC reports whether the mint advertises NUT-14 (HTLC) support.
func (i *InfoResponse) SupportsHTLC() bool {
	n, ok := i.Nuts["14"]
	return ok && n.Supported
}

// Keys fetches GET /v1/keys (all active keysets) or /v1/keys/{id} when id is
// non-empty.
func (c *Client) Keys(ctx context.Context, id string) (*KeysResponse, error) {
	path := "/v1/keys"
	if id != "" {
		path = "/v1/keys/" + id
	}
	var out KeysResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Keysets fetches GET /v1/keysets, the list of known keyset IDs.
func (c *Client) Keysets(ctx context.Context) (*KeysetIDsResponse, error) {
	var out KeysetIDsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/keysets", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestMintQuote requests a Lightning invoice to fund a future mint of
// amount units (POST /v1/mint/quote/bolt11).
func (c *Client) RequestMintQuote(ctx context.Context, amount uint64, unit string) (*MintQuoteResponse, error) {
	req := MintQuoteRequest{Amount: amount, Unit: unit}
	var out MintQuoteResponse
	if err := c.do(ctx, http.MethodPost, "/v1/mint/quote/bolt11", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MintQuoteStatus polls GET /v1/mint/quote/bolt11/{quote} for payment status.
func (c *Client) MintQuoteStatus(ctx context.Context, quote string) (*MintQuoteResponse, error) {
	var out MintQuoteResponse
	if err := c.do(ctx, http.MethodGet, "/v1/mint/quote/bolt11/"+quote, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Mint exchanges a paid quote for blinded signatures over outputs (POST
// /v1/mint/bolt11).
func (c *Client) Mint(ctx context.Context, quote string, outputs []BlindedMessage) (*MintResponse, error) {
	req := MintRequest{Quote: quote, Outputs: outputs}
	var out MintResponse
	if err := c.do(ctx, http.MethodPost, "/v1/mint/bolt11", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Swap exchanges inputs for blinded signatures over outputs of equal total
// value (POST /v1/swap). This is the primitive both the minting-denomination
// split and the atomic-swap claim step are built on.
func (c *Client) Swap(ctx context.Context, inputs []Proof, outputs []BlindedMessage) (*SwapResponse, error) {
	req := SwapRequest{Inputs: inputs, Outputs: outputs}
	var out SwapResponse
	if err := c.do(ctx, http.MethodPost, "/v1/swap", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckState queries proof spend state by Y value (POST /v1/checkstate).
func (c *Client) CheckState(ctx context.Context, ys []string) (*CheckStateResponse, error) {
	req := CheckStateRequest{Ys: ys}
	var out CheckStateResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkstate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestMeltQuote requests a melt quote to pay a Lightning invoice out of
// ecash (POST /v1/melt/quote/bolt11).
func (c *Client) RequestMeltQuote(ctx context.Context, request, unit string) (*MeltQuoteResponse, error) {
	req := MeltQuoteRequest{Request: request, Unit: unit}
	var out MeltQuoteResponse
	if err := c.do(ctx, http.MethodPost, "/v1/melt/quote/bolt11", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
