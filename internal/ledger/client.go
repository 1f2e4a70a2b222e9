// Package ledger talks to the chain's fullnode REST API: view queries,
// account state, transaction submission and confirmation. The Submitter in
// this package wraps submission with rebuild-on-stale-sequence retries.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

type ClientConfig struct {
	ModuleAddress string
	ModuleName    string
	APIKey        string
	MaxGasAmount  uint64
	GasUnitPrice  uint64
	TxTTL         time.Duration
	PollInterval  time.Duration
	// ChainID zero reads the id from the node on first use.
	ChainID uint8
}

type Client struct {
	host       string
	httpClient *http.Client
	cfg        ClientConfig
	now        func() time.Time

	mu      sync.Mutex
	chainID uint8
}

func NewClient(httpClient *http.Client, host string, cfg ClientConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if cfg.ModuleName == "" {
		cfg.ModuleName = "betting"
	}
	if cfg.MaxGasAmount == 0 {
		cfg.MaxGasAmount = 20000
	}
	if cfg.GasUnitPrice == 0 {
		cfg.GasUnitPrice = 100
	}
	if cfg.TxTTL <= 0 {
		cfg.TxTTL = time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	cfg.ModuleAddress = strings.ToLower(strings.TrimSpace(cfg.ModuleAddress))
	return &Client{host: host, httpClient: httpClient, cfg: cfg, now: time.Now, chainID: cfg.ChainID}
}

func (c *Client) ModuleAddress() string {
	return c.cfg.ModuleAddress
}

// Function returns the fully qualified id of a module function.
func (c *Client) Function(name string) string {
	return c.cfg.ModuleAddress + "::" + c.cfg.ModuleName + "::" + name
}

type accountResponse struct {
	SequenceNumber string `json:"sequence_number"`
}

// SequenceNumber reads the ledger's expected next sequence number for addr.
func (c *Client) SequenceNumber(ctx context.Context, addr string) (uint64, error) {
	body, err := c.doJSON(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(addr), nil)
	if err != nil {
		return 0, err
	}
	var out accountResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("decode account: %w", err)
	}
	seq, err := strconv.ParseUint(strings.TrimSpace(out.SequenceNumber), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode sequence number %q: %w", out.SequenceNumber, err)
	}
	return seq, nil
}

// BuildTransaction builds an unsigned entry function call against the
// sender's current sequence number.
func (c *Client) BuildTransaction(ctx context.Context, sender, function string, args []any) (*RawTransaction, error) {
	seq, err := c.SequenceNumber(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("read sequence number: %w", err)
	}
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	if args == nil {
		args = []any{}
	}
	return &RawTransaction{
		Sender:                  sender,
		SequenceNumber:          seq,
		MaxGasAmount:            c.cfg.MaxGasAmount,
		GasUnitPrice:            c.cfg.GasUnitPrice,
		ExpirationTimestampSecs: uint64(c.now().Add(c.cfg.TxTTL).Unix()),
		Payload: EntryFunctionPayload{
			Type:          "entry_function_payload",
			Function:      c.Function(function),
			TypeArguments: []string{},
			Arguments:     args,
		},
		ChainID: chainID,
	}, nil
}

type ledgerInfoResponse struct {
	ChainID uint8 `json:"chain_id"`
}

// ChainID returns the configured chain id, or the node's on first call
// when none is configured.
func (c *Client) ChainID(ctx context.Context) (uint8, error) {
	c.mu.Lock()
	id := c.chainID
	c.mu.Unlock()
	if id != 0 {
		return id, nil
	}
	body, err := c.doJSON(ctx, http.MethodGet, "/v1", nil)
	if err != nil {
		return 0, err
	}
	var out ledgerInfoResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("decode ledger info: %w", err)
	}
	if out.ChainID == 0 {
		return 0, fmt.Errorf("node reported no chain id")
	}
	c.mu.Lock()
	c.chainID = out.ChainID
	c.mu.Unlock()
	return out.ChainID, nil
}

// Builder binds a module entry function and its arguments into a BuildFunc.
func (c *Client) Builder(function string, args ...any) BuildFunc {
	return func(ctx context.Context, sender string) (*RawTransaction, error) {
		return c.BuildTransaction(ctx, sender, function, args)
	}
}

type submitResponse struct {
	Hash string `json:"hash"`
}

func (c *Client) SubmitTransaction(ctx context.Context, tx *SignedTransaction) (string, error) {
	if tx == nil {
		return "", fmt.Errorf("transaction is nil")
	}
	body, err := c.doJSON(ctx, http.MethodPost, "/v1/transactions", tx)
	if err != nil {
		return "", err
	}
	var out submitResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if strings.TrimSpace(out.Hash) == "" {
		return "", fmt.Errorf("submit response has no hash")
	}
	return out.Hash, nil
}

type transactionResponse struct {
	Type     string `json:"type"`
	Hash     string `json:"hash"`
	Success  bool   `json:"success"`
	VMStatus string `json:"vm_status"`
	Version  string `json:"version"`
	GasUsed  string `json:"gas_used"`
}

// WaitForTransaction polls until the transaction leaves the pending state
// or ctx ends. It does not bound the wait itself.
func (c *Client) WaitForTransaction(ctx context.Context, hash string) (*Receipt, error) {
	path := "/v1/transactions/by_hash/" + url.PathEscape(hash)
	for {
		body, err := c.doJSON(ctx, http.MethodGet, path, nil)
		switch {
		case err == nil:
			var out transactionResponse
			if err := json.Unmarshal(body, &out); err != nil {
				return nil, fmt.Errorf("decode transaction: %w", err)
			}
			if out.Type != "pending_transaction" {
				version, _ := strconv.ParseUint(out.Version, 10, 64)
				gas, _ := strconv.ParseUint(out.GasUsed, 10, 64)
				return &Receipt{
					Hash:     hash,
					Success:  out.Success,
					VMStatus: out.VMStatus,
					Version:  version,
					GasUsed:  gas,
				}, nil
			}
		case errors.Is(err, ErrNotFound):
			// not indexed yet
		default:
			return nil, err
		}

		t := time.NewTimer(c.cfg.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// ResourceExists reports whether the account holds the named resource type.
func (c *Client) ResourceExists(ctx context.Context, account, resourceType string) (bool, error) {
	path := "/v1/accounts/" + url.PathEscape(account) + "/resource/" + url.PathEscape(resourceType)
	_, err := c.doJSON(ctx, http.MethodGet, path, nil)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

type viewRequest struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// View calls a read-only module function and returns its positional results.
func (c *Client) View(ctx context.Context, function string, args ...any) ([]json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	body, err := c.doJSON(ctx, http.MethodPost, "/v1/view", viewRequest{
		Function:      c.Function(function),
		TypeArguments: []string{},
		Arguments:     args,
	})
	if err != nil {
		return nil, err
	}
	var out []json.RawMessage
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode view %s: %w", function, err)
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if v := strings.TrimSpace(c.cfg.APIKey); v != "" {
		req.Header.Set("Authorization", "Bearer "+v)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Body: string(respBody)}
		_ = json.Unmarshal(respBody, apiErr)
		return nil, apiErr
	}
	return respBody, nil
}
