// Package api is the JSON-RPC client for the platform control plane.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/sensorgrid/datasync/internal/auth"
	"github.com/sensorgrid/datasync/internal/logging"
	"github.com/sensorgrid/datasync/internal/retry"
)

// RPCError is a JSON-RPC error object returned by the platform.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// Client speaks JSON-RPC 2.0 to <base>/api with bearer-token auth.
// Calls retry under RemoteAPI semantics, so 401/403 surface after a
// single attempt.
type Client struct {
	baseURL string
	http    *http.Client
	policy  *retry.Policy
	tokens  auth.TokenStore
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates a platform client. tokens supplies the bearer token
// for authenticated calls; policy governs retries and should classify
// baseURL's host as the API host.
func NewClient(baseURL string, tokens auth.TokenStore, policy *retry.Policy, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		policy:  policy,
		tokens:  tokens,
		log:     logging.Component("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the JSON-RPC endpoint URL.
func (c *Client) Endpoint() string {
	return c.baseURL + "/api"
}

// call performs one JSON-RPC method call, retrying per policy. result
// may be nil for calls with no interesting result payload.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	endpoint := c.Endpoint()

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.New().String(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	return c.policy.Do(ctx, endpoint, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept-Encoding", "gzip")
		if token, err := c.tokens.Load(); err == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("call %s: %w", method, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &retry.StatusError{
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       strings.TrimSpace(string(body)),
			}
		}

		var reader io.Reader = resp.Body
		if resp.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(resp.Body)
			if err != nil {
				return fmt.Errorf("open gzip response: %w", err)
			}
			defer gz.Close()
			reader = gz
		}

		var rpcResp rpcResponse
		if err := json.NewDecoder(reader).Decode(&rpcResp); err != nil {
			return fmt.Errorf("decode %s response: %w", method, err)
		}
		if rpcResp.Error != nil {
			return rpcResp.Error
		}
		if result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal %s result: %w", method, err)
			}
		}
		return nil
	})
}

// Login authenticates with the platform and stores the session token.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var result struct {
		Token string `json:"token"`
	}
	params := map[string]string{
		"username": username,
		"password": password,
	}
	if err := c.call(ctx, "auth.login", params, &result); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if result.Token == "" {
		return fmt.Errorf("login: empty token in response")
	}
	if err := c.tokens.Store(result.Token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Logout clears the stored session token.
func (c *Client) Logout() error {
	return c.tokens.Clear()
}
