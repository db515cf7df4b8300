// Package rpc is a minimal JSON-RPC 1.0 client for the node's HTTP endpoint.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/whatsy12/bitcoinminer/internal/fault"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Client posts JSON-RPC requests. Credentials come from the URL userinfo
// unless set explicitly.
type Client struct {
	client   *http.Client
	url      *url.URL
	id       string
	user     string
	password string
}

// Option tweaks a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithCredentials overrides the URL userinfo.
func WithCredentials(user, password string) Option {
	return func(c *Client) {
		c.user = user
		c.password = password
	}
}

// WithID sets the request id sent with every call.
func WithID(id string) Option {
	return func(c *Client) { c.id = id }
}

// NewClient parses rawURL and returns a client for it.
func NewClient(rawURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("parse rpc url: unsupported scheme %q", parsed.Scheme)
	}
	c := &Client{
		client: &http.Client{Timeout: DefaultTimeout},
		url:    parsed,
		id:     "bitcoinminer",
	}
	if parsed.User != nil {
		c.user = parsed.User.Username()
		c.password, _ = parsed.User.Password()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call invokes method and decodes the result into out, which may be nil.
// Network failures come back as *fault.TransportError; anything the node
// answered but that is unusable comes back as *fault.ProtocolError.
func (c *Client) Call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(request{JSONRPC: "1.0", ID: c.id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}

	// userinfo is carried in the Authorization header instead of the URL
	target := *c.url
	target.User = nil
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" || c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &fault.TransportError{Op: method, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &fault.TransportError{Op: method, Err: err}
	}

	// bitcoind reports RPC errors with a 500 status and a JSON body, so try
	// the body before falling back to the status code.
	var rresp response
	decodeErr := json.Unmarshal(data, &rresp)
	if decodeErr == nil && rresp.Error != nil {
		return &fault.ProtocolError{Op: method, Code: rresp.Error.Code, Message: rresp.Error.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return &fault.ProtocolError{Op: method, Message: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))}
	}
	if decodeErr != nil {
		return &fault.ProtocolError{Op: method, Message: "decode response: " + decodeErr.Error()}
	}
	if out == nil {
		return nil
	}
	if len(rresp.Result) == 0 {
		return &fault.ProtocolError{Op: method, Message: "missing result"}
	}
	if err := json.Unmarshal(rresp.Result, out); err != nil {
		return &fault.ProtocolError{Op: method, Message: "decode result: " + err.Error()}
	}
	return nil
}
