package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	meshErrors "github.com/vinayprograms/meshkit/errors"
)

// DefaultCallTimeout bounds a remote verb call. A timed-out call is
// abandoned; the transport's own timeout closes the socket.
const DefaultCallTimeout = 5 * time.Second

// Client is a thin network proxy implementing the Service contract by
// forwarding each verb as an HTTP POST to a remote announcement's host:port.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
}

// NewClient creates a proxy for the named service at host:port.
// A zero timeout uses DefaultCallTimeout.
func NewClient(name, host string, port int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Client{
		name:    name,
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		http:    &http.Client{Timeout: timeout},
	}
}

// Name returns the remote service name this proxy forwards to.
func (c *Client) Name() string {
	return c.name
}

// Ask implements Service over the network.
func (c *Client) Ask(ctx context.Context, query string, args map[string]interface{}) (interface{}, error) {
	return c.call(ctx, "ask", Request{Query: query, Args: args})
}

// Tell implements Service over the network. Remote failures degrade to the
// fallback rendering of the error so Tell keeps its "never fails" contract.
func (c *Client) Tell(format string, data interface{}) string {
	result, err := c.call(context.Background(), "tell", Request{Format: format, Data: data})
	if err != nil {
		return Fallback(err)
	}
	if s, ok := result.(string); ok {
		return s
	}
	return Fallback(result)
}

// Do implements Service over the network.
func (c *Client) Do(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
	return c.call(ctx, "do", Request{Action: action, Args: args})
}

// call performs one verb round trip. Every failure mode (dial, timeout,
// bad status, malformed body, remote error payload) comes back as a
// MeshError carrying the service name; callers never see raw HTTP errors.
func (c *Client) call(ctx context.Context, verb string, req Request) (interface{}, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, meshErrors.CallFailed(c.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+verb, bytes.NewReader(body))
	if err != nil {
		return nil, meshErrors.CallFailed(c.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, meshErrors.CallFailed(c.name, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, meshErrors.CallFailed(c.name, fmt.Errorf("status %d", httpResp.StatusCode))
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, meshErrors.CallFailed(c.name, fmt.Errorf("malformed response: %w", err))
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}
