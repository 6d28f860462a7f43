package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
)

// HTTPClient speaks JSON-RPC to a conductor's POST /rpc endpoint.
// It is safe for concurrent use.
type HTTPClient struct {
	url    string
	http   *http.Client
	nextID atomic.Uint64
}

// NewHTTPClient returns a client for url, e.g. "http://127.0.0.1:8888/rpc".
// A nil hc uses http.DefaultClient.
func NewHTTPClient(url string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPClient{url: url, http: hc}
}

func (c *HTTPClient) roundTrip(ctx context.Context, method string, params, result any) error {
	req, err := newRPCRequest(c.nextID.Add(1), method, params)
	if err != nil {
		return err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post %s: %w", method, err)
	}
	defer httpResp.Body.Close()

	var resp RPCResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return fmt.Errorf("%s: decode response (HTTP %d): %w", method, httpResp.StatusCode, err)
	}
	return decodeRPCResponse(resp, result)
}

// CallInstance calls function on instanceID.
func (c *HTTPClient) CallInstance(ctx context.Context, instanceID, zome, module, function string, payload any) (Result, error) {
	return callInstance(ctx, c, instanceID, zome, module, function, payload)
}

// Instances lists the conductor's instances.
func (c *HTTPClient) Instances(ctx context.Context) ([]InstanceInfo, error) {
	var out []InstanceInfo
	err := c.roundTrip(ctx, MethodInstances, nil, &out)
	return out, err
}

// Bind returns a Caller for one instance.
func (c *HTTPClient) Bind(instanceID string) Caller {
	return boundCaller{rt: c, instanceID: instanceID}
}
