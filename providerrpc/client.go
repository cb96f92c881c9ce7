/*
Package providerrpc talks JSON-RPC 2.0 over HTTP to a vault provider.

Transport-level failures (connection errors, timeouts, HTTP
408/429/5xx) retry with exponential backoff; JSON-RPC application
errors are the provider's answer and are never retried here.
*/
package providerrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	logger "github.com/sirupsen/logrus"
)

const (
	defaultMaxAttempts = 4
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 8 * time.Second
	defaultHttpTimeout = 15 * time.Second
)

type ClientConfig struct {
	Url         string
	MaxAttempts int           // total attempts per call, 0 = default
	BaseDelay   time.Duration // first backoff step, doubles per retry
	MaxDelay    time.Duration // backoff cap
	HttpTimeout time.Duration
}

// Client is one vault provider endpoint.
type Client struct {
	url         string
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	httpClient  *http.Client
	nextId      atomic.Uint64
}

func NewClient(cfg *ClientConfig) *Client {
	c := &Client{
		url:         cfg.Url,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.baseDelay <= 0 {
		c.baseDelay = defaultBaseDelay
	}
	if c.maxDelay <= 0 {
		c.maxDelay = defaultMaxDelay
	}
	timeout := cfg.HttpTimeout
	if timeout <= 0 {
		timeout = defaultHttpTimeout
	}
	c.httpClient = &http.Client{Timeout: timeout}
	return c
}

// retryableStatus per the provider wire contract.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// call performs one JSON-RPC method with the retry policy and decodes
// the result into out.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	reqBody, err := json.Marshal(&jsonRpcRequest{
		JsonRpc: "2.0",
		Method:  method,
		Params:  []interface{}{params}, // positional: one-element array
		Id:      c.nextId.Add(1),
	})
	if err != nil {
		return err
	}

	delay := c.baseDelay
	var lastErr *RpcError

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			logger.WithFields(logger.Fields{
				"method":  method,
				"attempt": attempt,
				"delay":   delay,
			}).Debug("retrying provider rpc")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		rpcErr := c.once(ctx, method, reqBody, out)
		if rpcErr == nil {
			return nil
		}
		if !rpcErr.Retryable {
			return rpcErr
		}
		lastErr = rpcErr
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method string, reqBody []byte, out interface{}) *RpcError {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return &RpcError{Method: method, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return &RpcError{Method: method, Message: ctx.Err().Error()}
		}
		// network errors and client timeouts are transient
		return &RpcError{Method: method, Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &RpcError{
			Method:    method,
			Message:   fmt.Sprintf("http status %d", resp.StatusCode),
			Retryable: retryableStatus(resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RpcError{Method: method, Message: err.Error(), Retryable: true}
	}

	var rpcResp jsonRpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return &RpcError{Method: method, Message: "malformed response: " + err.Error()}
	}

	if rpcResp.Error != nil {
		// application error: the provider answered, do not retry
		return &RpcError{
			Method:  method,
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return &RpcError{Method: method, Message: "malformed result: " + err.Error()}
		}
	}
	return nil
}

// GetClaimerTransactions fetches the unsigned claim transaction pairs
// for a peg-in.
func (c *Client) GetClaimerTransactions(ctx context.Context, peginId, depositorPubkey string) ([]WireClaimerTransactions, error) {
	var result GetClaimerTransactionsResult
	err := c.call(ctx, MethodGetClaimerTransactions, &GetClaimerTransactionsParams{
		PeginId:         peginId,
		DepositorPubkey: depositorPubkey,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.ClaimerTransactions, nil
}

// SubmitClaimerSignatures submits every claimer's signatures in one
// call. All-or-nothing by contract.
func (c *Client) SubmitClaimerSignatures(ctx context.Context, peginId, depositorPubkey string, signatures map[string]WireClaimerSignatures) error {
	var result SubmitClaimerSignaturesResult
	err := c.call(ctx, MethodSubmitClaimerSignatures, &SubmitClaimerSignaturesParams{
		PeginId:         peginId,
		DepositorPubkey: depositorPubkey,
		Signatures:      signatures,
	}, &result)
	if err != nil {
		return err
	}
	if !result.Accepted {
		return &RpcError{
			Method:  MethodSubmitClaimerSignatures,
			Message: "provider did not accept the signatures",
		}
	}
	return nil
}
