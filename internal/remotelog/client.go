// Package remotelog talks to the remote append-only workout log.
//
// Every call is one cross-origin POST in "simple request" form: a text/plain body and
// no custom headers, so browsers and proxies never issue a preflight the endpoint
// cannot answer. The caller's origin travels as a query parameter instead.
package remotelog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"example.com/liftcoach/internal/domain"
)

const contentType = "text/plain;charset=utf-8"

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 4 << 20

// Client sends actions to the remote log. It never retries.
type Client struct {
	endpoint   string
	origin     string
	httpClient *http.Client
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient constructs a client for endpoint, announcing origin on every call.
func NewClient(endpoint, origin string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		origin:     origin,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured remote URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Send builds an action from name and params and delivers it.
func (c *Client) Send(ctx context.Context, name string, params any) (json.RawMessage, error) {
	action, err := domain.NewAction(name, params)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, action)
}

// Do delivers one action and classifies the reply. It returns the response object on
// success and a *DeliveryError otherwise.
func (c *Client) Do(ctx context.Context, action domain.Action) (json.RawMessage, error) {
	body, err := action.Body()
	if err != nil {
		return nil, err
	}

	target, err := c.requestURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &DeliveryError{Action: action.Name, Kind: KindTransport, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		return nil, &DeliveryError{Action: action.Name, Kind: KindTransport, Status: resp.StatusCode, Reason: readErr.Error(), Err: readErr}
	}

	return classify(action.Name, resp.StatusCode, raw)
}

func (c *Client) requestURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("origin", c.origin)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// classify applies the envelope convention: success needs a 2xx status, a JSON object
// body, and no explicit "ok": false. A server-supplied "error" string is preferred as
// the failure reason.
func classify(action string, status int, raw []byte) (json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	decodeErr := json.Unmarshal(raw, &envelope)
	if decodeErr == nil && envelope == nil {
		decodeErr = fmt.Errorf("expected JSON object, got null")
	}

	reason := ""
	if decodeErr == nil {
		reason = errorReason(envelope)
	}

	if status < 200 || status >= 300 {
		if reason == "" {
			reason = fmt.Sprintf("HTTP %d", status)
		}
		return nil, &DeliveryError{Action: action, Kind: KindRejected, Status: status, Reason: reason}
	}

	if decodeErr != nil {
		return nil, &DeliveryError{
			Action: action,
			Kind:   KindMalformed,
			Status: status,
			Reason: fmt.Sprintf("malformed response (HTTP %d): %v", status, decodeErr),
			Err:    decodeErr,
		}
	}

	if explicitFailure(envelope) {
		if reason == "" {
			reason = fmt.Sprintf("HTTP %d", status)
		}
		return nil, &DeliveryError{Action: action, Kind: KindRejected, Status: status, Reason: reason}
	}

	return json.RawMessage(raw), nil
}

func explicitFailure(envelope map[string]json.RawMessage) bool {
	okRaw, present := envelope["ok"]
	if !present {
		return false
	}
	var ok bool
	if err := json.Unmarshal(okRaw, &ok); err != nil {
		return false
	}
	return !ok
}

func errorReason(envelope map[string]json.RawMessage) string {
	raw, present := envelope["error"]
	if !present {
		return ""
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return msg
	}
	return string(raw)
}
