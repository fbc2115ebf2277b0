// Package statusstore talks to the remote status sheet that records which
// player hosts which world.
//
// Reads are GET requests with an action query parameter, writes are JSON
// POSTs. Every call is a single attempt bounded by the client timeout;
// retry policy belongs to the caller.
package statusstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
	"github.com/harupipipipi/mcmultidrive/pkg/logging"
	"github.com/harupipipipi/mcmultidrive/pkg/model"
)

// DefaultTimeout bounds each request.
const DefaultTimeout = 15 * time.Second

const maxResponseBytes = 1 << 20

// Client is a typed wrapper over the status API.
type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
	log      *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for endpoint. A non-positive timeout uses
// DefaultTimeout.
func NewClient(endpoint string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{},
		timeout:  timeout,
		log:      logging.Global(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AcquireResult reports the outcome of a compare-and-set on a world.
// When Acquired is false, Holder names whoever holds it now.
type AcquireResult struct {
	Acquired bool   `json:"acquired"`
	Holder   string `json:"holder,omitempty"`
}

// response is the union of fields the API returns across actions.
type response struct {
	Success       *bool         `json:"success"`
	Error         string        `json:"error"`
	Worlds        []model.World `json:"worlds"`
	Status        string        `json:"status"`
	Host          string        `json:"host"`
	Domain        string        `json:"domain"`
	LockTimestamp string        `json:"lock_timestamp"`
	CurrentHost   string        `json:"current_host"`
}

func (r *response) ok() bool {
	return r.Success != nil && *r.Success
}

type writeRequest struct {
	Action string `json:"action"`
	World  string `json:"world"`
	Host   string `json:"host,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// List returns every registered world.
func (c *Client) List(ctx context.Context) ([]model.World, error) {
	resp, err := c.get(ctx, url.Values{"action": {"list_worlds"}})
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errclass.ErrStoreRejected.WithMessagef("list_worlds: %s", resp.Error)
	}
	for i := range resp.Worlds {
		if resp.Worlds[i].Status == "" {
			resp.Worlds[i].Status = model.StatusUnknown
		}
	}
	return resp.Worlds, nil
}

// Read returns the current row for name.
func (c *Client) Read(ctx context.Context, name string) (*model.World, error) {
	resp, err := c.get(ctx, url.Values{"action": {"get_status"}, "world": {name}})
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errclass.ErrStoreRejected.WithMessagef("get_status %s: %s", name, resp.Error)
	}

	w := &model.World{
		Name:          name,
		Status:        model.WorldStatus(resp.Status),
		Holder:        resp.Host,
		Address:       resp.Domain,
		LockTimestamp: resp.LockTimestamp,
	}
	switch w.Status {
	case model.StatusOnline, model.StatusOffline:
	case "error", "":
		return nil, errclass.ErrStoreRejected.WithMessagef("get_status %s: no status in response", name)
	default:
		w.Status = model.StatusUnknown
	}
	return w, nil
}

// Register adds a new offline world row.
func (c *Client) Register(ctx context.Context, name string) error {
	return c.write(ctx, writeRequest{Action: "add_world", World: name})
}

// Acquire marks name online for identity with the preparing address
// placeholder. The store performs the compare-and-set: if someone else
// already holds the world the result carries that holder and Acquired is
// false. A rejected request that names no holder is an error.
func (c *Client) Acquire(ctx context.Context, name, identity string) (AcquireResult, error) {
	resp, err := c.post(ctx, writeRequest{
		Action: "set_online",
		World:  name,
		Host:   identity,
		Domain: model.AddressPreparing,
	})
	if err != nil {
		return AcquireResult{}, err
	}

	if resp.ok() && resp.CurrentHost == identity {
		return AcquireResult{Acquired: true, Holder: identity}, nil
	}
	if resp.CurrentHost != "" && resp.CurrentHost != identity {
		return AcquireResult{Acquired: false, Holder: resp.CurrentHost}, nil
	}
	msg := resp.Error
	if msg == "" {
		msg = "set_online not confirmed"
	}
	return AcquireResult{}, errclass.ErrStoreRejected.WithMessagef("set_online %s: %s", name, msg)
}

// PublishAddress records the joinable address of an online world.
func (c *Client) PublishAddress(ctx context.Context, name, address string) error {
	return c.write(ctx, writeRequest{Action: "update_domain", World: name, Domain: address})
}

// Release marks name offline, whoever holds it.
func (c *Client) Release(ctx context.Context, name string) error {
	return c.write(ctx, writeRequest{Action: "set_offline", World: name})
}

// Remove deletes the world row.
func (c *Client) Remove(ctx context.Context, name string) error {
	return c.write(ctx, writeRequest{Action: "delete_world", World: name})
}

// Ping checks that the endpoint answers a list request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.List(ctx)
	return err
}

func (c *Client) write(ctx context.Context, req writeRequest) error {
	resp, err := c.post(ctx, req)
	if err != nil {
		return err
	}
	if !resp.ok() {
		msg := resp.Error
		if msg == "" {
			msg = "request not acknowledged"
		}
		return errclass.ErrStoreRejected.WithMessagef("%s %s: %s", req.Action, req.World, msg)
	}
	return nil
}

func (c *Client) get(ctx context.Context, query url.Values) (*response, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessagef("status url: %v", err)
	}
	q := u.Query()
	for k, v := range query {
		q[k] = v
	}
	u.RawQuery = q.Encode()

	return c.do(ctx, query.Get("action"), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	})
}

func (c *Client) post(ctx context.Context, body writeRequest) (*response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", body.Action, err)
	}
	return c.do(ctx, body.Action, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

func (c *Client) do(ctx context.Context, action string, build func(context.Context) (*http.Request, error)) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := build(ctx)
	if err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessagef("build %s request: %v", action, err)
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errclass.ErrTransport.WithMessagef("%s: timed out after %s", action, c.timeout)
		}
		return nil, errclass.ErrTransport.WithMessagef("%s: %v", action, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, errclass.ErrTransport.WithMessagef("%s: read response: %v", action, err)
	}
	c.log.Debug("status request", map[string]any{
		"action":      action,
		"http_status": httpResp.StatusCode,
		"elapsed_ms":  time.Since(start).Milliseconds(),
	})

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, errclass.ErrTransport.WithMessagef("%s: http %d", action, httpResp.StatusCode)
	}

	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errclass.ErrTransport.WithMessagef("%s: malformed response: %v", action, err)
	}
	return &resp, nil
}
