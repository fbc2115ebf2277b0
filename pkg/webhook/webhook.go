// Package webhook delivers session events to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/harupipipipi/mcmultidrive/pkg/logging"
)

// EventType names an event a hook can subscribe to.
type EventType string

const (
	EventStateChanged    EventType = "session.state_changed"
	EventAddressResolved EventType = "session.address_resolved"
	EventLockStale       EventType = "session.lock_stale"
	EventSessionDone     EventType = "session.done"
	EventWorldArchived   EventType = "world.archived"

	// EventAll subscribes a hook to every event.
	EventAll EventType = "*"
)

// Event is the JSON payload posted to hooks.
type Event struct {
	Event     EventType      `json:"event"`
	Timestamp string         `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	World     string         `json:"world,omitempty"`
	Identity  string         `json:"identity,omitempty"`
	State     string         `json:"state,omitempty"`
	Address   string         `json:"address,omitempty"`
	Holder    string         `json:"holder,omitempty"`
	Success   *bool          `json:"success,omitempty"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// HookConfig represents a single webhook configuration.
type HookConfig struct {
	URL     string
	Secret  string
	Events  []EventType
	Timeout time.Duration
	Enabled bool
}

// Config represents the webhook configuration.
type Config struct {
	Hooks          []HookConfig
	Enabled        bool
	MaxRetries     int
	RetryDelay     time.Duration
	AsyncQueueSize int
}

// DefaultConfig returns the default webhook configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		MaxRetries:     3,
		RetryDelay:     5 * time.Second,
		AsyncQueueSize: 100,
	}
}

// Client handles sending webhook notifications.
type Client struct {
	config *Config
	http   *http.Client
	log    *logging.Logger
	queue  chan *job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

type job struct {
	event Event
	hook  HookConfig
}

// NewClient creates a new webhook client. A nil logger uses the global one.
func NewClient(cfg *Config, log *logging.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logging.Global()
	}
	queueSize := cfg.AsyncQueueSize
	if queueSize <= 0 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		config: cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    log,
		queue:  make(chan *job, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.Enabled {
		c.start()
	}

	return c
}

func (c *Client) start() {
	c.once.Do(func() {
		c.wg.Add(1)
		go c.worker()
	})
}

func (c *Client) worker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			// Drain remaining jobs
			for len(c.queue) > 0 {
				c.send(<-c.queue)
			}
			return
		case job := <-c.queue:
			c.send(job)
		}
	}
}

// Send sends an event to all matching webhooks.
// If async is true, the event is queued for background sending.
// If async is false, the event is sent synchronously.
func (c *Client) Send(event Event, async bool) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.config.Enabled || c.closed {
		return nil
	}

	var hooks []HookConfig
	for _, hook := range c.config.Hooks {
		if hook.Enabled && matchesEvent(hook, event.Event) {
			hooks = append(hooks, hook)
		}
	}
	if len(hooks) == 0 {
		return nil
	}

	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	if async {
		for _, hook := range hooks {
			select {
			case c.queue <- &job{event: event, hook: hook}:
			default:
				c.log.Warn("webhook queue full, dropping event", map[string]any{"event": string(event.Event)})
			}
		}
		return nil
	}

	var lastErr error
	for _, hook := range hooks {
		if err := c.sendSync(c.ctx, &job{event: event, hook: hook}); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// send delivers a queued job. Close does not cut its retries short.
func (c *Client) send(job *job) {
	if err := c.sendSync(context.Background(), job); err != nil {
		c.log.ErrorErr("webhook delivery failed", err, map[string]any{
			"event": string(job.event.Event),
			"url":   job.hook.URL,
		})
	}
}

// sendSync sends a webhook synchronously with retries. Cancelling ctx
// stops further retries.
func (c *Client) sendSync(ctx context.Context, job *job) error {
	payload, err := json.Marshal(job.event)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		lastErr = c.post(job, payload)
		if lastErr == nil {
			return nil
		}
	}

	return lastErr
}

func (c *Client) post(job *job, payload []byte) error {
	// Not tied to c.ctx so queued events still go out while Close drains.
	ctx := context.Background()
	if job.hook.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.hook.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.hook.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "mcmultidrive-webhook/1.0")
	req.Header.Set("X-MCMD-Event", string(job.event.Event))
	if job.hook.Secret != "" {
		req.Header.Set("X-MCMD-Signature", Sign(payload, job.hook.Secret))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
}

// Sign returns the HMAC-SHA256 signature header value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func matchesEvent(hook HookConfig, event EventType) bool {
	for _, e := range hook.Events {
		if e == event || e == EventAll {
			return true
		}
	}
	return false
}

// Close flushes queued events and stops the worker. Further sends are
// ignored.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.config.Enabled || c.closed {
		return nil
	}
	c.closed = true

	c.cancel()
	c.wg.Wait()
	return nil
}
