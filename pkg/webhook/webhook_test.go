package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harupipipipi/mcmultidrive/pkg/logging"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Enabled {
		t.Error("default config should be enabled")
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", cfg.MaxRetries)
	}
	if cfg.RetryDelay != 5*time.Second {
		t.Errorf("expected RetryDelay 5s, got %v", cfg.RetryDelay)
	}
}

func TestClientSendSync(t *testing.T) {
	var received Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, string(EventAddressResolved), r.Header.Get("X-MCMD-Event"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(&Config{
		Enabled: true,
		Hooks:   []HookConfig{{URL: server.URL, Events: []EventType{EventAddressResolved}, Enabled: true}},
	}, logging.Discard())
	defer client.Close()

	err := client.Send(Event{Event: EventAddressResolved, World: "Test", Address: "foo.e4mc.link"}, false)
	require.NoError(t, err)
	assert.Equal(t, "foo.e4mc.link", received.Address)
	assert.NotEmpty(t, received.Timestamp)
}

func TestClientSignature(t *testing.T) {
	var signature string
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get("X-MCMD-Signature")
		body, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	client := NewClient(&Config{
		Enabled: true,
		Hooks:   []HookConfig{{URL: server.URL, Secret: "s3cret", Events: []EventType{EventAll}, Enabled: true}},
	}, logging.Discard())
	defer client.Close()

	require.NoError(t, client.Send(Event{Event: EventSessionDone}, false))
	assert.Equal(t, Sign(body, "s3cret"), signature)
}

func TestClientSendAsyncFlushedOnClose(t *testing.T) {
	var count int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&count, 1)
	}))
	defer server.Close()

	client := NewClient(&Config{
		Enabled:        true,
		AsyncQueueSize: 10,
		Hooks:          []HookConfig{{URL: server.URL, Events: []EventType{EventStateChanged}, Enabled: true}},
	}, logging.Discard())

	for i := 0; i < 5; i++ {
		require.NoError(t, client.Send(Event{Event: EventStateChanged}, true))
	}
	require.NoError(t, client.Close())

	assert.Equal(t, int32(5), atomic.LoadInt32(&count))
	assert.NoError(t, client.Send(Event{Event: EventStateChanged}, false), "send after close is a no-op")
}

func TestClientRetry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(&Config{
		Enabled:    true,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		Hooks:      []HookConfig{{URL: server.URL, Events: []EventType{EventAll}, Enabled: true}},
	}, logging.Discard())
	defer client.Close()

	require.NoError(t, client.Send(Event{Event: EventLockStale}, false))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClientCloseKeepsRetries(t *testing.T) {
	tests := []struct {
		name       string
		failFirst  int32
		maxRetries int
		want       int32
		delivered  bool
	}{
		{"one failure then success", 1, 3, 2, true},
		{"two failures then success", 2, 3, 3, true},
		{"retries exhausted", 5, 2, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts, delivered int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&attempts, 1) <= tt.failFirst {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				atomic.AddInt32(&delivered, 1)
			}))
			defer server.Close()

			client := NewClient(&Config{
				Enabled:        true,
				AsyncQueueSize: 4,
				MaxRetries:     tt.maxRetries,
				RetryDelay:     20 * time.Millisecond,
				Hooks:          []HookConfig{{URL: server.URL, Events: []EventType{EventSessionDone}, Enabled: true}},
			}, logging.Discard())

			require.NoError(t, client.Send(Event{Event: EventSessionDone}, true))
			require.NoError(t, client.Close())

			assert.Equal(t, tt.want, atomic.LoadInt32(&attempts))
			assert.Equal(t, tt.delivered, atomic.LoadInt32(&delivered) == 1)
		})
	}
}

func TestClientRetryExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(&Config{
		Enabled:    true,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		Hooks:      []HookConfig{{URL: server.URL, Events: []EventType{EventAll}, Enabled: true}},
	}, logging.Discard())
	defer client.Close()

	err := client.Send(Event{Event: EventSessionDone}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 500")
}

func TestClientFiltering(t *testing.T) {
	var mu sync.Mutex
	var got []EventType
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e Event
		json.NewDecoder(r.Body).Decode(&e)
		mu.Lock()
		got = append(got, e.Event)
		mu.Unlock()
	}))
	defer server.Close()

	client := NewClient(&Config{
		Enabled: true,
		Hooks: []HookConfig{
			{URL: server.URL, Events: []EventType{EventSessionDone}, Enabled: true},
			{URL: server.URL, Events: []EventType{EventAll}, Enabled: false},
		},
	}, logging.Discard())
	defer client.Close()

	require.NoError(t, client.Send(Event{Event: EventStateChanged}, false))
	require.NoError(t, client.Send(Event{Event: EventSessionDone}, false))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{EventSessionDone}, got)
}

func TestClientDisabled(t *testing.T) {
	client := NewClient(&Config{
		Enabled: false,
		Hooks:   []HookConfig{{URL: "http://127.0.0.1:1", Events: []EventType{EventAll}, Enabled: true}},
	}, logging.Discard())

	assert.NoError(t, client.Send(Event{Event: EventSessionDone}, false))
	assert.NoError(t, client.Close())
}

func TestClientHookTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(&Config{
		Enabled: true,
		Hooks:   []HookConfig{{URL: server.URL, Events: []EventType{EventAll}, Timeout: 50 * time.Millisecond, Enabled: true}},
	}, logging.Discard())
	defer client.Close()

	start := time.Now()
	err := client.Send(Event{Event: EventSessionDone}, false)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
