package config

import (
	"time"

	"github.com/harupipipipi/mcmultidrive/pkg/webhook"
)

// WebhookSettings is the file form of the webhook client configuration.
type WebhookSettings struct {
	MaxRetries int           `yaml:"max_retries,omitempty" toml:"max_retries" json:"max_retries,omitempty"`
	RetryDelay Duration      `yaml:"retry_delay,omitempty" toml:"retry_delay" json:"retry_delay,omitempty"`
	Hooks      []HookSetting `yaml:"hooks,omitempty" toml:"hooks" json:"hooks,omitempty"`
}

// HookSetting configures one endpoint.
type HookSetting struct {
	URL      string   `yaml:"url" toml:"url" json:"url"`
	Secret   string   `yaml:"secret,omitempty" toml:"secret" json:"secret,omitempty"`
	Events   []string `yaml:"events,omitempty" toml:"events" json:"events,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty" toml:"timeout" json:"timeout,omitempty"`
	Disabled bool     `yaml:"disabled,omitempty" toml:"disabled" json:"disabled,omitempty"`
}

// ClientConfig converts the settings into a webhook client config. A hook
// without an event list receives every event.
func (s WebhookSettings) ClientConfig() *webhook.Config {
	cfg := webhook.DefaultConfig()
	cfg.Enabled = len(s.Hooks) > 0
	if s.MaxRetries > 0 {
		cfg.MaxRetries = s.MaxRetries
	}
	if s.RetryDelay > 0 {
		cfg.RetryDelay = s.RetryDelay.Std()
	}
	for _, h := range s.Hooks {
		hook := webhook.HookConfig{
			URL:     h.URL,
			Secret:  h.Secret,
			Timeout: h.Timeout.Std(),
			Enabled: !h.Disabled,
		}
		if hook.Timeout == 0 {
			hook.Timeout = 10 * time.Second
		}
		if len(h.Events) == 0 {
			hook.Events = []webhook.EventType{webhook.EventAll}
		}
		for _, e := range h.Events {
			hook.Events = append(hook.Events, webhook.EventType(e))
		}
		cfg.Hooks = append(cfg.Hooks, hook)
	}
	return cfg
}
