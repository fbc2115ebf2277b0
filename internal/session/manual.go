package session

import (
	"context"
	"strings"
)

// Inbox is a ManualSource fed by Submit, typically from a prompt running
// alongside the session. Only the first submission per Await is used.
type Inbox struct {
	ch chan string
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{ch: make(chan string, 1)}
}

// Submit offers an address. It reports false when the address is blank or
// an earlier submission is still waiting to be consumed.
func (in *Inbox) Submit(address string) bool {
	address = strings.TrimSpace(address)
	if address == "" {
		return false
	}
	select {
	case in.ch <- address:
		return true
	default:
		return false
	}
}

// Await implements ManualSource.
func (in *Inbox) Await(ctx context.Context) (string, bool) {
	select {
	case addr := <-in.ch:
		return addr, true
	case <-ctx.Done():
		return "", false
	}
}

// Drain discards a submission that arrived after its phase ended.
func (in *Inbox) Drain() {
	select {
	case <-in.ch:
	default:
	}
}
