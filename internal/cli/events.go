package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harupipipipi/mcmultidrive/internal/session"
	"github.com/harupipipipi/mcmultidrive/pkg/color"
	"github.com/harupipipipi/mcmultidrive/pkg/logging"
	"github.com/harupipipipi/mcmultidrive/pkg/model"
	"github.com/harupipipipi/mcmultidrive/pkg/webhook"
)

var stateLabels = map[model.State]string{
	model.StateCheckingStatus:     "Checking status",
	model.StateAcquiringLock:      "Taking the lock",
	model.StateSyncing:            "Downloading world",
	model.StateAwaitingReadiness:  "Preparing save",
	model.StateDiscoveringAddress: "Waiting for address",
	model.StateActiveUpkeep:       "Hosting",
	model.StateFinishingUp:        "Uploading world",
}

// printer renders session events for a person, or as JSON lines.
func (a *app) printer() session.Handler {
	if a.jsonOutput() {
		enc := json.NewEncoder(a.stdout)
		return func(e session.Event) {
			if e.Kind == session.EventLog && e.Level == logging.LevelDebug {
				return
			}
			enc.Encode(e)
		}
	}
	return func(e session.Event) {
		switch e.Kind {
		case session.EventStateChanged:
			if label, ok := stateLabels[e.To]; ok {
				a.println(color.Header("==> " + label))
			}
		case session.EventLog:
			a.println(renderLogLine(e))
		case session.EventAddressResolved:
			a.println(color.Box("Address: " + color.Address(e.Address)))
		case session.EventLockStale:
			a.println(color.Warningf("%s has held the lock since %s; it looks abandoned.", e.Holder, e.LockedAt))
		}
	}
}

func renderLogLine(e session.Event) string {
	msg := "    " + e.Message
	switch e.Level {
	case logging.LevelDebug:
		return color.Dim(msg)
	case logging.LevelWarn:
		msg = color.Warning(msg)
	case logging.LevelError:
		msg = color.Error(msg)
	}
	if len(e.Fields) == 0 {
		return msg
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Fields[k]))
	}
	return msg + " " + color.Dim(strings.Join(parts, " "))
}

// webhookBridge forwards session events to the configured hooks.
func webhookBridge(client *webhook.Client, identity string) session.Handler {
	return func(e session.Event) {
		we := webhook.Event{
			Timestamp: e.Time.UTC().Format(time.RFC3339),
			SessionID: e.SessionID,
			World:     e.World,
			Identity:  identity,
		}
		switch e.Kind {
		case session.EventStateChanged:
			we.Event = webhook.EventStateChanged
			we.State = string(e.To)
			we.Metadata = map[string]any{"from": string(e.From)}
		case session.EventAddressResolved:
			we.Event = webhook.EventAddressResolved
			we.Address = e.Address
			we.Metadata = map[string]any{"source": e.Source}
		case session.EventLockStale:
			we.Event = webhook.EventLockStale
			we.Holder = e.Holder
			we.Metadata = map[string]any{"locked_at": e.LockedAt}
		case session.EventSessionDone:
			success := e.Success
			we.Event = webhook.EventSessionDone
			we.Success = &success
			we.Message = e.Message
			if e.Outcome != nil {
				we.State = string(e.Outcome.State)
				we.Address = e.Outcome.Address
				we.Holder = e.Outcome.Holder
				we.Error = e.Outcome.Error
				we.Metadata = map[string]any{
					"kind":                   string(e.Outcome.Kind),
					"degraded":               e.Outcome.Degraded,
					"manual_upload_required": e.Outcome.ManualUploadRequired,
					"autosaves":              e.Outcome.Autosaves,
				}
			}
		default:
			return
		}
		client.Send(we, true)
	}
}

func (a *app) printOutcome(out *model.Outcome) {
	if a.jsonOutput() {
		return
	}
	summary := out.Summary()
	switch {
	case out.Success() && !out.Degraded && !out.ManualUploadRequired && !out.ReleaseFailed:
		a.println(color.Success(summary))
	case out.Success():
		a.println(color.Warning(summary))
	default:
		a.println(color.Error(summary))
	}
	for _, n := range out.Notes {
		a.println(color.Dim("  - " + n))
	}
}
