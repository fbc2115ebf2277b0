package config

import "time"

// Timings holds every poll interval and deadline used by a session.
// Zero values fall back to DefaultTimings.
type Timings struct {
	StatusTimeout    Duration `yaml:"status_timeout,omitempty" toml:"status_timeout" json:"status_timeout,omitempty"`
	LogPoll          Duration `yaml:"log_poll,omitempty" toml:"log_poll" json:"log_poll,omitempty"`
	WatchTimeout     Duration `yaml:"watch_timeout,omitempty" toml:"watch_timeout" json:"watch_timeout,omitempty"`
	ManualOverride   Duration `yaml:"manual_override,omitempty" toml:"manual_override" json:"manual_override,omitempty"`
	ProcessStartWait Duration `yaml:"process_start_wait,omitempty" toml:"process_start_wait" json:"process_start_wait,omitempty"`
	ProcessPoll      Duration `yaml:"process_poll,omitempty" toml:"process_poll" json:"process_poll,omitempty"`
	UpkeepPoll       Duration `yaml:"upkeep_poll,omitempty" toml:"upkeep_poll" json:"upkeep_poll,omitempty"`
	AutosaveInterval Duration `yaml:"autosave_interval,omitempty" toml:"autosave_interval" json:"autosave_interval,omitempty"`
	ExitSettle       Duration `yaml:"exit_settle,omitempty" toml:"exit_settle" json:"exit_settle,omitempty"`
}

// DefaultTimings returns the stock intervals.
func DefaultTimings() Timings {
	return Timings{
		StatusTimeout:    Duration(15 * time.Second),
		LogPoll:          Duration(500 * time.Millisecond),
		WatchTimeout:     Duration(600 * time.Second),
		ManualOverride:   Duration(120 * time.Second),
		ProcessStartWait: Duration(300 * time.Second),
		ProcessPoll:      Duration(3 * time.Second),
		UpkeepPoll:       Duration(3 * time.Second),
		AutosaveInterval: Duration(600 * time.Second),
		ExitSettle:       Duration(3 * time.Second),
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	fill := func(v *Duration, def Duration) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&t.StatusTimeout, d.StatusTimeout)
	fill(&t.LogPoll, d.LogPoll)
	fill(&t.WatchTimeout, d.WatchTimeout)
	fill(&t.ManualOverride, d.ManualOverride)
	fill(&t.ProcessStartWait, d.ProcessStartWait)
	fill(&t.ProcessPoll, d.ProcessPoll)
	fill(&t.UpkeepPoll, d.UpkeepPoll)
	fill(&t.AutosaveInterval, d.AutosaveInterval)
	fill(&t.ExitSettle, d.ExitSettle)
	return t
}
