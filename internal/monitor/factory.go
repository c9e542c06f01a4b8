package monitor

import "github.com/usrsvc-go/usrsvc/internal/config"

// Kind names a monitor class. New monitor kinds extend this list
// rather than relying on runtime type discovery.
type Kind string

const (
	KindActivityFile Kind = "activityfile"
	KindRSSLimit     Kind = "rss_limit"
)

// orderedKinds fixes the evaluation order: the activity file check
// runs before the RSS check.
var orderedKinds = []Kind{KindActivityFile, KindRSSLimit}

// FromConfig builds the List of active monitors for a program,
// skipping any kind whose config leaves it disabled.
func FromConfig(cfg *config.ProgramConfig) List {
	var out List
	for _, kind := range orderedKinds {
		if m := build(kind, cfg); m != nil {
			out = append(out, m)
		}
	}
	return out
}

func build(kind Kind, cfg *config.ProgramConfig) Monitor {
	switch kind {
	case KindActivityFile:
		if m := NewActivityFileMonitor(cfg.Name, cfg.Monitoring.ActivityFile, cfg.Monitoring.ActivityFileLimit); m != nil {
			return m
		}
	case KindRSSLimit:
		if m := NewRSSLimitMonitor(cfg.Name, cfg.Monitoring.RSSLimit); m != nil {
			return m
		}
	}
	return nil
}
