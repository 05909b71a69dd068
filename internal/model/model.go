package model

import "time"

// Event is a single calendar entry recovered from one scraped candidate.
//
// Start and End are naive local times: they carry time.Local but no
// timezone information was present in the source text, and serializers
// never emit an offset for them.
type Event struct {
	Title string

	Start time.Time
	End   time.Time

	// AllDay events span 00:00 to 23:59 of a single day.
	AllDay bool

	// SourceText is the raw candidate the event was parsed from. It is kept
	// for debugging and never exported.
	SourceText string
}

// Duration returns End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Snapshot is the result of one fetch cycle: the accepted events plus the
// bookkeeping the exporters and the web server need.
type Snapshot struct {
	// Target is the configured account label, or nil when none was given.
	Target *string

	Events []Event

	// Candidates is the number of unique fragments fed to the parser and
	// Rejected how many of them did not produce an event.
	Candidates int
	Rejected   int

	FetchedAt time.Time
}

// Within returns the events that overlap [from, to). A zero to means no
// upper bound. Order is preserved.
func Within(events []Event, from, to time.Time) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.End.Before(from) {
			continue
		}
		if !to.IsZero() && !ev.Start.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}
