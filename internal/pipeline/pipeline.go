// Package pipeline runs one fetch cycle: fragments from a source are
// collected, parsed and windowed into a model.Snapshot.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"owacal/internal/collect"
	appLog "owacal/internal/log"
	"owacal/internal/model"
	"owacal/internal/parse"
	"owacal/internal/scrape"
)

// Options controls a single Run.
type Options struct {
	// Target labels the snapshot; nil when no target was selected.
	Target *string

	// Days keeps only events overlapping [today 00:00, today+Days). Zero
	// disables the window.
	Days int

	// Now defaults to time.Now.
	Now func() time.Time
}

// Result is a snapshot plus the per-stage counts behind it.
type Result struct {
	Snapshot model.Snapshot

	// Fragments is the raw fragment count before deduplication.
	Fragments int
	// Reasons counts parser rejects per reason.
	Reasons map[parse.Reason]int
	// OutOfWindow is the number of parsed events dropped by Days.
	OutOfWindow int
}

// Run fetches fragments from src and turns them into a snapshot. Only a
// source failure is an error; malformed candidates are counted.
func Run(ctx context.Context, src scrape.Source, opts Options) (Result, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	frags, err := src.Fragments(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: fetch fragments: %w", err)
	}

	candidates := collect.Collect(frags)
	parsed := parse.All(candidates)

	fetchedAt := now()
	events := parsed.Events
	if opts.Days > 0 {
		from := startOfDay(fetchedAt)
		events = model.Within(events, from, from.AddDate(0, 0, opts.Days))
	}

	res := Result{
		Snapshot: model.Snapshot{
			Target:     opts.Target,
			Events:     events,
			Candidates: len(candidates),
			Rejected:   parsed.Rejected,
			FetchedAt:  fetchedAt,
		},
		Fragments:   len(frags),
		Reasons:     parsed.Reasons,
		OutOfWindow: len(parsed.Events) - len(events),
	}

	appLog.Info("pipeline done",
		"fragments", res.Fragments,
		"candidates", res.Snapshot.Candidates,
		"events", len(events),
		"rejected", res.Snapshot.Rejected,
		"out_of_window", res.OutOfWindow,
	)
	return res, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.In(time.Local)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}
