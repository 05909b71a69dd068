package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"owacal/internal/parse"
	"owacal/internal/scrape"
)

var fragments = scrape.Static{
	"Team Sync, 10:00 AM to 11:00 AM, Tuesday, February 3, 2026, Busy",
	"Team Sync, 10:00 AM to 11:00 AM, Tuesday, February 3, 2026, Busy",
	"Offsite, all day event, Tuesday, February 3, 2026",
	"Retro, 2:00 PM to 3:00 PM, Monday, March 30, 2026",
	"calendar view, Month, February 2026",
	"Mo",
	"Lunch",
}

func fixedNow() time.Time {
	return time.Date(2026, time.February, 2, 15, 4, 0, 0, time.Local)
}

func TestRun(t *testing.T) {
	target := "work"
	res, err := Run(context.Background(), fragments, Options{Target: &target, Now: fixedNow})
	require.NoError(t, err)

	snap := res.Snapshot
	assert.Equal(t, 7, res.Fragments)
	assert.Equal(t, 4, snap.Candidates, "duplicates and short fragments are dropped")
	assert.Equal(t, 1, snap.Rejected)
	assert.Equal(t, 1, res.Reasons[parse.ReasonSentinel])
	require.Len(t, snap.Events, 3)
	assert.Equal(t, "Team Sync", snap.Events[0].Title)
	assert.Equal(t, "Offsite", snap.Events[1].Title)
	assert.Equal(t, "Retro", snap.Events[2].Title)
	assert.Equal(t, &target, snap.Target)
	assert.Equal(t, fixedNow(), snap.FetchedAt)
	assert.Zero(t, res.OutOfWindow)
}

func TestRunWindow(t *testing.T) {
	res, err := Run(context.Background(), fragments, Options{Days: 14, Now: fixedNow})
	require.NoError(t, err)

	require.Len(t, res.Snapshot.Events, 2)
	for _, ev := range res.Snapshot.Events {
		assert.NotEqual(t, "Retro", ev.Title)
	}
	assert.Equal(t, 1, res.OutOfWindow)
	assert.Nil(t, res.Snapshot.Target)
}

type failingSource struct{ err error }

func (f failingSource) Fragments(context.Context) ([]string, error) { return nil, f.err }

func TestRunSourceError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Run(context.Background(), failingSource{boom}, Options{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "pipeline: fetch fragments")
}

func TestRunEmpty(t *testing.T) {
	res, err := Run(context.Background(), scrape.Static{}, Options{Now: fixedNow})
	require.NoError(t, err)
	assert.Empty(t, res.Snapshot.Events)
	assert.Zero(t, res.Snapshot.Candidates)
}
