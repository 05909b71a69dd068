package scrape

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const monthView = `<!doctype html>
<html><body>
<div role="main" aria-label="Calendar view, February 2026">
  <div class="calendar-grid">
    <div data-is-focusable="true" role="button"
         aria-label="Team Sync, 10:00 AM to 11:00 AM, Tuesday, February 3, 2026, Busy">
      <span>10:00 AM</span> <span>Team Sync</span>
    </div>
    <div data-is-focusable="true" role="button"
         aria-label="Offsite, all day event, Tuesday, February 3, 2026">
      Offsite
    </div>
    <div data-is-focusable="true" role="button">Mo</div>
    <button aria-label="Go to next month">&gt;</button>
    <div class="current-time-line" aria-label="Current time: 9:41 AM"></div>
    <div class="ms-Callout-main">Design Review
Room 4</div>
  </div>
</div>
</body></html>`

func TestHarvest(t *testing.T) {
	got, err := Harvest(strings.NewReader(monthView))
	require.NoError(t, err)

	// Element text first, in document order.
	require.GreaterOrEqual(t, len(got), 5)
	assert.Equal(t, "10:00 AM Team Sync", got[0])
	assert.Equal(t, "Offsite", got[1])
	assert.Contains(t, got, "Design Review\nRoom 4")

	// Short text is dropped.
	assert.NotContains(t, got, "Mo")

	// Labels with ':' and a keyword are kept.
	assert.Contains(t, got, "Team Sync, 10:00 AM to 11:00 AM, Tuesday, February 3, 2026, Busy")
	assert.Contains(t, got, "Current time: 9:41 AM")

	// Labels without ':' or without a keyword are not.
	assert.NotContains(t, got, "Offsite, all day event, Tuesday, February 3, 2026")
	assert.NotContains(t, got, "Go to next month")
	assert.NotContains(t, got, "Calendar view, February 2026")
}

func TestHarvestDropsContainers(t *testing.T) {
	long := strings.Repeat("x", maxTextLen)
	html := `<div class="event-list">` + long + `</div><div class="event">Lunch w/ Sam</div>`

	got, err := Harvest(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, []string{"Lunch w/ Sam"}, got)
}

func TestHarvestEmpty(t *testing.T) {
	got, err := Harvest(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIsEventLabel(t *testing.T) {
	tests := []struct {
		label string
		want  bool
	}{
		{"Standup, 9:00 AM to 9:15 AM, Monday, March 2, 2026", true},
		{"Planning meeting: Q2", true},
		{"All day event: Holiday", true},
		{"Offsite, all day event, Tuesday, February 3, 2026", false},
		{"Settings: theme", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isEventLabel(tt.label), tt.label)
	}
}

func TestIsSignInURL(t *testing.T) {
	assert.True(t, isSignInURL("https://login.microsoftonline.com/common/oauth2/v2.0/authorize?client_id=x"))
	assert.True(t, isSignInURL("https://LOGIN.LIVE.COM/login.srf"))
	assert.False(t, isSignInURL("https://outlook.office.com/calendar/view/month"))
	assert.False(t, isSignInURL("https://evil.example.com/login.microsoftonline.com"))
	assert.False(t, isSignInURL("::not a url"))
}

func TestStatic(t *testing.T) {
	src := Static{"a fragment", "another one"}
	got, err := src.Fragments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a fragment", "another one"}, got)

	got[0] = "mutated"
	again, _ := src.Fragments(context.Background())
	assert.Equal(t, "a fragment", again[0])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Fragments(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewBrowserDefaults(t *testing.T) {
	b := NewBrowser(BrowserOptions{URL: "https://outlook.office.com/calendar/view/month"})
	assert.Equal(t, DefaultWidth, b.opts.Width)
	assert.Equal(t, DefaultHeight, b.opts.Height)
	assert.Equal(t, DefaultSettle, b.opts.Settle)
	assert.Equal(t, int64(DefaultTimeoutSec), int64(b.opts.Timeout.Seconds()))

	var _ Source = b
}

func TestBrowserRequiresURL(t *testing.T) {
	_, err := NewBrowser(BrowserOptions{}).Fragments(context.Background())
	assert.Error(t, err)
}
