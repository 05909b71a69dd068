package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"owacal/internal/model"
)

func sampleEvents() []model.Event {
	return []model.Event{
		{
			Title:      "Team Sync",
			Start:      time.Date(2026, time.February, 3, 10, 0, 0, 0, time.Local),
			End:        time.Date(2026, time.February, 3, 11, 0, 0, 0, time.Local),
			SourceText: "Team Sync, 10:00 AM to 11:00 AM, Tuesday, February 3, 2026",
		},
		{
			Title:      "Offsite",
			Start:      time.Date(2026, time.February, 3, 0, 0, 0, 0, time.Local),
			End:        time.Date(2026, time.February, 3, 23, 59, 0, 0, time.Local),
			AllDay:     true,
			SourceText: "Offsite, all day event, Tuesday, February 3, 2026",
		},
		{
			Title: `Budget; Q1, draft \ v2`,
			Start: time.Date(2026, time.February, 4, 15, 30, 0, 0, time.Local),
			End:   time.Date(2026, time.February, 4, 16, 0, 0, 0, time.Local),
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleEvents()))

	want := "Tue Feb 03 10:00 - 11:00 - Team Sync\n" +
		"Tue Feb 03 (all day) - Offsite\n" +
		"Wed Feb 04 15:30 - 16:00 - Budget; Q1, draft \\ v2\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestICalFields(t *testing.T) {
	now := time.Date(2026, time.February, 1, 8, 30, 15, 0, time.UTC)
	out := ICal(sampleEvents(), now)

	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n"))
	assert.Contains(t, out, "END:VCALENDAR")
	assert.NotContains(t, strings.ReplaceAll(out, "\r\n", ""), "\n", "all line breaks must be CRLF")
	assert.Contains(t, out, "PRODID:"+ProductID+"\r\n")
	assert.Contains(t, out, "METHOD:PUBLISH\r\n")
	assert.Equal(t, 3, strings.Count(out, "BEGIN:VEVENT\r\n"))

	assert.Contains(t, out, "DTSTAMP:20260201T083015Z\r\n")
	assert.Contains(t, out, "DTSTART:20260203T100000\r\n")
	assert.Contains(t, out, "DTEND:20260203T110000\r\n")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20260203\r\n")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20260203\r\n")
	assert.Contains(t, out, `SUMMARY:Budget\; Q1\, draft \\ v2`+"\r\n")
	assert.Contains(t, out, "UID:"+EventUID(sampleEvents()[0])+"\r\n")
}

func TestEventUID(t *testing.T) {
	ev := sampleEvents()[0]

	uid := EventUID(ev)
	assert.True(t, strings.HasSuffix(uid, "@"+UIDDomain))
	assert.Len(t, strings.TrimSuffix(uid, "@"+UIDDomain), 32)
	assert.Equal(t, uid, EventUID(ev))

	// Source text does not take part in identity.
	ev.SourceText = "something else"
	assert.Equal(t, uid, EventUID(ev))

	ev.Start = ev.Start.Add(time.Minute)
	assert.NotEqual(t, uid, EventUID(ev))
}

func TestICalDeterministicExceptDTSTAMP(t *testing.T) {
	events := sampleEvents()
	a := strings.Split(ICal(events, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), "\r\n")
	b := strings.Split(ICal(events, time.Date(2027, 6, 1, 12, 0, 0, 0, time.UTC)), "\r\n")

	require.Equal(t, len(a), len(b))
	diffs := 0
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		diffs++
		assert.True(t, strings.HasPrefix(a[i], "DTSTAMP:"), "unexpected diff on line %q", a[i])
	}
	assert.Equal(t, len(events), diffs)
}

func TestICalSummaryEscapedOnce(t *testing.T) {
	events := []model.Event{{
		Title: `a\b,c;d \, e`,
		Start: time.Date(2026, time.February, 4, 9, 0, 0, 0, time.Local),
		End:   time.Date(2026, time.February, 4, 9, 30, 0, 0, time.Local),
	}}

	out := ICal(events, time.Now())
	var summaries []string
	for _, line := range strings.Split(out, "\r\n") {
		if strings.HasPrefix(line, "SUMMARY") {
			summaries = append(summaries, line)
		}
	}
	assert.Equal(t, []string{`SUMMARY:a\\b\,c\;d \\\, e`}, summaries)
}

func TestJSONShape(t *testing.T) {
	target := "work"
	fetched := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))

	data, err := JSON(sampleEvents()[:2], &target, fetched)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "work", raw["target"])
	assert.Equal(t, "2026-02-01T00:00:00Z", raw["fetched_at"])
	assert.Equal(t, float64(2), raw["event_count"])

	events := raw["events"].([]any)
	require.Len(t, events, 2)
	first := events[0].(map[string]any)
	assert.Equal(t, "Team Sync", first["title"])
	assert.Equal(t, "2026-02-03T10:00:00", first["start"])
	assert.Equal(t, "2026-02-03T11:00:00", first["end"])
	assert.Equal(t, false, first["all_day"])
	assert.NotContains(t, first, "source_text")
	assert.NotContains(t, string(data), "Tuesday")
}

func TestJSONNullTargetAndEmptyEvents(t *testing.T) {
	data, err := JSON(nil, nil, time.Now())
	require.NoError(t, err)

	assert.Contains(t, string(data), `"target": null`)
	assert.Contains(t, string(data), `"events": []`)
	assert.Contains(t, string(data), `"event_count": 0`)
}

func TestJSONRoundTrip(t *testing.T) {
	events := sampleEvents()
	data, err := JSON(events, nil, time.Now())
	require.NoError(t, err)

	env, err := DecodeJSON(data)
	require.NoError(t, err)
	assert.Nil(t, env.Target)
	assert.Equal(t, len(events), env.EventCount)

	got := env.ModelEvents()
	require.Len(t, got, len(events))
	for i := range events {
		assert.Equal(t, events[i].Title, got[i].Title)
		assert.True(t, events[i].Start.Equal(got[i].Start), "start %d", i)
		assert.True(t, events[i].End.Equal(got[i].End), "end %d", i)
		assert.Equal(t, events[i].AllDay, got[i].AllDay)
	}
}

func TestDecodeJSONError(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"events": [{"start": "yesterday"}]}`))
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "TEXT": FormatText, "ics": FormatICal, "ical": FormatICal, "json": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	var f Format
	assert.Error(t, f.Set("xml"))
	require.NoError(t, f.Set("json"))
	assert.Equal(t, FormatJSON, f)
	assert.Equal(t, "application/json", f.ContentType())
}

func TestRender(t *testing.T) {
	snap := model.Snapshot{
		Events:    sampleEvents()[:1],
		FetchedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	text, err := Render(FormatText, snap)
	require.NoError(t, err)
	assert.Equal(t, "Tue Feb 03 10:00 - 11:00 - Team Sync\n", string(text))

	ics, err := Render(FormatICal, snap)
	require.NoError(t, err)
	assert.Contains(t, string(ics), "SUMMARY:Team Sync")

	js, err := Render(FormatJSON, snap)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"event_count": 1`)

	_, err = Render(Format("xml"), snap)
	assert.Error(t, err)
}

func TestDecodeICalRoundTrip(t *testing.T) {
	events := sampleEvents()
	events[1].Title = `Literal \, kept`

	got, err := DecodeICal(strings.NewReader(ICal(events, time.Now())))
	require.NoError(t, err)
	require.Len(t, got, len(events))
	for i := range events {
		assert.Equal(t, events[i].Title, got[i].Title)
		assert.Equal(t, events[i].AllDay, got[i].AllDay)
		assert.True(t, events[i].Start.Equal(got[i].Start), "start %d: %v", i, got[i].Start)
		assert.True(t, events[i].End.Equal(got[i].End), "end %d: %v", i, got[i].End)
	}
}

func TestDecodeICalSkipsBrokenEvents(t *testing.T) {
	doc := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:x\r\n" +
		"BEGIN:VEVENT\r\nUID:a\r\nSUMMARY:No start\r\nEND:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nUID:b\r\nSUMMARY:Utc\r\nDTSTART:20260203T090000Z\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	got, err := DecodeICal(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Utc", got[0].Title)
	assert.True(t, got[0].Start.Equal(time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, got[0].Start, got[0].End)
}
