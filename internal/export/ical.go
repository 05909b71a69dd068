package export

import (
	"crypto/md5"
	"encoding/hex"
	"time"

	ical "github.com/arran4/golang-ical"

	"owacal/internal/model"
)

const (
	ProductID = "-//owacal//owacal//EN"
	// UIDDomain is appended to every generated UID.
	UIDDomain = "owacal"

	icalDateLayout     = "20060102"
	icalFloatingLayout = "20060102T150405"
	uidStartLayout     = "2006-01-02 15:04:05"
)

// ICal renders events as a VCALENDAR document with CRLF line endings.
// now only feeds DTSTAMP; everything else depends on the events alone.
func ICal(events []model.Event, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)

	for _, ev := range events {
		ve := cal.AddEvent(EventUID(ev))
		ve.SetDtStampTime(now.UTC())

		if ev.AllDay {
			date := &ical.KeyValues{Key: "VALUE", Value: []string{"DATE"}}
			ve.SetProperty(ical.ComponentPropertyDtStart, ev.Start.Format(icalDateLayout), date)
			ve.SetProperty(ical.ComponentPropertyDtEnd, ev.End.Format(icalDateLayout), date)
		} else {
			// Floating local time: no TZID and no Z suffix.
			ve.SetProperty(ical.ComponentPropertyDtStart, ev.Start.Format(icalFloatingLayout))
			ve.SetProperty(ical.ComponentPropertyDtEnd, ev.End.Format(icalFloatingLayout))
		}

		// SUMMARY is TEXT; the serializer escapes it.
		ve.SetProperty(ical.ComponentPropertySummary, ev.Title)
	}

	return cal.Serialize(ical.WithNewLineWindows)
}

// EventUID is a stable identifier derived from the title and start time, so
// re-exporting the same event keeps the same UID.
func EventUID(ev model.Event) string {
	sum := md5.Sum([]byte(ev.Title + ev.Start.Format(uidStartLayout)))
	return hex.EncodeToString(sum[:]) + "@" + UIDDomain
}
