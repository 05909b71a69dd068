package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "owacal/internal/log"
	"owacal/internal/model"
)

// DecodeICal reads events back from a VCALENDAR produced by ICal. Times are
// floating and parsed in time.Local; DTSTART;VALUE=DATE marks an all-day
// event spanning 00:00 to 23:59. A VEVENT that cannot be read is logged and
// skipped.
func DecodeICal(r io.Reader) ([]model.Event, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("export: parse ical: %w", err)
	}

	events := make([]model.Event, 0)
	for _, ve := range cal.Events() {
		ev, err := decodeVEvent(ve)
		if err != nil {
			uid := ""
			if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
				uid = p.Value
			}
			appLog.Error("ical vevent skipped", err, "uid", uid)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeVEvent(ve *ical.VEvent) (model.Event, error) {
	var ev model.Event

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		// Already unescaped by the parser.
		ev.Title = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return ev, errors.New("missing DTSTART")
	}
	ev.AllDay = isDateValue(startProp)

	start, err := parseICalTime(startProp.Value, ev.AllDay)
	if err != nil {
		return ev, fmt.Errorf("DTSTART: %w", err)
	}
	ev.Start = start

	switch endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); {
	case ev.AllDay:
		ev.End = time.Date(start.Year(), start.Month(), start.Day(), 23, 59, 0, 0, time.Local)
	case endProp == nil:
		ev.End = start
	default:
		end, err := parseICalTime(endProp.Value, false)
		if err != nil {
			return ev, fmt.Errorf("DTEND: %w", err)
		}
		ev.End = end
	}

	return ev, nil
}

// isDateValue reports VALUE=DATE, or a value with no time part.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func parseICalTime(v string, date bool) (time.Time, error) {
	if date {
		return time.ParseInLocation(icalDateLayout, v, time.Local)
	}
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(icalFloatingLayout+"Z", v)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(time.Local), nil
	}
	return time.ParseInLocation(icalFloatingLayout, v, time.Local)
}
